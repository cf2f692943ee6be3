package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestContextHook(t *testing.T) {
	log := New(Config{Level: logrus.DebugLevel, Console: true})
	buf := new(bytes.Buffer)
	log.Out = buf
	log.Formatter = &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}

	log.Info("информация")
	assert.NotContains(t, buf.String(), "source=")

	buf.Reset()
	log.WithField("module", "test").Warn("предупреждение")
	assert.Contains(t, buf.String(), `source="logrus_test.go:`)
	assert.Contains(t, buf.String(), "module=test")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("громко"))
}
