package logger

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogrusContextHook добавляет к предупреждениям и ошибкам поле source (файл:строка)
type LogrusContextHook struct{}

// Levels уровни, на которых срабатывает хук
func (hook LogrusContextHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

// Fire добавляет поле source с первым вызовом вне logrus
func (hook LogrusContextHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "sirupsen/logrus") && !strings.HasSuffix(frame.File, "logger/hook.go") {
			entry.Data["source"] = fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
			break
		}
		if !more {
			break
		}
	}
	return nil
}
