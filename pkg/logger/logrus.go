package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	RotateMaxSize    = 30 // MB
	RotateLocalTime  = true
	RotateMaxAge     = 365 // Дней
	RotateMaxBackups = 10  // Колличество файлов
	RotateCompress   = true
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Config конфигурация лога
type Config struct {
	// Путь к директории лога
	Path string
	// Имя файла лога. Пустое значение - только консоль
	File    string
	Level   logrus.Level
	Console bool
}

// Get быстрый конфиг на консоль
func Get(level logrus.Level) *logrus.Logger {
	return GetWithConfig(Config{
		File:    "",
		Level:   level,
		Console: true,
	})
}

// GetWithConfig лоигрование с конфигурацией
func GetWithConfig(config Config) *logrus.Logger {
	once.Do(func() {
		logger = New(config)
	})
	return logger
}

// New создаёт новый логгер без кэширования
func New(config Config) *logrus.Logger {
	log := logrus.New()
	log.Level = config.Level
	log.Formatter = &logrus.TextFormatter{
		DisableColors:   false,
		FullTimestamp:   true,
		TimestampFormat: "2006.01.02 15:04:05",
	}
	log.Out = os.Stderr
	if !config.Console && config.File != "" {
		log.Out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   filepath.Join(config.Path, config.File),
			MaxSize:    RotateMaxSize, // MB
			MaxAge:     RotateMaxAge,  // Day
			MaxBackups: RotateMaxBackups,
			LocalTime:  RotateLocalTime,
			Compress:   RotateCompress,
		})
	}
	log.AddHook(LogrusContextHook{})
	return log
}

// ParseLevel разбирает уровень логирования. При ошибке возвращает WarnLevel
func ParseLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.WarnLevel
	}
	return l
}
