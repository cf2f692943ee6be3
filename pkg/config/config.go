package config

import (
	"log"
	"os"
	"sync"

	"github.com/jinzhu/configor"
	"gopkg.in/yaml.v2"
)

var (
	config Config
	once   sync.Once
)

const (
	FileName = "config.yaml"
	// EnvPrefix префикс переменных окружения, переопределяющих конфигурацию (RJPEG_CONVERT_MODEL и т.п.)
	EnvPrefix = "RJPEG"
)

// Get единажды читает и возвращает конфигурацию
func Get() *Config {
	return GetWithPath(FileName)
}

// GetWithPath единожды читает и возвращает конфигурацию. Отсутствие файла не ошибка:
// используются значения по умолчанию и переменные окружения.
func GetWithPath(filepath string) *Config {
	once.Do(func() {
		cfg, err := Load(filepath)
		if err != nil {
			log.Fatalf("ошибка чтения файла конфигурации %s: %s", filepath, err)
		}
		config = *cfg
	})
	return &config
}

// Load читает конфигурацию из файла filepath без кэширования
func Load(filepath string) (*Config, error) {
	var cfg Config
	files := make([]string, 0, 1)
	if filepath != "" {
		if _, err := os.Stat(filepath); err == nil {
			files = append(files, filepath)
		}
	}
	loader := configor.New(&configor.Config{ENVPrefix: EnvPrefix})
	if err := loader.Load(&cfg, files...); err != nil {
		return nil, err
	}
	cfg.File = ""
	if len(files) > 0 {
		cfg.File = files[0]
	}
	return &cfg, nil
}

// AsYaml текущая конфигурация в YAML для журнала
func (m Config) AsYaml() string {
	b, err := yaml.Marshal(m)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
