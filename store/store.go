package store

import (
	"time"

	"github.com/kirsrus/rjpeg2tiff/model"
)

// DbStore репозиторий истории преобразований
//go:generate mockery --dir . --name DbStore --output ./mocks
type DbStore interface {
	// Проверяет, что ошибка err обозначает, что записи не найдены
	IsNotFound(err error) bool

	// Сохраняет итог преобразования. Повторное сохранение с тем же ID обновляет запись.
	SaveConversion(model.ConversionResult) error
	// Возвращает запись преобразования по идентификатору задания. Отсутствие проверяется через IsNotFound
	Conversion(id string) (*ConversionLog, error)
	// Последние limit записей, новые первыми
	Conversions(limit int) ([]ConversionLog, error)

	// Очищает записи в БД старше days дней
	Clean(days int) error
	// Закрывает соединение с БД
	Close() error
}

// ConversionLog запись истории преобразований
type ConversionLog struct {
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	Input       string        `json:"input"`
	Output      string        `json:"output"`
	Model       string        `json:"model"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Precision   float64       `json:"precision"`
	Compression string        `json:"compression"`
	OutOfRange  int           `json:"out_of_range"`
	MinTemp     float64       `json:"min_temp"`
	MaxTemp     float64       `json:"max_temp"`
	MeanTemp    float64       `json:"mean_temp"`
	Duration    time.Duration `json:"duration"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Success преобразование завершилось успешно
func (m ConversionLog) Success() bool {
	return m.ErrorKind == ""
}
