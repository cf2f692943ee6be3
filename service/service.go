package service

import (
	"context"

	"github.com/kirsrus/rjpeg2tiff/model"
)

// DecoderSvc декодер радиометрического JPEG в температурную карту
//go:generate mockery --dir . --name DecoderSvc --output ./mocks
type DecoderSvc interface {
	// Декодирует содержимое R-JPEG. Ошибка декодирования возвращается как model.DecodeError.
	Decode(data []byte, params model.MeasurementParams) (*model.TemperatureFrame, error)
	// Имя декодера для журналов и метаданных
	Name() string
	// Версия библиотеки декодирования
	Version() string
	// Освобождает ресурсы декодера
	Close() error
}

// WebSvc сервис общения с WEB интерфейсом
//go:generate mockery --dir . --name WebSvc --output ./mocks
type WebSvc interface {
	// Хэндлер показа основной страницы
	Static(string)
	// Хэндлеры REST API с префиксом пути
	Api(string)
	// Хэндлер websocket с событиями заданий
	Events(string)
	// Отсылка события изменения состояния задания
	JobChanged(model.JobEvent)
	// Обслуживание HTTP до отмены ctx
	Serve(ctx context.Context) error
}
