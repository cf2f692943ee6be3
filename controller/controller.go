package controller

import (
	"context"

	"github.com/kirsrus/rjpeg2tiff/model"
)

// ConverterCtl контроллер преобразования одного R-JPEG в TIFF
//go:generate mockery --dir . --name ConverterCtl --output ./mocks
type ConverterCtl interface {
	// Преобразует файл. Ошибка возвращается в поле Err результата и касается только этого файла.
	Convert(ctx context.Context, req model.ConvertRequest) model.ConversionResult
}

// ProgressFunc вызывается после обработки каждого файла пакета
type ProgressFunc func(done, total int, res model.ConversionResult)

// BatchCtl контроллер пакетной обработки каталога
//go:generate mockery --dir . --name BatchCtl --output ./mocks
type BatchCtl interface {
	// Находит исходные файлы в каталоге
	Discover(dir string, recursive bool) ([]string, error)
	// Преобразует все найденные файлы. Результатов столько же, сколько найдено файлов.
	Run(ctx context.Context, req model.BatchRequest, progress ProgressFunc) (model.BatchReport, error)
	// Преобразует новые файлы по мере их появления в каталоге до отмены ctx
	Watch(ctx context.Context, req model.BatchRequest, progress ProgressFunc) error
}
