// Package batch пакетное преобразование каталогов R-JPEG
package batch

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kirsrus/rjpeg2tiff/controller"
	"github.com/kirsrus/rjpeg2tiff/controller/encoder"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/tool"
	"github.com/kirsrus/rjpeg2tiff/pkg/validator"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const (
	// Число одновременно обрабатываемых файлов
	defaultWorkers = 4
	// Интервал проверки новых файлов в режиме наблюдения
	defaultSettlePoll = 500 * time.Millisecond
	// Время, в течение которого размер нового файла не должен меняться
	defaultSettleTime = time.Second
)

// Batch контроллер пакетной обработки. Имплементирует интерфейс BatchCtl. Инициализируется через NewBatch.
type Batch struct {
	log       *logrus.Entry
	fs        afero.Fs
	validator *validator.Validator

	converter controller.ConverterCtl

	workers    int
	timeout    time.Duration
	settlePoll time.Duration
	settleTime time.Duration
}

// ConfigBatch конфигурация Batch
type ConfigBatch struct {
	Log *logrus.Logger
	// Файловая система. По умолчанию файловая система ОС.
	Fs afero.Fs
	// Число одновременно обрабатываемых файлов, если не задано в запросе
	Workers int
	// Ограничение времени всего пакета. 0 - без ограничения.
	Timeout time.Duration
	// Время стабилизации размера нового файла в режиме наблюдения
	SettleTime time.Duration
}

// NewBatch конструктор Batch
func NewBatch(converter controller.ConverterCtl, config *ConfigBatch) (*Batch, error) {
	if config == nil {
		return nil, errors.New("не установлен config")
	}
	if config.Log == nil {
		config.Log = logrus.New()
		config.Log.Out = ioutil.Discard
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if converter == nil {
		return nil, errors.New("не указан конвертер")
	}

	batch := Batch{
		log: config.Log.WithFields(map[string]interface{}{
			"module": "batch",
			"scope":  "controller",
		}),
		fs:        config.Fs,
		validator: validator.Get(),
		converter: converter,

		workers:    defaultWorkers,
		timeout:    config.Timeout,
		settlePoll: defaultSettlePoll,
		settleTime: defaultSettleTime,
	}
	if config.Workers > 0 {
		batch.workers = config.Workers
	}
	if config.SettleTime > 0 {
		batch.settleTime = config.SettleTime
		if config.SettleTime < batch.settlePoll {
			batch.settlePoll = config.SettleTime
		}
	}
	return &batch, nil
}

var _ controller.BatchCtl = (*Batch)(nil)

// Discover список R-JPEG в каталоге dir в лексикографическом порядке. Подкаталоги
// обходятся только при recursive. Файлы отбираются по расширению .jpg/.jpeg.
func (m Batch) Discover(dir string, recursive bool) ([]string, error) {
	isDir, err := afero.IsDir(m.fs, dir)
	if err != nil {
		return nil, errors.Annotatef(err, "каталог %s", dir)
	}
	if !isDir {
		return nil, errors.Errorf("%s не является каталогом", dir)
	}

	files := make([]string, 0)
	err = afero.Walk(m.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			m.log.Warnf("пропуск %s: %v", path, err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if tool.IsSupportedInput(info.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return files, nil
}

// Run преобразует все R-JPEG каталога. Ошибка одного файла не прерывает пакет.
// При отмене ctx или истечении Timeout не начатые файлы получают CanceledError.
func (m Batch) Run(ctx context.Context, req model.BatchRequest, progress controller.ProgressFunc) (model.BatchReport, error) {
	start := time.Now()
	req.Options.Normalize()
	if err := m.validator.ValidateWithConform(&req); err != nil {
		return model.BatchReport{}, errors.Annotate(err, "некорректный запрос")
	}
	if err := encoder.CheckPrecision(req.Model, req.Options.Precision); err != nil {
		return model.BatchReport{}, errors.Trace(err)
	}
	files, err := m.Discover(req.InputDir, req.Recursive)
	if err != nil {
		return model.BatchReport{}, errors.Trace(err)
	}
	m.log.Infof("найдено файлов: %d в %s", len(files), req.InputDir)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	workers := m.workers
	if req.Workers > 0 {
		workers = req.Workers
	}

	results := make([]model.ConversionResult, len(files))
	var (
		mu   sync.Mutex
		done int
	)
	notify := func(res model.ConversionResult) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if progress != nil {
			progress(done, len(files), res)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, file := range files {
		output := tool.BatchOutputPath(req.InputDir, file, req.OutputDir)
		if ctx.Err() != nil {
			results[i] = model.ConversionResult{
				Input:  file,
				Output: output,
				Err:    errors.Trace(&model.CanceledError{Path: file}),
			}
			continue
		}
		i, file := i, file
		g.Go(func() error {
			// Каждый обработчик владеет своим кадром от декодирования до записи
			res := m.converter.Convert(ctx, req.Request(file, output))
			results[i] = res
			notify(res)
			return nil
		})
	}
	_ = g.Wait()

	report := model.BatchReport{Results: results, Duration: time.Since(start)}
	m.log.Infof("пакет завершён за %v: успешно %d, с ошибкой %d",
		report.Duration.Round(time.Millisecond), report.Succeeded(), report.Failed())
	return report, nil
}
