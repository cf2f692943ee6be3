// Package encoder кодирование температурной карты в калиброванный 16-битный TIFF
package encoder

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/tiffw"
	"github.com/kirsrus/rjpeg2tiff/pkg/validator"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	// Права выходного файла
	filePerm = 0644
	// Права создаваемых каталогов
	dirPerm = 0755
)

// Encoder кодировщик температурной карты. Инициализируется через NewEncoder.
// Безопасен для одновременного использования из нескольких горутин.
type Encoder struct {
	log      *logrus.Entry
	fs       afero.Fs
	validate *validator.Validator
}

// ConfigEncoder конфигурация Encoder
type ConfigEncoder struct {
	Log *logrus.Logger
	// Файловая система. По умолчанию файловая система ОС.
	Fs afero.Fs
}

// NewEncoder конструктор Encoder
func NewEncoder(config *ConfigEncoder) (*Encoder, error) {
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

	return &Encoder{
		log: config.Log.WithFields(map[string]interface{}{
			"module": "encoder",
			"scope":  "controller",
		}),
		fs:       config.Fs,
		validate: validator.Get(),
	}, nil
}

// Encode проверяет, квантует и записывает кадр в outputPath.
// Ошибки: PrecisionOverflowError (до записи), IOError (файл по outputPath не изменён).
// Значения вне диапазона модели не являются ошибкой и отражаются в OutOfRange результата.
func (m Encoder) Encode(frame *model.TemperatureFrame, droneModel model.DroneModel, opts model.EncodingOptions, outputPath string, meta Meta) model.ConversionResult {
	start := time.Now()
	if c, ok := model.ParseCompression(string(opts.Compression)); ok {
		opts.Compression = c
	}
	if opts.BitDepth == 0 {
		opts.BitDepth = model.BitDepth
	}
	result := model.ConversionResult{
		Output:      outputPath,
		Model:       droneModel.ID,
		Precision:   opts.Precision,
		Compression: opts.Compression,
	}
	finish := func(err error) model.ConversionResult {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	if err := frame.Validate(); err != nil {
		return finish(errors.Trace(err))
	}
	result.Width, result.Height = frame.Width, frame.Height

	if err := m.validate.Validate(opts); err != nil {
		return finish(errors.Annotate(err, "параметры кодирования"))
	}
	code, err := tiffCompression(opts.Compression)
	if err != nil {
		return finish(errors.Trace(err))
	}

	plan, err := PlanQuantization(droneModel, opts.Precision)
	if err != nil {
		return finish(errors.Trace(err))
	}
	result.Offset = plan.Offset

	stored, warn := plan.Quantize(frame)
	result.OutOfRange = warn
	result.Stats = model.NewFrameStats(frame)
	if warn.Count > 0 {
		m.log.Warn(warn.String())
	}

	fields, err := buildFields(plan, frame, warn, opts.Compression, meta)
	if err != nil {
		return finish(errors.Trace(err))
	}
	img := tiffw.Gray16{Width: frame.Width, Height: frame.Height, Pix: stored}
	err = m.writeAtomic(outputPath, func(w io.Writer) error {
		return tiffw.Encode(w, img, fields, tiffw.Options{Compression: code})
	})
	if err != nil {
		return finish(err)
	}

	m.log.WithField("file", outputPath).Infof("диапазон температур %.1f°C ~ %.1f°C", result.Stats.Min, result.Stats.Max)
	return finish(nil)
}

// Запись через временный файл в том же каталоге и атомарное переименование.
// При любой ошибке временный файл удаляется, а существующий файл path не меняется.
func (m Encoder) writeAtomic(path string, write func(w io.Writer) error) (err error) {
	ioErr := func(err error) error {
		return errors.Trace(&model.IOError{Path: path, Err: err})
	}

	dir := filepath.Dir(path)
	if err := m.fs.MkdirAll(dir, dirPerm); err != nil {
		return ioErr(err)
	}
	tmp, err := afero.TempFile(m.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return ioErr(err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = tmp.Close()
		}
		if rmErr := m.fs.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
			m.log.Warnf("не удалось удалить временный файл %s: %v", tmpName, rmErr)
		}
	}()

	if err = write(tmp); err != nil {
		return ioErr(err)
	}
	if err = tmp.Sync(); err != nil {
		return ioErr(err)
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return ioErr(err)
	}
	if err = m.fs.Chmod(tmpName, filePerm); err != nil {
		return ioErr(err)
	}
	if err = m.fs.Rename(tmpName, path); err != nil {
		return ioErr(err)
	}
	return nil
}
