// Package converter преобразование одного R-JPEG в калиброванный TIFF
package converter

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirsrus/rjpeg2tiff/controller"
	"github.com/kirsrus/rjpeg2tiff/controller/encoder"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/preview"
	"github.com/kirsrus/rjpeg2tiff/pkg/validator"
	"github.com/kirsrus/rjpeg2tiff/service"
	"github.com/kirsrus/rjpeg2tiff/store"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const jpegMime = "image/jpeg"

// Converter контроллер преобразования. Имплементирует интерфейс ConverterCtl. Инициализируется через NewConverter.
type Converter struct {
	log       *logrus.Entry
	fs        afero.Fs
	validator *validator.Validator

	decoder service.DecoderSvc
	encoder *encoder.Encoder
	// Может быть nil: история не ведётся
	dbStore store.DbStore

	previewWidth uint
}

// ConfigConverter конфигурация Converter
type ConfigConverter struct {
	Log *logrus.Logger
	// Файловая система. По умолчанию файловая система ОС.
	Fs afero.Fs
	// Ширина PNG-превью. 0 - в размер кадра.
	PreviewWidth uint
}

// NewConverter конструктор Converter. dbStore может быть nil.
func NewConverter(decoder service.DecoderSvc, enc *encoder.Encoder, dbStore store.DbStore, config *ConfigConverter) (*Converter, error) {
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
	if decoder == nil {
		return nil, errors.New("не указан декодер")
	}
	if enc == nil {
		return nil, errors.New("не указан кодировщик")
	}

	return &Converter{
		log: config.Log.WithFields(map[string]interface{}{
			"module": "converter",
			"scope":  "controller",
		}),
		fs:        config.Fs,
		validator: validator.Get(),

		decoder: decoder,
		encoder: enc,
		dbStore: dbStore,

		previewWidth: config.PreviewWidth,
	}, nil
}

var _ controller.ConverterCtl = (*Converter)(nil)

// Convert читает R-JPEG, определяет модель, декодирует температуры и записывает TIFF
func (m Converter) Convert(ctx context.Context, req model.ConvertRequest) model.ConversionResult {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Options.Normalize()
	log := m.log.WithFields(map[string]interface{}{"job": req.ID, "file": req.Input})

	fail := func(res model.ConversionResult, err error) model.ConversionResult {
		res.ID, res.Input, res.Output = req.ID, req.Input, req.Output
		res.Err = err
		res.Duration = time.Since(start)
		m.record(log, res)
		log.Warnf("%s: %v", model.ErrorKind(err), err)
		return res
	}
	base := model.ConversionResult{
		Precision:   req.Options.Precision,
		Compression: req.Options.Compression,
	}

	if err := m.validator.ValidateWithConform(&req); err != nil {
		return fail(base, errors.Annotate(err, "некорректный запрос"))
	}
	if err := ctx.Err(); err != nil {
		return fail(base, errors.Trace(&model.CanceledError{Path: req.Input}))
	}
	// Шаг для явно указанной модели проверяется до чтения файла и вызова SDK
	if err := encoder.CheckPrecision(req.Model, req.Options.Precision); err != nil {
		if dm, ok := model.LookupDroneModel(req.Model); ok {
			base.Model = dm.ID
		}
		return fail(base, errors.Trace(err))
	}

	data, err := afero.ReadFile(m.fs, req.Input)
	if err != nil {
		return fail(base, errors.Trace(&model.IOError{Path: req.Input, Err: err}))
	}
	if mime := mimetype.Detect(data); !mime.Is(jpegMime) {
		return fail(base, errors.Trace(&model.DecodeError{
			Path: req.Input,
			Err:  errors.Errorf("файл не является JPEG (%s)", mime.String()),
		}))
	}

	info := readExif(data)
	droneModel, err := resolveModel(req.Model, info.model)
	if err != nil {
		return fail(base, errors.Trace(err))
	}
	base.Model = droneModel.ID
	log = log.WithField("model", droneModel.ID)
	log.Debugf("модель %s, EXIF %q", droneModel, info.model)
	if _, err := encoder.PlanQuantization(droneModel, req.Options.Precision); err != nil {
		return fail(base, errors.Trace(err))
	}

	frame, err := m.decoder.Decode(data, req.Measurement)
	if err != nil {
		return fail(base, asDecodeError(req.Input, err))
	}
	if frame == nil {
		return fail(base, errors.Trace(&model.DecodeError{
			Path: req.Input,
			Err:  errors.Errorf("декодер %s не вернул кадр", m.decoder.Name()),
		}))
	}
	capturedAt := frame.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = info.capturedAt
	}

	res := m.encoder.Encode(frame, droneModel, req.Options, req.Output, encoder.Meta{
		Source:     filepath.Base(req.Input),
		CapturedAt: capturedAt,
		Decoder:    m.decoder.Name(),
	})
	if res.Err != nil {
		return fail(res, res.Err)
	}
	res.ID, res.Input = req.ID, req.Input

	if req.Preview {
		path := preview.Path(req.Output)
		if err := preview.Write(m.fs, path, frame, preview.Options{Width: m.previewWidth}); err != nil {
			log.Warnf("не удалось сохранить превью %s: %v", path, err)
		}
	}

	res.Duration = time.Since(start)
	m.record(log, res)
	log.Infof("преобразован в %s за %v", res.Output, res.Duration.Round(time.Millisecond))
	return res
}

// Запись в историю. Ошибка истории не влияет на результат преобразования.
func (m Converter) record(log *logrus.Entry, res model.ConversionResult) {
	if m.dbStore == nil {
		return
	}
	if err := m.dbStore.SaveConversion(res); err != nil {
		log.Warnf("не удалось сохранить историю: %v", err)
	}
}

// Ошибка декодера приводится к DecodeError с путём исходного файла
func asDecodeError(path string, err error) error {
	if decodeErr, ok := errors.Cause(err).(*model.DecodeError); ok {
		if decodeErr.Path == "" {
			decodeErr.Path = path
		}
		return errors.Trace(decodeErr)
	}
	return errors.Trace(&model.DecodeError{Path: path, Err: err})
}

type exifInfo struct {
	model      string
	capturedAt time.Time
}

// Сведения EXIF. Отсутствие EXIF не является ошибкой.
func readExif(data []byte) exifInfo {
	var info exifInfo
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return info
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			info.model = strings.TrimSpace(s)
		}
	}
	if t, err := x.DateTime(); err == nil {
		info.capturedAt = t
	}
	return info
}

// Модель по идентификатору или, для AUTO, по полю Model EXIF
func resolveModel(id, exifModel string) (model.DroneModel, error) {
	if strings.EqualFold(strings.TrimSpace(id), model.ModelAuto) {
		if m, ok := model.DetectDroneModel(exifModel); ok {
			return m, nil
		}
		if exifModel == "" {
			return model.DroneModel{}, errors.New("модель не указана, а в EXIF нет поля Model")
		}
		return model.DroneModel{}, errors.Errorf("камера %q не поддерживается, укажите модель явно (%s)",
			exifModel, strings.Join(model.DroneModelIDs(), ", "))
	}
	m, ok := model.LookupDroneModel(id)
	if !ok {
		return model.DroneModel{}, errors.NotFoundf("модель %q", id)
	}
	return m, nil
}
