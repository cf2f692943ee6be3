// Package dirp декодирование R-JPEG через DJI Thermal SDK (libdirp),
// загружаемый во время выполнения без cgo.
package dirp

import (
	"io/ioutil"
	"math"
	"sync"
	"unsafe"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/validator"
	"github.com/kirsrus/rjpeg2tiff/service"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Name имя декодера
const Name = "dirp"

// Dirp декодер на основе libdirp. Имплементирует интерфейс DecoderSvc. Инициализируется через NewDirp.
// Вызовы SDK выполняются последовательно.
type Dirp struct {
	log       *logrus.Entry
	validator *validator.Validator

	mu  sync.Mutex
	lib *library

	// Параметры измерения по умолчанию
	params model.MeasurementParams
}

// ConfigDirp конфигурация конструктора NewDirp
type ConfigDirp struct {
	Log *logrus.Logger
	// Путь к libdirp или каталогу с ней. Пустое значение - стандартные пути поиска.
	Path string `conform:"trim"`
	// Параметры измерения по умолчанию
	Measurement model.MeasurementParams
	// Файловая система для поиска библиотеки
	Fs afero.Fs
}

// NewDirp находит и загружает libdirp
func NewDirp(config *ConfigDirp) (service.DecoderSvc, error) {
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
	valid := validator.Get()
	if err := valid.ValidateWithConform(config); err != nil {
		return nil, errors.Annotate(err, "конфигурация dirp")
	}

	dirp := Dirp{
		log: config.Log.WithFields(map[string]interface{}{
			"module": "dirp",
			"scope":  "service",
		}),
		validator: valid,
		params:    config.Measurement,
	}

	path, err := FindLibrary(config.Fs, config.Path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dirp.lib, err = openLibrary(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dirp.log.Infof("DJI Thermal SDK загружен: %s, версия %s", path, dirp.lib.version())

	return &dirp, nil
}

// Name имя декодера
func (m *Dirp) Name() string {
	return Name
}

// Version версия API SDK
func (m *Dirp) Version() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lib == nil {
		return ""
	}
	return m.lib.version()
}

// Path путь к загруженной библиотеке
func (m *Dirp) Path() string {
	if m.lib == nil {
		return ""
	}
	return m.lib.path
}

// Close выгружает библиотеку
func (m *Dirp) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lib == nil {
		return nil
	}
	err := m.lib.close()
	m.lib = nil
	return errors.Trace(err)
}

// Decode получает температурную карту из содержимого R-JPEG. Ненулевые поля params
// заменяют параметры измерения, записанные в файле.
func (m *Dirp) Decode(data []byte, params model.MeasurementParams) (*model.TemperatureFrame, error) {
	if len(data) == 0 {
		return nil, errors.Trace(&model.DecodeError{Err: errors.New("пустые данные")})
	}
	if len(data) > math.MaxInt32 {
		return nil, errors.Trace(&model.DecodeError{Err: errors.New("слишком большой файл")})
	}
	if params.IsZero() {
		params = m.params
	}
	if err := m.validator.Validate(params); err != nil {
		return nil, errors.Annotate(err, "параметры измерения")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lib == nil {
		return nil, errors.New("библиотека dirp выгружена")
	}

	var handle uintptr
	if rc := m.lib.createFromRjpeg(unsafe.Pointer(&data[0]), int32(len(data)), &handle); rc != 0 {
		return nil, sdkError("dirp_create_from_rjpeg", rc)
	}
	defer func() {
		if rc := m.lib.destroy(handle); rc != 0 {
			m.log.Warnf("dirp_destroy вернул код %d", rc)
		}
	}()

	var res resolution
	if rc := m.lib.getResolution(handle, &res); rc != 0 {
		return nil, sdkError("dirp_get_rjpeg_resolution", rc)
	}
	if res.Width <= 0 || res.Height <= 0 {
		return nil, errors.Trace(&model.DecodeError{Err: errors.Errorf("недопустимое разрешение %dx%d", res.Width, res.Height)})
	}

	if !params.IsZero() {
		var p measurementParams
		if rc := m.lib.getMeasurementParams(handle, &p); rc != 0 {
			return nil, sdkError("dirp_get_measurement_params", rc)
		}
		mergeParams(&p, params)
		if rc := m.lib.setMeasurementParams(handle, &p); rc != 0 {
			return nil, sdkError("dirp_set_measurement_params", rc)
		}
	}

	frame := model.NewTemperatureFrame(int(res.Width), int(res.Height))
	size := len(frame.Pix) * 4
	if size > math.MaxInt32 {
		return nil, errors.Trace(&model.DecodeError{Err: errors.Errorf("слишком большой кадр %dx%d", res.Width, res.Height)})
	}
	if rc := m.lib.measureEx(handle, unsafe.Pointer(&frame.Pix[0]), int32(size)); rc != 0 {
		return nil, sdkError("dirp_measure_ex", rc)
	}
	m.log.Debugf("декодирован кадр %dx%d", res.Width, res.Height)
	return frame, nil
}

// Ненулевые поля params заменяют соответствующие значения p
func mergeParams(p *measurementParams, params model.MeasurementParams) {
	if params.Distance != 0 {
		p.Distance = float32(params.Distance)
	}
	if params.Humidity != 0 {
		p.Humidity = float32(params.Humidity)
	}
	if params.Emissivity != 0 {
		p.Emissivity = float32(params.Emissivity)
	}
	if params.Reflection != 0 {
		p.Reflection = float32(params.Reflection)
	}
}

func sdkError(fn string, rc int32) error {
	msg, ok := sdkErrors[rc]
	if !ok {
		msg = "неизвестная ошибка"
	}
	return errors.Trace(&model.DecodeError{Code: int(rc), Err: errors.Errorf("%s: %s", fn, msg)})
}
