// Package synthetic демонстрационный декодер: строит правдоподобную температурную карту
// по разрешению JPEG без чтения радиометрических данных.
package synthetic

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"io/ioutil"
	"math"
	"runtime"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/service"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// Name имя декодера
const Name = "synthetic"

const (
	// Диапазон фонового градиента, °C
	gradientBase  = 20.0
	gradientRange = 20.0

	// Центральная горячая точка
	spot1Amplitude = 60.0
	spot1Radius    = 50.0
	// Смещённая горячая точка
	spot2Amplitude = 45.0
	spot2Radius    = 30.0
	spot2Shift     = 100.0
)

// Synthetic декодер демонстрационных данных. Имплементирует интерфейс DecoderSvc.
type Synthetic struct {
	log *logrus.Entry
}

// ConfigSynthetic конфигурация Synthetic
type ConfigSynthetic struct {
	Log *logrus.Logger
}

// NewSynthetic конструктор Synthetic
func NewSynthetic(config *ConfigSynthetic) (service.DecoderSvc, error) {
	if config == nil {
		return nil, errors.New("не установлен config")
	}
	if config.Log == nil {
		config.Log = logrus.New()
		config.Log.Out = ioutil.Discard
	}
	synth := Synthetic{
		log: config.Log.WithFields(map[string]interface{}{
			"module": "synthetic",
			"scope":  "service",
		}),
	}
	synth.log.Warn("используется демонстрационный декодер: температуры не соответствуют реальным данным")
	return &synth, nil
}

// Name имя декодера
func (m *Synthetic) Name() string {
	return Name
}

// Version версия декодера
func (m *Synthetic) Version() string {
	return runtime.Version()
}

// Close ничего не освобождает
func (m *Synthetic) Close() error {
	return nil
}

// Decode строит кадр размером с исходный JPEG. Параметры измерения не используются.
func (m *Synthetic) Decode(data []byte, params model.MeasurementParams) (*model.TemperatureFrame, error) {
	_ = params
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Trace(&model.DecodeError{Err: err})
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Trace(&model.DecodeError{Err: errors.Errorf("недопустимое разрешение %dx%d", cfg.Width, cfg.Height)})
	}
	m.log.Debugf("демонстрационные данные %dx%d", cfg.Width, cfg.Height)
	return Generate(cfg.Width, cfg.Height), nil
}

// Generate температурная карта: градиент 20..40°C и две горячие точки
func Generate(width, height int) *model.TemperatureFrame {
	frame := model.NewTemperatureFrame(width, height)
	cx, cy := float64(width/2), float64(height/2)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x), float64(y)
			t := gradientBase + gradientRange*(fy/float64(height))*(fx/float64(width))
			d1 := math.Hypot(fx-cx, fy-cy)
			t += spot1Amplitude * math.Exp(-d1/spot1Radius)
			d2 := math.Hypot(fx-cx+spot2Shift, fy-cy+spot2Shift)
			t += spot2Amplitude * math.Exp(-d2/spot2Radius)
			frame.Set(x, y, float32(t))
		}
	}
	return frame
}
