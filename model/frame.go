package model

import (
	"math"
	"time"

	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TemperatureFrame температурная карта кадра в °C, по одному значению на пиксель.
// Создаётся только декодером и передаётся кодировщику один раз.
type TemperatureFrame struct {
	Width  int
	Height int
	// Значения построчно, len(Pix) == Width*Height
	Pix []float32
	// Время съёмки из EXIF (может быть нулевым)
	CapturedAt time.Time
}

// NewTemperatureFrame создаёт пустой кадр размером width×height
func NewTemperatureFrame(width, height int) *TemperatureFrame {
	return &TemperatureFrame{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// At значение температуры в точке (x, y)
func (m TemperatureFrame) At(x, y int) float32 {
	return m.Pix[y*m.Width+x]
}

// Set устанавливает значение температуры в точке (x, y). Используется только декодерами.
func (m *TemperatureFrame) Set(x, y int, v float32) {
	m.Pix[y*m.Width+x] = v
}

// Validate проверяет размеры кадра
func (m *TemperatureFrame) Validate() error {
	if m == nil {
		return errors.New("кадр не передан")
	}
	if m.Width < 1 || m.Height < 1 {
		return errors.Errorf("некорректный размер кадра %dx%d", m.Width, m.Height)
	}
	if len(m.Pix) != m.Width*m.Height {
		return errors.Errorf("размер данных кадра %d не соответствует %dx%d", len(m.Pix), m.Width, m.Height)
	}
	return nil
}

// FrameStats статистика температур кадра
type FrameStats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// NewFrameStats считает статистику по конечным значениям кадра. NaN и ±Inf пропускаются.
func NewFrameStats(frame *TemperatureFrame) FrameStats {
	values := make([]float64, 0, len(frame.Pix))
	for _, v := range frame.Pix {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return FrameStats{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return FrameStats{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}
}
