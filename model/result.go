package model

import (
	"fmt"
	"time"
)

// OutOfRangeWarning предупреждение о значениях вне диапазона модели. Не прерывает кодирование:
// такие значения прижимаются к ближайшей границе.
type OutOfRangeWarning struct {
	Model string
	// Количество пикселей вне диапазона (включая NaN)
	Count int
	// Крайние зафиксированные значения до ограничения
	Lowest  float64
	Highest float64
}

func (w OutOfRangeWarning) String() string {
	if w.Count == 0 {
		return ""
	}
	return fmt.Sprintf("%d пикселей вне диапазона модели %s (%.1f..%.1f°C), значения ограничены", w.Count, w.Model, w.Lowest, w.Highest)
}

// ConversionResult результат преобразования одного файла
type ConversionResult struct {
	// Идентификатор задания
	ID     string
	Input  string
	Output string
	Model  string

	Width  int
	Height int

	Precision   float64
	Offset      float64
	Compression Compression

	// Значения вне диапазона модели
	OutOfRange OutOfRangeWarning
	Stats      FrameStats

	Duration time.Duration
	// Ошибка преобразования (nil при успехе)
	Err error
}

// Success преобразование прошло успешно
func (m ConversionResult) Success() bool {
	return m.Err == nil
}

// String краткое описание для журнала
func (m ConversionResult) String() string {
	if m.Err != nil {
		return fmt.Sprintf("%s: ОШИБКА %s: %v", m.Input, ErrorKind(m.Err), m.Err)
	}
	return fmt.Sprintf("%s -> %s [%s %dx%d %.1f~%.1f°C]", m.Input, m.Output, m.Model, m.Width, m.Height, m.Stats.Min, m.Stats.Max)
}

// BatchReport результаты пакетной обработки, по одному на каждый найденный файл
type BatchReport struct {
	Results  []ConversionResult
	Duration time.Duration
}

// Succeeded количество успешно преобразованных файлов
func (m BatchReport) Succeeded() int {
	n := 0
	for _, r := range m.Results {
		if r.Success() {
			n++
		}
	}
	return n
}

// Failed количество файлов с ошибкой
func (m BatchReport) Failed() int {
	return len(m.Results) - m.Succeeded()
}

// OK все файлы преобразованы
func (m BatchReport) OK() bool {
	return m.Failed() == 0
}

// CalibratedImage данные, прочитанные из выходного TIFF
type CalibratedImage struct {
	Model     string
	Precision float64
	Offset    float64
	// Диапазон модели, записанный в файл
	MinTemp float64
	MaxTemp float64

	Description string
	Width       int
	Height      int
	Compression uint16
	// Сохранённые 16-битные значения построчно
	Stored []uint16
}

// Celsius восстановленная температура в точке (x, y)
func (m CalibratedImage) Celsius(x, y int) float64 {
	return float64(m.Stored[y*m.Width+x])*m.Precision - m.Offset
}
