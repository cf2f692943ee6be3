package encoder

import (
	"math"

	"github.com/kirsrus/rjpeg2tiff/model"

	"github.com/juju/errors"
)

const (
	// MaxStored наибольшее сохраняемое значение
	MaxStored = math.MaxUint16
	// Допуск на погрешность деления при проверке числа уровней
	stepsEpsilon = 1e-6
)

// Plan параметры квантования температуры для модели
type Plan struct {
	Model     model.DroneModel
	Precision float64
	// Смещение, при котором минимум модели сохраняется как 0
	Offset float64
	// Число уровней между минимумом и максимумом модели
	Steps float64
}

// PlanQuantization рассчитывает параметры квантования. Если диапазон модели при шаге precision
// не помещается в 16 бит, возвращается PrecisionOverflowError.
func PlanQuantization(m model.DroneModel, precision float64) (Plan, error) {
	if !(precision > 0) || math.IsInf(precision, 0) {
		return Plan{}, errors.Errorf("недопустимый шаг квантования %v", precision)
	}
	steps := (m.MaxTemp - m.MinTemp) / precision
	if steps > MaxStored+stepsEpsilon {
		return Plan{}, errors.Trace(&model.PrecisionOverflowError{
			Model:     m.ID,
			Precision: precision,
			Steps:     steps,
		})
	}
	return Plan{
		Model:     m,
		Precision: precision,
		Offset:    -m.MinTemp,
		Steps:     steps,
	}, nil
}

// CheckPrecision проверяет шаг квантования для явно указанной модели до чтения файлов.
// Для AUTO и неизвестных идентификаторов проверка откладывается до определения модели.
func CheckPrecision(modelID string, precision float64) error {
	m, ok := model.LookupDroneModel(modelID)
	if !ok {
		return nil
	}
	_, err := PlanQuantization(m, precision)
	return errors.Trace(err)
}

// Quantize переводит кадр в 16-битные значения stored = round((v + offset) / precision).
// Значения вне диапазона модели прижимаются к границе и учитываются в предупреждении.
// NaN сохраняется как минимум модели.
func (p Plan) Quantize(frame *model.TemperatureFrame) ([]uint16, model.OutOfRangeWarning) {
	warn := model.OutOfRangeWarning{Model: p.Model.ID}
	stored := make([]uint16, len(frame.Pix))
	seen := false
	for i, t := range frame.Pix {
		v := float64(t)
		switch {
		case math.IsNaN(v):
			warn.Count++
			v = p.Model.MinTemp
		case !p.Model.Validate(v):
			warn.Count++
			if !math.IsInf(v, 0) {
				if !seen || v < warn.Lowest {
					warn.Lowest = v
				}
				if !seen || v > warn.Highest {
					warn.Highest = v
				}
				seen = true
			}
			v = p.Model.Clamp(v)
		}
		stored[i] = p.quantize(v)
	}
	return stored, warn
}

func (p Plan) quantize(v float64) uint16 {
	s := math.Round((v + p.Offset) / p.Precision)
	if s < 0 {
		return 0
	}
	if s > MaxStored {
		return MaxStored
	}
	return uint16(s)
}

// Dequantize восстанавливает температуру v = stored * precision - offset
func Dequantize(stored uint16, precision, offset float64) float64 {
	return float64(stored)*precision - offset
}
