package db

import (
	"time"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/store"
)

type (
	// GormModelUnscoped модель эквивалент gorm.Model без сохранения удалений
	GormModelUnscoped struct {
		ID        int `gorm:"primaryKey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Conversion запись о преобразовании одного файла
	Conversion struct {
		GormModelUnscoped
		JobID       string `gorm:"uniqueIndex;size:64"`
		Input       string
		Output      string
		DroneModel  string `gorm:"size:16"`
		Width       int
		Height      int
		Precision   float64
		Compression string `gorm:"size:8"`
		OutOfRange  int
		MinTemp     float64
		MaxTemp     float64
		MeanTemp    float64
		DurationMs  int64
		ErrorKind   string `gorm:"size:32"`
		Error       string
	}
)

// TableName имя таблицы
func (Conversion) TableName() string {
	return "conversions"
}

// FromResult заполняет запись из итога преобразования, сохраняя идентификатор записи
func (m *Conversion) FromResult(res model.ConversionResult) {
	*m = Conversion{
		GormModelUnscoped: m.GormModelUnscoped,
		JobID:             res.ID,
		Input:             res.Input,
		Output:            res.Output,
		DroneModel:        res.Model,
		Width:             res.Width,
		Height:            res.Height,
		Precision:         res.Precision,
		Compression:       string(res.Compression),
		OutOfRange:        res.OutOfRange.Count,
		MinTemp:           res.Stats.Min,
		MaxTemp:           res.Stats.Max,
		MeanTemp:          res.Stats.Mean,
		DurationMs:        res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		m.ErrorKind = model.ErrorKind(res.Err)
		m.Error = res.Err.Error()
	}
}

// ToLog маппинг записи в store.ConversionLog
func (m Conversion) ToLog() store.ConversionLog {
	return store.ConversionLog{
		ID:          m.JobID,
		CreatedAt:   m.CreatedAt,
		Input:       m.Input,
		Output:      m.Output,
		Model:       m.DroneModel,
		Width:       m.Width,
		Height:      m.Height,
		Precision:   m.Precision,
		Compression: m.Compression,
		OutOfRange:  m.OutOfRange,
		MinTemp:     m.MinTemp,
		MaxTemp:     m.MaxTemp,
		MeanTemp:    m.MeanTemp,
		Duration:    time.Duration(m.DurationMs) * time.Millisecond,
		ErrorKind:   m.ErrorKind,
		Error:       m.Error,
	}
}
