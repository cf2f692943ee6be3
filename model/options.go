package model

import "strings"

// Compression способ сжатия TIFF
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZW  Compression = "lzw"
	CompressionZIP  Compression = "zip"
)

const (
	// DefaultPrecision шаг квантования температуры по умолчанию (°C)
	DefaultPrecision = 0.1
	// DefaultCompression сжатие по умолчанию
	DefaultCompression = CompressionLZW
	// BitDepth разрядность выходного растра
	BitDepth = 16
)

// ParseCompression разбирает название сжатия без учёта регистра
func ParseCompression(s string) (Compression, bool) {
	c := Compression(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CompressionNone, CompressionLZW, CompressionZIP:
		return c, true
	case "deflate":
		return CompressionZIP, true
	case "":
		return DefaultCompression, true
	}
	return c, false
}

// Compressions список поддерживаемых способов сжатия
func Compressions() []Compression {
	return []Compression{CompressionNone, CompressionLZW, CompressionZIP}
}

// EncodingOptions параметры кодирования температурной карты в TIFF
type EncodingOptions struct {
	// Шаг квантования в °C
	Precision float64 `validate:"gt=0"`
	// Сжатие: none, lzw, zip
	Compression Compression `conform:"trim,lower" validate:"compression"`
	// Разрядность растра, всегда 16
	BitDepth int `validate:"eq=16"`
}

// DefaultEncodingOptions параметры кодирования по умолчанию
func DefaultEncodingOptions() EncodingOptions {
	return EncodingOptions{
		Precision:   DefaultPrecision,
		Compression: DefaultCompression,
		BitDepth:    BitDepth,
	}
}

// MeasurementParams параметры измерения для SDK. Нулевое значение означает
// использование параметров, записанных в самом R-JPEG.
type MeasurementParams struct {
	// Расстояние до объекта, м (1..25)
	Distance float64 `validate:"omitempty,min=1,max=25"`
	// Относительная влажность, % (20..100)
	Humidity float64 `validate:"omitempty,min=20,max=100"`
	// Излучательная способность (0.1..1)
	Emissivity float64 `validate:"omitempty,min=0.1,max=1"`
	// Температура отражённого излучения, °C (-40..500)
	Reflection float64 `validate:"omitempty,min=-40,max=500"`
}

// IsZero параметры не заданы
func (m MeasurementParams) IsZero() bool {
	return m == MeasurementParams{}
}

// Normalize подставляет значения по умолчанию вместо незаданных
func (m *EncodingOptions) Normalize() {
	if m.Precision == 0 {
		m.Precision = DefaultPrecision
	}
	if c, ok := ParseCompression(string(m.Compression)); ok {
		m.Compression = c
	}
	if m.BitDepth == 0 {
		m.BitDepth = BitDepth
	}
}
