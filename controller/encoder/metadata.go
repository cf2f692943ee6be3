package encoder

import (
	"encoding/json"
	"encoding/xml"
	"strconv"
	"time"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/tiffw"

	"github.com/juju/errors"
)

// Собственные теги калибровки
const (
	TagModel     uint16 = 65000
	TagPrecision uint16 = 65001
	TagOffset    uint16 = 65002
	TagRange     uint16 = 65003
)

const (
	// Software значение тега Software
	Software = "rjpeg2tiff"
	// DocumentName значение тега DocumentName
	DocumentName = "DJI R-JPEG Temperature Data"
	// Formula формула восстановления температуры
	Formula = "celsius = stored * precision - offset"

	dateTimeLayout = "2006:01:02 15:04:05"
)

// Meta сведения об источнике данных для метаданных TIFF
type Meta struct {
	// Имя исходного файла (без каталога)
	Source string
	// Время съёмки из EXIF. Нулевое значение - тег DateTime не пишется.
	CapturedAt time.Time
	// Декодер, получивший температуры
	Decoder string
}

// Description содержимое тега ImageDescription
type Description struct {
	Model       string     `json:"model"`
	ModelName   string     `json:"model_name"`
	Unit        string     `json:"unit"`
	Precision   float64    `json:"precision"`
	Offset      float64    `json:"offset"`
	Formula     string     `json:"formula"`
	Range       [2]float64 `json:"range"`
	Compression string     `json:"compression"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	OutOfRange  int        `json:"out_of_range"`
	Source      string     `json:"source,omitempty"`
	Decoder     string     `json:"decoder,omitempty"`
	CapturedAt  string     `json:"captured_at,omitempty"`
}

type gdalItem struct {
	Name   string `xml:"name,attr"`
	Sample string `xml:"sample,attr,omitempty"`
	Role   string `xml:"role,attr,omitempty"`
	Value  string `xml:",chardata"`
}

type gdalMetadata struct {
	XMLName xml.Name   `xml:"GDALMetadata"`
	Items   []gdalItem `xml:"Item"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// GDAL читает значение как raw * scale + offset, поэтому его offset равен минимуму модели
func gdalXML(p Plan) (string, error) {
	data, err := xml.Marshal(gdalMetadata{Items: []gdalItem{
		{Name: "MODEL", Value: p.Model.ID},
		{Name: "UNIT", Value: "celsius"},
		{Name: "OFFSET", Sample: "0", Role: "offset", Value: formatFloat(-p.Offset)},
		{Name: "SCALE", Sample: "0", Role: "scale", Value: formatFloat(p.Precision)},
	}})
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(data), nil
}

func newDescription(p Plan, frame *model.TemperatureFrame, warn model.OutOfRangeWarning, compression model.Compression, meta Meta) Description {
	d := Description{
		Model:       p.Model.ID,
		ModelName:   p.Model.Name,
		Unit:        "celsius",
		Precision:   p.Precision,
		Offset:      p.Offset,
		Formula:     Formula,
		Range:       [2]float64{p.Model.MinTemp, p.Model.MaxTemp},
		Compression: string(compression),
		Width:       frame.Width,
		Height:      frame.Height,
		OutOfRange:  warn.Count,
		Source:      meta.Source,
		Decoder:     meta.Decoder,
	}
	if !meta.CapturedAt.IsZero() {
		d.CapturedAt = meta.CapturedAt.Format(time.RFC3339)
	}
	return d
}

// Поля IFD выходного файла. Результат зависит только от входных данных.
func buildFields(p Plan, frame *model.TemperatureFrame, warn model.OutOfRangeWarning, compression model.Compression, meta Meta) (*tiffw.FieldWriter, error) {
	fields := tiffw.NewFieldWriter()

	desc, err := json.Marshal(newDescription(p, frame, warn, compression, meta))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := fields.ASCII(tiffw.TagImageDescription, string(desc)); err != nil {
		return nil, errors.Trace(err)
	}
	if err := fields.ASCII(tiffw.TagSoftware, Software); err != nil {
		return nil, errors.Trace(err)
	}
	if err := fields.ASCII(tiffw.TagDocumentName, DocumentName); err != nil {
		return nil, errors.Trace(err)
	}
	if !meta.CapturedAt.IsZero() {
		if err := fields.ASCII(tiffw.TagDateTime, meta.CapturedAt.Format(dateTimeLayout)); err != nil {
			return nil, errors.Trace(err)
		}
	}

	gdal, err := gdalXML(p)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := fields.ASCII(tiffw.TagGDALMetadata, gdal); err != nil {
		return nil, errors.Trace(err)
	}

	if err := fields.ASCII(TagModel, p.Model.ID); err != nil {
		return nil, errors.Trace(err)
	}
	fields.Double(TagPrecision, p.Precision)
	fields.Double(TagOffset, p.Offset)
	fields.Double(TagRange, p.Model.MinTemp, p.Model.MaxTemp)
	return fields, nil
}

// Код сжатия TIFF
func tiffCompression(c model.Compression) (uint16, error) {
	switch c {
	case model.CompressionNone:
		return tiffw.CompressionNone, nil
	case model.CompressionLZW:
		return tiffw.CompressionLZW, nil
	case model.CompressionZIP:
		return tiffw.CompressionDeflate, nil
	}
	return 0, errors.Errorf("неподдерживаемое сжатие %q", c)
}

func compressionName(code uint16) model.Compression {
	switch code {
	case tiffw.CompressionLZW:
		return model.CompressionLZW
	case tiffw.CompressionDeflate:
		return model.CompressionZIP
	}
	return model.CompressionNone
}
