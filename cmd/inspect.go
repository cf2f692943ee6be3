package main

import (
	"encoding/json"
	"math"

	"github.com/kirsrus/rjpeg2tiff/controller/encoder"

	"github.com/juju/errors"
	"github.com/k0kubun/pp"
)

// Сведения о калиброванном TIFF для --inspect
type inspection struct {
	Model       string
	Size        [2]int
	Compression string
	Precision   float64
	Offset      float64
	ModelRange  [2]float64
	// Фактический диапазон восстановленных температур
	DataRange   [2]float64
	Description map[string]interface{}
}

func inspect(path string) error {
	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Log: log})
	if err != nil {
		return errors.Trace(err)
	}
	img, err := enc.Load(path)
	if err != nil {
		return errors.Annotatef(err, "файл %s", path)
	}

	lo, hi := uint16(math.MaxUint16), uint16(0)
	for _, v := range img.Stored {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	info := inspection{
		Model:       img.Model,
		Size:        [2]int{img.Width, img.Height},
		Compression: string(encoder.CompressionOf(img)),
		Precision:   img.Precision,
		Offset:      img.Offset,
		ModelRange:  [2]float64{img.MinTemp, img.MaxTemp},
	}
	if len(img.Stored) > 0 {
		info.DataRange = [2]float64{
			encoder.Dequantize(lo, img.Precision, img.Offset),
			encoder.Dequantize(hi, img.Precision, img.Offset),
		}
	}
	if img.Description != "" {
		if err := json.Unmarshal([]byte(img.Description), &info.Description); err != nil {
			log.Warnf("описание ImageDescription не в формате JSON: %v", err)
		}
	}
	_, err = pp.Println(info)
	return errors.Trace(err)
}
