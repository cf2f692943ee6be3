// Package preview PNG-превью температурной карты в псевдоцветах ("iron")
package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/tool"

	"github.com/juju/errors"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"github.com/spf13/afero"
)

// Ext суффикс файла превью
const Ext = ".preview.png"

// Опорные цвета палитры от холодного к горячему
var ironStops = []string{
	"#000000",
	"#20008c",
	"#8a00a8",
	"#d8305a",
	"#f8801b",
	"#fcd040",
	"#ffffff",
}

var palette = buildPalette(ironStops, 256)

// Палитра из n цветов, интерполированных в пространстве Lab
func buildPalette(stops []string, n int) []color.RGBA {
	colors := make([]colorful.Color, len(stops))
	for i, s := range stops {
		c, err := colorful.Hex(s)
		if err != nil {
			panic(err)
		}
		colors[i] = c
	}
	res := make([]color.RGBA, n)
	segments := float64(len(colors) - 1)
	for i := range res {
		pos := float64(i) / float64(n-1) * segments
		idx := int(pos)
		if idx >= len(colors)-1 {
			idx = len(colors) - 2
		}
		c := colors[idx].BlendLab(colors[idx+1], pos-float64(idx)).Clamped()
		r, g, b := c.RGB255()
		res[i] = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	return res
}

// Options параметры построения превью
type Options struct {
	// Ширина превью в пикселях. 0 или больше ширины кадра - без масштабирования.
	Width uint
	// Границы шкалы, °C. Если Min == Max, берутся из статистики кадра.
	Min float64
	Max float64
}

// Render строит изображение кадра в псевдоцветах. NaN отображается чёрным.
func Render(frame *model.TemperatureFrame, opt Options) (image.Image, error) {
	if err := frame.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	lo, hi := opt.Min, opt.Max
	if lo == hi {
		stats := model.NewFrameStats(frame)
		lo, hi = stats.Min, stats.Max
	}
	delta := hi - lo

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			v := float64(frame.At(x, y))
			if math.IsNaN(v) {
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
				continue
			}
			t := 0.0
			if delta > 0 {
				t = (v - lo) / delta
			}
			t = math.Max(0, math.Min(1, t))
			img.SetRGBA(x, y, palette[int(math.Round(t*float64(len(palette)-1)))])
		}
	}

	if opt.Width > 0 && int(opt.Width) < frame.Width {
		return resize.Resize(opt.Width, 0, img, resize.Bilinear), nil
	}
	return img, nil
}

// Path путь превью для выходного TIFF
func Path(output string) string {
	return tool.ReplaceExt(output, Ext)
}

// Write сохраняет превью кадра в PNG по пути path
func Write(fs afero.Fs, path string, frame *model.TemperatureFrame, opt Options) error {
	img, err := Render(frame, opt)
	if err != nil {
		return errors.Trace(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return errors.Trace(err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		return errors.Trace(&model.IOError{Path: path, Err: err})
	}
	return nil
}
