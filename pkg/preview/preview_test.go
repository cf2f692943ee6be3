package preview

import (
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/kirsrus/rjpeg2tiff/model"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientFrame(width, height int) *model.TemperatureFrame {
	frame := model.NewTemperatureFrame(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			frame.Set(x, y, float32(20+x))
		}
	}
	return frame
}

func TestPalette(t *testing.T) {
	require.Len(t, palette, 256)
	assert.Equal(t, color.RGBA{A: 0xff}, palette[0])
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, palette[255])
}

func TestRender(t *testing.T) {
	frame := gradientFrame(100, 10)
	frame.Set(50, 5, float32(math.NaN()))

	img, err := Render(frame, Options{})
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, color.RGBAModel.Convert(palette[0]), color.RGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.RGBAModel.Convert(palette[255]), color.RGBAModel.Convert(img.At(99, 0)))
	assert.Equal(t, color.RGBAModel.Convert(color.RGBA{A: 0xff}), color.RGBAModel.Convert(img.At(50, 5)))

	small, err := Render(frame, Options{Width: 50})
	require.NoError(t, err)
	assert.Equal(t, 50, small.Bounds().Dx())
	assert.Equal(t, 5, small.Bounds().Dy())

	_, err = Render(&model.TemperatureFrame{}, Options{})
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := Path("out/DJI_0001.tiff")
	assert.Equal(t, "out/DJI_0001.preview.png", path)
	require.NoError(t, Write(fs, path, gradientFrame(16, 8), Options{Min: 0, Max: 100}))

	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}
