package tiffw

import (
	"bytes"
	"image"
	"testing"

	exiftiff "github.com/rwcarlsen/goexif/tiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func testImage(width, height int) Gray16 {
	img := Gray16{Width: width, Height: height, Pix: make([]uint16, width*height)}
	for i := range img.Pix {
		img.Pix[i] = uint16((i * 37) % 65536)
	}
	return img
}

func TestEncodeDecode(t *testing.T) {
	for _, c := range []uint16{CompressionNone, CompressionLZW, CompressionDeflate} {
		img := testImage(640, 512)
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, img, nil, Options{Compression: c}))

		decoded, err := tiff.Decode(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, "сжатие %d", c)
		gray, ok := decoded.(*image.Gray16)
		require.True(t, ok, "сжатие %d: %T", c, decoded)
		require.Equal(t, image.Rect(0, 0, 640, 512), gray.Bounds())
		for y := 0; y < img.Height; y += 7 {
			for x := 0; x < img.Width; x += 13 {
				if gray.Gray16At(x, y).Y != img.Pix[y*img.Width+x] {
					t.Fatalf("сжатие %d: пиксель (%d,%d) = %d, ожидалось %d", c, x, y, gray.Gray16At(x, y).Y, img.Pix[y*img.Width+x])
				}
			}
		}
	}
}

func TestEncodeCustomFields(t *testing.T) {
	fields := NewFieldWriter()
	require.NoError(t, fields.ASCII(65000, "H20T"))
	fields.Double(65001, 0.1)
	fields.Double(65003, -20, 550)
	require.NoError(t, fields.ASCII(TagSoftware, "test"))
	assert.Error(t, fields.ASCII(TagDocumentName, "a\x00b"))
	// Обязательные поля перекрываются
	fields.Short(TagBitsPerSample, 8)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testImage(3, 3), fields, Options{Compression: CompressionLZW}))
	assert.Equal(t, []byte("II*\x00"), buf.Bytes()[:4])

	tf, err := exiftiff.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, tf.Dirs, 1)

	tags := make(map[uint16]*exiftiff.Tag)
	var prev uint16
	for _, tag := range tf.Dirs[0].Tags {
		assert.True(t, tag.Id > prev, "теги должны идти по возрастанию")
		prev = tag.Id
		tags[tag.Id] = tag
	}

	s, err := tags[65000].StringVal()
	require.NoError(t, err)
	assert.Equal(t, "H20T", s)
	v, err := tags[65001].Float(0)
	require.NoError(t, err)
	assert.Equal(t, 0.1, v)
	hi, err := tags[65003].Float(1)
	require.NoError(t, err)
	assert.Equal(t, 550.0, hi)
	bps, err := tags[TagBitsPerSample].Int(0)
	require.NoError(t, err)
	assert.Equal(t, 16, bps)
	comp, err := tags[TagCompression].Int(0)
	require.NoError(t, err)
	assert.Equal(t, int(CompressionLZW), comp)
}

func TestEncodeDeterministic(t *testing.T) {
	img := testImage(100, 50)
	encode := func() []byte {
		fields := NewFieldWriter()
		require.NoError(t, fields.ASCII(TagImageDescription, `{"a":1}`))
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, img, fields, Options{Compression: CompressionDeflate}))
		return buf.Bytes()
	}
	assert.Equal(t, encode(), encode())
}

func TestEncodeInvalid(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, Gray16{}, nil, Options{}))
	assert.Error(t, Encode(&buf, Gray16{Width: 2, Height: 2, Pix: make([]uint16, 3)}, nil, Options{}))
	assert.Error(t, Encode(&buf, testImage(2, 2), nil, Options{Compression: 7}))
}

func TestRowsPerStrip(t *testing.T) {
	assert.Equal(t, 51, RowsPerStrip(640))
	assert.Equal(t, 1, RowsPerStrip(100000))
	assert.Equal(t, 1, RowsPerStrip(0))
}
