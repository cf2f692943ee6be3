package encoder

import (
	"bytes"
	"image"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/tiffw"

	"github.com/juju/errors"
	exiftiff "github.com/rwcarlsen/goexif/tiff"
	"github.com/spf13/afero"
	"golang.org/x/image/tiff"
)

// Load читает калиброванный TIFF, записанный Encode
func (m Encoder) Load(path string) (*model.CalibratedImage, error) {
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return nil, errors.Trace(&model.IOError{Path: path, Err: err})
	}
	return Decode(data)
}

// Decode разбирает калиброванный TIFF из памяти
func Decode(data []byte) (*model.CalibratedImage, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Annotate(err, "чтение растра TIFF")
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		return nil, errors.Errorf("ожидался 16-битный одноканальный растр, получен %T", img)
	}

	tf, err := exiftiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Annotate(err, "чтение тегов TIFF")
	}
	if len(tf.Dirs) == 0 {
		return nil, errors.New("в файле нет IFD")
	}
	tags := make(map[uint16]*exiftiff.Tag, len(tf.Dirs[0].Tags))
	for _, tag := range tf.Dirs[0].Tags {
		tags[tag.Id] = tag
	}

	b := gray.Bounds()
	res := model.CalibratedImage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stored: make([]uint16, b.Dx()*b.Dy()),
	}
	for y := 0; y < res.Height; y++ {
		for x := 0; x < res.Width; x++ {
			res.Stored[y*res.Width+x] = gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y
		}
	}

	if res.Model, err = tagString(tags, TagModel); err != nil {
		return nil, errors.Annotate(err, "файл не содержит калибровки температуры")
	}
	if res.Precision, err = tagFloat(tags, TagPrecision, 0); err != nil {
		return nil, errors.Trace(err)
	}
	if res.Offset, err = tagFloat(tags, TagOffset, 0); err != nil {
		return nil, errors.Trace(err)
	}
	if res.MinTemp, err = tagFloat(tags, TagRange, 0); err != nil {
		return nil, errors.Trace(err)
	}
	if res.MaxTemp, err = tagFloat(tags, TagRange, 1); err != nil {
		return nil, errors.Trace(err)
	}
	res.Description, _ = tagString(tags, tiffw.TagImageDescription)
	if tag, ok := tags[tiffw.TagCompression]; ok {
		if c, err := tag.Int(0); err == nil {
			res.Compression = uint16(c)
		}
	}
	return &res, nil
}

// CompressionOf название сжатия прочитанного файла
func CompressionOf(img *model.CalibratedImage) model.Compression {
	return compressionName(img.Compression)
}

func tagString(tags map[uint16]*exiftiff.Tag, id uint16) (string, error) {
	tag, ok := tags[id]
	if !ok {
		return "", errors.NotFoundf("тег %d", id)
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", errors.Annotatef(err, "тег %d", id)
	}
	return s, nil
}

func tagFloat(tags map[uint16]*exiftiff.Tag, id uint16, i int) (float64, error) {
	tag, ok := tags[id]
	if !ok {
		return 0, errors.NotFoundf("тег %d", id)
	}
	if i >= int(tag.Count) {
		return 0, errors.Errorf("тег %d содержит %d значений", id, tag.Count)
	}
	v, err := tag.Float(i)
	if err != nil {
		return 0, errors.Annotatef(err, "тег %d", id)
	}
	return v, nil
}
