// Package tiffw запись одноканальных 16-битных изображений в baseline TIFF
// с произвольными дополнительными полями IFD.
//
// Структура файла: заголовок, полосы данных, внешние значения полей, IFD.
// Порядок байт little-endian ("II"), один IFD.
package tiffw

import (
	"bufio"
	"io"
	"math"

	"github.com/juju/errors"
)

// Схемы сжатия полос
const (
	CompressionNone    uint16 = 1
	CompressionLZW     uint16 = 5
	CompressionDeflate uint16 = 8
)

const (
	headerSize = 8
	entrySize  = 12
	// Желаемый размер полосы до сжатия
	stripTarget = 64 * 1024
)

// Gray16 одноканальное изображение, значения построчно
type Gray16 struct {
	Width  int
	Height int
	Pix    []uint16
}

// Options параметры записи
type Options struct {
	Compression uint16
	// Строк в полосе. 0 - подобрать под полосу около 64 КиБ.
	RowsPerStrip int
}

// RowsPerStrip количество строк в полосе для изображения ширины width
func RowsPerStrip(width int) int {
	if width <= 0 {
		return 1
	}
	rps := stripTarget / (width * 2)
	if rps < 1 {
		rps = 1
	}
	return rps
}

// Encode записывает img в w. Обязательные поля baseline TIFF формируются здесь
// и перекрывают одноимённые поля из fields. fields может быть nil.
func Encode(w io.Writer, img Gray16, fields *FieldWriter, opt Options) error {
	if img.Width <= 0 || img.Height <= 0 {
		return errors.Errorf("недопустимый размер изображения %dx%d", img.Width, img.Height)
	}
	if len(img.Pix) != img.Width*img.Height {
		return errors.Errorf("размер буфера %d не соответствует %dx%d", len(img.Pix), img.Width, img.Height)
	}
	if img.Width > math.MaxUint32/2 {
		return errors.Errorf("слишком большая ширина %d", img.Width)
	}
	if opt.Compression == 0 {
		opt.Compression = CompressionNone
	}
	if !SupportedCompression(opt.Compression) {
		return errors.Errorf("неподдерживаемое сжатие %d", opt.Compression)
	}
	rps := opt.RowsPerStrip
	if rps <= 0 {
		rps = RowsPerStrip(img.Width)
	}
	if rps > img.Height {
		rps = img.Height
	}

	// Полосы
	strips := make([][]byte, 0, (img.Height+rps-1)/rps)
	for y := 0; y < img.Height; y += rps {
		rows := rps
		if y+rows > img.Height {
			rows = img.Height - y
		}
		raw := make([]byte, rows*img.Width*2)
		for i, v := range img.Pix[y*img.Width : (y+rows)*img.Width] {
			order.PutUint16(raw[2*i:], v)
		}
		data, err := compress(raw, opt.Compression)
		if err != nil {
			return errors.Annotatef(err, "сжатие полосы %d", len(strips))
		}
		strips = append(strips, data)
	}

	offsets := make([]uint32, len(strips))
	counts := make([]uint32, len(strips))
	pos := uint64(headerSize)
	for i, s := range strips {
		offsets[i] = uint32(pos)
		counts[i] = uint32(len(s))
		pos += padded(uint64(len(s)))
		if pos > math.MaxUint32 {
			return errors.New("размер файла превышает 4 ГиБ")
		}
	}

	if fields == nil {
		fields = NewFieldWriter()
	}
	fields.Long(TagNewSubfileType, 0)
	fields.Long(TagImageWidth, uint32(img.Width))
	fields.Long(TagImageLength, uint32(img.Height))
	fields.Short(TagBitsPerSample, 16)
	fields.Short(TagCompression, opt.Compression)
	fields.Short(TagPhotometric, 1)
	fields.Long(TagStripOffsets, offsets...)
	fields.Short(TagSamplesPerPixel, 1)
	fields.Long(TagRowsPerStrip, uint32(rps))
	fields.Long(TagStripByteCounts, counts...)
	fields.Short(TagPlanarConfiguration, 1)
	fields.Short(TagSampleFormat, 1)
	if !fields.Has(TagXResolution) {
		fields.Rational(TagXResolution, 72, 1)
	}
	if !fields.Has(TagYResolution) {
		fields.Rational(TagYResolution, 72, 1)
	}
	if !fields.Has(TagResolutionUnit) {
		fields.Short(TagResolutionUnit, 2)
	}
	list := fields.Fields()

	// Внешние значения полей длиннее 4 байт
	external := make([]uint32, len(list))
	for i, f := range list {
		if len(f.Data) <= 4 {
			continue
		}
		external[i] = uint32(pos)
		pos += padded(uint64(len(f.Data)))
	}
	ifdOffset := pos
	pos += 2 + uint64(len(list))*entrySize + 4
	if pos > math.MaxUint32 {
		return errors.New("размер файла превышает 4 ГиБ")
	}

	bw := bufio.NewWriter(w)
	header := make([]byte, headerSize)
	header[0], header[1] = 'I', 'I'
	order.PutUint16(header[2:], 42)
	order.PutUint32(header[4:], uint32(ifdOffset))
	if _, err := bw.Write(header); err != nil {
		return errors.Trace(err)
	}
	for _, s := range strips {
		if err := writePadded(bw, s); err != nil {
			return errors.Trace(err)
		}
	}
	for _, f := range list {
		if len(f.Data) > 4 {
			if err := writePadded(bw, f.Data); err != nil {
				return errors.Trace(err)
			}
		}
	}

	ifd := make([]byte, 2+len(list)*entrySize+4)
	order.PutUint16(ifd, uint16(len(list)))
	for i, f := range list {
		e := ifd[2+i*entrySize:]
		order.PutUint16(e[0:], f.Tag)
		order.PutUint16(e[2:], f.Type)
		order.PutUint32(e[4:], f.Count)
		if len(f.Data) <= 4 {
			copy(e[8:12], f.Data)
		} else {
			order.PutUint32(e[8:], external[i])
		}
	}
	// Смещение следующего IFD остаётся нулевым
	if _, err := bw.Write(ifd); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(bw.Flush())
}

// Значения выравниваются по границе слова
func padded(n uint64) uint64 {
	return n + n&1
}

func writePadded(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data)&1 == 1 {
		_, err := w.Write([]byte{0})
		return err
	}
	return nil
}
