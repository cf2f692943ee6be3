package tiffw

import (
	"encoding/binary"
	"math"
	"sort"
	"strings"

	"github.com/juju/errors"
)

// Типы данных полей IFD
const (
	TypeByte     uint16 = 1
	TypeASCII    uint16 = 2
	TypeShort    uint16 = 3
	TypeLong     uint16 = 4
	TypeRational uint16 = 5
	TypeDouble   uint16 = 12
)

// Теги TIFF
const (
	TagNewSubfileType      uint16 = 254
	TagImageWidth          uint16 = 256
	TagImageLength         uint16 = 257
	TagBitsPerSample       uint16 = 258
	TagCompression         uint16 = 259
	TagPhotometric         uint16 = 262
	TagDocumentName        uint16 = 269
	TagImageDescription    uint16 = 270
	TagStripOffsets        uint16 = 273
	TagSamplesPerPixel     uint16 = 277
	TagRowsPerStrip        uint16 = 278
	TagStripByteCounts     uint16 = 279
	TagXResolution         uint16 = 282
	TagYResolution         uint16 = 283
	TagPlanarConfiguration uint16 = 284
	TagResolutionUnit      uint16 = 296
	TagSoftware            uint16 = 305
	TagDateTime            uint16 = 306
	TagSampleFormat        uint16 = 339
	TagGDALMetadata        uint16 = 42112
)

// Field поле IFD. Data содержит значения в порядке байт файла (little-endian).
type Field struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Data  []byte
}

// FieldWriter накапливает поля IFD. Повторная запись тега заменяет предыдущее значение.
type FieldWriter struct {
	fields map[uint16]Field
}

// NewFieldWriter создаёт пустой FieldWriter
func NewFieldWriter() *FieldWriter {
	return &FieldWriter{fields: make(map[uint16]Field)}
}

// Short записывает значения SHORT
func (m *FieldWriter) Short(tag uint16, values ...uint16) {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		order.PutUint16(data[2*i:], v)
	}
	m.put(Field{Tag: tag, Type: TypeShort, Count: uint32(len(values)), Data: data})
}

// Long записывает значения LONG
func (m *FieldWriter) Long(tag uint16, values ...uint32) {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		order.PutUint32(data[4*i:], v)
	}
	m.put(Field{Tag: tag, Type: TypeLong, Count: uint32(len(values)), Data: data})
}

// Rational записывает одно значение RATIONAL num/den
func (m *FieldWriter) Rational(tag uint16, num, den uint32) {
	data := make([]byte, 8)
	order.PutUint32(data[0:], num)
	order.PutUint32(data[4:], den)
	m.put(Field{Tag: tag, Type: TypeRational, Count: 1, Data: data})
}

// Double записывает значения DOUBLE
func (m *FieldWriter) Double(tag uint16, values ...float64) {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		order.PutUint64(data[8*i:], math.Float64bits(v))
	}
	m.put(Field{Tag: tag, Type: TypeDouble, Count: uint32(len(values)), Data: data})
}

// ASCII записывает строку, завершённую нулём. Строка не должна содержать нулевых байт.
func (m *FieldWriter) ASCII(tag uint16, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return errors.Errorf("строка для тега %d содержит нулевой байт", tag)
	}
	data := append([]byte(s), 0)
	m.put(Field{Tag: tag, Type: TypeASCII, Count: uint32(len(data)), Data: data})
	return nil
}

// Has поле с тегом tag уже записано
func (m *FieldWriter) Has(tag uint16) bool {
	_, ok := m.fields[tag]
	return ok
}

// Fields поля, упорядоченные по возрастанию тега (требование формата)
func (m *FieldWriter) Fields() []Field {
	res := make([]Field, 0, len(m.fields))
	for _, f := range m.fields {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Tag < res[j].Tag })
	return res
}

func (m *FieldWriter) put(f Field) {
	m.fields[f.Tag] = f
}

var order binary.ByteOrder = binary.LittleEndian
