package converter

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"testing"

	"github.com/kirsrus/rjpeg2tiff/controller/encoder"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/tiffw"
	"github.com/kirsrus/rjpeg2tiff/service/synthetic"
	"github.com/kirsrus/rjpeg2tiff/store"

	"github.com/juju/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJPEG(t *testing.T, width, height int) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, width, height)), nil))
	return buf.Bytes()
}

// JPEG с сегментом APP1 Exif, содержащим Model и DateTime
func exifJPEG(t *testing.T, width, height int, camera, dateTime string) []byte {
	fields := tiffw.NewFieldWriter()
	require.NoError(t, fields.ASCII(0x0110, camera))
	require.NoError(t, fields.ASCII(tiffw.TagDateTime, dateTime))
	var tiffBuf bytes.Buffer
	require.NoError(t, tiffw.Encode(&tiffBuf, tiffw.Gray16{Width: 1, Height: 1, Pix: []uint16{0}}, fields, tiffw.Options{}))

	payload := append([]byte("Exif\x00\x00"), tiffBuf.Bytes()...)
	size := len(payload) + 2
	out := []byte{0xff, 0xd8, 0xff, 0xe1, byte(size >> 8), byte(size)}
	out = append(out, payload...)
	return append(out, testJPEG(t, width, height)[2:]...)
}

// Хранилище истории в памяти
type memStore struct {
	mu   sync.Mutex
	rows map[string]model.ConversionResult
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]model.ConversionResult)}
}

func (m *memStore) IsNotFound(err error) bool { return errors.IsNotFound(err) }

func (m *memStore) SaveConversion(res model.ConversionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[res.ID] = res
	return nil
}

func (m *memStore) Conversion(id string) (*store.ConversionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok {
		return nil, errors.NotFoundf("запись %s", id)
	}
	return &store.ConversionLog{ID: res.ID, Model: res.Model, ErrorKind: model.ErrorKind(res.Err)}, nil
}

func (m *memStore) Conversions(limit int) ([]store.ConversionLog, error) { return nil, nil }
func (m *memStore) Clean(days int) error                                 { return nil }
func (m *memStore) Close() error                                         { return nil }

type failingDecoder struct{}

func (failingDecoder) Decode([]byte, model.MeasurementParams) (*model.TemperatureFrame, error) {
	return nil, errors.New("повреждены радиометрические данные")
}
func (failingDecoder) Name() string    { return "failing" }
func (failingDecoder) Version() string { return "0" }
func (failingDecoder) Close() error    { return nil }

// Декодер, считающий вызовы и возвращающий заданный кадр
type stubDecoder struct {
	mu    sync.Mutex
	calls int
	frame *model.TemperatureFrame
}

func (m *stubDecoder) Decode([]byte, model.MeasurementParams) (*model.TemperatureFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.frame, nil
}
func (m *stubDecoder) Name() string    { return "stub" }
func (m *stubDecoder) Version() string { return "0" }
func (m *stubDecoder) Close() error    { return nil }

func (m *stubDecoder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestConverter(t *testing.T, fs afero.Fs, st store.DbStore) *Converter {
	dec, err := synthetic.NewSynthetic(&synthetic.ConfigSynthetic{})
	require.NoError(t, err)
	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	conv, err := NewConverter(dec, enc, st, &ConfigConverter{Fs: fs})
	require.NoError(t, err)
	return conv
}

func TestConvert(t *testing.T) {
	fs := afero.NewMemMapFs()
	st := newMemStore()
	conv := newTestConverter(t, fs, st)
	require.NoError(t, afero.WriteFile(fs, "in/DJI_0001_R.JPG", testJPEG(t, 160, 128), 0644))

	res := conv.Convert(context.Background(), model.ConvertRequest{
		Input:   "in/DJI_0001_R.JPG",
		Output:  "out/DJI_0001_R.tiff",
		Model:   "m30t",
		Preview: true,
	})
	require.NoError(t, res.Err, errors.ErrorStack(res.Err))
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "M30T", res.Model)
	assert.Equal(t, 160, res.Width)
	assert.Equal(t, 128, res.Height)
	assert.Equal(t, 0, res.OutOfRange.Count)
	assert.Equal(t, model.CompressionLZW, res.Compression)

	img, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	calibrated, err := img.Load("out/DJI_0001_R.tiff")
	require.NoError(t, err)
	assert.Equal(t, "M30T", calibrated.Model)
	assert.Contains(t, calibrated.Description, `"decoder":"synthetic"`)

	exists, err := afero.Exists(fs, "out/DJI_0001_R.preview.png")
	require.NoError(t, err)
	assert.True(t, exists)

	rec, err := st.Conversion(res.ID)
	require.NoError(t, err)
	assert.Equal(t, "M30T", rec.Model)
}

func TestConvertAutoModel(t *testing.T) {
	fs := afero.NewMemMapFs()
	conv := newTestConverter(t, fs, nil)
	require.NoError(t, afero.WriteFile(fs, "a.jpg", exifJPEG(t, 64, 48, "ZH20T", "2023:05:17 10:30:00"), 0644))

	res := conv.Convert(context.Background(), model.ConvertRequest{Input: "a.jpg", Output: "a.tiff", Model: "auto"})
	require.NoError(t, res.Err, errors.ErrorStack(res.Err))
	assert.Equal(t, "H20T", res.Model)

	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	img, err := enc.Load("a.tiff")
	require.NoError(t, err)
	assert.Equal(t, "H20T", img.Model)
	assert.Contains(t, img.Description, `"captured_at":"2023-05-17T10:30:00`)
}

func TestConvertErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "plain.jpg", testJPEG(t, 32, 32), 0644))
	require.NoError(t, afero.WriteFile(fs, "text.jpg", []byte("это не изображение"), 0644))

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		req   model.ConvertRequest
		check func(error) bool
	}{
		{
			name:  "не JPEG",
			ctx:   context.Background(),
			req:   model.ConvertRequest{Input: "text.jpg", Output: "text.tiff", Model: "M30T"},
			check: model.IsDecodeError,
		},
		{
			name:  "нет файла",
			ctx:   context.Background(),
			req:   model.ConvertRequest{Input: "missing.jpg", Output: "missing.tiff", Model: "M30T"},
			check: model.IsIOError,
		},
		{
			name:  "отмена",
			ctx:   canceled,
			req:   model.ConvertRequest{Input: "plain.jpg", Output: "plain.tiff", Model: "M30T"},
			check: model.IsCanceled,
		},
		{
			name:  "переполнение точности",
			ctx:   context.Background(),
			req:   model.ConvertRequest{Input: "plain.jpg", Output: "plain.tiff", Model: "H30T", Options: model.EncodingOptions{Precision: 0.01}},
			check: model.IsPrecisionOverflow,
		},
		{
			name:  "AUTO без EXIF",
			ctx:   context.Background(),
			req:   model.ConvertRequest{Input: "plain.jpg", Output: "plain.tiff", Model: "AUTO"},
			check: func(err error) bool { return model.ErrorKind(err) == "Error" },
		},
		{
			name:  "неизвестная модель",
			ctx:   context.Background(),
			req:   model.ConvertRequest{Input: "plain.jpg", Output: "plain.tiff", Model: "XT2"},
			check: func(err error) bool { return err != nil },
		},
	}
	conv := newTestConverter(t, fs, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := conv.Convert(tt.ctx, tt.req)
			require.Error(t, res.Err)
			assert.True(t, tt.check(res.Err), "%s: %v", model.ErrorKind(res.Err), res.Err)
			assert.Equal(t, tt.req.Input, res.Input)
			exists, _ := afero.Exists(fs, tt.req.Output)
			assert.False(t, exists)
		})
	}
}

func TestConvertDecoderError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.jpg", testJPEG(t, 8, 8), 0644))
	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	st := newMemStore()
	conv, err := NewConverter(failingDecoder{}, enc, st, &ConfigConverter{Fs: fs})
	require.NoError(t, err)

	res := conv.Convert(context.Background(), model.ConvertRequest{ID: "job", Input: "a.jpg", Output: "a.tiff", Model: "M2EA"})
	require.True(t, model.IsDecodeError(res.Err))
	assert.Equal(t, "a.jpg", errors.Cause(res.Err).(*model.DecodeError).Path)

	rec, err := st.Conversion("job")
	require.NoError(t, err)
	assert.Equal(t, "DecodeError", rec.ErrorKind)
}

func TestResolveModel(t *testing.T) {
	m, err := resolveModel("AUTO", "MAVIC2-ENTERPRISE-ADVANCED")
	require.NoError(t, err)
	assert.Equal(t, "M2EA", m.ID)

	_, err = resolveModel("auto", "FC3411")
	assert.Error(t, err)

	m, err = resolveModel("h30t", "ZH20T")
	require.NoError(t, err)
	assert.Equal(t, "H30T", m.ID)
}

func TestConvertPrecisionOverflowBeforeDecode(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "auto.jpg", exifJPEG(t, 16, 16, "ZH30T", "2024:01:02 03:04:05"), 0644))
	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	dec := &stubDecoder{frame: synthetic.Generate(16, 16)}
	st := newMemStore()
	conv, err := NewConverter(dec, enc, st, &ConfigConverter{Fs: fs})
	require.NoError(t, err)
	options := model.EncodingOptions{Precision: 0.01}

	// Явная модель: входной файл даже не читается
	res := conv.Convert(context.Background(), model.ConvertRequest{ID: "explicit", Input: "missing.jpg", Output: "missing.tiff", Model: "H30T", Options: options})
	require.True(t, model.IsPrecisionOverflow(res.Err), errors.ErrorStack(res.Err))
	assert.Equal(t, "H30T", res.Model)

	// AUTO: модель из EXIF, декодер не вызывается
	res = conv.Convert(context.Background(), model.ConvertRequest{ID: "auto", Input: "auto.jpg", Output: "auto.tiff", Model: "auto", Options: options})
	require.True(t, model.IsPrecisionOverflow(res.Err), errors.ErrorStack(res.Err))
	assert.Equal(t, "H30T", res.Model)

	assert.Equal(t, 0, dec.Calls())
	exists, err := afero.Exists(fs, "auto.tiff")
	require.NoError(t, err)
	assert.False(t, exists)
	rec, err := st.Conversion("explicit")
	require.NoError(t, err)
	assert.Equal(t, "PrecisionOverflow", rec.ErrorKind)
}

func TestConvertNilFrame(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.jpg", testJPEG(t, 8, 8), 0644))
	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	dec := &stubDecoder{}
	conv, err := NewConverter(dec, enc, nil, &ConfigConverter{Fs: fs})
	require.NoError(t, err)

	var res model.ConversionResult
	require.NotPanics(t, func() {
		res = conv.Convert(context.Background(), model.ConvertRequest{Input: "a.jpg", Output: "a.tiff", Model: "M30T"})
	})
	require.True(t, model.IsDecodeError(res.Err), errors.ErrorStack(res.Err))
	assert.Equal(t, "a.jpg", errors.Cause(res.Err).(*model.DecodeError).Path)
	assert.Equal(t, 1, dec.Calls())
	exists, err := afero.Exists(fs, "a.tiff")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConvertKeepsFrame(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.jpg", exifJPEG(t, 16, 16, "M30T", "2023:05:17 10:30:00"), 0644))
	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	frame := synthetic.Generate(16, 16)
	conv, err := NewConverter(&stubDecoder{frame: frame}, enc, nil, &ConfigConverter{Fs: fs})
	require.NoError(t, err)

	res := conv.Convert(context.Background(), model.ConvertRequest{Input: "a.jpg", Output: "a.tiff", Model: "auto"})
	require.NoError(t, res.Err, errors.ErrorStack(res.Err))
	assert.True(t, frame.CapturedAt.IsZero())

	img, err := enc.Load("a.tiff")
	require.NoError(t, err)
	assert.Contains(t, img.Description, `"captured_at":"2023-05-17T10:30:00`)
}
