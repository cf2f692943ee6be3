package batch

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kirsrus/rjpeg2tiff/controller/converter"
	"github.com/kirsrus/rjpeg2tiff/controller/encoder"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/service/synthetic"

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

func newTestBatch(t *testing.T, fs afero.Fs, config *ConfigBatch) *Batch {
	dec, err := synthetic.NewSynthetic(&synthetic.ConfigSynthetic{})
	require.NoError(t, err)
	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	conv, err := converter.NewConverter(dec, enc, nil, &converter.ConfigConverter{Fs: fs})
	require.NoError(t, err)

	if config == nil {
		config = &ConfigBatch{}
	}
	config.Fs = fs
	batch, err := NewBatch(conv, config)
	require.NoError(t, err)
	return batch
}

func fillDir(t *testing.T, fs afero.Fs) {
	require.NoError(t, afero.WriteFile(fs, "in/a.jpg", testJPEG(t, 32, 24), 0644))
	require.NoError(t, afero.WriteFile(fs, "in/b.JPEG", testJPEG(t, 32, 24), 0644))
	// Повреждённый заголовок
	require.NoError(t, afero.WriteFile(fs, "in/c.jpg", []byte("\x00\x01 повреждён"), 0644))
	require.NoError(t, afero.WriteFile(fs, "in/notes.txt", []byte("заметки"), 0644))
	require.NoError(t, afero.WriteFile(fs, "in/sub/d.jpg", testJPEG(t, 32, 24), 0644))
}

func TestNewBatch(t *testing.T) {
	_, err := NewBatch(nil, &ConfigBatch{})
	assert.Error(t, err)

	b := newTestBatch(t, afero.NewMemMapFs(), &ConfigBatch{Workers: 2, SettleTime: 100 * time.Millisecond})
	assert.Equal(t, 2, b.workers)
	assert.Equal(t, 100*time.Millisecond, b.settleTime)
	assert.Equal(t, 100*time.Millisecond, b.settlePoll)
}

func TestDiscover(t *testing.T) {
	fs := afero.NewMemMapFs()
	fillDir(t, fs)
	b := newTestBatch(t, fs, nil)

	files, err := b.Discover("in", false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("in", "a.jpg"),
		filepath.Join("in", "b.JPEG"),
		filepath.Join("in", "c.jpg"),
	}, files)

	files, err = b.Discover("in", true)
	require.NoError(t, err)
	assert.Len(t, files, 4)
	assert.Contains(t, files, filepath.Join("in", "sub", "d.jpg"))

	_, err = b.Discover("in/a.jpg", false)
	assert.Error(t, err)
	_, err = b.Discover("missing", false)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	fillDir(t, fs)
	b := newTestBatch(t, fs, &ConfigBatch{Workers: 2})

	var (
		mu    sync.Mutex
		calls int
	)
	report, err := b.Run(context.Background(), model.BatchRequest{
		InputDir:  "in",
		OutputDir: "out",
		Model:     "M30T",
	}, func(done, total int, res model.ConversionResult) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 1, report.Failed())
	assert.False(t, report.OK())

	for _, res := range report.Results {
		if filepath.Base(res.Input) == "c.jpg" {
			assert.True(t, model.IsDecodeError(res.Err), errors.ErrorStack(res.Err))
			continue
		}
		require.NoError(t, res.Err, errors.ErrorStack(res.Err))
		exists, err := afero.Exists(fs, res.Output)
		require.NoError(t, err)
		assert.True(t, exists, res.Output)
	}
	exists, _ := afero.Exists(fs, filepath.Join("out", "c.tiff"))
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, filepath.Join("out", "b.tiff"))
	assert.True(t, exists)
}

func TestRunRecursive(t *testing.T) {
	fs := afero.NewMemMapFs()
	fillDir(t, fs)
	b := newTestBatch(t, fs, nil)

	report, err := b.Run(context.Background(), model.BatchRequest{
		InputDir:  "in",
		OutputDir: "out",
		Recursive: true,
		Model:     "H20T",
	}, nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 4)
	assert.Equal(t, 3, report.Succeeded())

	exists, _ := afero.Exists(fs, filepath.Join("out", "sub", "d.tiff"))
	assert.True(t, exists)
}

func TestRunCanceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	fillDir(t, fs)
	b := newTestBatch(t, fs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := b.Run(ctx, model.BatchRequest{InputDir: "in", OutputDir: "out", Model: "M30T"}, nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	for _, res := range report.Results {
		assert.True(t, model.IsCanceled(res.Err), "%s: %v", res.Input, res.Err)
		assert.NotEmpty(t, res.Output)
	}
}

func TestRunInvalidRequest(t *testing.T) {
	fs := afero.NewMemMapFs()
	fillDir(t, fs)
	b := newTestBatch(t, fs, nil)

	_, err := b.Run(context.Background(), model.BatchRequest{InputDir: "in", OutputDir: "out", Model: "XT2"}, nil)
	assert.Error(t, err)
	_, err = b.Run(context.Background(), model.BatchRequest{InputDir: "missing", OutputDir: "out", Model: "M30T"}, nil)
	assert.Error(t, err)
}

// Конвертер, считающий вызовы
type countingConverter struct {
	mu    sync.Mutex
	calls int
}

func (m *countingConverter) Convert(ctx context.Context, req model.ConvertRequest) model.ConversionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return model.ConversionResult{Input: req.Input, Output: req.Output}
}

func TestRunPrecisionOverflow(t *testing.T) {
	fs := afero.NewMemMapFs()
	fillDir(t, fs)
	conv := &countingConverter{}
	b, err := NewBatch(conv, &ConfigBatch{Fs: fs})
	require.NoError(t, err)

	req := model.BatchRequest{
		InputDir:  "in",
		OutputDir: "out",
		Model:     "H30T",
		Options:   model.EncodingOptions{Precision: 0.01},
	}
	report, err := b.Run(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, model.IsPrecisionOverflow(err), errors.ErrorStack(err))
	assert.Empty(t, report.Results)
	assert.True(t, model.IsPrecisionOverflow(b.Watch(context.Background(), req, nil)))

	// Каталог не проверяется, если шаг заведомо не подходит
	req.InputDir = "missing"
	_, err = b.Run(context.Background(), req, nil)
	assert.True(t, model.IsPrecisionOverflow(err))

	conv.mu.Lock()
	defer conv.mu.Unlock()
	assert.Equal(t, 0, conv.calls)
	exists, err := afero.DirExists(fs, "out")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	fs := afero.NewOsFs()
	require.NoError(t, fs.MkdirAll(in, 0755))
	// Существующие файлы в режиме наблюдения не обрабатываются
	require.NoError(t, afero.WriteFile(fs, filepath.Join(in, "old.jpg"), testJPEG(t, 16, 16), 0644))

	b := newTestBatch(t, fs, &ConfigBatch{SettleTime: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan model.ConversionResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- b.Watch(ctx, model.BatchRequest{InputDir: in, OutputDir: out, Model: "M30T"},
			func(_, _ int, res model.ConversionResult) { results <- res })
	}()

	// Подписка на каталог происходит асинхронно
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(in, "new.jpg"), testJPEG(t, 16, 16), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(in, "skip.txt"), []byte("x"), 0644))

	select {
	case res := <-results:
		require.NoError(t, res.Err, errors.ErrorStack(res.Err))
		assert.Equal(t, filepath.Join(in, "new.jpg"), res.Input)
		assert.Equal(t, filepath.Join(out, "new.tiff"), res.Output)
	case <-time.After(5 * time.Second):
		t.Fatal("новый файл не обработан")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("наблюдение не остановлено")
	}
	assert.Empty(t, results)
	exists, _ := afero.Exists(fs, filepath.Join(out, "old.tiff"))
	assert.False(t, exists)
}
