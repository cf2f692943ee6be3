package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirsrus/rjpeg2tiff/controller/converter"
	"github.com/kirsrus/rjpeg2tiff/controller/encoder"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/service/synthetic"
	"github.com/kirsrus/rjpeg2tiff/store"
	"github.com/kirsrus/rjpeg2tiff/store/db"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJPEG(t *testing.T, width, height int) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, width, height)), nil))
	return buf.Bytes()
}

func newTestWeb(t *testing.T, ctx context.Context, dbStore store.DbStore) (*Web, *httptest.Server) {
	fs := afero.NewMemMapFs()
	dec, err := synthetic.NewSynthetic(&synthetic.ConfigSynthetic{})
	require.NoError(t, err)
	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Fs: fs})
	require.NoError(t, err)
	conv, err := converter.NewConverter(dec, enc, dbStore, &converter.ConfigConverter{Fs: fs})
	require.NoError(t, err)

	web, err := NewWeb(ctx, conv, dbStore, &ConfigWeb{Fs: fs, WorkDir: "work", Model: "M30T"})
	require.NoError(t, err)
	web.Api("/api")
	web.Events("/api/events")

	srv := httptest.NewServer(web)
	t.Cleanup(srv.Close)
	return web, srv
}

func upload(t *testing.T, url string, filename string, content []byte, fields map[string]string) *http.Response {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := http.Post(url+"/api/convert", w.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestModels(t *testing.T) {
	_, srv := newTestWeb(t, context.Background(), nil)

	resp, err := http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []droneModelInfo
	decode(t, resp, &list)
	require.Len(t, list, 4)
	assert.Equal(t, "M30T", list[0].ID)
	assert.Equal(t, -20.0, list[0].MinTemp)
	assert.Equal(t, 400.0, list[0].MaxTemp)
}

func TestConvertJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	web, srv := newTestWeb(t, ctx, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	// Подписка регистрируется после завершения рукопожатия
	require.Eventually(t, func() bool {
		n := 0
		web.subscribers.Range(func(_, _ interface{}) bool { n++; return true })
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := upload(t, srv.URL, "DJI_0001_R.JPG", testJPEG(t, 64, 48), map[string]string{"model": "h20t", "compression": "zip"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var job model.Job
	decode(t, resp, &job)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, "H20T", job.Model)
	assert.Equal(t, "DJI_0001_R.JPG", job.Filename)

	// Ожидание завершения по событиям
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var last model.JobEvent
	for !last.Job.Status.Finished() {
		require.NoError(t, conn.ReadJSON(&last))
		assert.Equal(t, job.ID, last.Job.ID)
		assert.Equal(t, "web", last.Source)
	}
	require.Equal(t, model.JobDone, last.Job.Status, last.Job.Error)

	resp, err = http.Get(srv.URL + "/api/jobs/" + job.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &job)
	assert.Equal(t, model.JobDone, job.Status)
	assert.Equal(t, 64, job.Width)
	assert.Equal(t, 48, job.Height)

	resp, err = http.Get(srv.URL + "/api/jobs/" + job.ID + "/tiff")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/tiff", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "DJI_0001_R.tiff")
	content, err := ioutil.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)

	img, err := encoder.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, "H20T", img.Model)
	assert.Equal(t, model.CompressionZIP, encoder.CompressionOf(img))
}

func TestConvertRejected(t *testing.T) {
	_, srv := newTestWeb(t, context.Background(), nil)

	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		status   int
	}{
		{"не JPEG", "a.jpg", []byte("просто текст"), nil, http.StatusUnsupportedMediaType},
		{"неизвестная модель", "a.jpg", testJPEG(t, 8, 8), map[string]string{"model": "XT2"}, http.StatusBadRequest},
		{"неизвестное сжатие", "a.jpg", testJPEG(t, 8, 8), map[string]string{"compression": "jpeg"}, http.StatusBadRequest},
		{"некорректная точность", "a.jpg", testJPEG(t, 8, 8), map[string]string{"precision": "abc"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, srv.URL, tt.filename, tt.content, tt.fields)
			_ = resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp, err := http.Get(srv.URL + "/api/jobs/unknown")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	st, err := db.NewDb(context.Background(), &db.ConfigDb{DbFile: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	web, srv := newTestWeb(t, context.Background(), st)

	resp := upload(t, srv.URL, "a.jpg", testJPEG(t, 16, 16), nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var job model.Job
	decode(t, resp, &job)

	require.Eventually(t, func() bool {
		j, ok := web.getJob(job.ID)
		return ok && j.Status.Finished()
	}, 5*time.Second, 10*time.Millisecond)

	resp, err = http.Get(srv.URL + "/api/history?limit=10")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []store.ConversionLog
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, job.ID, list[0].ID)
	assert.Equal(t, "M30T", list[0].Model)
	assert.True(t, list[0].Success())

	resp, err = http.Get(srv.URL + "/api/history?limit=-1")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
