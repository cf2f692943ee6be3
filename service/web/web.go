// Package web WEB-интерфейс преобразования: загрузка R-JPEG, состояние заданий, история
package web

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/kirsrus/rjpeg2tiff/controller"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/validator"
	"github.com/kirsrus/rjpeg2tiff/service"
	"github.com/kirsrus/rjpeg2tiff/store"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	webPort     = 8080
	assetsDir   = "./assets"
	workDir     = "./webdata"
	maxUploadMB = 64

	// Время хранения сведений о задании
	jobTTL = 24 * time.Hour
	// Размер очереди событий одного подписчика
	eventQueue = 32
	// Каждые 10 секунд подавать в канал ping, иначе клиент его закроет
	pingInterval    = 10 * time.Second
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	// Записей истории по умолчанию
	historyLimit = 50
)

// ConfigWeb конфигурация структуры Web
type ConfigWeb struct {
	Log *logrus.Logger
	// Файловая система для загрузок и результатов. По умолчанию файловая система ОС.
	Fs afero.Fs

	Port        uint
	AssetsDir   string
	WorkDir     string
	MaxUploadMB int

	// Параметры преобразования, если не переданы в запросе
	Model       string
	Options     model.EncodingOptions
	Measurement model.MeasurementParams
	Preview     bool
}

// Web служба WEB-сервисов. Инициализируется через NewWeb
type Web struct {
	ctx       context.Context
	log       *logrus.Entry
	validator *validator.Validator
	e         *echo.Echo
	fs        afero.Fs
	upgrader  websocket.Upgrader

	converter controller.ConverterCtl
	// Может быть nil: история не ведётся
	dbStore store.DbStore

	jobs *cache.Cache
	// Подписчики на события заданий: id -> chan model.JobEvent
	subscribers *sync.Map
	// Фоновые преобразования
	wg *sync.WaitGroup

	port      uint
	assetsDir string
	workDir   string
	maxUpload int64

	model       string
	options     model.EncodingOptions
	measurement model.MeasurementParams
	preview     bool
}

// NewWeb конструктор структуры Web. Маршруты подключаются через Static, Api и Events,
// сервер запускается через Serve.
func NewWeb(ctx context.Context, converter controller.ConverterCtl, dbStore store.DbStore, config *ConfigWeb) (*Web, error) {
	if config == nil {
		return nil, errors.New("не установлена конфигурация")
	}
	if config.Log == nil {
		config.Log = logrus.New()
		config.Log.Out = ioutil.Discard
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if converter == nil {
		return nil, errors.New("не указан конвертер")
	}

	web := Web{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "web",
			"scope":  "service",
		}),
		validator: validator.Get(),
		e:         echo.New(),
		fs:        config.Fs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},

		converter: converter,
		dbStore:   dbStore,

		jobs:        cache.New(jobTTL, time.Hour),
		subscribers: new(sync.Map),
		wg:          new(sync.WaitGroup),

		port:      webPort,
		assetsDir: assetsDir,
		workDir:   workDir,
		maxUpload: maxUploadMB << 20,

		model:       model.ModelAuto,
		options:     config.Options,
		measurement: config.Measurement,
		preview:     config.Preview,
	}
	if config.Port != 0 {
		web.port = config.Port
	}
	if config.AssetsDir != "" {
		web.assetsDir = config.AssetsDir
	}
	if config.WorkDir != "" {
		web.workDir = config.WorkDir
	}
	if config.MaxUploadMB > 0 {
		web.maxUpload = int64(config.MaxUploadMB) << 20
	}
	if config.Model != "" {
		web.model = config.Model
	}
	web.options.Normalize()
	if err := web.validator.Validate(web.options); err != nil {
		return nil, errors.Annotate(err, "параметры кодирования по умолчанию")
	}

	web.e.HideBanner = true
	web.e.HidePort = true
	web.e.Use(middleware.Recover())
	web.e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (web.maxUpload>>10)+64)))
	web.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	return &web, nil
}

var _ service.WebSvc = (*Web)(nil)

// ServeHTTP обработка запроса без запуска сервера
func (m Web) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.e.ServeHTTP(w, r)
}

// Serve обслуживает HTTP до отмены ctx, затем дожидается фоновых преобразований
func (m Web) Serve(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		m.log.Infof("старт HTTP-сервера на порту :%d", m.port)
		errChan <- m.e.Start(fmt.Sprintf(":%d", m.port))
	}()

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return errors.Annotate(err, "сервер неожиданно завершил работу")
		}
		return nil
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.e.Shutdown(shutdown); err != nil {
		m.log.Warnf("ошибка остановки сервера: %v", err)
	}
	m.wg.Wait()
	m.log.Info("HTTP-сервер остановлен")
	return nil
}

// Static статический контент (страница загрузки)
func (m Web) Static(path string) {
	m.e.Static(path, m.assetsDir)
}
