package web

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/tool"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/labstack/echo"
	"github.com/spf13/afero"
)

// Описание модели для WEB интерфейса
type droneModelInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	MinTemp     float64 `json:"min_temp"`
	MaxTemp     float64 `json:"max_temp"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Description string  `json:"description"`
}

func message(text string) map[string]string {
	return map[string]string{"message": text}
}

// Api точки входа REST API с префиксом path
func (m Web) Api(path string) {
	path = strings.TrimSuffix(path, "/")
	m.e.GET(path+"/models", m.models)
	m.e.POST(path+"/convert", m.convert)
	m.e.GET(path+"/jobs/:id", m.job)
	m.e.GET(path+"/jobs/:id/tiff", m.jobTiff)
	m.e.GET(path+"/history", m.history)
}

// Список поддерживаемых моделей
func (m Web) models(c echo.Context) error {
	list := make([]droneModelInfo, 0, len(model.DroneModels()))
	for _, v := range model.DroneModels() {
		list = append(list, droneModelInfo{
			ID:          v.ID,
			Name:        v.Name,
			MinTemp:     v.MinTemp,
			MaxTemp:     v.MaxTemp,
			Width:       v.Width,
			Height:      v.Height,
			Description: v.Description,
		})
	}
	return c.JSON(http.StatusOK, list)
}

// Загрузка R-JPEG и постановка задания. Преобразование выполняется в фоне,
// состояние задания доступно по /jobs/:id и через события.
func (m Web) convert(c echo.Context) error {
	req, err := m.convertRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, message(err.Error()))
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, message("не передан файл (поле file)"))
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, message("ошибка чтения файла: "+err.Error()))
	}
	content, err := ioutil.ReadAll(io.LimitReader(src, m.maxUpload+1))
	_ = src.Close()
	if err != nil {
		return c.JSON(http.StatusBadRequest, message("ошибка чтения файла: "+err.Error()))
	}
	if int64(len(content)) > m.maxUpload {
		return c.JSON(http.StatusRequestEntityTooLarge, message(fmt.Sprintf("файл больше %d МБ", m.maxUpload>>20)))
	}
	if mime := mimetype.Detect(content); !mime.Is("image/jpeg") {
		return c.JSON(http.StatusUnsupportedMediaType, message(fmt.Sprintf("ожидается R-JPEG, получен %s", mime.String())))
	}

	filename := filepath.Base(fh.Filename)
	if filename == "." || filename == string(filepath.Separator) || !tool.IsSupportedInput(filename) {
		filename = "upload.jpg"
	}
	req.ID = uuid.New().String()
	dir := filepath.Join(m.workDir, req.ID)
	req.Input = filepath.Join(dir, filename)
	req.Output = filepath.Join(dir, tool.ReplaceExt(filename, tool.OutputExt))

	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		m.log.Errorf("не удалось создать каталог %s: %v", dir, err)
		return c.JSON(http.StatusInternalServerError, message("ошибка сохранения файла"))
	}
	if err := afero.WriteFile(m.fs, req.Input, content, 0644); err != nil {
		m.log.Errorf("не удалось сохранить %s: %v", req.Input, err)
		return c.JSON(http.StatusInternalServerError, message("ошибка сохранения файла"))
	}

	now := time.Now()
	job := model.Job{
		ID:       req.ID,
		CreateAt: now,
		UpdateAt: now,
		Status:   model.JobQueued,
		Filename: filename,
		Model:    req.Model,
		Input:    req.Input,
		Output:   req.Output,
	}
	m.setJob(job)
	m.log.Infof("задание %s: %s (%s)", job.ID, filename, req.Model)

	m.wg.Add(1)
	go func(job model.Job) {
		defer m.wg.Done()
		job.Status = model.JobRunning
		job.UpdateAt = time.Now()
		m.setJob(job)

		job.Apply(m.converter.Convert(m.ctx, req))
		m.setJob(job)
	}(job)

	return c.JSON(http.StatusAccepted, job)
}

// Параметры преобразования из полей формы поверх значений по умолчанию
func (m Web) convertRequest(c echo.Context) (model.ConvertRequest, error) {
	req := model.ConvertRequest{
		Model:       m.model,
		Options:     m.options,
		Measurement: m.measurement,
		Preview:     m.preview,
	}
	if v := c.FormValue("model"); v != "" {
		req.Model = v
	}
	if v := c.FormValue("precision"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, errors.Errorf("некорректная точность %q", v)
		}
		req.Options.Precision = p
	}
	if v := c.FormValue("compression"); v != "" {
		req.Options.Compression = model.Compression(v)
	}
	if v := c.FormValue("preview"); v != "" {
		p, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.Errorf("некорректный признак превью %q", v)
		}
		req.Preview = p
	}

	// Пути подставляются после сохранения файла
	check := req
	check.Input, check.Output = "-", "-"
	if err := m.validator.ValidateWithConform(&check); err != nil {
		return req, errors.Errorf("некорректные параметры: %v", err)
	}
	check.Input, check.Output = "", ""
	return check, nil
}

// Состояние задания
func (m Web) job(c echo.Context) error {
	job, ok := m.getJob(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, message("задание не найдено"))
	}
	return c.JSON(http.StatusOK, job)
}

// Результат задания
func (m Web) jobTiff(c echo.Context) error {
	job, ok := m.getJob(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, message("задание не найдено"))
	}
	switch job.Status {
	case model.JobDone:
	case model.JobFailed:
		return c.JSON(http.StatusConflict, message(fmt.Sprintf("задание завершилось ошибкой %s: %s", job.ErrorKind, job.Error)))
	default:
		return c.JSON(http.StatusConflict, message("задание ещё выполняется"))
	}

	content, err := afero.ReadFile(m.fs, job.Output)
	if err != nil {
		m.log.Errorf("не удалось прочитать %s: %v", job.Output, err)
		return c.JSON(http.StatusGone, message("файл результата недоступен"))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", filepath.Base(job.Output)))
	return c.Blob(http.StatusOK, "image/tiff", content)
}

// История преобразований
func (m Web) history(c echo.Context) error {
	if m.dbStore == nil {
		return c.JSON(http.StatusNotFound, message("история преобразований отключена"))
	}
	limit := historyLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, message(fmt.Sprintf("некорректный limit %q", v)))
		}
		limit = n
	}
	list, err := m.dbStore.Conversions(limit)
	if err != nil {
		m.log.Errorf("ошибка чтения истории: %v", err)
		return c.JSON(http.StatusInternalServerError, message("ошибка чтения истории"))
	}
	return c.JSON(http.StatusOK, list)
}

// Сохраняет копию задания и рассылает событие
func (m Web) setJob(job model.Job) {
	m.jobs.SetDefault(job.ID, job)
	m.JobChanged(model.JobEvent{Job: job, Source: "web"})
}

func (m Web) getJob(id string) (model.Job, bool) {
	v, ok := m.jobs.Get(id)
	if !ok {
		return model.Job{}, false
	}
	job, ok := v.(model.Job)
	return job, ok
}
