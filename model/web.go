package model

import (
	"path/filepath"
	"time"
)

// JobStatus состояние задания преобразования
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Finished задание завершено (успешно или с ошибкой)
func (s JobStatus) Finished() bool {
	return s == JobDone || s == JobFailed
}

// Job задание преобразования, запущенное через WEB интерфейс
type Job struct {
	ID        string    `json:"id"`
	CreateAt  time.Time `json:"create_at"`
	UpdateAt  time.Time `json:"update_at"`
	Status    JobStatus `json:"status"`
	Filename  string    `json:"filename"`
	Model     string    `json:"model"`
	Input     string    `json:"-"`
	Output    string    `json:"-"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	MinTemp   float64   `json:"min_temp,omitempty"`
	MaxTemp   float64   `json:"max_temp,omitempty"`
	OutRange  int       `json:"out_of_range"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Apply переносит в задание итог преобразования
func (m *Job) Apply(res ConversionResult) {
	m.UpdateAt = time.Now()
	m.Model = res.Model
	m.Width, m.Height = res.Width, res.Height
	m.MinTemp, m.MaxTemp = res.Stats.Min, res.Stats.Max
	m.OutRange = res.OutOfRange.Count
	if res.Err != nil {
		m.Status = JobFailed
		m.ErrorKind = ErrorKind(res.Err)
		m.Error = res.Err.Error()
		return
	}
	m.Status = JobDone
}

// JobEvent событие изменения состояния задания для WEB интерфейса
type JobEvent struct {
	Job Job `json:"job"`
	// Источник события: web (загрузка) или batch (пакет / наблюдение за каталогом)
	Source string `json:"source"`
}

// NewJob задание по итогу преобразования, выполненного вне WEB интерфейса
func NewJob(res ConversionResult) Job {
	now := time.Now()
	job := Job{
		ID:       res.ID,
		CreateAt: now,
		Filename: filepath.Base(res.Input),
		Input:    res.Input,
		Output:   res.Output,
	}
	job.Apply(res)
	return job
}
