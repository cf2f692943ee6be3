package batch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/kirsrus/rjpeg2tiff/controller"
	"github.com/kirsrus/rjpeg2tiff/controller/encoder"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/tool"

	"github.com/juju/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	fsnotify "gopkg.in/fsnotify.v1"
)

// Новый файл, ожидающий окончания записи
type pendingFile struct {
	size    int64
	changed time.Time
}

// Watch наблюдает за каталогом и преобразует появляющиеся R-JPEG после того, как их размер
// перестал меняться. Уже существующие файлы не обрабатываются. Завершается при отмене ctx.
func (m Batch) Watch(ctx context.Context, req model.BatchRequest, progress controller.ProgressFunc) error {
	req.Options.Normalize()
	if err := m.validator.ValidateWithConform(&req); err != nil {
		return errors.Annotate(err, "некорректный запрос")
	}
	if err := encoder.CheckPrecision(req.Model, req.Options.Precision); err != nil {
		return errors.Trace(err)
	}
	isDir, err := afero.IsDir(m.fs, req.InputDir)
	if err != nil {
		return errors.Annotatef(err, "каталог %s", req.InputDir)
	}
	if !isDir {
		return errors.Errorf("%s не является каталогом", req.InputDir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = watcher.Close() }()

	err = afero.Walk(m.fs, req.InputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		if path != req.InputDir && !req.Recursive {
			return nil
		}
		return watcher.Add(path)
	})
	if err != nil {
		return errors.Annotate(err, "подписка на изменения каталога")
	}
	m.log.Infof("наблюдение за каталогом %s", req.InputDir)

	workers := m.workers
	if req.Workers > 0 {
		workers = req.Workers
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)

	var (
		mu   sync.Mutex
		done int
	)
	pending := make(map[string]pendingFile)
	notify := func(res model.ConversionResult) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if progress != nil {
			progress(done, done, res)
		}
	}

	ticker := time.NewTicker(m.settlePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			m.log.Info("наблюдение за каталогом остановлено")
			return nil

		case err, ok := <-watcher.Errors:
			if !ok {
				_ = g.Wait()
				return nil
			}
			m.log.Warnf("ошибка наблюдения: %v", err)

		case ev, ok := <-watcher.Events:
			if !ok {
				_ = g.Wait()
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, err := m.fs.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if req.Recursive && ev.Op&fsnotify.Create != 0 {
					if err := watcher.Add(ev.Name); err != nil {
						m.log.Warnf("не удалось наблюдать за %s: %v", ev.Name, err)
					}
				}
				continue
			}
			if !tool.IsSupportedInput(ev.Name) {
				continue
			}
			pending[ev.Name] = pendingFile{size: info.Size(), changed: time.Now()}

		case now := <-ticker.C:
			for path, p := range pending {
				info, err := m.fs.Stat(path)
				if err != nil {
					delete(pending, path)
					continue
				}
				if info.Size() != p.size {
					pending[path] = pendingFile{size: info.Size(), changed: now}
					continue
				}
				if now.Sub(p.changed) < m.settleTime {
					continue
				}
				delete(pending, path)

				path := path
				output := tool.BatchOutputPath(req.InputDir, path, req.OutputDir)
				m.log.Debugf("новый файл %s", path)
				g.Go(func() error {
					notify(m.converter.Convert(ctx, req.Request(path, output)))
					return nil
				})
			}
		}
	}
}
