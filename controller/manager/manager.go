// Package manager режим сервера: WEB-интерфейс, наблюдение за каталогом и обслуживание истории
package manager

import (
	"context"
	"io/ioutil"
	"math"
	"time"

	"github.com/kirsrus/rjpeg2tiff/controller"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/service"
	"github.com/kirsrus/rjpeg2tiff/store"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	cleanBasePeriod   = time.Hour * 24 * 30
	cleanBaseInterval = time.Hour * 6
)

// ConfigManager конфигурация Manager
type ConfigManager struct {
	Log *logrus.Logger

	WebSvc service.WebSvc
	// Необязательные: без BatchCtl наблюдение за каталогом не ведётся, без DbStore нет очистки истории
	BatchCtl controller.BatchCtl
	DbStore  store.DbStore

	// Каталог для наблюдения. nil - без наблюдения.
	Watch *model.BatchRequest

	// Срок хранения истории
	CleanBasePeriod time.Duration
	// Периодичность очистки истории
	CleanBaseInterval time.Duration
}

// Manager основной менеджер режима сервера. Инициируется через NewManager
type Manager struct {
	ctx context.Context
	log *logrus.Entry

	webSvc   service.WebSvc
	batchCtl controller.BatchCtl
	dbStore  store.DbStore

	watch *model.BatchRequest

	cleanBasePeriod   time.Duration
	cleanBaseInterval time.Duration
}

// NewManager конструктор Manager
func NewManager(ctx context.Context, config *ConfigManager) (*Manager, error) {
	if config == nil {
		return nil, errors.New("не передана конфигурация")
	}
	if config.Log == nil {
		config.Log = logrus.New()
		config.Log.Out = ioutil.Discard
	}
	if config.WebSvc == nil {
		return nil, errors.New("не передан сервис WEB")
	}
	if config.Watch != nil && config.BatchCtl == nil {
		return nil, errors.New("для наблюдения за каталогом нужен контроллер пакетной обработки")
	}

	manager := Manager{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "manager",
			"scope":  "controller",
		}),

		webSvc:   config.WebSvc,
		batchCtl: config.BatchCtl,
		dbStore:  config.DbStore,
		watch:    config.Watch,

		cleanBasePeriod:   cleanBasePeriod,
		cleanBaseInterval: cleanBaseInterval,
	}
	if config.CleanBasePeriod != 0 {
		manager.cleanBasePeriod = config.CleanBasePeriod
	}
	if config.CleanBaseInterval != 0 {
		manager.cleanBaseInterval = config.CleanBaseInterval
	}

	manager.configToLog()

	return &manager, nil
}

// Вывести значения конфигурациии в лог
func (m Manager) configToLog() {
	m.log.Debugf("cleanBasePeriod: %s", m.cleanBasePeriod)
	m.log.Debugf("cleanBaseInterval: %s", m.cleanBaseInterval)
	if m.watch != nil {
		m.log.Debugf("watch: %s -> %s", m.watch.InputDir, m.watch.OutputDir)
	}
}

// Serve работа до отмены контекста или ошибки одного из сервисов
func (m Manager) Serve() error {
	ctx, cancel := context.WithCancel(m.ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return errors.Trace(m.webSvc.Serve(ctx))
	})

	// Новые файлы каталога преобразуются и попадают в события WEB
	if m.watch != nil {
		g.Go(func() error {
			return errors.Trace(m.batchCtl.Watch(ctx, *m.watch, func(done, total int, res model.ConversionResult) {
				m.webSvc.JobChanged(model.JobEvent{Job: model.NewJob(res), Source: "batch"})
			}))
		})
	}

	// Хоускеппер для очистки базы данных от старых записей
	if m.dbStore != nil {
		g.Go(func() error {
			days := int(math.Max(1, math.Round(m.cleanBasePeriod.Hours()/24)))
			ticker := time.NewTicker(m.cleanBaseInterval)
			defer ticker.Stop()
			for {
				if err := m.dbStore.Clean(days); err != nil {
					m.log.Warnf("ошибка очистки истории: %v", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}

	err := g.Wait()
	if err != nil && m.ctx.Err() == nil {
		return errors.Trace(err)
	}
	return nil
}
