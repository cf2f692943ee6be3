package db

import (
	"context"
	"io/ioutil"
	"time"

	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/store"

	"github.com/juju/errors"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	cacheDuration = 10 * time.Minute
	cacheCleared  = time.Hour
	// Ограничение выборки истории по умолчанию
	defaultLimit = 100
)

// Db обращение к базе данных. Инициируется через NewDb
type Db struct {
	ctx context.Context
	log *logrus.Entry
	db  *gorm.DB

	conversionCache *cache.Cache
}

// ConfigDb конфигурация конструктора NewDb
type ConfigDb struct {
	Log    *logrus.Logger
	DbFile string
}

// NewDb конструктор класса Db
func NewDb(ctx context.Context, config *ConfigDb) (store.DbStore, error) {
	if config == nil {
		return nil, errors.New("не указана конфигурация")
	}
	if config.Log == nil {
		config.Log = logrus.New()
		config.Log.Out = ioutil.Discard
	}
	if config.DbFile == "" {
		return nil, errors.New("в конфигурации не указан файл БД")
	}

	// Подключаемся к БД и запускаем миграции
	conn, err := gorm.Open(sqlite.Open(config.DbFile), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, errors.Annotate(err, "ошибка подключения к файлу БД")
	}
	if err = conn.AutoMigrate(Conversion{}); err != nil {
		return nil, errors.Annotate(err, "ошибка миграции БД")
	}

	db := Db{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "db",
			"scope":  "store",
		}),
		db: conn,

		conversionCache: cache.New(cacheDuration, cacheCleared),
	}
	return &db, nil
}

// IsNotFound проверяет, что ошибка err обозначает, что записи не найдены
func (m Db) IsNotFound(err error) bool {
	return err != nil && errors.Cause(err) == gorm.ErrRecordNotFound
}

// SaveConversion сохраняет итог преобразования. Запись с тем же идентификатором задания обновляется.
func (m Db) SaveConversion(res model.ConversionResult) error {
	if res.ID == "" {
		return errors.New("не указан идентификатор задания")
	}

	var row Conversion
	err := m.db.WithContext(m.ctx).Where("job_id = ?", res.ID).Take(&row).Error
	if err != nil && !m.IsNotFound(err) {
		return errors.Trace(err)
	}
	row.FromResult(res)
	if err = m.db.WithContext(m.ctx).Save(&row).Error; err != nil {
		return errors.Trace(err)
	}
	m.conversionCache.Set(res.ID, row.ToLog(), cache.DefaultExpiration)
	m.log.Debugf("сохранена запись преобразования %s", res.ID)
	return nil
}

// Conversion запись по идентификатору задания. Отсутствие записи проверяется через IsNotFound
func (m Db) Conversion(id string) (*store.ConversionLog, error) {
	if cached, ok := m.conversionCache.Get(id); ok {
		if log, ok := cached.(store.ConversionLog); ok {
			return &log, nil
		}
	}

	var row Conversion
	err := m.db.WithContext(m.ctx).Where("job_id = ?", id).Take(&row).Error
	if err != nil {
		if m.IsNotFound(err) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Trace(err)
	}
	log := row.ToLog()
	m.conversionCache.Set(id, log, cache.DefaultExpiration)
	return &log, nil
}

// Conversions последние limit записей, новые первыми. limit <= 0 - ограничение по умолчанию.
func (m Db) Conversions(limit int) ([]store.ConversionLog, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows := make([]Conversion, 0)
	err := m.db.WithContext(m.ctx).Order("created_at desc, id desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	res := make([]store.ConversionLog, 0, len(rows))
	for _, v := range rows {
		res = append(res, v.ToLog())
	}
	return res, nil
}

// Clean удаляет записи старше days дней
func (m Db) Clean(days int) error {
	if days <= 0 {
		return errors.Errorf("некорректный срок хранения %d дней", days)
	}
	m.log.Info("запуск процесса очистки старых записей истории")

	lastDate := time.Now().AddDate(0, 0, -days)
	tx := m.db.WithContext(m.ctx).Where("created_at < ?", lastDate).Delete(&Conversion{})
	if tx.Error != nil {
		m.log.Warn(tx.Error)
		return errors.Trace(tx.Error)
	}
	m.conversionCache.Flush()
	m.log.Infof("удалено записей: %d", tx.RowsAffected)
	return nil
}

// Close закрывает соединение с БД
func (m Db) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sqlDB.Close())
}
