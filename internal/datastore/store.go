package datastore

import (
	"time"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
	"gorm.io/gorm"
)

const defaultSlowThreshold = 200 * time.Millisecond

// New returns an unopened store for the configured database type. Plugins
// are installed with db.Use when the store is opened.
func New(settings *conf.DatabaseSettings, log logger.Logger, plugins ...gorm.Plugin) (Store, error) {
	if settings == nil {
		return nil, errors.New(errors.NewStd("database settings are required")).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = GetLogger()
	}

	base := baseStore{settings: settings, log: log, plugins: plugins}
	switch settings.Type {
	case conf.DatabaseSQLite, "":
		return &SQLiteStore{baseStore: base}, nil
	case conf.DatabaseMySQL:
		return &MySQLStore{baseStore: base}, nil
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Type).
			Category(errors.CategoryConfiguration).
			Context("type", settings.Type).
			Build()
	}
}

// Open is New followed by Store.Open.
func Open(settings *conf.DatabaseSettings, log logger.Logger, plugins ...gorm.Plugin) (Store, error) {
	store, err := New(settings, log, plugins...)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// baseStore holds what both drivers share.
type baseStore struct {
	settings *conf.DatabaseSettings
	log      logger.Logger
	plugins  []gorm.Plugin
	db       *gorm.DB
}

func (s *baseStore) DB() *gorm.DB { return s.db }

func (s *baseStore) gormConfig() *gorm.Config {
	slow := s.settings.SlowThreshold
	if slow <= 0 {
		slow = defaultSlowThreshold
	}
	return &gorm.Config{Logger: logger.NewGormLoggerAdapter(s.log, slow)}
}

// finishOpen installs the plugins on a freshly opened handle.
func (s *baseStore) finishOpen(db *gorm.DB, dialect string) error {
	for _, p := range s.plugins {
		if err := db.Use(p); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return errors.New(err).
				Category(errors.CategoryDatabase).
				Context("dialect", dialect).
				Context("plugin", p.Name()).
				Build()
		}
	}
	s.db = db
	s.log.Info("database opened", logger.String("dialect", dialect), logger.Int("plugins", len(s.plugins)))
	return nil
}

func (s *baseStore) Migrate(models ...any) error {
	if s.db == nil {
		return errors.New(errors.NewStd("database connection is not initialized")).
			Category(errors.CategoryState).
			Build()
	}
	if err := s.db.AutoMigrate(models...); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("models", len(models)).
			Build()
	}
	s.log.Debug("schema migrated", logger.Int("models", len(models)))
	return nil
}

func (s *baseStore) Close() error {
	if s.db == nil {
		return errors.New(errors.NewStd("database connection is not initialized")).
			Category(errors.CategoryState).
			Build()
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "close").
			Build()
	}
	if err := sqlDB.Close(); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "close").
			Build()
	}
	s.db = nil
	return nil
}
