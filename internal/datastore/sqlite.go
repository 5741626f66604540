package datastore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore stores the demo schema in a SQLite file or in memory.
type SQLiteStore struct {
	baseStore
}

func (s *SQLiteStore) Dialect() string { return "sqlite" }

func isInMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Open creates the parent directory when needed and connects.
func (s *SQLiteStore) Open() error {
	path := s.settings.SQLite.Path
	if path == "" {
		path = ":memory:"
	}

	if !isInMemory(path) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.New(err).
					Category(errors.CategoryFileIO).
					Context("path", dir).
					Build()
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), s.gormConfig())
	if err != nil {
		s.log.Error("failed to open SQLite database", logger.String("path", path), logger.Error(err))
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("dialect", "sqlite").
			Context("path", path).
			Build()
	}

	// every pooled connection to :memory: would get its own empty database
	if isInMemory(path) {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	return s.finishOpen(db, s.Dialect())
}
