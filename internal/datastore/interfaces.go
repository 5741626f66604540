// Package datastore opens the demo database behind the detector and the
// sample application.
package datastore

import (
	"gorm.io/gorm"
)

// Store is an opened database connection.
type Store interface {
	// Open connects and applies every registered plugin.
	Open() error
	// DB returns the gorm handle; nil before Open.
	DB() *gorm.DB
	// Migrate creates or updates the tables for models.
	Migrate(models ...any) error
	// Close releases the underlying connection pool.
	Close() error
	// Dialect names the driver, "sqlite" or "mysql".
	Dialect() string
}
