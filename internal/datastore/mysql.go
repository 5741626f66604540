package datastore

import (
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore stores the demo schema in MySQL.
type MySQLStore struct {
	baseStore
}

func (s *MySQLStore) Dialect() string { return "mysql" }

// DSN builds the driver connection string for settings.
func DSN(settings *conf.MySQLSettings) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Timeout = 10 * time.Second
	cfg.ReadTimeout = 30 * time.Second
	cfg.WriteTimeout = 30 * time.Second
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to the configured server.
func (s *MySQLStore) Open() error {
	mysqlSettings := &s.settings.MySQL

	db, err := gorm.Open(gormmysql.Open(DSN(mysqlSettings)), s.gormConfig())
	if err != nil {
		s.log.Error("failed to open MySQL database",
			logger.String("host", mysqlSettings.Host),
			logger.Int("port", mysqlSettings.Port),
			logger.String("database", mysqlSettings.Database),
			logger.Error(err))
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("dialect", "mysql").
			Context("host", mysqlSettings.Host).
			Context("database", mysqlSettings.Database).
			Build()
	}

	return s.finishOpen(db, s.Dialect())
}
