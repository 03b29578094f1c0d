// Package db opens the GORM connection shared by the registry stores.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// Config describes how to reach the database.
type Config struct {
	Dialect         string
	DSN             string
	LogLevel        string // silent, error, warn, info
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database with error translation enabled so
// unique violations surface as gorm.ErrDuplicatedKey.
func Open(cfg Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	// Every connection to a private in-memory sqlite database is a new,
	// empty database.
	if isMemorySQLite(cfg) {
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return gdb, nil
}

// Close releases the underlying connection pool.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Dialect) {
	case DialectSQLite, "sqlite3", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "assetdna.db"
		}
		return sqlite.Open(dsn), nil
	case DialectPostgres, "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		return postgres.Open(cfg.DSN), nil
	case DialectMySQL:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql DSN is required")
		}
		dsn, err := normalizeMySQLDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database dialect %q (expected sqlite, postgres, or mysql)", cfg.Dialect)
	}
}

// normalizeMySQLDSN enables parseTime so DATETIME columns scan into
// time.Time, and defaults the session location to UTC.
func normalizeMySQLDSN(dsn string) (string, error) {
	c, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql DSN: %w", err)
	}
	c.ParseTime = true
	if c.Loc == nil {
		c.Loc = time.UTC
	}
	return c.FormatDSN(), nil
}

func parseLogLevel(s string) (logger.LogLevel, error) {
	switch strings.ToLower(s) {
	case "", "warn", "warning":
		return logger.Warn, nil
	case "silent":
		return logger.Silent, nil
	case "error":
		return logger.Error, nil
	case "info":
		return logger.Info, nil
	default:
		return 0, fmt.Errorf("unknown database log level %q", s)
	}
}

func isMemorySQLite(cfg Config) bool {
	switch strings.ToLower(cfg.Dialect) {
	case DialectSQLite, "sqlite3", "":
	default:
		return false
	}
	return cfg.DSN == ":memory:" || strings.Contains(cfg.DSN, "mode=memory")
}
