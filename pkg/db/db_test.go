package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestOpen_MemorySQLite(t *testing.T) {
	gdb, err := Open(Config{Dialect: DialectSQLite, DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	type row struct {
		ID   string `gorm:"primaryKey"`
		Name string `gorm:"uniqueIndex"`
	}
	require.NoError(t, gdb.AutoMigrate(&row{}))
	require.NoError(t, gdb.Create(&row{ID: "1", Name: "a"}).Error)
	var count int64
	require.NoError(t, gdb.Model(&row{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"unknown dialect", Config{Dialect: "oracle", DSN: "x"}, "unsupported database dialect"},
		{"postgres without dsn", Config{Dialect: DialectPostgres}, "postgres DSN is required"},
		{"mysql without dsn", Config{Dialect: DialectMySQL}, "mysql DSN is required"},
		{"bad log level", Config{Dialect: DialectSQLite, DSN: ":memory:", LogLevel: "loud"}, "unknown database log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"":       logger.Warn,
		"silent": logger.Silent,
		"ERROR":  logger.Error,
		"info":   logger.Info,
	} {
		got, err := parseLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestIsMemorySQLite(t *testing.T) {
	assert.True(t, isMemorySQLite(Config{Dialect: "sqlite", DSN: ":memory:"}))
	assert.True(t, isMemorySQLite(Config{DSN: "file:x?mode=memory&cache=shared"}))
	assert.False(t, isMemorySQLite(Config{Dialect: "sqlite", DSN: "assetdna.db"}))
	assert.False(t, isMemorySQLite(Config{Dialect: "postgres", DSN: ":memory:"}))
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}

func TestNormalizeMySQLDSN(t *testing.T) {
	dsn, err := normalizeMySQLDSN("assetdna:secret@tcp(db:3306)/assetdna")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tcp(db:3306)/assetdna")

	_, err = normalizeMySQLDSN("not a dsn")
	assert.Error(t, err)
}
