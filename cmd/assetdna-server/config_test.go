package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdna/registry/pkg/actor"
	"github.com/assetdna/registry/pkg/db"
)

func parseConfig(t *testing.T, args ...string) (*serverConfig, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := newViper(fs)
	require.NoError(t, err)
	return loadServerConfig(v)
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(t)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, actor.ModeHeader, cfg.ActorMode)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, db.DialectSQLite, cfg.DB.Dialect)
	assert.Empty(t, cfg.DB.DSN)
}

func TestLoadServerConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("ASSETDNA_DB_TYPE", "postgres")
	t.Setenv("ASSETDNA_DB_DSN", "host=db user=assetdna")
	t.Setenv("ASSETDNA_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ASSETDNA_LISTEN", ":9000")

	cfg, err := parseConfig(t, "--listen=:7000", "--actor-mode=anonymous", "--log-format=json", "--log-level=debug")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Listen, "flag wins over env")
	assert.Equal(t, actor.ModeAnonymous, cfg.ActorMode)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.DB.Dialect)
	assert.Equal(t, "host=db user=assetdna", cfg.DB.DSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadServerConfig_Invalid(t *testing.T) {
	_, err := parseConfig(t, "--actor-mode=token")
	assert.Error(t, err)

	_, err = parseConfig(t, "--log-format=xml")
	assert.Error(t, err)

	_, err = parseConfig(t, "--log-level=loud")
	assert.Error(t, err)
}

func TestSplitOrigins(t *testing.T) {
	assert.Nil(t, splitOrigins(nil))
	assert.Equal(t, []string{"a", "b", "c"}, splitOrigins([]string{"a,b", " c ", ""}))
}
