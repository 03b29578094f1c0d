package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/assetdna/registry/pkg/actor"
	"github.com/assetdna/registry/pkg/db"
)

// envPrefix is shared with the subsystem *ConfigFromEnv readers.
const envPrefix = "ASSETDNA"

type serverConfig struct {
	Listen          string
	InventoryConfig string
	ActorMode       actor.Mode
	CORSOrigins     []string
	LogLevel        slog.Level
	LogFormat       string
	ShutdownTimeout time.Duration
	DB              db.Config
}

func bindFlags(fs *pflag.FlagSet) {
	fs.String("listen", ":8080", "Address to listen on")
	fs.String("config", "", "Path to the inventory YAML config (URN prefix, depth and size limits)")
	fs.String("actor-mode", "header", "Principal resolution: anonymous, header, or header-required")
	fs.StringSlice("cors-origins", nil, "Allowed CORS origins (empty disables CORS)")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	fs.String("db-type", db.DialectSQLite, "Database type: sqlite, postgres, or mysql")
	fs.String("db-dsn", "", "Database connection string")
	fs.String("db-log-level", "warn", "GORM log level: silent, error, warn, info")
	fs.Int("db-max-open-conns", 0, "Maximum open database connections (0 = driver default)")
	fs.Int("db-max-idle-conns", 0, "Maximum idle database connections (0 = driver default)")
	fs.Duration("db-conn-max-lifetime", 0, "Maximum lifetime of a database connection")
}

// newViper binds fs and the ASSETDNA_* environment: --db-dsn is also read
// from ASSETDNA_DB_DSN. Flags set on the command line win.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	return v, nil
}

func loadServerConfig(v *viper.Viper) (*serverConfig, error) {
	mode, err := actor.ParseMode(v.GetString("actor-mode"))
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", v.GetString("log-level"))
	}

	format := strings.ToLower(v.GetString("log-format"))
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid log format %q (expected text or json)", format)
	}

	return &serverConfig{
		Listen:          v.GetString("listen"),
		InventoryConfig: v.GetString("config"),
		ActorMode:       mode,
		CORSOrigins:     splitOrigins(v.GetStringSlice("cors-origins")),
		LogLevel:        level,
		LogFormat:       format,
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		DB: db.Config{
			Dialect:         v.GetString("db-type"),
			DSN:             v.GetString("db-dsn"),
			LogLevel:        v.GetString("db-log-level"),
			MaxOpenConns:    v.GetInt("db-max-open-conns"),
			MaxIdleConns:    v.GetInt("db-max-idle-conns"),
			ConnMaxLifetime: v.GetDuration("db-conn-max-lifetime"),
		},
	}, nil
}

// splitOrigins accepts both repeated flags and a comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func (c *serverConfig) newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(stdout, opts))
	}
	return slog.New(slog.NewTextHandler(stdout, opts))
}
