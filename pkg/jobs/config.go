package jobs

import (
	"os"
	"strconv"
	"time"
)

// JobConfig controls the import queue and worker behavior.
type JobConfig struct {
	Concurrency     int           // Max concurrent workers. Default 2.
	MaxRetries      int           // Max attempts per job after a transient failure. Default 3.
	PollInterval    time.Duration // How often workers poll for new jobs. Default 2s.
	ClaimTimeout    time.Duration // Max time a job can be "running" before considered stuck. Default 30m.
	RetentionDays   int           // How long to keep finished jobs. Default 7.
	MaxPayloadBytes int64         // Largest accepted import document. Default 10 MiB.
	Enabled         bool          // Whether the worker pool runs. Default true.
}

// DefaultJobConfig returns the default job configuration.
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		Concurrency:     2,
		MaxRetries:      3,
		PollInterval:    2 * time.Second,
		ClaimTimeout:    30 * time.Minute,
		RetentionDays:   7,
		MaxPayloadBytes: 10 << 20,
		Enabled:         true,
	}
}

// JobConfigFromEnv loads config from environment variables.
// ASSETDNA_IMPORT_CONCURRENCY, ASSETDNA_IMPORT_MAX_RETRIES, ASSETDNA_IMPORT_POLL_INTERVAL_SECONDS,
// ASSETDNA_IMPORT_CLAIM_TIMEOUT_MINUTES, ASSETDNA_IMPORT_RETENTION_DAYS,
// ASSETDNA_IMPORT_MAX_PAYLOAD_BYTES, ASSETDNA_IMPORT_ENABLED
func JobConfigFromEnv() *JobConfig {
	cfg := DefaultJobConfig()

	if n, ok := envInt("ASSETDNA_IMPORT_CONCURRENCY"); ok && n > 0 {
		cfg.Concurrency = n
	}
	if n, ok := envInt("ASSETDNA_IMPORT_MAX_RETRIES"); ok && n >= 0 {
		cfg.MaxRetries = n
	}
	if n, ok := envInt("ASSETDNA_IMPORT_POLL_INTERVAL_SECONDS"); ok && n > 0 {
		cfg.PollInterval = time.Duration(n) * time.Second
	}
	if n, ok := envInt("ASSETDNA_IMPORT_CLAIM_TIMEOUT_MINUTES"); ok && n > 0 {
		cfg.ClaimTimeout = time.Duration(n) * time.Minute
	}
	if n, ok := envInt("ASSETDNA_IMPORT_RETENTION_DAYS"); ok && n > 0 {
		cfg.RetentionDays = n
	}
	if n, ok := envInt("ASSETDNA_IMPORT_MAX_PAYLOAD_BYTES"); ok && n > 0 {
		cfg.MaxPayloadBytes = int64(n)
	}
	if v := os.Getenv("ASSETDNA_IMPORT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}

	return cfg
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
