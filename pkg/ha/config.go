// Package ha lets several registry replicas share one database: schema
// migrations and type seeding run under a cross-process lock.
package ha

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// HAConfig holds configuration for the migration lock.
type HAConfig struct {
	// MigrationLockEnabled controls whether migrations are serialized across replicas.
	MigrationLockEnabled bool

	// LockName identifies the lock; replicas sharing a database must agree on it.
	LockName string

	// Identity is recorded as the holder of a table-based lock.
	Identity string

	// AcquireTimeout bounds how long a replica waits for the lock.
	AcquireTimeout time.Duration

	// StaleAfter is the age after which a table-based lock left by a crashed
	// replica is broken.
	StaleAfter time.Duration

	// RetryInterval is the polling period for the table-based lock.
	RetryInterval time.Duration
}

// DefaultHAConfig returns an HAConfig with sensible defaults.
func DefaultHAConfig() *HAConfig {
	return &HAConfig{
		MigrationLockEnabled: true,
		LockName:             "assetdna-migration",
		Identity:             defaultIdentity(),
		AcquireTimeout:       30 * time.Second,
		StaleAfter:           5 * time.Minute,
		RetryInterval:        time.Second,
	}
}

// HAConfigFromEnv reads HA configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - ASSETDNA_MIGRATION_LOCK_ENABLED: "true" or "false" (default: "true")
//   - ASSETDNA_MIGRATION_LOCK_NAME: lock name (default: "assetdna-migration")
//   - ASSETDNA_MIGRATION_LOCK_TIMEOUT: seconds (default: 30)
//   - HOSTNAME: holder identity
func HAConfigFromEnv() *HAConfig {
	cfg := DefaultHAConfig()

	if v := os.Getenv("ASSETDNA_MIGRATION_LOCK_ENABLED"); v != "" {
		cfg.MigrationLockEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("ASSETDNA_MIGRATION_LOCK_NAME"); v != "" {
		cfg.LockName = v
	}
	if v := os.Getenv("ASSETDNA_MIGRATION_LOCK_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.AcquireTimeout = time.Duration(secs) * time.Second
		}
	}
	return cfg
}

func defaultIdentity() string {
	if v := os.Getenv("HOSTNAME"); v != "" {
		return v
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "unknown"
	}
	return hostname
}
