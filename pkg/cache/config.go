package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig holds configuration for the read cache.
type CacheConfig struct {
	// Enabled controls whether caching is active. When false, reads pass
	// through uncached.
	Enabled bool

	// TTL bounds how long a cached response is served.
	TTL time.Duration

	// MaxSize is the maximum number of cached responses.
	MaxSize int
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled: true,
		TTL:     30 * time.Second,
		MaxSize: 500,
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - ASSETDNA_CACHE_ENABLED: "true" or "false" (default: "true")
//   - ASSETDNA_CACHE_TTL: duration in seconds (default: 30)
//   - ASSETDNA_CACHE_MAX_SIZE: max entries (default: 500)
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()

	if v := os.Getenv("ASSETDNA_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("ASSETDNA_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.TTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("ASSETDNA_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}
	return cfg
}
