package audit

import (
	"os"
	"strconv"
)

// AuditConfig controls audit behavior.
type AuditConfig struct {
	RetentionDays int  // Default 90
	LogFailures   bool // Whether to record mutations that did not succeed
	Enabled       bool // Whether audit middleware is active
}

// DefaultAuditConfig returns the default configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		RetentionDays: 90,
		LogFailures:   true,
		Enabled:       true,
	}
}

// AuditConfigFromEnv loads config from environment variables.
// ASSETDNA_AUDIT_RETENTION_DAYS, ASSETDNA_AUDIT_LOG_FAILURES, ASSETDNA_AUDIT_ENABLED
func AuditConfigFromEnv() *AuditConfig {
	cfg := DefaultAuditConfig()

	if v := os.Getenv("ASSETDNA_AUDIT_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days >= 0 {
			cfg.RetentionDays = days
		}
	}

	if v := os.Getenv("ASSETDNA_AUDIT_LOG_FAILURES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogFailures = b
		}
	}

	if v := os.Getenv("ASSETDNA_AUDIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}

	return cfg
}
