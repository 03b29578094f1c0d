package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAuditConfig(t *testing.T) {
	cfg := DefaultAuditConfig()
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.True(t, cfg.LogFailures)
	assert.True(t, cfg.Enabled)
}

func TestAuditConfigFromEnv(t *testing.T) {
	tests := []struct {
		name            string
		envs            map[string]string
		wantRetention   int
		wantLogFailures bool
		wantEnabled     bool
	}{
		{
			name:            "defaults",
			envs:            map[string]string{},
			wantRetention:   90,
			wantLogFailures: true,
			wantEnabled:     true,
		},
		{
			name: "custom values",
			envs: map[string]string{
				"ASSETDNA_AUDIT_RETENTION_DAYS": "30",
				"ASSETDNA_AUDIT_LOG_FAILURES":   "false",
				"ASSETDNA_AUDIT_ENABLED":        "false",
			},
			wantRetention:   30,
			wantLogFailures: false,
			wantEnabled:     false,
		},
		{
			name: "zero retention disables cleanup",
			envs: map[string]string{
				"ASSETDNA_AUDIT_RETENTION_DAYS": "0",
			},
			wantRetention:   0,
			wantLogFailures: true,
			wantEnabled:     true,
		},
		{
			name: "invalid values keep defaults",
			envs: map[string]string{
				"ASSETDNA_AUDIT_RETENTION_DAYS": "soon",
				"ASSETDNA_AUDIT_ENABLED":        "maybe",
			},
			wantRetention:   90,
			wantLogFailures: true,
			wantEnabled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"ASSETDNA_AUDIT_RETENTION_DAYS", "ASSETDNA_AUDIT_LOG_FAILURES", "ASSETDNA_AUDIT_ENABLED"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.envs {
				t.Setenv(k, v)
			}

			cfg := AuditConfigFromEnv()
			assert.Equal(t, tt.wantRetention, cfg.RetentionDays)
			assert.Equal(t, tt.wantLogFailures, cfg.LogFailures)
			assert.Equal(t, tt.wantEnabled, cfg.Enabled)
		})
	}
}
