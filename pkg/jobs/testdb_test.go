package jobs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/assetdna/registry/pkg/db"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(db.Config{Dialect: db.DialectSQLite, DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, NewJobStore(gdb).AutoMigrate())
	return gdb
}

func newTestJob(requestedBy string, key string) *ImportJob {
	job := &ImportJob{
		ID:          uuid.NewString(),
		RequestedBy: requestedBy,
		RequestedAt: time.Now(),
		Format:      "json",
		Payload:     `[{"name":"Plant","asset_type":"System"}]`,
		TotalRows:   1,
	}
	if key != "" {
		job.IdempotencyKey = &key
	}
	return job
}
