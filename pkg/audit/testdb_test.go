package audit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assetdna/registry/pkg/db"
	"github.com/assetdna/registry/pkg/inventory"
)

func newAuditStore(t *testing.T) *inventory.AuditStore {
	t.Helper()
	gdb, err := db.Open(db.Config{Dialect: db.DialectSQLite, DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, gdb.AutoMigrate(inventory.AllModels()...))
	return inventory.NewAuditStore(gdb)
}
