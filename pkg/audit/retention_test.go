package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdna/registry/pkg/inventory"
)

func TestNewRetentionWorker(t *testing.T) {
	worker := NewRetentionWorker(nil, 30, nil)
	require.NotNil(t, worker)
	assert.Equal(t, 30*24*time.Hour, worker.retention)
	assert.Equal(t, 24*time.Hour, worker.interval)
}

func TestRetentionWorker_DisabledReturns(t *testing.T) {
	worker := NewRetentionWorker(nil, 0, nil)
	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("disabled worker did not return")
	}
}

func TestRetentionWorker_Cleanup(t *testing.T) {
	store := newAuditStore(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	old := &inventory.AuditEvent{EventType: "asset.create", Actor: "a", Outcome: "success", CreatedAt: now.AddDate(0, 0, -40)}
	recent := &inventory.AuditEvent{EventType: "asset.create", Actor: "a", Outcome: "success", CreatedAt: now.AddDate(0, 0, -5)}
	require.NoError(t, store.Append(ctx, old))
	require.NoError(t, store.Append(ctx, recent))

	worker := NewRetentionWorker(store, 30, nil)
	worker.now = func() time.Time { return now }

	assert.EqualValues(t, 1, worker.cleanup(ctx))

	got, err := store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.Get(ctx, recent.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRetentionWorker_RunStopsOnCancel(t *testing.T) {
	store := newAuditStore(t)
	worker := NewRetentionWorker(store, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
