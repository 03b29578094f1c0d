package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/assetdna/registry/pkg/inventory"
)

// RetentionWorker periodically cleans up old audit events.
type RetentionWorker struct {
	store     *inventory.AuditStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewRetentionWorker creates a new RetentionWorker.
// retentionDays controls how many days of events to keep.
// The worker runs daily by default.
func NewRetentionWorker(store *inventory.AuditStore, retentionDays int, logger *slog.Logger) *RetentionWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// Run starts the retention worker. It performs one pass immediately and then
// one per interval until the context is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) error {
	if w.store == nil || w.retention <= 0 {
		w.logger.Info("audit retention worker disabled",
			"hasStore", w.store != nil,
			"retentionDays", int(w.retention.Hours()/24))
		return nil
	}

	w.logger.Info("audit retention worker started",
		"retentionDays", int(w.retention.Hours()/24),
		"interval", w.interval.String())

	w.cleanup(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("audit retention worker stopped")
			return nil
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

// cleanup performs a single retention pass and returns the number of deleted events.
func (w *RetentionWorker) cleanup(ctx context.Context) int64 {
	cutoff := w.now().Add(-w.retention)
	deleted, err := w.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("audit retention cleanup failed", "error", err)
		return 0
	}
	if deleted > 0 {
		w.logger.Info("audit retention cleanup completed",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted
}
