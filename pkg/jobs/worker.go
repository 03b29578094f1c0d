package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/assetdna/registry/pkg/inventory"
)

// RowImporter creates assets from parsed import rows. *inventory.Importer satisfies it.
type RowImporter interface {
	ImportRows(ctx context.Context, rows []inventory.ImportRow, actor string) inventory.ImportResult
}

// WorkerPool processes queued import jobs using a pool of goroutines.
type WorkerPool struct {
	store    *JobStore
	importer RowImporter
	cfg      *JobConfig
	logger   *slog.Logger
	wg       sync.WaitGroup

	onComplete func(*ImportJob)
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(store *JobStore, importer RowImporter, cfg *JobConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultJobConfig()
	}
	return &WorkerPool{
		store:    store,
		importer: importer,
		cfg:      cfg,
		logger:   logger,
	}
}

// OnJobComplete registers a callback run after a job finished and imported
// at least one row. Must be called before Run.
func (wp *WorkerPool) OnJobComplete(fn func(*ImportJob)) {
	wp.onComplete = fn
}

// Run starts cfg.Concurrency workers plus the stuck-job cleanup loop. It
// blocks until the context is cancelled, then waits for all workers to finish.
func (wp *WorkerPool) Run(ctx context.Context) error {
	if wp.store == nil || wp.importer == nil || !wp.cfg.Enabled {
		wp.logger.Info("import worker pool disabled")
		return nil
	}

	wp.logger.Info("import worker pool starting",
		"concurrency", wp.cfg.Concurrency,
		"maxRetries", wp.cfg.MaxRetries,
		"pollInterval", wp.cfg.PollInterval.String())

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		wp.cleanupLoop(ctx)
	}()

	for i := 0; i < wp.cfg.Concurrency; i++ {
		wp.wg.Add(1)
		go func(workerID int) {
			defer wp.wg.Done()
			wp.workerLoop(ctx, workerID)
		}(i)
	}

	<-ctx.Done()
	wp.logger.Info("import worker pool shutting down, waiting for workers to finish")
	wp.wg.Wait()
	wp.logger.Info("import worker pool stopped")
	return nil
}

func (wp *WorkerPool) workerLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil && wp.processOne(ctx, workerID) {
			}
		}
	}
}

// processOne claims and runs a single job. It reports whether a job was claimed.
func (wp *WorkerPool) processOne(ctx context.Context, workerID int) bool {
	job, err := wp.store.Claim(ctx, wp.cfg.MaxRetries)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			wp.logger.Error("failed to claim job", "workerID", workerID, "error", err)
		}
		return false
	}
	if job == nil {
		return false
	}

	logger := wp.logger.With("workerID", workerID, "jobID", job.ID, "attempt", job.AttemptCount)
	logger.Info("processing import job", "format", job.Format, "requestedBy", job.RequestedBy)

	format, err := inventory.ParseTransferFormat(job.Format)
	var rows []inventory.ImportRow
	if err == nil {
		rows, err = inventory.ParseImportRows(format, []byte(job.Payload))
	}
	if err != nil {
		// A document that does not parse will not parse on retry either.
		wp.fail(ctx, logger, job.ID, err.Error(), 0)
		return true
	}

	start := time.Now()
	result := wp.importer.ImportRows(ctx, rows, job.RequestedBy)
	duration := time.Since(start)

	if ctx.Err() != nil {
		// Rows already created stay; re-running would report them as duplicates.
		wp.fail(ctx, logger, job.ID, "interrupted by shutdown after "+duration.String(), 0)
		return true
	}

	logger.Info("import job completed",
		"total", result.Total,
		"imported", result.Imported,
		"failed", result.Failed,
		"duration", duration.String())

	if err := wp.store.Complete(ctx, job.ID, result, duration); err != nil {
		logger.Error("failed to mark job as complete", "error", err)
	}
	if wp.onComplete != nil && result.Imported > 0 {
		wp.onComplete(job)
	}
	return true
}

func (wp *WorkerPool) fail(ctx context.Context, logger *slog.Logger, jobID, msg string, maxRetries int) {
	logger.Error("import job failed", "error", msg)
	if err := wp.store.Fail(context.WithoutCancel(ctx), jobID, msg, maxRetries); err != nil {
		logger.Error("failed to mark job as failed", "error", err)
	}
}

// cleanupLoop periodically recovers stuck jobs and deletes old finished jobs.
func (wp *WorkerPool) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wp.cleanup(ctx)
		}
	}
}

func (wp *WorkerPool) cleanup(ctx context.Context) {
	if wp.cfg.ClaimTimeout > 0 {
		recovered, err := wp.store.CleanupStuckJobs(ctx, wp.cfg.ClaimTimeout)
		if err != nil {
			wp.logger.Error("failed to cleanup stuck jobs", "error", err)
		} else if recovered > 0 {
			wp.logger.Info("recovered stuck jobs", "count", recovered)
		}
	}

	if wp.cfg.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -wp.cfg.RetentionDays)
		deleted, err := wp.store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			wp.logger.Error("failed to delete old jobs", "error", err)
		} else if deleted > 0 {
			wp.logger.Info("deleted old jobs", "count", deleted)
		}
	}
}
