package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/assetdna/registry/pkg/inventory"
)

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotCancelable is returned when canceling a job that already started.
	ErrNotCancelable = errors.New("job cannot be canceled")
)

// JobStore provides database operations for import jobs.
type JobStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db, now: time.Now}
}

// AutoMigrate creates or updates the import_jobs table.
func (s *JobStore) AutoMigrate() error {
	return s.db.AutoMigrate(&ImportJob{})
}

// JobListFilter defines filters for listing jobs.
type JobListFilter struct {
	State       string
	RequestedBy string
}

// Enqueue creates a new queued job. If the job carries an idempotency key and
// an active job with the same key exists, the existing job is returned
// instead and created is false.
func (s *JobStore) Enqueue(ctx context.Context, job *ImportJob) (result *ImportJob, created bool, err error) {
	if job.State == "" {
		job.State = JobStateQueued
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = s.now()
	}

	db := s.db.WithContext(ctx)
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := db.Create(job).Error; err != nil {
			return nil, false, fmt.Errorf("enqueue job: %w", err)
		}
		return job, true, nil
	}

	key := *job.IdempotencyKey
	err = db.Transaction(func(tx *gorm.DB) error {
		var existing ImportJob
		err := tx.Where("idempotency_key = ? AND state IN ?", key, activeStates).First(&existing).Error
		if err == nil {
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check idempotency key: %w", err)
		}

		// Release the key held by finished jobs so the unique index admits the new one.
		if err := tx.Model(&ImportJob{}).
			Where("idempotency_key = ? AND state IN ?", key, terminalStates).
			Update("idempotency_key", nil).Error; err != nil {
			return fmt.Errorf("release idempotency key: %w", err)
		}

		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("enqueue job: %w", err)
		}
		result, created = job, true
		return nil
	})
	if err == nil {
		return result, created, nil
	}

	// Another replica may have enqueued the same key between the check and the insert.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var existing ImportJob
		if lookupErr := db.Where("idempotency_key = ? AND state IN ?", key, activeStates).First(&existing).Error; lookupErr == nil {
			return &existing, false, nil
		}
	}
	return nil, false, err
}

// Claim atomically picks the oldest queued job and transitions it to running.
// Row locks with SKIP LOCKED are used where the dialect supports them.
// Returns nil if no jobs are available.
func (s *JobStore) Claim(ctx context.Context, maxRetries int) (*ImportJob, error) {
	var claimed *ImportJob

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("state = ? AND attempt_count <= ?", JobStateQueued, maxRetries).
			Order("requested_at ASC").Limit(1)
		switch tx.Dialector.Name() {
		case "postgres", "mysql":
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var jobs []ImportJob
		if err := q.Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		job := jobs[0]

		now := s.now()
		res := tx.Model(&ImportJob{}).Where("id = ? AND state = ?", job.ID, JobStateQueued).
			Updates(map[string]any{
				"state":         JobStateRunning,
				"started_at":    now,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.State = JobStateRunning
		job.StartedAt = &now
		job.AttemptCount++
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return claimed, nil
}

// Complete marks a job as succeeded and records the import result.
func (s *JobStore) Complete(ctx context.Context, jobID string, result inventory.ImportResult, duration time.Duration) error {
	job := ImportJob{
		State:        JobStateSucceeded,
		TotalRows:    result.Total,
		ImportedRows: result.Imported,
		FailedRows:   result.Failed,
		RowErrors:    result.Errors,
		DurationMs:   duration.Milliseconds(),
		Message:      fmt.Sprintf("Imported %d of %d rows, %d failed", result.Imported, result.Total, result.Failed),
	}
	now := s.now()
	job.FinishedAt = &now

	res := s.db.WithContext(ctx).Model(&ImportJob{}).Where("id = ?", jobID).
		Select("state", "total_rows", "imported_rows", "failed_rows", "row_errors", "duration_ms", "message", "finished_at").
		Updates(&job)
	if res.Error != nil {
		return fmt.Errorf("complete job: %w", res.Error)
	}
	return nil
}

// Fail records a failed attempt. While the attempt count is below maxRetries
// the job is re-queued; otherwise it becomes failed.
func (s *JobStore) Fail(ctx context.Context, jobID string, errMsg string, maxRetries int) error {
	db := s.db.WithContext(ctx)

	var job ImportJob
	if err := db.Select("id", "attempt_count").First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("load job for fail: %w", err)
	}

	updates := map[string]any{"last_error": errMsg}
	if job.AttemptCount < maxRetries {
		updates["state"] = JobStateQueued
		updates["started_at"] = nil
	} else {
		updates["state"] = JobStateFailed
		updates["finished_at"] = s.now()
		updates["message"] = "Import failed: " + errMsg
	}

	if err := db.Model(&ImportJob{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// Cancel marks a queued job as canceled. Running jobs are not interrupted.
func (s *JobStore) Cancel(ctx context.Context, jobID string) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&ImportJob{}).
		Where("id = ? AND state = ?", jobID, JobStateQueued).
		Updates(map[string]any{
			"state":       JobStateCanceled,
			"finished_at": s.now(),
			"message":     "Canceled by user",
		})
	if res.Error != nil {
		return fmt.Errorf("cancel job: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return fmt.Errorf("%w: job %s is %s, only queued jobs can be canceled", ErrNotCancelable, jobID, job.State)
}

// Get retrieves a job by ID. Returns nil, nil if it does not exist.
func (s *JobStore) Get(ctx context.Context, jobID string) (*ImportJob, error) {
	var job ImportJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns paginated jobs matching the given filter, newest first.
// Payloads are not loaded.
func (s *JobStore) List(ctx context.Context, filter JobListFilter, pageSize int, pageToken string) ([]ImportJob, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	scoped := func(q *gorm.DB) *gorm.DB {
		if filter.State != "" {
			q = q.Where("state = ?", filter.State)
		}
		if filter.RequestedBy != "" {
			q = q.Where("requested_by = ?", filter.RequestedBy)
		}
		return q
	}

	db := s.db.WithContext(ctx)
	var totalSize int64
	if err := db.Model(&ImportJob{}).Scopes(scoped).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count jobs: %w", err)
	}

	query := db.Scopes(scoped).Omit("payload").Order("requested_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("requested_at < ?", t)
	}

	var records []ImportJob
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list jobs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].RequestedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}
	return records, nextToken, int(totalSize), nil
}

// CleanupStuckJobs transitions running jobs that have been stuck
// (started_at older than claimTimeout) back to queued for retry.
func (s *JobStore) CleanupStuckJobs(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	cutoff := s.now().Add(-claimTimeout)
	res := s.db.WithContext(ctx).Model(&ImportJob{}).
		Where("state = ? AND started_at < ?", JobStateRunning, cutoff).
		Updates(map[string]any{
			"state":      JobStateQueued,
			"started_at": nil,
			"last_error": "Timed out (stuck job recovery)",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup stuck jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteOlderThan removes terminal jobs finished before the cutoff.
func (s *JobStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("state IN ? AND finished_at < ?", terminalStates, cutoff).
		Delete(&ImportJob{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
