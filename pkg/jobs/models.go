package jobs

import (
	"time"

	"github.com/assetdna/registry/pkg/inventory"
)

// JobState represents the lifecycle state of an import job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// ImportJob is a queued bulk import of asset rows. A job that ran to the end
// is succeeded even when individual rows failed; those are listed in RowErrors.
type ImportJob struct {
	ID             string               `gorm:"primaryKey;column:id;type:varchar(36)"`
	RequestedBy    string               `gorm:"column:requested_by;index:idx_import_job_requester;not null"`
	RequestedAt    time.Time            `gorm:"column:requested_at;index;not null"`
	State          JobState             `gorm:"column:state;type:varchar(20);index:idx_import_job_state;not null;default:queued"`
	Format         string               `gorm:"column:format;type:varchar(10);not null"`
	Payload        string               `gorm:"column:payload;type:text;not null"`
	Message        string               `gorm:"column:message"`
	StartedAt      *time.Time           `gorm:"column:started_at"`
	FinishedAt     *time.Time           `gorm:"column:finished_at"`
	AttemptCount   int                  `gorm:"column:attempt_count;default:0"`
	LastError      string               `gorm:"column:last_error"`
	IdempotencyKey *string              `gorm:"column:idempotency_key;uniqueIndex:idx_import_job_idemp_key"`
	TotalRows      int                  `gorm:"column:total_rows"`
	ImportedRows   int                  `gorm:"column:imported_rows"`
	FailedRows     int                  `gorm:"column:failed_rows"`
	RowErrors      []inventory.RowError `gorm:"column:row_errors;type:text;serializer:json"`
	DurationMs     int64                `gorm:"column:duration_ms"`
}

// TableName returns the GORM table name.
func (ImportJob) TableName() string { return "import_jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *ImportJob) IsTerminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

var (
	activeStates   = []JobState{JobStateQueued, JobStateRunning}
	terminalStates = []JobState{JobStateSucceeded, JobStateFailed, JobStateCanceled}
)
