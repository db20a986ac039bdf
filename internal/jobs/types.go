package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeCategorize assigns a spending category to one ledger entry.
	JobTypeCategorize JobType = "categorize_transaction"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
	// JobStatusCancelled marks jobs dropped at session teardown.
	JobStatusCancelled JobStatus = "cancelled"
)

// CategorizeJob asks for the ledger entry TransactionID to be categorized.
type CategorizeJob struct {
	JobID string `json:"job_id"`

	// TransactionID keys the job to exactly one ledger entry.
	TransactionID string `json:"transaction_id"`

	// Generation is the ledger generation observed at scheduling time.
	Generation uint64 `json:"generation"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Result is the category written, empty when the job was a no-op.
	Result string `json:"result,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *CategorizeJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *CategorizeJob) GetType() JobType {
	return JobTypeCategorize
}

// GetStatus implements the Job interface.
func (j *CategorizeJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishCategorize(ctx context.Context, job *CategorizeJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	// Start begins consuming jobs; it returns once the workers are running.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error triggers a retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *CategorizeJob) error
	GetJob(ctx context.Context, jobID string) (*CategorizeJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*CategorizeJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	TransactionID string
	Status        JobStatus
	// Generation, when set, keeps only jobs scheduled against that ledger
	// generation.
	Generation *uint64
	Limit      int
	Offset     int
}
