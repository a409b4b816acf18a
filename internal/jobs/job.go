package jobs

import (
	"fmt"
	"time"
)

// Job status values. Transitions are queued -> processing -> {completed, failed},
// plus the explicit failed -> queued reset performed by a repeat enqueue.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job type constants for the textbook pipeline
const (
	TypeExtractPage        = "extract_page"
	TypeGenerateContent    = "generate_content"
	TypeExtractAndGenerate = "extract_and_generate"
)

// Priority ordinals. Lower value means more urgent.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// Enqueue result statuses returned to the caller
const (
	EnqueueStatusQueued            = "queued"
	EnqueueStatusRetrying          = "retrying"
	EnqueueStatusAlreadyQueued     = "already_queued"
	EnqueueStatusAlreadyProcessing = "already_processing"
	EnqueueStatusAlreadyCompleted  = "already_completed"
)

// Job represents a unit of deferred work persisted in the jobs table.
// JobKey is the caller-supplied idempotency key; the database enforces
// its uniqueness so concurrent submissions cannot create two rows.
type Job struct {
	JobID       string     `db:"job_id"`
	JobType     string     `db:"job_type"`
	JobKey      string     `db:"job_key"`
	Payload     string     `db:"payload"` // opaque JSON
	Priority    int        `db:"priority"`
	Status      string     `db:"status"`
	Attempts    int        `db:"attempts"`
	Error       *string    `db:"error"`
	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// String returns a short representation for logs
func (j *Job) String() string {
	return fmt.Sprintf("Job{ID: %s, Key: %s, Type: %s, Status: %s}", j.JobID, j.JobKey, j.JobType, j.Status)
}

// IsTerminal reports whether the job has reached a final status
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// DurationMs returns completed_at - created_at in milliseconds, or nil
// when the job has not completed yet.
func (j *Job) DurationMs() *int64 {
	if j.CompletedAt == nil || j.CreatedAt.IsZero() {
		return nil
	}
	ms := j.CompletedAt.Sub(j.CreatedAt).Milliseconds()
	return &ms
}

// ValidPriority reports whether p is one of the known priority ordinals
func ValidPriority(p int) bool {
	return p >= PriorityHigh && p <= PriorityLow
}

// ValidType reports whether t is a known job type
func ValidType(t string) bool {
	switch t {
	case TypeExtractPage, TypeGenerateContent, TypeExtractAndGenerate:
		return true
	}
	return false
}
