package handler

import (
	"context"
	"log/slog"

	"github.com/readstack/reader-be/internal/batch"
	"github.com/readstack/reader-be/internal/jobs"
)

// JobStore is the persistence surface the handlers need. The Postgres
// implementation lives in internal/api/storage.
type JobStore interface {
	GetJobByID(ctx context.Context, jobID string) (*jobs.Job, error)
	GetJobByKey(ctx context.Context, jobKey string) (*jobs.Job, error)
	InsertJob(ctx context.Context, job *jobs.Job) (bool, error)
	ResetJobForRetry(ctx context.Context, jobID string) error
}

// WorkerNotifier publishes a best-effort "work available" message after
// a successful enqueue. rabbitmq.Client satisfies this.
type WorkerNotifier interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Store    JobStore
	Notifier WorkerNotifier
	Batch    *batch.Driver
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger   *slog.Logger
	store    JobStore
	notifier WorkerNotifier
	batch    *batch.Driver
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		store:    deps.Store,
		notifier: deps.Notifier,
		batch:    deps.Batch,
	}
}
