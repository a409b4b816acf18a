package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/readstack/reader-be/internal/jobs"
	"github.com/readstack/reader-be/shared/postgresql"
)

const pqUniqueViolation = "23505"

const jobColumns = `
	job_id, job_type, job_key, payload, priority, status,
	attempts, error, created_at, started_at, completed_at, updated_at
`

// Storage handles job table access for the API service
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// GetJobByID retrieves a job by its id
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*jobs.Job, error) {
	return s.getJob(ctx, "job_id", jobID)
}

// GetJobByKey retrieves a job by its idempotency key
func (s *Storage) GetJobByKey(ctx context.Context, jobKey string) (*jobs.Job, error) {
	return s.getJob(ctx, "job_key", jobKey)
}

func (s *Storage) getJob(ctx context.Context, column, value string) (*jobs.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s = $1`, jobColumns, column)

	var job jobs.Job
	err := s.db.GetContext(ctx, &job, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// InsertJob inserts a new queued job. The jobs.job_key unique constraint
// decides races between concurrent enqueues: the loser gets no row back
// and must fall back to reading the winner's row. Returning false with a
// nil error means exactly that - the key already exists.
func (s *Storage) InsertJob(ctx context.Context, job *jobs.Job) (bool, error) {
	query := `
		INSERT INTO jobs (
			job_id, job_type, job_key, payload, priority, status,
			attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, 0, NOW(), NOW()
		)
		ON CONFLICT (job_key) DO NOTHING
		RETURNING job_id
	`

	var insertedID string
	err := s.db.QueryRowContext(ctx, query,
		job.JobID,
		job.JobType,
		job.JobKey,
		job.Payload,
		job.Priority,
		job.Status,
	).Scan(&insertedID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the insert race; the existing row wins.
			return false, nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert job: %w", err)
	}

	s.logger.Info("Job inserted",
		slog.String("job_id", insertedID),
		slog.String("job_key", job.JobKey),
		slog.String("job_type", job.JobType),
	)

	return true, nil
}

// ResetJobForRetry transitions a failed job back to queued, clearing
// attempts, error and run timestamps. Only failed rows are eligible.
func (s *Storage) ResetJobForRetry(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    attempts = 0,
		    error = NULL,
		    started_at = NULL,
		    completed_at = NULL,
		    updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, jobs.StatusQueued, jobID, jobs.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to reset job for retry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// The job changed state under us; treat as not resettable.
		return jobs.ErrJobNotFound
	}

	s.logger.Info("Job reset for retry",
		slog.String("job_id", jobID),
	)

	return nil
}
