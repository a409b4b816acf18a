package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/readstack/reader-be/internal/jobs"
	"github.com/readstack/reader-be/shared/postgresql"
)

const jobColumns = `
	job_id, job_type, job_key, payload, priority, status,
	attempts, error, created_at, started_at, completed_at, updated_at
`

// Storage handles job table access for the worker service
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

// ClaimJobByID transitions a queued job to processing. The status guard
// in the WHERE clause makes the claim atomic: when two workers race on
// the same notification, exactly one UPDATE matches.
func (s *Storage) ClaimJobByID(ctx context.Context, jobID string) (*jobs.Job, error) {
	query := fmt.Sprintf(`
		UPDATE jobs
		SET status = $1,
		    started_at = NOW(),
		    attempts = attempts + 1,
		    updated_at = NOW()
		WHERE job_id = $2 AND status = $3
		RETURNING %s
	`, jobColumns)

	var job jobs.Job
	err := s.db.GetContext(ctx, &job, query, jobs.StatusProcessing, jobID, jobs.StatusQueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return &job, nil
}

// ClaimNextQueued claims the most urgent queued job: lowest priority
// ordinal first, then oldest. SKIP LOCKED keeps concurrent pollers from
// serializing on the same row. Returns (nil, nil) when nothing is queued.
func (s *Storage) ClaimNextQueued(ctx context.Context) (*jobs.Job, error) {
	query := fmt.Sprintf(`
		UPDATE jobs
		SET status = $1,
		    started_at = NOW(),
		    attempts = attempts + 1,
		    updated_at = NOW()
		WHERE job_id = (
			SELECT job_id FROM jobs
			WHERE status = $2
			ORDER BY priority ASC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, jobColumns)

	var job jobs.Job
	err := s.db.GetContext(ctx, &job, query, jobs.StatusProcessing, jobs.StatusQueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim next queued job: %w", err)
	}

	s.logger.Debug("Claimed queued job from poller",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
	)

	return &job, nil
}

// MarkCompleted records a successful run
func (s *Storage) MarkCompleted(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, jobs.StatusCompleted, jobID); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	return nil
}

// MarkFailed records a failed run with its error message
func (s *Storage) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, jobs.StatusFailed, errMsg, jobID); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return nil
}
