package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/readstack/reader-be/internal/async"
	"github.com/readstack/reader-be/internal/jobs"
	"github.com/readstack/reader-be/internal/metrics"
)

// processJob runs one claimed job to a terminal status. The row is
// already in processing; whatever happens here ends in completed or
// failed so a later enqueue with the same key can act on the outcome.
func (w *Worker) processJob(ctx context.Context, job *jobs.Job) error {
	w.logger.Info("Processing job",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.String("job_key", job.JobKey),
		slog.Int("attempts", job.Attempts),
	)

	timer := prometheus.NewTimer(metrics.WorkerJobDuration)
	defer timer.ObserveDuration()

	result, err := async.WithTimeout(ctx, w.jobTimeout, func(opCtx context.Context) (string, error) {
		return w.executeJob(opCtx, job)
	})
	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, async.ErrTimeout) {
			errMsg = "Timeout"
		}

		w.logger.Error("Job failed",
			slog.String("job_id", job.JobID),
			slog.String("job_type", job.JobType),
			slog.String("error", err.Error()),
		)

		if markErr := w.storage.MarkFailed(ctx, job.JobID, errMsg); markErr != nil {
			w.logger.Error("Failed to mark job as failed",
				slog.String("job_id", job.JobID),
				slog.Any("error", markErr),
			)
		}
		metrics.JobsFailedTotal.Inc()
		return err
	}

	if markErr := w.storage.MarkCompleted(ctx, job.JobID); markErr != nil {
		w.logger.Error("Failed to mark job as completed",
			slog.String("job_id", job.JobID),
			slog.Any("error", markErr),
		)
		return markErr
	}

	metrics.JobsCompletedTotal.Inc()
	w.logger.Info("Job completed",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.Int("result_size", len(result)),
	)
	return nil
}
