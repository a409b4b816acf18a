package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/readstack/reader-be/internal/jobs"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				return
			}

			err := w.handleMessage(ctx, msg)
			if msg.HasDelivery {
				w.settleDelivery(workerName, msg, err)
			}
		}
	}
}

// handleMessage claims the job if needed and processes it
func (w *Worker) handleMessage(ctx context.Context, msg *jobMessage) error {
	job := msg.Claimed
	if job == nil {
		var err error
		job, err = w.storage.ClaimJobByID(ctx, msg.JobID)
		if err != nil {
			if errors.Is(err, jobs.ErrJobAlreadyClaimed) {
				// Another instance (or the poller) got there first.
				w.logger.Debug("Job already claimed, skipping",
					slog.String("job_id", msg.JobID),
				)
				return nil
			}
			return fmt.Errorf("failed to claim job: %w", err)
		}
	}

	return w.processJob(ctx, job)
}

// settleDelivery acks or nacks the RabbitMQ message after processing.
// Failed jobs are not requeued at the broker: the row already records
// the failure, and a repeat enqueue with the same key is the retry path.
func (w *Worker) settleDelivery(workerName string, msg *jobMessage, procErr error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
		)
		return
	}

	if procErr != nil {
		if nackErr := channel.Nack(msg.DeliveryTag, false, false); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.Any("error", nackErr),
			)
		}
		return
	}

	if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
			slog.Any("error", ackErr),
		)
	}
}

// pollQueuedJobs is the fallback path for jobs whose notification was
// lost: it claims queued rows directly, most urgent priority first.
func (w *Worker) pollQueuedJobs(ctx context.Context) {
	interval := w.pollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain everything that is ready before sleeping again.
			for {
				job, err := w.storage.ClaimNextQueued(ctx)
				if err != nil {
					w.logger.Error("Failed to poll for queued jobs",
						slog.Any("error", err),
					)
					break
				}
				if job == nil {
					break
				}

				select {
				case w.jobsChan <- &jobMessage{JobID: job.JobID, Claimed: job}:
				case <-w.stopChan:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
