package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/readstack/reader-be/internal/batch"
	"github.com/readstack/reader-be/internal/jobs"
	"github.com/readstack/reader-be/internal/metrics"
	"github.com/readstack/reader-be/shared/rabbitmq"
)

// JobStorage is the persistence surface the worker needs. The Postgres
// implementation lives in internal/worker/storage.
type JobStorage interface {
	// ClaimJobByID transitions a queued job to processing, stamping
	// started_at and incrementing attempts. Returns
	// jobs.ErrJobAlreadyClaimed when the row is not queued.
	ClaimJobByID(ctx context.Context, jobID string) (*jobs.Job, error)

	// ClaimNextQueued claims the most urgent queued job (priority
	// order, then age). Returns (nil, nil) when nothing is queued.
	ClaimNextQueued(ctx context.Context) (*jobs.Job, error)

	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

// FileFetcher downloads a source file (textbook PDF)
type FileFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TextExtractor pulls the text of one page out of a source file
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, page int) (string, error)
}

// PageGenerator produces AI study content for one page
type PageGenerator interface {
	GeneratePage(ctx context.Context, ref batch.PageRef) (string, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Storage       JobStorage
	RabbitClient  *rabbitmq.Client
	Fetcher       FileFetcher
	Extractor     TextExtractor
	Generator     PageGenerator
	Concurrency   int
	JobTimeout    time.Duration
	PollInterval  time.Duration
	PrefetchCount int
}

// Worker consumes job notifications from RabbitMQ and, as a fallback,
// polls the database for queued jobs the notification path missed.
type Worker struct {
	logger        *slog.Logger
	storage       JobStorage
	rabbitClient  *rabbitmq.Client
	fetcher       FileFetcher
	extractor     TextExtractor
	generator     PageGenerator
	concurrency   int
	jobTimeout    time.Duration
	pollInterval  time.Duration
	prefetchCount int
	workerID      string
	jobsChan      chan *jobMessage
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// jobMessage is one unit of work handed to the pool. Either a job id
// from RabbitMQ (still to be claimed) or a row the poller has already
// claimed.
type jobMessage struct {
	JobID       string
	DeliveryTag uint64
	HasDelivery bool
	Claimed     *jobs.Job
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		logger:        cfg.Logger,
		storage:       cfg.Storage,
		rabbitClient:  cfg.RabbitClient,
		fetcher:       cfg.Fetcher,
		extractor:     cfg.Extractor,
		generator:     cfg.Generator,
		concurrency:   concurrency,
		jobTimeout:    cfg.JobTimeout,
		pollInterval:  cfg.PollInterval,
		prefetchCount: cfg.PrefetchCount,
		workerID:      "worker-" + uuid.New().String()[:8],
		jobsChan:      make(chan *jobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins processing jobs until the context is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Duration("poll_interval", w.pollInterval),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	metrics.ActiveWorkers.Set(float64(w.concurrency))
	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.dispatchDeliveries(ctx, deliveries)
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollQueuedJobs(ctx)
	}()

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	metrics.ActiveWorkers.Set(0)
	w.logger.Info("Worker stopped")
}
