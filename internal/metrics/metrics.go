package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reader_jobs_enqueued_total",
		Help: "Total number of new jobs accepted for processing",
	})

	JobsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reader_jobs_duplicate_total",
		Help: "Total number of enqueue calls resolved as idempotent no-ops",
	})

	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reader_jobs_completed_total",
		Help: "Total number of jobs completed successfully",
	})

	JobsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reader_jobs_failed_total",
		Help: "Total number of jobs that ended in failed status",
	})

	BatchPagesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reader_batch_pages_processed_total",
		Help: "Total number of batch page items that completed successfully",
	})

	BatchPagesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reader_batch_pages_failed_total",
		Help: "Total number of batch page items that failed or timed out",
	})

	BatchPageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reader_batch_page_duration_seconds",
		Help:    "Time taken to generate content for one batch page",
		Buckets: prometheus.DefBuckets,
	})

	BatchPagesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reader_batch_pages_in_flight",
		Help: "Current number of batch page generations in flight",
	})

	WorkerJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reader_worker_job_duration_seconds",
		Help:    "Time taken by the worker to process one job",
		Buckets: prometheus.DefBuckets,
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reader_active_workers",
		Help: "Current number of running worker goroutines",
	})
)
