package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/readstack/reader-be/internal/async"
	"github.com/readstack/reader-be/internal/metrics"
)

// PageRef identifies one page of a textbook within a batch
type PageRef struct {
	TextbookID string
	PageNumber int
}

// Generator produces the AI content for a single page. The provider-
// backed implementation lives in internal/generate.
type Generator interface {
	GeneratePage(ctx context.Context, ref PageRef) (string, error)
}

// Config controls the batch execution policy
type Config struct {
	Concurrency int           // simultaneous page generations, default 3
	PageTimeout time.Duration // per-page deadline, default 15s
	MaxPages    int           // hard cap on pages per request, default 10
}

func (c Config) normalized() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 15 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	return c
}

// Result aggregates a batch run. Outcomes are in completion order.
type Result struct {
	Processed int
	Failed    int
	Outcomes  []async.Outcome[PageRef, string]
}

// Driver runs page generations through the bounded executor, each page
// wrapped in the timeout racer.
type Driver struct {
	gen    Generator
	cfg    Config
	logger *slog.Logger
}

// NewDriver creates a batch driver
func NewDriver(gen Generator, cfg Config, logger *slog.Logger) *Driver {
	return &Driver{
		gen:    gen,
		cfg:    cfg.normalized(),
		logger: logger,
	}
}

// Run processes up to cfg.MaxPages of the given pages. One page's
// failure or timeout never aborts its siblings; every admitted page
// yields exactly one outcome.
func (d *Driver) Run(ctx context.Context, textbookID string, pages []int) Result {
	if len(pages) > d.cfg.MaxPages {
		d.logger.Warn("Batch truncated to page cap",
			slog.Int("requested", len(pages)),
			slog.Int("cap", d.cfg.MaxPages),
		)
		pages = pages[:d.cfg.MaxPages]
	}

	refs := make([]PageRef, len(pages))
	for i, p := range pages {
		refs[i] = PageRef{TextbookID: textbookID, PageNumber: p}
	}

	start := time.Now()
	outcomes := async.Map(ctx, refs, d.cfg.Concurrency, func(ctx context.Context, ref PageRef) (string, error) {
		metrics.BatchPagesInFlight.Inc()
		defer metrics.BatchPagesInFlight.Dec()

		timer := prometheus.NewTimer(metrics.BatchPageDuration)
		defer timer.ObserveDuration()

		return async.WithTimeout(ctx, d.cfg.PageTimeout, func(ctx context.Context) (string, error) {
			return d.gen.GeneratePage(ctx, ref)
		})
	})

	res := Result{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.OK() {
			res.Processed++
		} else {
			res.Failed++
		}
	}

	metrics.BatchPagesProcessedTotal.Add(float64(res.Processed))
	metrics.BatchPagesFailedTotal.Add(float64(res.Failed))

	d.logger.Info("Batch run finished",
		slog.String("textbook_id", textbookID),
		slog.Int("pages", len(refs)),
		slog.Int("processed", res.Processed),
		slog.Int("failed", res.Failed),
		slog.Duration("elapsed", time.Since(start)),
	)

	return res
}
