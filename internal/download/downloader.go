package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/readstack/reader-be/internal/async"
)

// Downloader fetches source files (textbook PDFs) with exponential
// backoff. The request carries the caller's context, so cancelling it
// aborts an in-flight transfer.
type Downloader struct {
	httpClient *http.Client
	retry      async.RetryConfig
	logger     *slog.Logger
}

// NewDownloader creates a downloader. A zero retry config uses the
// default 3 attempts / 1s base / 5s cap schedule.
func NewDownloader(retry async.RetryConfig, logger *slog.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{},
		retry:      retry,
		logger:     logger,
	}
}

// Fetch downloads the file at url, retrying transient failures
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	return async.RetryValue(ctx, d.logger, d.retry, "file download", func(ctx context.Context) ([]byte, error) {
		return d.fetchOnce(ctx, url)
	})
}

func (d *Downloader) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}

	d.logger.Debug("File downloaded",
		slog.String("url", url),
		slog.Int("bytes", len(data)),
	)

	return data, nil
}
