package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/readstack/reader-be/internal/batch"
	"github.com/readstack/reader-be/internal/jobs"
)

// PagePayload is the payload carried by page-scoped jobs.
type PagePayload struct {
	TextbookID string `json:"textbookId"`
	PageNumber int    `json:"pageNumber"`
	SourceURL  string `json:"sourceUrl,omitempty"`
}

func (p *PagePayload) validate(needSource bool) error {
	if p.TextbookID == "" {
		return fmt.Errorf("payload missing textbookId")
	}
	if p.PageNumber < 1 {
		return fmt.Errorf("payload has invalid pageNumber: %d", p.PageNumber)
	}
	if needSource && p.SourceURL == "" {
		return fmt.Errorf("payload missing sourceUrl")
	}
	return nil
}

// executeJob dispatches on job type and returns the produced artifact.
func (w *Worker) executeJob(ctx context.Context, job *jobs.Job) (string, error) {
	var payload PagePayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return "", fmt.Errorf("invalid job payload: %w", err)
	}

	switch job.JobType {
	case jobs.TypeExtractPage:
		if err := payload.validate(true); err != nil {
			return "", err
		}
		return w.extractPage(ctx, &payload)

	case jobs.TypeGenerateContent:
		if err := payload.validate(false); err != nil {
			return "", err
		}
		return w.generator.GeneratePage(ctx, batch.PageRef{
			TextbookID: payload.TextbookID,
			PageNumber: payload.PageNumber,
		})

	case jobs.TypeExtractAndGenerate:
		if err := payload.validate(true); err != nil {
			return "", err
		}
		if _, err := w.extractPage(ctx, &payload); err != nil {
			return "", err
		}
		return w.generator.GeneratePage(ctx, batch.PageRef{
			TextbookID: payload.TextbookID,
			PageNumber: payload.PageNumber,
		})

	default:
		return "", fmt.Errorf("unknown job type: %s", job.JobType)
	}
}

func (w *Worker) extractPage(ctx context.Context, payload *PagePayload) (string, error) {
	data, err := w.fetcher.Fetch(ctx, payload.SourceURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source file: %w", err)
	}

	text, err := w.extractor.Extract(ctx, data, payload.PageNumber)
	if err != nil {
		return "", fmt.Errorf("failed to extract page %d: %w", payload.PageNumber, err)
	}

	return text, nil
}
