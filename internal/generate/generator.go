package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/readstack/reader-be/internal/batch"
	"golang.org/x/sync/errgroup"
)

// CompletionClient is the slice of the AI provider this package needs.
// provider.Client satisfies it.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator produces study content for a textbook page by issuing the
// per-page prompts concurrently. The page as a whole fails if any
// required prompt fails or times out.
type Generator struct {
	client CompletionClient
	logger *slog.Logger
}

// NewGenerator creates a page content generator
func NewGenerator(client CompletionClient, logger *slog.Logger) *Generator {
	return &Generator{
		client: client,
		logger: logger,
	}
}

// The content kinds generated for every page
var prompts = []struct {
	kind     string
	template string
}{
	{"summary", "Summarize page %d of textbook %s for a student reviewing before class."},
	{"key_terms", "List and define the key terms introduced on page %d of textbook %s."},
	{"quiz", "Write three short comprehension questions about page %d of textbook %s."},
}

// GeneratePage implements batch.Generator. The result is a JSON object
// keyed by content kind.
func (g *Generator) GeneratePage(ctx context.Context, ref batch.PageRef) (string, error) {
	var mu sync.Mutex
	content := make(map[string]string, len(prompts))

	eg, egCtx := errgroup.WithContext(ctx)
	for _, p := range prompts {
		p := p
		eg.Go(func() error {
			text, err := g.client.Complete(egCtx, fmt.Sprintf(p.template, ref.PageNumber, ref.TextbookID))
			if err != nil {
				return fmt.Errorf("%s generation failed: %w", p.kind, err)
			}
			mu.Lock()
			content[p.kind] = text
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return "", err
	}

	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to marshal page content: %w", err)
	}

	g.logger.Debug("Page content generated",
		slog.String("textbook_id", ref.TextbookID),
		slog.Int("page", ref.PageNumber),
	)

	return string(data), nil
}
