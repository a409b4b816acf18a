package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Extractor pulls per-page text out of a downloaded source document.
// Pages are delimited by form feed characters, the convention used by
// the text renditions the ingest pipeline produces.
type Extractor struct {
	minRunLength int
}

// NewExtractor creates an Extractor. minRunLength filters out binary
// noise: only printable runs at least that long are kept.
func NewExtractor(minRunLength int) *Extractor {
	if minRunLength <= 0 {
		minRunLength = 4
	}
	return &Extractor{minRunLength: minRunLength}
}

// Extract returns the text of the given 1-based page.
func (e *Extractor) Extract(ctx context.Context, data []byte, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if page < 1 {
		return "", fmt.Errorf("invalid page number: %d", page)
	}

	pages := bytes.Split(data, []byte{'\f'})
	if page > len(pages) {
		return "", fmt.Errorf("page %d out of range: document has %d pages", page, len(pages))
	}

	text := e.cleanText(pages[page-1])
	if text == "" {
		return "", fmt.Errorf("page %d contains no extractable text", page)
	}

	return text, nil
}

// cleanText keeps printable runs and collapses whitespace
func (e *Extractor) cleanText(raw []byte) string {
	var b strings.Builder
	var run strings.Builder

	flush := func() {
		if run.Len() >= e.minRunLength {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.Join(strings.Fields(run.String()), " "))
		}
		run.Reset()
	}

	for _, r := range string(raw) {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			run.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return b.String()
}
