package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	doc := []byte("Chapter 1\nThe water cycle begins with evaporation.\fChapter 2\nCondensation forms clouds.")
	e := NewExtractor(4)

	tests := []struct {
		name    string
		page    int
		want    string
		wantErr string
	}{
		{"first page", 1, "Chapter 1 The water cycle begins with evaporation.", ""},
		{"second page", 2, "Chapter 2 Condensation forms clouds.", ""},
		{"page out of range", 3, "", "out of range"},
		{"invalid page number", 0, "", "invalid page number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(context.Background(), doc, tt.page)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_FiltersBinaryNoise(t *testing.T) {
	doc := append([]byte{0x00, 0x01, 0x02}, []byte("Readable sentence here.")...)
	doc = append(doc, 0x03, 0x04)

	e := NewExtractor(4)
	got, err := e.Extract(context.Background(), doc, 1)

	require.NoError(t, err)
	assert.Equal(t, "Readable sentence here.", got)
}

func TestExtract_EmptyPage(t *testing.T) {
	e := NewExtractor(4)
	_, err := e.Extract(context.Background(), []byte("\x00\x01\fsecond"), 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extractable text")
}
