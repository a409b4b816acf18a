package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/readstack/reader-be/internal/api/dto"
	"github.com/readstack/reader-be/internal/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowPageGenerator fails or stalls on selected pages
type slowPageGenerator struct {
	slowPages map[int]time.Duration
	failPages map[int]error
}

func (g *slowPageGenerator) GeneratePage(ctx context.Context, ref batch.PageRef) (string, error) {
	if d, ok := g.slowPages[ref.PageNumber]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := g.failPages[ref.PageNumber]; ok {
		return "", err
	}
	return fmt.Sprintf("summary of %s page %d", ref.TextbookID, ref.PageNumber), nil
}

func setupBatchHandler(gen batch.Generator, cfg batch.Config) *gin.Engine {
	h := NewJobHandler(&Dependencies{
		Logger:   testLogger(),
		Store:    newFakeJobStore(),
		Notifier: &fakeNotifier{},
		Batch:    batch.NewDriver(gen, cfg, testLogger()),
	})

	r := gin.New()
	r.POST("/api/v1/textbooks/:textbook_id/pages/generate", h.GeneratePages)
	return r
}

func postGenerate(t *testing.T, r *gin.Engine, textbookID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	url := "/api/v1/textbooks/" + textbookID + "/pages/generate"
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGeneratePages_AllSucceed(t *testing.T) {
	r := setupBatchHandler(&slowPageGenerator{}, batch.Config{Concurrency: 3, PageTimeout: time.Second, MaxPages: 10})

	w := postGenerate(t, r, "tb-1", gin.H{"pageNumbers": []int{1, 2, 3}})

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.GeneratePagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Processed)
	assert.Equal(t, 0, resp.Failed)
	require.Len(t, resp.Results, 3)
	for _, pr := range resp.Results {
		assert.True(t, pr.Success)
		assert.NotEmpty(t, pr.Result)
	}
}

func TestGeneratePages_TimeoutReportedPerItem(t *testing.T) {
	gen := &slowPageGenerator{
		slowPages: map[int]time.Duration{2: 500 * time.Millisecond},
	}
	r := setupBatchHandler(gen, batch.Config{Concurrency: 3, PageTimeout: 50 * time.Millisecond, MaxPages: 10})

	w := postGenerate(t, r, "tb-1", gin.H{"pageNumbers": []int{1, 2, 3}})

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.GeneratePagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 1, resp.Failed)

	for _, pr := range resp.Results {
		if pr.Item == 2 {
			assert.False(t, pr.Success)
			assert.Equal(t, "Timeout", pr.Error)
		} else {
			assert.True(t, pr.Success)
		}
	}
}

func TestGeneratePages_ProviderErrorReportedPerItem(t *testing.T) {
	gen := &slowPageGenerator{
		failPages: map[int]error{5: errors.New("provider returned status 503")},
	}
	r := setupBatchHandler(gen, batch.Config{Concurrency: 2, PageTimeout: time.Second, MaxPages: 10})

	w := postGenerate(t, r, "tb-1", gin.H{"pageNumbers": []int{4, 5}})

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.GeneratePagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 1, resp.Failed)

	for _, pr := range resp.Results {
		if pr.Item == 5 {
			assert.Contains(t, pr.Error, "503")
		}
	}
}

func TestGeneratePages_CapsAtMaxPages(t *testing.T) {
	r := setupBatchHandler(&slowPageGenerator{}, batch.Config{Concurrency: 3, PageTimeout: time.Second, MaxPages: 10})

	pages := make([]int, 12)
	for i := range pages {
		pages[i] = i + 1
	}

	w := postGenerate(t, r, "tb-1", gin.H{"pageNumbers": pages})

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.GeneratePagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 10, resp.Processed)
	assert.Len(t, resp.Results, 10)
}

func TestGeneratePages_MissingBody(t *testing.T) {
	r := setupBatchHandler(&slowPageGenerator{}, batch.Config{})

	w := postGenerate(t, r, "tb-1", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
