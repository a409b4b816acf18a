package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/readstack/reader-be/internal/api/dto"
	"github.com/readstack/reader-be/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeJobStore is an in-memory JobStore keyed by job_key
type fakeJobStore struct {
	byKey map[string]*jobs.Job
	byID  map[string]*jobs.Job

	insertCalls int
	resetCalls  int

	failLookup bool
	failInsert bool
	failReset  bool
	// rejectInsert simulates losing the unique-constraint race
	rejectInsert bool
	// lookupMisses makes the first N GetJobByKey calls miss even when
	// the row exists, so the race window can be reproduced.
	lookupMisses int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		byKey: make(map[string]*jobs.Job),
		byID:  make(map[string]*jobs.Job),
	}
}

func (f *fakeJobStore) add(job *jobs.Job) {
	f.byKey[job.JobKey] = job
	f.byID[job.JobID] = job
}

func (f *fakeJobStore) GetJobByID(ctx context.Context, jobID string) (*jobs.Job, error) {
	if f.failLookup {
		return nil, errors.New("db down")
	}
	job, ok := f.byID[jobID]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobStore) GetJobByKey(ctx context.Context, jobKey string) (*jobs.Job, error) {
	if f.failLookup {
		return nil, errors.New("db down")
	}
	if f.lookupMisses > 0 {
		f.lookupMisses--
		return nil, jobs.ErrJobNotFound
	}
	job, ok := f.byKey[jobKey]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobStore) InsertJob(ctx context.Context, job *jobs.Job) (bool, error) {
	f.insertCalls++
	if f.failInsert {
		return false, errors.New("db down")
	}
	if f.rejectInsert {
		return false, nil
	}
	if _, ok := f.byKey[job.JobKey]; ok {
		return false, nil
	}
	f.add(job)
	return true, nil
}

func (f *fakeJobStore) ResetJobForRetry(ctx context.Context, jobID string) error {
	f.resetCalls++
	if f.failReset {
		return errors.New("db down")
	}
	job, ok := f.byID[jobID]
	if !ok || job.Status != jobs.StatusFailed {
		return jobs.ErrJobNotFound
	}
	job.Status = jobs.StatusQueued
	job.Attempts = 0
	job.Error = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	return nil
}

// fakeNotifier records published messages
type fakeNotifier struct {
	published [][]byte
	fail      bool
}

func (f *fakeNotifier) Publish(ctx context.Context, body []byte, contentType string) error {
	if f.fail {
		return errors.New("broker unreachable")
	}
	f.published = append(f.published, body)
	return nil
}

func setupJobHandler(store *fakeJobStore, notifier *fakeNotifier) *gin.Engine {
	h := NewJobHandler(&Dependencies{
		Logger:   testLogger(),
		Store:    store,
		Notifier: notifier,
	})

	r := gin.New()
	r.POST("/api/v1/jobs", h.EnqueueJob)
	r.GET("/api/v1/jobs/status", h.GetJobStatus)
	return r
}

func postJob(t *testing.T, r *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnqueue(t *testing.T, w *httptest.ResponseRecorder) dto.EnqueueJobResponse {
	t.Helper()

	var resp dto.EnqueueJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestEnqueueJob_NewJob(t *testing.T) {
	store := newFakeJobStore()
	notifier := &fakeNotifier{}
	r := setupJobHandler(store, notifier)

	w := postJob(t, r, gin.H{
		"jobType": jobs.TypeExtractPage,
		"jobKey":  "tb-1:page:3:extract",
		"payload": gin.H{"textbookId": "tb-1", "pageNumber": 3, "sourceUrl": "https://files.example/tb-1.txt"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnqueue(t, w)
	assert.Equal(t, jobs.EnqueueStatusQueued, resp.Status)
	assert.NotEmpty(t, resp.JobID)

	stored := store.byKey["tb-1:page:3:extract"]
	require.NotNil(t, stored)
	assert.Equal(t, jobs.StatusQueued, stored.Status)
	assert.Equal(t, jobs.PriorityMedium, stored.Priority, "priority defaults to medium")
	assert.Len(t, notifier.published, 1)
}

func TestEnqueueJob_DuplicateStatuses(t *testing.T) {
	tests := []struct {
		name           string
		existingStatus string
		wantStatus     string
	}{
		{"queued job", jobs.StatusQueued, jobs.EnqueueStatusAlreadyQueued},
		{"processing job", jobs.StatusProcessing, jobs.EnqueueStatusAlreadyProcessing},
		{"completed job", jobs.StatusCompleted, jobs.EnqueueStatusAlreadyCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeJobStore()
			store.add(&jobs.Job{
				JobID:   "existing-id",
				JobType: jobs.TypeExtractPage,
				JobKey:  "dup-key",
				Status:  tt.existingStatus,
			})
			notifier := &fakeNotifier{}
			r := setupJobHandler(store, notifier)

			w := postJob(t, r, gin.H{
				"jobType": jobs.TypeExtractPage,
				"jobKey":  "dup-key",
				"payload": gin.H{"textbookId": "tb-1", "pageNumber": 3},
			})

			require.Equal(t, http.StatusOK, w.Code)
			resp := decodeEnqueue(t, w)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "existing-id", resp.JobID, "must return the existing job id")
			assert.Equal(t, 0, store.insertCalls, "no second row")
			assert.Equal(t, 0, store.resetCalls)
			assert.Empty(t, notifier.published, "no new work scheduled")
		})
	}
}

func TestEnqueueJob_FailedJobIsRequeued(t *testing.T) {
	store := newFakeJobStore()
	errMsg := "Timeout"
	store.add(&jobs.Job{
		JobID:    "failed-id",
		JobType:  jobs.TypeGenerateContent,
		JobKey:   "retry-key",
		Status:   jobs.StatusFailed,
		Attempts: 3,
		Error:    &errMsg,
	})
	notifier := &fakeNotifier{}
	r := setupJobHandler(store, notifier)

	w := postJob(t, r, gin.H{
		"jobType": jobs.TypeGenerateContent,
		"jobKey":  "retry-key",
		"payload": gin.H{"textbookId": "tb-1", "pageNumber": 7},
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnqueue(t, w)
	assert.Equal(t, jobs.EnqueueStatusRetrying, resp.Status)
	assert.Equal(t, "failed-id", resp.JobID)
	assert.Equal(t, 1, store.resetCalls)

	stored := store.byID["failed-id"]
	assert.Equal(t, jobs.StatusQueued, stored.Status)
	assert.Equal(t, 0, stored.Attempts)
	assert.Nil(t, stored.Error)
	assert.Len(t, notifier.published, 1, "retry schedules new work")
}

func TestEnqueueJob_InsertRaceFallsBackToWinner(t *testing.T) {
	store := newFakeJobStore()
	// The winner's row lands between our lookup miss and our insert:
	// the initial GetJobByKey misses, InsertJob hits the unique
	// constraint, and the fallback read finds the winner.
	store.add(&jobs.Job{
		JobID:   "winner-id",
		JobType: jobs.TypeExtractPage,
		JobKey:  "race-key",
		Status:  jobs.StatusQueued,
	})
	store.lookupMisses = 1
	store.rejectInsert = true
	r := setupJobHandler(store, &fakeNotifier{})

	w := postJob(t, r, gin.H{
		"jobType": jobs.TypeExtractPage,
		"jobKey":  "race-key",
		"payload": gin.H{"textbookId": "tb-1", "pageNumber": 1},
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnqueue(t, w)
	assert.Equal(t, jobs.EnqueueStatusAlreadyQueued, resp.Status)
	assert.Equal(t, "winner-id", resp.JobID)
}

func TestEnqueueJob_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
	}{
		{"missing jobType", gin.H{"jobKey": "k", "payload": gin.H{}}},
		{"missing jobKey", gin.H{"jobType": jobs.TypeExtractPage, "payload": gin.H{}}},
		{"missing payload", gin.H{"jobType": jobs.TypeExtractPage, "jobKey": "k"}},
		{"unknown jobType", gin.H{"jobType": "mine_bitcoin", "jobKey": "k", "payload": gin.H{}}},
		{"invalid priority", gin.H{"jobType": jobs.TypeExtractPage, "jobKey": "k", "payload": gin.H{}, "priority": 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeJobStore()
			r := setupJobHandler(store, &fakeNotifier{})

			w := postJob(t, r, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, store.insertCalls)
		})
	}
}

func TestEnqueueJob_StorageFailure(t *testing.T) {
	store := newFakeJobStore()
	store.failInsert = true
	r := setupJobHandler(store, &fakeNotifier{})

	w := postJob(t, r, gin.H{
		"jobType": jobs.TypeExtractPage,
		"jobKey":  "k",
		"payload": gin.H{"textbookId": "tb-1", "pageNumber": 1},
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEnqueueJob_NotifierFailureStillSucceeds(t *testing.T) {
	store := newFakeJobStore()
	notifier := &fakeNotifier{fail: true}
	r := setupJobHandler(store, notifier)

	w := postJob(t, r, gin.H{
		"jobType": jobs.TypeExtractPage,
		"jobKey":  "k",
		"payload": gin.H{"textbookId": "tb-1", "pageNumber": 1},
	})

	// The row is queued; the poller will find it even without the
	// broker notification.
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnqueue(t, w)
	assert.Equal(t, jobs.EnqueueStatusQueued, resp.Status)
}

func TestGetJobStatus(t *testing.T) {
	created := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	started := created.Add(200 * time.Millisecond)
	completed := created.Add(4200 * time.Millisecond)

	store := newFakeJobStore()
	store.add(&jobs.Job{
		JobID:       "done-id",
		JobType:     jobs.TypeExtractPage,
		JobKey:      "done-key",
		Status:      jobs.StatusCompleted,
		Priority:    jobs.PriorityHigh,
		Attempts:    1,
		CreatedAt:   created,
		StartedAt:   &started,
		CompletedAt: &completed,
	})
	r := setupJobHandler(store, &fakeNotifier{})

	t.Run("by jobId", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/status?jobId=done-id", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.JobStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Equal(t, "done-id", resp.JobID)
		assert.Equal(t, jobs.StatusCompleted, resp.Status)
		require.NotNil(t, resp.DurationMs)
		assert.Equal(t, int64(4200), *resp.DurationMs)
	})

	t.Run("by jobKey", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/status?jobKey=done-key", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.JobStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "done-id", resp.JobID)
	})

	t.Run("missing identifier", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/status", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/status?jobId=nope", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetJobStatus_PendingJobHasNoDuration(t *testing.T) {
	store := newFakeJobStore()
	store.add(&jobs.Job{
		JobID:     "pending-id",
		JobType:   jobs.TypeGenerateContent,
		JobKey:    "pending-key",
		Status:    jobs.StatusQueued,
		Priority:  jobs.PriorityMedium,
		CreatedAt: time.Now(),
	})
	r := setupJobHandler(store, &fakeNotifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/status?jobId=pending-id", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.JobStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Nil(t, resp.DurationMs)
	assert.Nil(t, resp.StartedAt)
	assert.Nil(t, resp.CompletedAt)
}
