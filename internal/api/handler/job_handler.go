package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/readstack/reader-be/internal/api/dto"
	"github.com/readstack/reader-be/internal/jobs"
	"github.com/readstack/reader-be/internal/metrics"
)

// EnqueueJob handles POST /api/v1/jobs.
//
// Submissions are idempotent on jobKey: a repeat submission never
// creates a second row. A repeat against a failed job resets it back to
// queued; any other existing status is reported as already_<status>.
func (h *JobHandler) EnqueueJob(c *gin.Context) {
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:  "invalid_request",
			Detail: "jobType, jobKey and payload are required",
		})
		return
	}

	if !jobs.ValidType(req.JobType) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:  "invalid_request",
			Detail: "unknown jobType: " + req.JobType,
		})
		return
	}

	if req.Priority == 0 {
		req.Priority = jobs.PriorityMedium
	}
	if !jobs.ValidPriority(req.Priority) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:  "invalid_request",
			Detail: "priority must be 1 (high), 2 (medium) or 3 (low)",
		})
		return
	}

	ctx := c.Request.Context()

	existing, err := h.store.GetJobByKey(ctx, req.JobKey)
	switch {
	case err == nil:
		h.respondExisting(c, existing)
		return
	case errors.Is(err, jobs.ErrJobNotFound):
		// New key; fall through to insert.
	default:
		h.logger.Error("Failed to look up job by key",
			slog.String("job_key", req.JobKey),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:  "storage_failure",
			Detail: "failed to look up job",
		})
		return
	}

	job := &jobs.Job{
		JobID:    uuid.New().String(),
		JobType:  req.JobType,
		JobKey:   req.JobKey,
		Payload:  string(req.Payload),
		Priority: req.Priority,
		Status:   jobs.StatusQueued,
	}

	inserted, err := h.store.InsertJob(ctx, job)
	if err != nil {
		h.logger.Error("Failed to insert job",
			slog.String("job_key", req.JobKey),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:  "storage_failure",
			Detail: "failed to create job",
		})
		return
	}

	if !inserted {
		// Lost the insert race against a concurrent enqueue with the
		// same key; the constraint guarantees the winner's row exists.
		winner, err := h.store.GetJobByKey(ctx, req.JobKey)
		if err != nil {
			h.logger.Error("Failed to read job after insert conflict",
				slog.String("job_key", req.JobKey),
				slog.Any("error", err),
			)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:  "storage_failure",
				Detail: "failed to resolve duplicate job",
			})
			return
		}
		h.respondExisting(c, winner)
		return
	}

	metrics.JobsEnqueuedTotal.Inc()
	h.notifyWorker(c, job)

	c.JSON(http.StatusOK, dto.EnqueueJobResponse{
		JobID:   job.JobID,
		Status:  jobs.EnqueueStatusQueued,
		Message: "Job enqueued for processing",
	})
}

// respondExisting resolves a repeat submission against the stored row
func (h *JobHandler) respondExisting(c *gin.Context, job *jobs.Job) {
	switch job.Status {
	case jobs.StatusCompleted:
		metrics.JobsDuplicateTotal.Inc()
		c.JSON(http.StatusOK, dto.EnqueueJobResponse{
			JobID:   job.JobID,
			Status:  jobs.EnqueueStatusAlreadyCompleted,
			Message: "Job already completed; no new work scheduled",
		})

	case jobs.StatusQueued:
		metrics.JobsDuplicateTotal.Inc()
		c.JSON(http.StatusOK, dto.EnqueueJobResponse{
			JobID:   job.JobID,
			Status:  jobs.EnqueueStatusAlreadyQueued,
			Message: "Job already queued; no new work scheduled",
		})

	case jobs.StatusProcessing:
		metrics.JobsDuplicateTotal.Inc()
		c.JSON(http.StatusOK, dto.EnqueueJobResponse{
			JobID:   job.JobID,
			Status:  jobs.EnqueueStatusAlreadyProcessing,
			Message: "Job already processing; no new work scheduled",
		})

	case jobs.StatusFailed:
		if err := h.store.ResetJobForRetry(c.Request.Context(), job.JobID); err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				// The job left failed status between our read and the
				// reset; report whatever it is now.
				current, readErr := h.store.GetJobByKey(c.Request.Context(), job.JobKey)
				if readErr == nil && current.Status != jobs.StatusFailed {
					h.respondExisting(c, current)
					return
				}
			}
			h.logger.Error("Failed to reset failed job",
				slog.String("job_id", job.JobID),
				slog.Any("error", err),
			)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:  "storage_failure",
				Detail: "failed to re-queue job",
			})
			return
		}

		metrics.JobsEnqueuedTotal.Inc()
		h.notifyWorker(c, job)

		c.JSON(http.StatusOK, dto.EnqueueJobResponse{
			JobID:   job.JobID,
			Status:  jobs.EnqueueStatusRetrying,
			Message: "Failed job re-queued for processing",
		})

	default:
		h.logger.Error("Job has unexpected status",
			slog.String("job_id", job.JobID),
			slog.String("status", job.Status),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:  "storage_failure",
			Detail: "job is in an unexpected state",
		})
	}
}

// notifyWorker publishes a work-available message. Failures are logged
// and never surfaced: the row stays queued and the worker's poller will
// pick it up.
func (h *JobHandler) notifyWorker(c *gin.Context, job *jobs.Job) {
	body, err := json.Marshal(map[string]string{
		"job_id":   job.JobID,
		"job_type": job.JobType,
		"job_key":  job.JobKey,
	})
	if err != nil {
		h.logger.Warn("Failed to marshal worker notification",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
		return
	}

	if err := h.notifier.Publish(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Warn("Failed to notify worker; job remains queued for polling",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}
}

// GetJobStatus handles GET /api/v1/jobs/status?jobId=...|jobKey=...
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	jobID := c.Query("jobId")
	jobKey := c.Query("jobKey")

	if jobID == "" && jobKey == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:  "invalid_request",
			Detail: "either jobId or jobKey query parameter is required",
		})
		return
	}

	ctx := c.Request.Context()

	var job *jobs.Job
	var err error
	if jobID != "" {
		job, err = h.store.GetJobByID(ctx, jobID)
	} else {
		job, err = h.store.GetJobByKey(ctx, jobKey)
	}

	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:  "not_found",
				Detail: "no job matches the given identifier",
			})
			return
		}
		h.logger.Error("Failed to get job",
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:  "storage_failure",
			Detail: "failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, dto.JobStatusResponse{
		JobID:       job.JobID,
		JobType:     job.JobType,
		Status:      job.Status,
		Priority:    job.Priority,
		Attempts:    job.Attempts,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		StartedAt:   formatTimePtr(job.StartedAt),
		CompletedAt: formatTimePtr(job.CompletedAt),
		DurationMs:  job.DurationMs(),
	})
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
