package dto

import "encoding/json"

// EnqueueJobRequest is the POST /api/v1/jobs body. Payload is opaque to
// the job core and stored as-is.
type EnqueueJobRequest struct {
	JobType  string          `json:"jobType" binding:"required"`
	JobKey   string          `json:"jobKey" binding:"required"`
	Payload  json.RawMessage `json:"payload" binding:"required"`
	Priority int             `json:"priority"`
}

// EnqueueJobResponse reports how a submission was resolved
type EnqueueJobResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobStatusResponse is the status query result. DurationMs is only set
// once the job has completed.
type JobStatusResponse struct {
	JobID       string  `json:"jobId"`
	JobType     string  `json:"jobType"`
	Status      string  `json:"status"`
	Priority    int     `json:"priority"`
	Attempts    int     `json:"attempts"`
	Error       *string `json:"error"`
	CreatedAt   string  `json:"createdAt"`
	StartedAt   *string `json:"startedAt"`
	CompletedAt *string `json:"completedAt"`
	DurationMs  *int64  `json:"durationMs"`
}

// GeneratePagesRequest is the batch processing body. Only the first
// batch.max_pages page numbers are processed.
type GeneratePagesRequest struct {
	PageNumbers []int `json:"pageNumbers" binding:"required"`
}

// PageResult is the outcome of one page in a batch
type PageResult struct {
	Item    int    `json:"item"`
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GeneratePagesResponse aggregates batch outcomes in completion order
type GeneratePagesResponse struct {
	Success   bool         `json:"success"`
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Results   []PageResult `json:"results"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
