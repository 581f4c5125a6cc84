// Package api holds the service layer and wire types shared by the
// HTTP endpoints and the unix socket IPC. Both transports expose the
// same operations over the same store, so the validation and clamping
// rules live here exactly once.
package api

import (
	"encoding/json"
	"time"

	"presswatch/internal/queue"
)

// JobSummary is the wire form of a job.
type JobSummary struct {
	ID             int64      `json:"id"`
	JobType        string     `json:"job_type"`
	Status         string     `json:"status"`
	TotalCount     int        `json:"total_count"`
	ProcessedCount int        `json:"processed_count"`
	PendingCount   int        `json:"pending_count"`
	RunningCount   int        `json:"running_count"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	CanceledCount  int        `json:"canceled_count"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ItemSummary is the wire form of a single queue item.
type ItemSummary struct {
	ID           int64           `json:"id"`
	JobID        int64           `json:"job_id"`
	PaperID      int64           `json:"paper_id"`
	JobType      string          `json:"job_type"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// QueueState is the wire form of the pause flag.
type QueueState struct {
	Paused    bool      `json:"paused"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnqueueRequest asks for a new job.
type EnqueueRequest struct {
	JobType  string  `json:"job_type"`
	PaperIDs []int64 `json:"paper_ids"`
}

// CancelResponse reports the outcome of canceling one job.
type CancelResponse struct {
	Job           JobSummary `json:"job"`
	CanceledItems int64      `json:"canceled_items"`
}

// ClearQueueResponse reports a queue-wide cancel.
type ClearQueueResponse struct {
	CanceledJobs  int64 `json:"canceled_jobs"`
	CanceledItems int64 `json:"canceled_items"`
}

// ClearHistoryResponse reports a history purge.
type ClearHistoryResponse struct {
	Deleted int64 `json:"deleted"`
}

// FromJob converts a stored job to its wire form.
func FromJob(job *queue.Job) JobSummary {
	return JobSummary{
		ID:             job.ID,
		JobType:        string(job.Type),
		Status:         string(job.Status()),
		TotalCount:     job.TotalCount,
		ProcessedCount: job.ProcessedCount,
		PendingCount:   job.PendingCount,
		RunningCount:   job.RunningCount,
		CompletedCount: job.CompletedCount,
		FailedCount:    job.FailedCount,
		CanceledCount:  job.CanceledCount,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// FromJobs converts a slice of stored jobs.
func FromJobs(jobs []*queue.Job) []JobSummary {
	summaries := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, FromJob(job))
	}
	return summaries
}

// FromItem converts a stored item to its wire form.
func FromItem(item *queue.Item) ItemSummary {
	summary := ItemSummary{
		ID:           item.ID,
		JobID:        item.JobID,
		PaperID:      item.PaperID,
		JobType:      string(item.Type),
		Status:       string(item.Status),
		ErrorMessage: item.ErrorMessage,
		EnqueuedAt:   item.EnqueuedAt,
		StartedAt:    item.StartedAt,
		CompletedAt:  item.CompletedAt,
	}
	if item.Result != "" {
		if json.Valid([]byte(item.Result)) {
			summary.Result = json.RawMessage(item.Result)
		} else {
			encoded, _ := json.Marshal(item.Result)
			summary.Result = json.RawMessage(encoded)
		}
	}
	return summary
}

// FromItems converts a slice of stored items.
func FromItems(items []*queue.Item) []ItemSummary {
	summaries := make([]ItemSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, FromItem(item))
	}
	return summaries
}
