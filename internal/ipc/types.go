// Package ipc exposes the daemon's control operations over a unix
// socket using JSON-RPC. The CLI is the only intended client; the
// HTTP API covers everything else.
package ipc

import (
	"presswatch/internal/api"
	"presswatch/internal/daemon"
)

// ServiceName is the JSON-RPC service prefix for all methods.
const ServiceName = "Presswatch"

// Empty is the argument or reply for methods that carry nothing.
type Empty struct{}

// EnqueueArgs asks for a new job.
type EnqueueArgs struct {
	JobType  string  `json:"job_type"`
	PaperIDs []int64 `json:"paper_ids"`
}

// CancelArgs names the job to cancel.
type CancelArgs struct {
	JobID int64 `json:"job_id"`
}

// ControlArgs sets the pause flag when Set is true.
type ControlArgs struct {
	Set    bool `json:"set"`
	Paused bool `json:"paused"`
}

// PageArgs carries pagination for history queries.
type PageArgs struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// JobsReply wraps a job list.
type JobsReply struct {
	Jobs []api.JobSummary `json:"jobs"`
}

// ItemsReply wraps an item list.
type ItemsReply struct {
	Items []api.ItemSummary `json:"items"`
}

// StatusReply wraps the daemon status report.
type StatusReply struct {
	Status daemon.Status `json:"status"`
}
