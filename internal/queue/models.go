package queue

import (
	"strings"
	"time"
)

// JobType identifies the operation a job runs against each paper.
type JobType string

const (
	JobTypeAudit  JobType = "audit"
	JobTypeLookup JobType = "lookup"
)

// ParseJobType converts a string into a known JobType.
func ParseJobType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case JobTypeAudit, JobTypeLookup:
		return normalized, true
	}
	return "", false
}

// ItemStatus represents the lifecycle of a job item.
type ItemStatus string

const (
	StatusPending   ItemStatus = "pending"
	StatusRunning   ItemStatus = "running"
	StatusCompleted ItemStatus = "completed"
	StatusFailed    ItemStatus = "failed"
	StatusCanceled  ItemStatus = "canceled"
)

// CanceledMessage is the error message recorded on items canceled before they ran.
const CanceledMessage = "Canceled"

var allStatuses = []ItemStatus{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCanceled,
}

// AllStatuses returns the ordered list of known item statuses.
func AllStatuses() []ItemStatus {
	cp := make([]ItemStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known ItemStatus.
func ParseStatus(value string) (ItemStatus, bool) {
	normalized := ItemStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// Terminal reports whether a status is final. Terminal items are
// immutable and only leave the store through a history clear.
func (s ItemStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// JobStatus is the derived batch-level status. It is computed from item
// counts and never stored.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Job represents one batch request persisted in SQLite.
type Job struct {
	ID             int64
	Type           JobType
	TotalCount     int
	ProcessedCount int
	CreatedAt      time.Time
	CompletedAt    *time.Time

	// Per-status item counts, populated on every read.
	PendingCount   int
	RunningCount   int
	CompletedCount int
	FailedCount    int
	CanceledCount  int
}

// Status derives the batch status from item counts: running while any
// item is non-terminal, failed when any item failed, canceled when
// every item was canceled, completed otherwise. Canceled items do not
// count as failures.
func (j *Job) Status() JobStatus {
	if j.PendingCount > 0 || j.RunningCount > 0 {
		if j.RunningCount == 0 && j.ProcessedCount == 0 {
			return JobPending
		}
		return JobRunning
	}
	if j.FailedCount > 0 {
		return JobFailed
	}
	if j.CanceledCount > 0 && j.CompletedCount == 0 {
		return JobCanceled
	}
	return JobCompleted
}

// Active reports whether the job still has non-terminal items.
func (j *Job) Active() bool {
	return j.PendingCount > 0 || j.RunningCount > 0
}

// Item represents one paper's unit of work within a job.
type Item struct {
	ID           int64
	JobID        int64
	PaperID      int64
	Type         JobType
	Status       ItemStatus
	Result       string
	ErrorMessage string
	EnqueuedAt   time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	RequestID    string
}

// State is the process-wide queue control flag, persisted so multiple
// worker processes sharing the database observe the same value.
type State struct {
	Paused    bool
	UpdatedAt time.Time
}

// Stats aggregates item counts per status.
type Stats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
	Canceled  int
	Total     int
}
