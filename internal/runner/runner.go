// Package runner defines how claimed queue items are executed. The
// worker pool depends on this interface rather than on the probing
// code, so tests can substitute deterministic runners.
package runner

import (
	"context"
	"fmt"

	"presswatch/internal/queue"
)

// Runner executes a single unit of work for one paper. The returned
// string is a JSON document stored verbatim as the item result. An
// error marks the item failed; it never aborts sibling items.
type Runner interface {
	RunAudit(ctx context.Context, paperID int64) (string, error)
	RunLookup(ctx context.Context, paperID int64) (string, error)
}

// Funcs adapts plain functions to Runner.
type Funcs struct {
	Audit  func(ctx context.Context, paperID int64) (string, error)
	Lookup func(ctx context.Context, paperID int64) (string, error)
}

func (f Funcs) RunAudit(ctx context.Context, paperID int64) (string, error) {
	if f.Audit == nil {
		return "", fmt.Errorf("audit runner not configured")
	}
	return f.Audit(ctx, paperID)
}

func (f Funcs) RunLookup(ctx context.Context, paperID int64) (string, error) {
	if f.Lookup == nil {
		return "", fmt.Errorf("lookup runner not configured")
	}
	return f.Lookup(ctx, paperID)
}

// Dispatch routes an item to the matching runner method.
func Dispatch(ctx context.Context, r Runner, jobType queue.JobType, paperID int64) (string, error) {
	switch jobType {
	case queue.JobTypeAudit:
		return r.RunAudit(ctx, paperID)
	case queue.JobTypeLookup:
		return r.RunLookup(ctx, paperID)
	default:
		return "", fmt.Errorf("%w: %q", queue.ErrUnknownJobType, jobType)
	}
}
