package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnqueueCreatesJobWithItems(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, JobTypeAudit, []int64{10, 20, 30})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.TotalCount != 3 {
		t.Fatalf("expected total 3, got %d", job.TotalCount)
	}
	if job.ProcessedCount != 0 {
		t.Fatalf("expected processed 0, got %d", job.ProcessedCount)
	}
	if got := job.Status(); got != JobPending {
		t.Fatalf("expected pending job, got %s", got)
	}

	items, err := store.ItemsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("items for job: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.Status != StatusPending {
			t.Fatalf("item %d: expected pending, got %s", i, item.Status)
		}
		if item.Type != JobTypeAudit {
			t.Fatalf("item %d: expected audit type, got %s", i, item.Type)
		}
	}
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, JobType("rewind"), []int64{1}); !errors.Is(err, ErrUnknownJobType) {
		t.Fatalf("expected ErrUnknownJobType, got %v", err)
	}
	if _, err := store.Enqueue(ctx, JobTypeLookup, nil); !errors.Is(err, ErrNoPaperIDs) {
		t.Fatalf("expected ErrNoPaperIDs, got %v", err)
	}

	jobs, err := store.ActiveJobs(ctx)
	if err != nil {
		t.Fatalf("active jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("rejected enqueues must not leave jobs behind, found %d", len(jobs))
	}
}

func TestCancelJobLeavesRunningItemsAlone(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, JobTypeAudit, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := store.ClaimNext(ctx, "req-cancel-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claim")
	}

	refreshed, canceled, err := store.CancelJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled != 2 {
		t.Fatalf("expected 2 canceled, got %d", canceled)
	}
	if refreshed.RunningCount != 1 {
		t.Fatalf("running item must survive cancel, got running=%d", refreshed.RunningCount)
	}
	if got := refreshed.Status(); got != JobRunning {
		t.Fatalf("job with running item stays running, got %s", got)
	}

	item, err := store.GetItem(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != StatusRunning {
		t.Fatalf("claimed item must stay running, got %s", item.Status)
	}
}

func TestCancelJobUnknownID(t *testing.T) {
	store := openTestStore(t)

	if _, _, err := store.CancelJob(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelCompletesUntouchedJob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, JobTypeLookup, []int64{7, 8})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	refreshed, canceled, err := store.CancelJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled != 2 {
		t.Fatalf("expected 2 canceled, got %d", canceled)
	}
	if refreshed.CompletedAt == nil {
		t.Fatal("fully canceled job must be stamped completed_at")
	}
	if got := refreshed.Status(); got != JobCanceled {
		t.Fatalf("expected canceled status, got %s", got)
	}
	if refreshed.ProcessedCount != 2 {
		t.Fatalf("canceled items count as processed, got %d", refreshed.ProcessedCount)
	}

	items, err := store.ItemsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	for _, item := range items {
		if item.Status != StatusCanceled {
			t.Fatalf("expected canceled, got %s", item.Status)
		}
		if item.ErrorMessage != CanceledMessage {
			t.Fatalf("expected %q message, got %q", CanceledMessage, item.ErrorMessage)
		}
		if item.CompletedAt == nil {
			t.Fatal("canceled item must carry completed_at")
		}
	}
}

func TestClearQueueCancelsAcrossJobs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, JobTypeAudit, []int64{1, 2})
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	if _, err := store.Enqueue(ctx, JobTypeLookup, []int64{3}); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	claimed, err := store.ClaimNext(ctx, "req-clear-1")
	if err != nil || claimed == nil {
		t.Fatalf("claim: item=%v err=%v", claimed, err)
	}

	jobs, items, err := store.ClearQueue(ctx)
	if err != nil {
		t.Fatalf("clear queue: %v", err)
	}
	if jobs != 2 {
		t.Fatalf("expected 2 jobs affected, got %d", jobs)
	}
	if items != 2 {
		t.Fatalf("expected 2 items canceled, got %d", items)
	}

	running, err := store.GetItem(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if running.Status != StatusRunning {
		t.Fatalf("running item must survive clear, got %s", running.Status)
	}

	refreshed, err := store.GetJob(ctx, first.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if refreshed.PendingCount != 0 {
		t.Fatalf("expected no pending left, got %d", refreshed.PendingCount)
	}
}

func TestClearHistoryKeepsActiveJobs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	done, err := store.Enqueue(ctx, JobTypeAudit, []int64{1})
	if err != nil {
		t.Fatalf("enqueue done: %v", err)
	}
	claimed, err := store.ClaimNext(ctx, "req-hist-1")
	if err != nil || claimed == nil {
		t.Fatalf("claim: item=%v err=%v", claimed, err)
	}
	if err := store.MarkCompleted(ctx, claimed.ID, `{"ok":true}`); err != nil {
		t.Fatalf("complete: %v", err)
	}

	active, err := store.Enqueue(ctx, JobTypeAudit, []int64{2})
	if err != nil {
		t.Fatalf("enqueue active: %v", err)
	}

	deleted, err := store.ClearHistory(ctx)
	if err != nil {
		t.Fatalf("clear history: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 job deleted, got %d", deleted)
	}

	if _, err := store.GetJob(ctx, done.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("terminal job should be gone, got %v", err)
	}
	if _, err := store.GetJob(ctx, active.ID); err != nil {
		t.Fatalf("active job must survive: %v", err)
	}

	// Cascade must have removed the history items too.
	history, err := store.HistoryItems(ctx, 10, 0)
	if err != nil {
		t.Fatalf("history items: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d items", len(history))
	}
}

func TestHistoryOrderingAndPagination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var jobIDs []int64
	for i := 0; i < 3; i++ {
		job, err := store.Enqueue(ctx, JobTypeAudit, []int64{int64(100 + i)})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		jobIDs = append(jobIDs, job.ID)
		claimed, err := store.ClaimNext(ctx, "req-page")
		if err != nil || claimed == nil {
			t.Fatalf("claim %d: item=%v err=%v", i, claimed, err)
		}
		if err := store.MarkCompleted(ctx, claimed.ID, ""); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
	}

	page, err := store.HistoryJobs(ctx, 2, 0)
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(page))
	}
	if page[0].ID != jobIDs[2] || page[1].ID != jobIDs[1] {
		t.Fatalf("expected newest first, got %d then %d", page[0].ID, page[1].ID)
	}

	rest, err := store.HistoryJobs(ctx, 2, 2)
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != jobIDs[0] {
		t.Fatalf("expected oldest job on second page, got %+v", rest)
	}
}

func TestRecoverOrphanedRunning(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, JobTypeLookup, []int64{1, 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for _, requestID := range []string{"req-crash-0", "req-crash-1"} {
		claimed, err := store.ClaimNext(ctx, requestID)
		if err != nil || claimed == nil {
			t.Fatalf("claim %s: item=%v err=%v", requestID, claimed, err)
		}
	}

	reset, err := store.RecoverOrphanedRunning(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if reset != 2 {
		t.Fatalf("expected 2 items reset, got %d", reset)
	}

	items, err := store.ActiveItems(ctx)
	if err != nil {
		t.Fatalf("active items: %v", err)
	}
	for _, item := range items {
		if item.Status != StatusPending {
			t.Fatalf("expected pending after recovery, got %s", item.Status)
		}
		if item.StartedAt != nil || item.RequestID != "" {
			t.Fatalf("recovery must clear claim markers, got started=%v request=%q", item.StartedAt, item.RequestID)
		}
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, JobTypeAudit, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, err := store.ClaimNext(ctx, "req-stats")
	if err != nil || claimed == nil {
		t.Fatalf("claim: item=%v err=%v", claimed, err)
	}
	if err := store.MarkFailed(ctx, claimed.ID, "timeout"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Pending != 2 || stats.Failed != 1 || stats.Total != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	refreshed, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if refreshed.ProcessedCount != 1 {
		t.Fatalf("expected processed 1, got %d", refreshed.ProcessedCount)
	}
	if got := refreshed.Status(); got != JobRunning && got != JobPending {
		t.Fatalf("job with pending items must stay active, got %s", got)
	}
}
