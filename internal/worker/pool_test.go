package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"presswatch/internal/config"
	"presswatch/internal/queue"
	"presswatch/internal/runner"
)

func testConfig(workers int) *config.Config {
	cfg := config.Default()
	cfg.Workers.Count = workers
	cfg.Workers.PollInterval = 0
	cfg.Workers.ErrorRetryInterval = 0
	cfg.Workers.OperationTimeout = 30
	return &cfg
}

func openTestStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitForJobDone(t *testing.T, store *queue.Store, jobID int64, timeout time.Duration) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.CompletedAt != nil {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not finish within %s", jobID, timeout)
	return nil
}

func TestPoolDrainsQueue(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.JobTypeAudit, []int64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var processed atomic.Int64
	pool := New(testConfig(3), store, runner.Funcs{
		Audit: func(_ context.Context, paperID int64) (string, error) {
			processed.Add(1)
			return fmt.Sprintf(`{"paper":%d}`, paperID), nil
		},
	}, nil, nil)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pool.Stop()

	done := waitForJobDone(t, store, job.ID, 5*time.Second)
	if done.ProcessedCount != 5 || done.CompletedCount != 5 {
		t.Fatalf("unexpected final job: %+v", done)
	}
	if got := done.Status(); got != queue.JobCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	if processed.Load() != 5 {
		t.Fatalf("runner should see every item once, got %d", processed.Load())
	}

	items, err := store.HistoryItems(ctx, 10, 0)
	if err != nil {
		t.Fatalf("history items: %v", err)
	}
	for _, item := range items {
		if item.Result == "" {
			t.Fatalf("item %d missing result", item.ID)
		}
	}
}

func TestPoolIsolatesFailures(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.JobTypeLookup, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pool := New(testConfig(2), store, runner.Funcs{
		Lookup: func(_ context.Context, paperID int64) (string, error) {
			if paperID == 2 {
				return "", fmt.Errorf("dns lookup failed")
			}
			return `{}`, nil
		},
	}, nil, nil)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pool.Stop()

	done := waitForJobDone(t, store, job.ID, 5*time.Second)
	if done.CompletedCount != 2 || done.FailedCount != 1 {
		t.Fatalf("unexpected final job: %+v", done)
	}
	if got := done.Status(); got != queue.JobFailed {
		t.Fatalf("job with a failed item derives failed, got %s", got)
	}
}

func TestPoolHonorsPause(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.SetPaused(ctx, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	job, err := store.Enqueue(ctx, queue.JobTypeAudit, []int64{1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var processed atomic.Int64
	cfg := testConfig(1)
	cfg.Workers.PollInterval = 0
	pool := New(cfg, store, runner.Funcs{
		Audit: func(_ context.Context, _ int64) (string, error) {
			processed.Add(1)
			return `{}`, nil
		},
	}, nil, nil)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pool.Stop()

	time.Sleep(200 * time.Millisecond)
	if processed.Load() != 0 {
		t.Fatal("paused pool must not claim items")
	}

	if _, err := store.SetPaused(ctx, false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	done := waitForJobDone(t, store, job.ID, 5*time.Second)
	if done.CompletedCount != 1 {
		t.Fatalf("expected completion after resume, got %+v", done)
	}
}

func TestPoolSerializesSamePaper(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Two jobs over the same paper: their items must never overlap.
	first, err := store.Enqueue(ctx, queue.JobTypeAudit, []int64{42})
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	second, err := store.Enqueue(ctx, queue.JobTypeAudit, []int64{42})
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	pool := New(testConfig(4), store, runner.Funcs{
		Audit: func(_ context.Context, _ int64) (string, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxSeen {
				maxSeen = inFlight
			}
			mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return `{}`, nil
		},
	}, nil, nil)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pool.Stop()

	waitForJobDone(t, store, first.ID, 5*time.Second)
	waitForJobDone(t, store, second.ID, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if maxSeen > 1 {
		t.Fatalf("same paper ran concurrently, max in flight %d", maxSeen)
	}
}

func TestPoolRejectsDoubleStart(t *testing.T) {
	store := openTestStore(t)
	pool := New(testConfig(1), store, runner.Funcs{
		Audit: func(_ context.Context, _ int64) (string, error) { return `{}`, nil },
	}, nil, nil)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pool.Stop()

	if err := pool.Start(context.Background()); err == nil {
		t.Fatal("second start must fail")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	pool := New(testConfig(1), store, runner.Funcs{
		Audit: func(_ context.Context, _ int64) (string, error) { return `{}`, nil },
	}, nil, nil)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	pool.Stop()
	pool.Stop()
}
