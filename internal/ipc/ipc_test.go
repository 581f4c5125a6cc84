package ipc

import (
	"context"
	"testing"

	"presswatch/internal/api"
	"presswatch/internal/daemon"
	"presswatch/internal/queue"
	"presswatch/internal/runner"
	"presswatch/internal/testsupport"
	"presswatch/internal/worker"
)

func startServer(t *testing.T) (*Client, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// Pause up front so jobs stay inspectable instead of racing the pool.
	if _, err := store.SetPaused(context.Background(), true); err != nil {
		t.Fatalf("pause: %v", err)
	}

	r := runner.Funcs{
		Audit:  func(_ context.Context, _ int64) (string, error) { return `{}`, nil },
		Lookup: func(_ context.Context, _ int64) (string, error) { return `{}`, nil },
	}
	pool := worker.New(cfg, store, r, nil, nil)
	service := api.NewQueueService(store, nil, nil)
	d := daemon.New(cfg, store, pool, service, nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	server, err := NewServer(cfg.SocketPath(), service, d, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go server.Serve()
	t.Cleanup(func() { _ = server.Close() })

	client, err := Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, store
}

func TestEnqueueAndListOverIPC(t *testing.T) {
	client, _ := startServer(t)

	job, err := client.Enqueue("audit", []int64{1, 2})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.TotalCount != 2 || job.JobType != "audit" {
		t.Fatalf("unexpected job: %+v", job)
	}

	jobs, err := client.ActiveJobs()
	if err != nil {
		t.Fatalf("active jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Fatalf("unexpected active jobs: %+v", jobs)
	}

	items, err := client.ActiveItems()
	if err != nil {
		t.Fatalf("active items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestEnqueueErrorCrossesTheWire(t *testing.T) {
	client, _ := startServer(t)

	if _, err := client.Enqueue("warp", []int64{1}); err == nil {
		t.Fatal("expected job type error over ipc")
	}
	if _, err := client.Enqueue("audit", nil); err == nil {
		t.Fatal("expected empty paper ids error over ipc")
	}
}

func TestCancelOverIPC(t *testing.T) {
	client, _ := startServer(t)

	job, err := client.Enqueue("lookup", []int64{5, 6})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	result, err := client.Cancel(job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.CanceledItems != 2 {
		t.Fatalf("expected 2 canceled, got %d", result.CanceledItems)
	}
	if result.Job.Status != string(queue.JobCanceled) {
		t.Fatalf("expected canceled job, got %s", result.Job.Status)
	}

	if _, err := client.Cancel(9999); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestControlOverIPC(t *testing.T) {
	client, _ := startServer(t)

	state, err := client.Control()
	if err != nil {
		t.Fatalf("control: %v", err)
	}
	if !state.Paused {
		t.Fatal("fixture starts paused")
	}

	state, err = client.SetPaused(false)
	if err != nil || state.Paused {
		t.Fatalf("resume: state=%+v err=%v", state, err)
	}
}

func TestStatusOverIPC(t *testing.T) {
	client, _ := startServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !status.Paused {
		t.Fatal("status must reflect the paused queue")
	}
}

func TestClearOperationsOverIPC(t *testing.T) {
	client, store := startServer(t)

	if _, err := client.Enqueue("audit", []int64{1, 2, 3}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cleared, err := client.ClearQueue()
	if err != nil {
		t.Fatalf("clear queue: %v", err)
	}
	if cleared.CanceledItems != 3 {
		t.Fatalf("expected 3 canceled items, got %d", cleared.CanceledItems)
	}

	purged, err := client.ClearHistory()
	if err != nil {
		t.Fatalf("clear history: %v", err)
	}
	if purged.Deleted != 1 {
		t.Fatalf("expected 1 deleted job, got %d", purged.Deleted)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected empty store, got %+v", stats)
	}
}

func TestTestNotificationNoopSucceeds(t *testing.T) {
	client, _ := startServer(t)
	if err := client.TestNotification(); err != nil {
		t.Fatalf("test notification: %v", err)
	}
}
