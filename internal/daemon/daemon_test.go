package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"presswatch/internal/api"
	"presswatch/internal/queue"
	"presswatch/internal/runner"
	"presswatch/internal/testsupport"
	"presswatch/internal/worker"
)

func startTestDaemon(t *testing.T, r runner.Runner) (*Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if r == nil {
		r = runner.Funcs{
			Audit:  func(_ context.Context, _ int64) (string, error) { return `{}`, nil },
			Lookup: func(_ context.Context, _ int64) (string, error) { return `{}`, nil },
		}
	}
	pool := worker.New(cfg, store, r, nil, nil)
	service := api.NewQueueService(store, nil, nil)
	d := New(cfg, store, pool, service, nil)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, "http://" + d.APIAddr()
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var value T
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return value
}

func TestEnqueueOverHTTP(t *testing.T) {
	_, base := startTestDaemon(t, nil)

	resp := postJSON(t, base+"/api/jobs", api.EnqueueRequest{JobType: "audit", PaperIDs: []int64{1, 2}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	job := decodeBody[api.JobSummary](t, resp)
	if job.JobType != "audit" || job.TotalCount != 2 {
		t.Fatalf("unexpected job: %+v", job)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/api/jobs/history?limit=10")
		if err != nil {
			t.Fatalf("get history: %v", err)
		}
		jobs := decodeBody[[]api.JobSummary](t, resp)
		if len(jobs) == 1 && jobs[0].Status == string(queue.JobCompleted) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job never completed")
}

func TestEnqueueValidationOverHTTP(t *testing.T) {
	_, base := startTestDaemon(t, nil)

	resp := postJSON(t, base+"/api/jobs", api.EnqueueRequest{JobType: "audit"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty paper ids, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, base+"/api/jobs", api.EnqueueRequest{JobType: "zap", PaperIDs: []int64{1}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad job type, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCancelUnknownJobOverHTTP(t *testing.T) {
	_, base := startTestDaemon(t, nil)

	resp := postJSON(t, base+"/api/jobs/999/cancel", struct{}{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestControlPauseOverHTTP(t *testing.T) {
	_, base := startTestDaemon(t, nil)

	resp := postJSON(t, base+"/api/jobs/control", map[string]bool{"paused": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	state := decodeBody[api.QueueState](t, resp)
	if !state.Paused {
		t.Fatal("expected paused state")
	}

	getResp, err := http.Get(base + "/api/jobs/control")
	if err != nil {
		t.Fatalf("get control: %v", err)
	}
	state = decodeBody[api.QueueState](t, getResp)
	if !state.Paused {
		t.Fatal("pause must persist")
	}

	resp = postJSON(t, base+"/api/jobs/control", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing paused field must 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStatusEndpoint(t *testing.T) {
	d, base := startTestDaemon(t, nil)

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	status := decodeBody[Status](t, resp)
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.QueueDBPath != d.store.Path() {
		t.Fatalf("status db path %q", status.QueueDBPath)
	}
}

func TestSecondInstanceIsRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	r := runner.Funcs{Audit: func(_ context.Context, _ int64) (string, error) { return `{}`, nil }}
	makeDaemon := func() *Daemon {
		pool := worker.New(cfg, store, r, nil, nil)
		return New(cfg, store, pool, api.NewQueueService(store, nil, nil), nil)
	}

	first := makeDaemon()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Close()

	second := makeDaemon()
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Fatal("second instance must be refused")
	}
}

func TestStartupRecoveryResetsRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, queue.JobTypeAudit, []int64{1, 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Simulate a crash: claim and never finalize.
	if item, err := store.ClaimNext(ctx, "crashed-worker"); err != nil || item == nil {
		t.Fatalf("claim: item=%v err=%v", item, err)
	}

	var processed atomic.Int64
	pool := worker.New(cfg, store, runner.Funcs{
		Audit: func(_ context.Context, _ int64) (string, error) {
			processed.Add(1)
			return `{}`, nil
		},
	}, nil, nil)
	d := New(cfg, store, pool, api.NewQueueService(store, nil, nil), nil)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.Completed == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("orphaned item was not recovered, processed %d", processed.Load())
}

func TestHistoryItemsOverHTTP(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedCompletedJob(t, store, queue.JobTypeLookup, []int64{1, 2, 3})

	pool := worker.New(cfg, store, runner.Funcs{}, nil, nil)
	d := New(cfg, store, pool, api.NewQueueService(store, nil, nil), nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Close()
	base := "http://" + d.APIAddr()

	resp, err := http.Get(fmt.Sprintf("%s/api/jobs/history/items?limit=2&offset=1", base))
	if err != nil {
		t.Fatalf("get history items: %v", err)
	}
	items := decodeBody[[]api.ItemSummary](t, resp)
	if len(items) != 2 {
		t.Fatalf("expected 2 items on page, got %d", len(items))
	}
	for _, item := range items {
		if item.Status != string(queue.StatusCompleted) {
			t.Fatalf("expected completed items, got %+v", item)
		}
	}
}
