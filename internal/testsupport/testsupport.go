// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"presswatch/internal/config"
	"presswatch/internal/queue"
)

// NewConfig returns a validated config rooted in a temp directory,
// with a tiny catalog file in place.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.CatalogPath = filepath.Join(dir, "papers.csv")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workers.PollInterval = 0
	cfg.Workers.ErrorRetryInterval = 0

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	catalog := "id,name,url,rss_url,email\n" +
		"1,Test Gazette,https://gazette.example,,news@gazette.example\n" +
		"2,Test Ledger,https://ledger.example,https://ledger.example/feed,\n"
	if err := os.WriteFile(cfg.Paths.CatalogPath, []byte(catalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a queue store under the config's log directory
// and closes it when the test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedCompletedJob enqueues a job and drives every item to completed.
func SeedCompletedJob(t *testing.T, store *queue.Store, jobType queue.JobType, paperIDs []int64) *queue.Job {
	t.Helper()
	ctx := context.Background()
	job, err := store.Enqueue(ctx, jobType, paperIDs)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for range paperIDs {
		item, err := store.ClaimNext(ctx, "seed-"+t.Name())
		if err != nil || item == nil {
			t.Fatalf("claim: item=%v err=%v", item, err)
		}
		if err := store.MarkCompleted(ctx, item.ID, `{}`); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	refreshed, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return refreshed
}
