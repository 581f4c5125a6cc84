// Package daemonrun assembles a complete daemon from configuration
// and runs it in the foreground. It exists so presswatchd and the
// CLI's foreground mode share one wiring path.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"presswatch/internal/api"
	"presswatch/internal/catalog"
	"presswatch/internal/config"
	"presswatch/internal/daemon"
	"presswatch/internal/ipc"
	"presswatch/internal/notifications"
	"presswatch/internal/probe"
	"presswatch/internal/queue"
	"presswatch/internal/runner"
	"presswatch/internal/worker"
)

// BuildRunner loads the paper catalog and wires the audit and lookup
// probes behind the runner interface the worker pool consumes.
func BuildRunner(cfg *config.Config, logger *slog.Logger) (runner.Runner, error) {
	papers, err := catalog.Load(cfg.Paths.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	auditor := probe.NewAuditor(
		time.Duration(cfg.Audit.RequestTimeout)*time.Second,
		cfg.Audit.UserAgent,
		logger,
	)
	finder := probe.NewContactFinder(
		time.Duration(cfg.Lookup.RequestTimeout)*time.Second,
		cfg.Lookup.UserAgent,
		cfg.Lookup.ContactPages,
		logger,
	)

	resolve := func(paperID int64) (*catalog.Paper, error) {
		paper, ok := papers.Resolve(paperID)
		if !ok {
			return nil, fmt.Errorf("paper %d not in catalog", paperID)
		}
		return paper, nil
	}

	return runner.Funcs{
		Audit: func(ctx context.Context, paperID int64) (string, error) {
			paper, err := resolve(paperID)
			if err != nil {
				return "", err
			}
			return auditor.Audit(ctx, paper)
		},
		Lookup: func(ctx context.Context, paperID int64) (string, error) {
			paper, err := resolve(paperID)
			if err != nil {
				return "", err
			}
			return finder.Lookup(ctx, paper)
		},
	}, nil
}

// Run assembles and runs a full daemon until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	notifier := notifications.NewService(cfg, logger)

	jobRunner, err := BuildRunner(cfg, logger)
	if err != nil {
		return err
	}

	pool := worker.New(cfg, store, jobRunner, notifier, logger)
	service := api.NewQueueService(store, notifier, logger)

	d := daemon.New(cfg, store, pool, service, logger)
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(cfg.SocketPath(), service, d, logger)
	if err != nil {
		return err
	}
	defer ipcServer.Close()
	go ipcServer.Serve()

	<-ctx.Done()
	return nil
}
