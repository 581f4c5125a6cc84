// Package worker runs the bounded pool that drains the job queue.
// Workers poll the store for claims; all claim arbitration happens in
// SQLite, so the pool holds no scheduling state of its own and any
// number of workers can run against the same database.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"presswatch/internal/config"
	"presswatch/internal/logging"
	"presswatch/internal/notifications"
	"presswatch/internal/queue"
	"presswatch/internal/runner"
)

// Pool processes queue items with a fixed number of workers.
type Pool struct {
	store    *queue.Store
	runner   runner.Runner
	notifier notifications.Service
	logger   *slog.Logger

	workers          int
	pollInterval     time.Duration
	errorRetry       time.Duration
	operationTimeout time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a pool from configuration. The runner decides what an
// item actually does; the pool only manages claiming and finalizing.
func New(cfg *config.Config, store *queue.Store, r runner.Runner, notifier notifications.Service, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(nil, nil)
	}
	return &Pool{
		store:            store,
		runner:           r,
		notifier:         notifier,
		logger:           logging.NewComponentLogger(logger, "worker"),
		workers:          cfg.Workers.Count,
		pollInterval:     time.Duration(cfg.Workers.PollInterval) * time.Second,
		errorRetry:       time.Duration(cfg.Workers.ErrorRetryInterval) * time.Second,
		operationTimeout: time.Duration(cfg.Workers.OperationTimeout) * time.Second,
	}
}

// Start launches the worker goroutines. It returns immediately; the
// workers run until Stop or until ctx is canceled.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("worker pool already running")
	}
	if p.workers <= 0 {
		return fmt.Errorf("invalid worker count %d", p.workers)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(runCtx, i)
	}
	p.logger.Info("worker pool started", logging.Int("workers", p.workers))
	return nil
}

// Stop cancels the workers and waits for in-flight items to finalize.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With(logging.Int(logging.FieldWorker, id))

	for {
		if ctx.Err() != nil {
			return
		}

		state, err := p.store.State(ctx)
		if err != nil {
			logger.Error("queue state read failed",
				logging.String(logging.FieldEventType, "queue_state_failed"),
				logging.Error(err))
			if !sleepCtx(ctx, p.errorRetry) {
				return
			}
			continue
		}
		if state.Paused {
			if !sleepCtx(ctx, p.pollInterval) {
				return
			}
			continue
		}

		item, err := p.store.ClaimNext(ctx, uuid.NewString())
		if err != nil {
			logger.Error("claim failed",
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.Error(err))
			if !sleepCtx(ctx, p.errorRetry) {
				return
			}
			continue
		}
		if item == nil {
			if !sleepCtx(ctx, p.pollInterval) {
				return
			}
			continue
		}

		p.process(ctx, logger, item)
	}
}

func (p *Pool) process(ctx context.Context, logger *slog.Logger, item *queue.Item) {
	itemLogger := logger.With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int64(logging.FieldJobID, item.JobID),
		logging.Int64(logging.FieldPaperID, item.PaperID),
		logging.String(logging.FieldJobType, string(item.Type)),
		logging.String(logging.FieldRequestID, item.RequestID),
	)
	itemLogger.Info("item started")
	started := time.Now()

	opCtx := ctx
	var cancel context.CancelFunc
	if p.operationTimeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, p.operationTimeout)
	}
	result, runErr := runner.Dispatch(opCtx, p.runner, item.Type, item.PaperID)
	if cancel != nil {
		cancel()
	}

	// The item is marked running in the store; it must reach a terminal
	// state or a restart will redo work that already happened. Retry
	// the write until the store accepts it or shutdown wins.
	p.finalize(ctx, itemLogger, item, result, runErr)

	if runErr != nil {
		itemLogger.Warn("item failed",
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(runErr))
	} else {
		itemLogger.Info("item completed", logging.Duration("elapsed", time.Since(started)))
	}

	p.announceIfJobDone(ctx, itemLogger, item.JobID, started)
}

func (p *Pool) finalize(ctx context.Context, logger *slog.Logger, item *queue.Item, result string, runErr error) {
	// Detached context for the write itself: a finished result should
	// still land even when shutdown has begun.
	writeCtx := context.Background()
	for {
		var err error
		if runErr != nil {
			err = p.store.MarkFailed(writeCtx, item.ID, runErr.Error())
		} else {
			err = p.store.MarkCompleted(writeCtx, item.ID, result)
		}
		if err == nil {
			return
		}
		if errors.Is(err, queue.ErrNotFound) {
			// Someone else finalized it; nothing left to record.
			logger.Warn("item already finalized", logging.Error(err))
			return
		}
		logger.Error("finalize write failed, retrying",
			logging.String(logging.FieldEventType, "finalize_retry"),
			logging.Error(err))
		if !sleepCtx(ctx, p.errorRetry) {
			logger.Error("shutdown before finalize; item will be recovered on restart")
			return
		}
	}
}

func (p *Pool) announceIfJobDone(ctx context.Context, logger *slog.Logger, jobID int64, started time.Time) {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		logger.Warn("job lookup after finalize failed", logging.Error(err))
		return
	}
	if job.CompletedAt == nil {
		return
	}
	duration := job.CompletedAt.Sub(job.CreatedAt)
	if duration < 0 {
		duration = time.Since(started)
	}
	if err := p.notifier.NotifyJobCompleted(ctx, job.Type, job.ProcessedCount, job.FailedCount, duration); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Millisecond
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
