// Package daemon ties the queue store, worker pool and control
// surfaces into one supervised process. A file lock guarantees a
// single instance per log directory; crash recovery runs before any
// worker can claim.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"presswatch/internal/api"
	"presswatch/internal/config"
	"presswatch/internal/logging"
	"presswatch/internal/queue"
	"presswatch/internal/worker"
)

// Daemon owns the long-running pieces of presswatchd.
type Daemon struct {
	cfg     *config.Config
	store   *queue.Store
	pool    *worker.Pool
	apiSrv  *APIServer
	lock    *flock.Flock
	logger  *slog.Logger
	started time.Time
}

// Status is the daemon self-report served over HTTP and IPC.
type Status struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	StartedAt    time.Time   `json:"started_at"`
	QueueDBPath  string      `json:"queue_db_path"`
	LockFilePath string      `json:"lock_file_path"`
	APIAddr      string      `json:"api_addr"`
	Paused       bool        `json:"paused"`
	Stats        queue.Stats `json:"stats"`
}

// New assembles a daemon. The store must already be open; the pool is
// built by the caller so tests can inject runners.
func New(cfg *config.Config, store *queue.Store, pool *worker.Pool, service *api.QueueService, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:    cfg,
		store:  store,
		pool:   pool,
		logger: logging.NewComponentLogger(logger, "daemon"),
	}
	d.apiSrv = NewAPIServer(service, d, logger)
	return d
}

// Start acquires the instance lock, recovers orphaned work, then
// launches the workers and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	lock := flock.New(d.cfg.LockFilePath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", d.cfg.LockFilePath())
	}
	d.lock = lock

	// Items stranded in running by a crash must go back to pending
	// before any worker starts, or they would be stuck forever.
	recovered, err := d.store.RecoverOrphanedRunning(ctx)
	if err != nil {
		d.releaseLock()
		return fmt.Errorf("recover orphaned items: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("recovered orphaned items", logging.Int64("count", recovered))
	}

	if err := d.pool.Start(ctx); err != nil {
		d.releaseLock()
		return fmt.Errorf("start worker pool: %w", err)
	}

	if err := d.apiSrv.Start(d.cfg.Paths.APIBind); err != nil {
		d.pool.Stop()
		d.releaseLock()
		return err
	}

	d.started = time.Now().UTC()
	d.logger.Info("daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String("queue_db", d.store.Path()))
	return nil
}

// Status reports the daemon's current state.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("queue stats: %w", err)
	}
	state, err := d.store.State(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("queue state: %w", err)
	}
	return Status{
		Running:      true,
		PID:          os.Getpid(),
		StartedAt:    d.started,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.cfg.LockFilePath(),
		APIAddr:      d.apiSrv.Addr(),
		Paused:       state.Paused,
		Stats:        stats,
	}, nil
}

// APIAddr reports the bound HTTP address.
func (d *Daemon) APIAddr() string {
	return d.apiSrv.Addr()
}

// Close stops accepting work, waits for in-flight items, and releases
// the instance lock.
func (d *Daemon) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.apiSrv.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("api shutdown", logging.Error(err))
	}

	d.pool.Stop()
	d.releaseLock()
	d.logger.Info("daemon stopped")
	return nil
}

func (d *Daemon) releaseLock() {
	if d.lock == nil {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release instance lock", logging.Error(err))
	}
	d.lock = nil
}
