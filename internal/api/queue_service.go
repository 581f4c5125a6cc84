package api

import (
	"context"
	"fmt"
	"log/slog"

	"presswatch/internal/logging"
	"presswatch/internal/notifications"
	"presswatch/internal/queue"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// QueueService exposes queue operations to the transports.
type QueueService struct {
	store    *queue.Store
	notifier notifications.Service
	logger   *slog.Logger
}

// NewQueueService wires the service. notifier may be nil.
func NewQueueService(store *queue.Store, notifier notifications.Service, logger *slog.Logger) *QueueService {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(nil, nil)
	}
	return &QueueService{
		store:    store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// Enqueue validates and creates a job.
func (s *QueueService) Enqueue(ctx context.Context, req EnqueueRequest) (JobSummary, error) {
	jobType, ok := queue.ParseJobType(req.JobType)
	if !ok {
		return JobSummary{}, fmt.Errorf("%w: %q", queue.ErrUnknownJobType, req.JobType)
	}
	if len(req.PaperIDs) == 0 {
		return JobSummary{}, queue.ErrNoPaperIDs
	}
	for _, id := range req.PaperIDs {
		if id <= 0 {
			return JobSummary{}, fmt.Errorf("%w: %d", queue.ErrInvalidPaperID, id)
		}
	}

	job, err := s.store.Enqueue(ctx, jobType, req.PaperIDs)
	if err != nil {
		return JobSummary{}, err
	}
	s.logger.Info("job enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.Int("papers", job.TotalCount))
	if err := s.notifier.NotifyJobQueued(ctx, job.Type, job.TotalCount); err != nil {
		s.logger.Warn("queued notification failed", logging.Error(err))
	}
	return FromJob(job), nil
}

// Cancel cancels a job's pending items.
func (s *QueueService) Cancel(ctx context.Context, jobID int64) (CancelResponse, error) {
	job, canceled, err := s.store.CancelJob(ctx, jobID)
	if err != nil {
		return CancelResponse{}, err
	}
	s.logger.Info("job canceled",
		logging.Int64(logging.FieldJobID, jobID),
		logging.Int64("canceled_items", canceled))
	return CancelResponse{Job: FromJob(job), CanceledItems: canceled}, nil
}

// ClearQueue cancels all pending items everywhere.
func (s *QueueService) ClearQueue(ctx context.Context) (ClearQueueResponse, error) {
	jobs, items, err := s.store.ClearQueue(ctx)
	if err != nil {
		return ClearQueueResponse{}, err
	}
	s.logger.Info("queue cleared",
		logging.Int64("canceled_jobs", jobs),
		logging.Int64("canceled_items", items))
	return ClearQueueResponse{CanceledJobs: jobs, CanceledItems: items}, nil
}

// ClearHistory deletes all fully terminal jobs.
func (s *QueueService) ClearHistory(ctx context.Context) (ClearHistoryResponse, error) {
	deleted, err := s.store.ClearHistory(ctx)
	if err != nil {
		return ClearHistoryResponse{}, err
	}
	s.logger.Info("history cleared", logging.Int64("deleted_jobs", deleted))
	return ClearHistoryResponse{Deleted: deleted}, nil
}

// ActiveJobs lists jobs that still have work outstanding.
func (s *QueueService) ActiveJobs(ctx context.Context) ([]JobSummary, error) {
	jobs, err := s.store.ActiveJobs(ctx)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// ActiveItems lists all non-terminal items.
func (s *QueueService) ActiveItems(ctx context.Context) ([]ItemSummary, error) {
	items, err := s.store.ActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	return FromItems(items), nil
}

// HistoryJobs lists finished jobs, newest first.
func (s *QueueService) HistoryJobs(ctx context.Context, limit, offset int) ([]JobSummary, error) {
	limit, offset = clampPage(limit, offset)
	jobs, err := s.store.HistoryJobs(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// HistoryItems lists finished items, newest first.
func (s *QueueService) HistoryItems(ctx context.Context, limit, offset int) ([]ItemSummary, error) {
	limit, offset = clampPage(limit, offset)
	items, err := s.store.HistoryItems(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return FromItems(items), nil
}

// State reports the pause flag.
func (s *QueueService) State(ctx context.Context) (QueueState, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return QueueState{}, err
	}
	return QueueState{Paused: state.Paused, UpdatedAt: state.UpdatedAt}, nil
}

// SetPaused flips the pause flag.
func (s *QueueService) SetPaused(ctx context.Context, paused bool) (QueueState, error) {
	state, err := s.store.SetPaused(ctx, paused)
	if err != nil {
		return QueueState{}, err
	}
	verb := "resumed"
	if paused {
		verb = "paused"
	}
	s.logger.Info("queue "+verb, logging.Bool("paused", state.Paused))
	return QueueState{Paused: state.Paused, UpdatedAt: state.UpdatedAt}, nil
}

// Stats reports item counts by status.
func (s *QueueService) Stats(ctx context.Context) (queue.Stats, error) {
	return s.store.Stats(ctx)
}

// TestNotification pushes a test message through the notifier.
func (s *QueueService) TestNotification(ctx context.Context) error {
	return s.notifier.TestNotification(ctx)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
