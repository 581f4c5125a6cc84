// Package notifications pushes short status messages to an ntfy topic.
// With no topic configured every call is a no-op, so callers never
// need to guard notification sends.
package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"presswatch/internal/config"
	"presswatch/internal/logging"
	"presswatch/internal/queue"
)

// Service sends user-facing notifications about queue activity.
type Service interface {
	NotifyJobQueued(ctx context.Context, jobType queue.JobType, papers int) error
	NotifyJobCompleted(ctx context.Context, jobType queue.JobType, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, detail string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notifier from configuration. Returns a no-op
// service when no topic is set.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil || cfg.Notifications.NtfyTopic == "" {
		return &noopService{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		topicURL:  cfg.Notifications.NtfyTopic,
		jobEvents: cfg.Notifications.Jobs,
		errEvents: cfg.Notifications.Errors,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type ntfyService struct {
	topicURL  string
	jobEvents bool
	errEvents bool
	client    *http.Client
	logger    *slog.Logger
}

func (s *ntfyService) NotifyJobQueued(ctx context.Context, jobType queue.JobType, papers int) error {
	if !s.jobEvents {
		return nil
	}
	message := fmt.Sprintf("%s job queued for %d papers", jobType, papers)
	return s.send(ctx, "Job queued", message, "hourglass_flowing_sand", "default")
}

func (s *ntfyService) NotifyJobCompleted(ctx context.Context, jobType queue.JobType, processed, failed int, duration time.Duration) error {
	if !s.jobEvents {
		return nil
	}
	message := fmt.Sprintf("%s job finished: %d processed, %d failed in %s",
		jobType, processed, failed, duration.Round(time.Second))
	tags := "white_check_mark"
	if failed > 0 {
		tags = "warning"
	}
	return s.send(ctx, "Job finished", message, tags, "default")
}

func (s *ntfyService) NotifyError(ctx context.Context, detail string, err error) error {
	if !s.errEvents {
		return nil
	}
	message := fmt.Sprintf("%s: %v", detail, err)
	return s.send(ctx, "Presswatch error", message, "rotating_light", "high")
}

func (s *ntfyService) TestNotification(ctx context.Context) error {
	return s.send(ctx, "Presswatch test", "Notifications are working.", "bell", "default")
}

func (s *ntfyService) send(ctx context.Context, title, message, tags, priority string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.topicURL, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", tags)
	req.Header.Set("Priority", priority)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("notification send failed", logging.Error(err))
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("notification rejected", logging.Int("status", resp.StatusCode))
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (*noopService) NotifyJobQueued(context.Context, queue.JobType, int) error { return nil }
func (*noopService) NotifyJobCompleted(context.Context, queue.JobType, int, int, time.Duration) error {
	return nil
}
func (*noopService) NotifyError(context.Context, string, error) error { return nil }
func (*noopService) TestNotification(context.Context) error           { return nil }
