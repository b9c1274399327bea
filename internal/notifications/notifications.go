// Package notifications pushes job lifecycle events to an ntfy topic.
package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"menuvision/internal/config"
	"menuvision/internal/logging"
	"menuvision/internal/queue"
)

const defaultRequestTimeout = 10 * time.Second

// Service publishes notifications. A service built without a topic is a
// no-op, so callers never need to branch on configuration.
type Service struct {
	topicURL   string
	completion bool
	errors     bool
	httpClient *http.Client
	logger     *slog.Logger
}

// Option adjusts service construction, primarily for tests.
type Option func(*Service)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Service) {
		if httpClient != nil {
			s.httpClient = httpClient
		}
	}
}

// New builds the notification service from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultRequestTimeout
	if cfg.Notifications.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	}
	service := &Service{
		topicURL:   strings.TrimSpace(cfg.Notifications.NtfyTopic),
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Enabled reports whether any notification can actually be delivered.
func (s *Service) Enabled() bool {
	return s.topicURL != ""
}

// JobFinished announces a terminal job. Completed and partial results go out
// under the completion toggle, failures under the errors toggle.
func (s *Service) JobFinished(ctx context.Context, job *queue.Job) {
	if !s.Enabled() {
		return
	}
	switch job.Status {
	case queue.StatusCompleted:
		if !s.completion {
			return
		}
		generated, _ := job.ImageCounts()
		s.publish(ctx, "Menu processed",
			fmt.Sprintf("Job %s completed: %d dishes, %d images", shortID(job.ID), len(job.Dishes), generated), "tada")
	case queue.StatusPartial:
		if !s.completion {
			return
		}
		generated, missing := job.ImageCounts()
		s.publish(ctx, "Menu partially processed",
			fmt.Sprintf("Job %s: %d images generated, %d placeholders", shortID(job.ID), generated, missing), "warning")
	case queue.StatusFailed:
		if !s.errors {
			return
		}
		s.publish(ctx, "Menu processing failed",
			fmt.Sprintf("Job %s failed: %s", shortID(job.ID), job.ErrorMessage), "rotating_light")
	}
}

func (s *Service) publish(ctx context.Context, title, message, tags string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.topicURL, strings.NewReader(message))
	if err != nil {
		s.logger.Warn("notification request build failed", logging.Error(err))
		return
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", tags)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("notification delivery failed", logging.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		s.logger.Warn("notification rejected", logging.Int("status", resp.StatusCode))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
