// Package workflow runs the daemon's processing loop: it claims pending
// jobs one at a time, drives them through the pipeline, and keeps the
// heartbeat fresh so interrupted runs can be reclaimed.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"menuvision/internal/config"
	"menuvision/internal/logging"
	"menuvision/internal/queue"
)

// Processor drives one job to a terminal status.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Notifier announces terminal jobs. JobFinished must be safe on every
// terminal status.
type Notifier interface {
	JobFinished(ctx context.Context, job *queue.Job)
}

// Manager polls the store and processes at most one job at a time. A second
// submission while a job is running simply waits in the queue.
type Manager struct {
	store     *queue.Store
	processor Processor
	notifier  Notifier
	logger    *slog.Logger

	pollInterval      time.Duration
	errorRetry        time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New builds the manager from configuration.
func New(cfg *config.Config, store *queue.Store, processor Processor, notifier Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:             store,
		processor:         processor,
		notifier:          notifier,
		logger:            logger.With(logging.String(logging.FieldComponent, "workflow")),
		pollInterval:      time.Duration(cfg.Workflow.JobPollInterval) * time.Second,
		errorRetry:        time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeatInterval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
	}
}

// Start launches the processing loop. It is an error-free no-op when the
// manager is already running.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.run(loopCtx)
}

// Stop halts the loop and waits for any in-flight job to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("workflow manager stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	m.logger.Info("workflow manager started",
		logging.Duration("poll_interval", m.pollInterval))

	// Jobs left processing by a previous daemon run fail once their
	// heartbeat has lapsed.
	m.reclaimStale(ctx)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.reclaimStale(ctx)

		job, err := m.store.NextPending(ctx)
		if err != nil {
			m.logger.Error("poll for pending job failed", logging.Error(err))
			if !m.sleepFor(ctx, m.errorRetry) {
				return
			}
			continue
		}
		if job == nil {
			continue
		}
		m.processJob(ctx, job)
	}
}

func (m *Manager) processJob(ctx context.Context, job *queue.Job) {
	logger := m.logger.With(logging.String(logging.FieldJobID, job.ID))
	logger.Info("job claimed")

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		m.heartbeatLoop(heartbeatCtx, job.ID)
	}()

	err := m.processor.Process(ctx, job)
	stopHeartbeat()
	hbWG.Wait()

	if err != nil {
		logger.Error("job processing errored", logging.Error(err))
		job.SetFailed("internal error: " + err.Error())
		if updateErr := m.store.Update(context.WithoutCancel(ctx), job); updateErr != nil {
			logger.Error("persist internal failure", logging.Error(updateErr))
		}
	}

	if m.notifier != nil && job.Status.IsTerminal() {
		m.notifier.JobFinished(context.WithoutCancel(ctx), job)
	}
}

func (m *Manager) heartbeatLoop(ctx context.Context, jobID string) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.UpdateHeartbeat(ctx, jobID); err != nil && ctx.Err() == nil {
				m.logger.Warn("heartbeat update failed",
					logging.String(logging.FieldJobID, jobID),
					logging.Error(err))
			}
		}
	}
}

func (m *Manager) reclaimStale(ctx context.Context) {
	cutoff := time.Now().Add(-m.heartbeatTimeout)
	reclaimed, err := m.store.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("stale job reclaim failed", logging.Error(err))
		}
		return
	}
	if reclaimed > 0 {
		m.logger.Warn("reclaimed stale processing jobs", logging.Int64("count", reclaimed))
	}
}

func (m *Manager) sleepFor(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
