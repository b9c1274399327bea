package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"menuvision/internal/config"
	"menuvision/internal/logging"
	"menuvision/internal/notifications"
	"menuvision/internal/pipeline"
	"menuvision/internal/queue"
	"menuvision/internal/workflow"
)

const shutdownGrace = 10 * time.Second

// Daemon owns the store, the workflow loop, and the HTTP API for one
// menuvision instance.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	lock    *flock.Flock
	store   *queue.Store
	manager *workflow.Manager
	server  *http.Server
}

// New acquires the single-instance lock and assembles the daemon. A second
// daemon against the same data directory fails fast instead of competing
// for jobs.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "menuvisiond.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another daemon already holds %s", lock.Path())
	}

	store, err := queue.Open(cfg)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	orchestrator, err := pipeline.Build(cfg, store, logging.NewComponentLogger(logger, "pipeline"))
	if err != nil {
		store.Close()
		lock.Unlock()
		return nil, err
	}

	notifier := notifications.New(cfg, logging.NewComponentLogger(logger, "notifications"))
	manager := workflow.New(cfg, store, orchestrator, notifier, logging.NewComponentLogger(logger, "workflow"))

	return &Daemon{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "daemon"),
		lock:    lock,
		store:   store,
		manager: manager,
		server: &http.Server{
			Addr:              cfg.Paths.APIBind,
			Handler:           NewRouter(cfg, store, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until the context is cancelled, then shuts everything down in
// dependency order.
func (d *Daemon) Run(ctx context.Context) error {
	d.manager.Start(ctx)
	d.logger.Info("daemon started",
		logging.String("bind", d.cfg.Paths.APIBind),
		logging.Bool("auth", d.cfg.Paths.APIToken != ""),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if shutdownErr := d.server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	d.manager.Stop()
	if closeErr := d.store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if unlockErr := d.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	d.logger.Info("daemon stopped")
	return err
}
