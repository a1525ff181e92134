package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"slidesmith/internal/config"
	"slidesmith/internal/deckstore"
	"slidesmith/internal/logging"
	"slidesmith/internal/notifications"
	"slidesmith/internal/preflight"
	"slidesmith/internal/workflow"
)

// Daemon owns the deck store, the editing session and the HTTP API, and
// enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *deckstore.Store
	manager *workflow.Manager
	hub     *logging.Hub
	api     *apiServer
	logPath string

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Bind         string
	DatabasePath string
	LockFilePath string
	LogPath      string
	StartedAt    time.Time
	Session      workflow.Session
}

// New constructs a daemon. hub may be nil, in which case /api/logs returns
// no events.
func New(cfg *config.Config, store *deckstore.Store, manager *workflow.Manager, hub *logging.Hub, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		manager:  manager,
		hub:      hub,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		logPath:  logging.FilePath(cfg),
	}
	d.api = newAPIServer(cfg.Server, d, logger)
	return d, nil
}

// Start acquires the instance lock, restores the autosaved session and
// starts serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another slidesmith daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Open(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("open session: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("slidesmith daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.api.address()),
	)
	return nil
}

// Stop stops serving and releases the instance lock. The session keeps its
// state until Close.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock",
			"lock_release_failed", "the next start may report another instance running",
			logging.Error(err),
		)
	}
	d.running.Store(false)
	d.logger.Info("slidesmith daemon stopped")
}

// Close stops the daemon, flushes the session autosave and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	d.manager.Close()
	return d.store.Close()
}

// Manager returns the session coordinator.
func (d *Daemon) Manager() *workflow.Manager {
	return d.manager
}

// LogStream returns the in-memory log hub, if any.
func (d *Daemon) LogStream() *logging.Hub {
	return d.hub
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Address returns the address the API is listening on, or the configured
// bind when not started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	started := d.startedAt
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Bind:         d.api.address(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		StartedAt:    started,
		Session:      d.manager.Session(),
	}
}

// Preflight runs the configuration and runtime checks.
func (d *Daemon) Preflight(ctx context.Context) []preflight.Result {
	return preflight.RunAll(ctx, d.cfg)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
