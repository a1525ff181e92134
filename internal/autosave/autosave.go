// Package autosave persists the current editing session so it survives a
// restart. Exactly one snapshot is kept; it is written atomically under a file
// lock and ignored once it is older than the configured maximum age.
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"slidesmith/internal/config"
	"slidesmith/internal/fileutil"
	"slidesmith/internal/logging"
	"slidesmith/internal/outline"
	"slidesmith/internal/queue"
)

// FormatVersion tags the snapshot layout.
const FormatVersion = 1

const (
	defaultMaxAge  = 7 * 24 * time.Hour
	lockRetryDelay = 10 * time.Millisecond
)

// Snapshot is the persisted session state.
type Snapshot struct {
	Version   int             `json:"version"`
	SavedAt   time.Time       `json:"saved_at"`
	Status    string          `json:"status"`
	Config    outline.Request `json:"config"`
	Palette   string          `json:"palette,omitempty"`
	DeckID    string          `json:"deck_id,omitempty"`
	Title     string          `json:"title,omitempty"`
	Selection string          `json:"selection,omitempty"`
	Cost      float64         `json:"accumulated_cost"`
	Run       queue.Snapshot  `json:"run"`
}

// Repository loads, saves and clears the session snapshot.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, bool, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
}

// FileRepository stores the snapshot as one JSON file.
type FileRepository struct {
	// mu serializes goroutines of this process; the flock guards against others.
	mu     sync.Mutex
	path   string
	maxAge time.Duration
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time
}

// NewFileRepository returns a repository writing to path. maxAge <= 0 uses 7 days.
func NewFileRepository(path string, maxAge time.Duration, logger *slog.Logger) *FileRepository {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &FileRepository{
		path:   path,
		maxAge: maxAge,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "autosave"),
		now:    time.Now,
	}
}

// NewFromConfig builds the repository from [autosave]. It returns nil when
// autosave is disabled.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) Repository {
	if cfg == nil || !cfg.Autosave.Enabled || cfg.Autosave.Path == "" {
		return nil
	}
	return NewFileRepository(cfg.Autosave.Path, cfg.AutosaveMaxAge(), logger)
}

// Path returns the snapshot file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load returns the stored snapshot. A missing, stale or unreadable snapshot
// reports false; stale files are left on disk and corrupt ones are copied
// aside before being ignored.
func (r *FileRepository) Load(ctx context.Context) (*Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureDir(); err != nil {
		return nil, false, err
	}
	locked, err := r.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, false, fmt.Errorf("lock autosave: %w", err)
	}
	if !locked {
		return nil, false, fmt.Errorf("lock autosave: %w", ctx.Err())
	}
	defer func() { _ = r.lock.Unlock() }()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read autosave: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		backup := r.path + ".corrupt"
		if copyErr := fileutil.CopyFile(r.path, backup); copyErr != nil {
			r.logger.Warn("autosave backup failed", logging.Error(copyErr))
		}
		logging.WarnWithContext(r.logger, "autosave snapshot unreadable", "autosave_corrupt", "session starts empty",
			logging.String("backup", backup), logging.Error(err))
		return nil, false, nil
	}
	if snap.Version > FormatVersion {
		logging.WarnWithContext(r.logger, "autosave snapshot from newer version", "autosave_version", "session starts empty",
			logging.Int("version", snap.Version))
		return nil, false, nil
	}
	if age := r.now().Sub(snap.SavedAt); age > r.maxAge {
		r.logger.Info("autosave snapshot is stale", logging.Duration("age", age))
		return nil, false, nil
	}
	return &snap, true, nil
}

// Save replaces the stored snapshot.
func (r *FileRepository) Save(ctx context.Context, snap Snapshot) error {
	if err := r.ensureDir(); err != nil {
		return err
	}
	snap.Version = FormatVersion
	snap.SavedAt = r.now().UTC()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode autosave: %w", err)
	}
	return r.withLock(ctx, func() error {
		if err := fileutil.WriteFileAtomic(r.path, data, 0o600); err != nil {
			return fmt.Errorf("write autosave: %w", err)
		}
		return nil
	})
}

// Clear removes the stored snapshot.
func (r *FileRepository) Clear(ctx context.Context) error {
	if err := r.ensureDir(); err != nil {
		return err
	}
	return r.withLock(ctx, func() error {
		if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove autosave: %w", err)
		}
		return nil
	})
}

func (r *FileRepository) withLock(ctx context.Context, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	locked, err := r.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock autosave: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock autosave: %w", ctx.Err())
	}
	defer func() { _ = r.lock.Unlock() }()
	return fn()
}

func (r *FileRepository) ensureDir() error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create autosave directory: %w", err)
	}
	return nil
}
