package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"slidesmith/internal/autosave"
	"slidesmith/internal/config"
	"slidesmith/internal/deckstore"
	"slidesmith/internal/llm"
	"slidesmith/internal/logging"
	"slidesmith/internal/notifications"
	"slidesmith/internal/outline"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
	"slidesmith/internal/render"
)

const defaultAutosaveDebounce = 500 * time.Millisecond

// Deps bundles the collaborators a Manager coordinates. Runner and Outliner
// are required; the rest may be nil.
type Deps struct {
	Runner           *queue.Runner
	Outliner         Outliner
	Notes            NotesGenerator
	Store            DeckStore
	Autosave         autosave.Repository
	Notifier         notifications.Service
	Logger           *slog.Logger
	AutosaveDebounce time.Duration
	// DefaultProvider fills Request.Provider when the caller leaves it empty.
	DefaultProvider string
}

// Manager coordinates a single editing session.
type Manager struct {
	runner   *queue.Runner
	outliner Outliner
	notes    NotesGenerator
	store    DeckStore
	repo     autosave.Repository
	notifier notifications.Service
	logger   *slog.Logger
	debounce time.Duration
	provider string
	now      func() time.Time

	lifetime context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	// opMu serializes operations that touch both the session and the runner.
	opMu sync.Mutex

	mu            sync.Mutex
	status        Status
	config        outline.Request
	palette       palette.Palette
	title         string
	deckID        string
	selection     string
	draft         []queue.Job
	extraCost     float64
	lastErr       string
	updatedAt     time.Time
	runStarted    time.Time
	outlineCancel context.CancelFunc
	outlineGen    uint64
	opened        bool
	closed        bool
	unsubscribe   func()

	saveMu    sync.Mutex
	saveTimer *time.Timer
}

// New wires a Manager from configuration: the slide renderer and runner,
// the outline generator and notes writer over providers, the autosave file
// and ntfy notifications. store may be nil.
func New(cfg *config.Config, providers *llm.Registry, store *deckstore.Store, logger *slog.Logger) *Manager {
	renderer := render.NewRenderer(providers, cfg.LLM.MaxOutputTokens, logger)
	opts := queue.OptionsFromConfig(cfg)
	opts.Placeholder = render.Placeholder
	opts.Logger = logger

	deps := Deps{
		Runner: queue.NewRunner(renderer, opts),
		Outliner: outline.NewGenerator(providers, outline.Options{
			RetryAttempts: cfg.LLM.OutlineRetryAttempts,
			MaxTokens:     cfg.LLM.MaxOutputTokens,
		}, logger),
		Notes:            render.NewNotesWriter(providers, logger),
		Autosave:         autosave.NewFromConfig(cfg, logger),
		Notifier:         notifications.NewService(cfg),
		Logger:           logger,
		AutosaveDebounce: cfg.AutosaveDebounce(),
		DefaultProvider:  providers.DefaultName(),
	}
	if store != nil {
		deps.Store = store
	}
	return NewManager(deps)
}

// NewManager constructs an idle Manager from explicit collaborators.
func NewManager(deps Deps) *Manager {
	debounce := deps.AutosaveDebounce
	if debounce <= 0 {
		debounce = defaultAutosaveDebounce
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	lifetime, shutdown := context.WithCancel(context.Background())
	return &Manager{
		runner:   deps.Runner,
		outliner: deps.Outliner,
		notes:    deps.Notes,
		store:    deps.Store,
		repo:     deps.Autosave,
		notifier: notifier,
		logger:   logging.NewComponentLogger(deps.Logger, "workflow"),
		debounce: debounce,
		provider: deps.DefaultProvider,
		now:      time.Now,
		lifetime: lifetime,
		shutdown: shutdown,
		status:   StatusIdle,
	}
}

// Open subscribes to the runner and restores the autosaved session, if any.
// It runs once; later calls are no-ops.
func (m *Manager) Open(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.opened {
		m.mu.Unlock()
		return nil
	}
	m.opened = true
	m.mu.Unlock()

	unsubscribe := m.runner.Subscribe(m.onSnapshot)
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	return m.restoreAutosave(ctx)
}

// Close stops the runner, flushes a pending autosave and waits for
// background notifications.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.outlineCancel != nil {
		m.outlineCancel()
	}
	unsubscribe := m.unsubscribe
	m.mu.Unlock()

	m.runner.Close()
	if unsubscribe != nil {
		unsubscribe()
	}
	m.flushAutosave(true)
	m.wg.Wait()
	m.shutdown()
}

// Runner exposes the underlying render queue.
func (m *Manager) Runner() *queue.Runner {
	return m.runner
}

// onSnapshot tracks run transitions published by the runner.
func (m *Manager) onSnapshot(snap queue.Snapshot) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	completed := false
	switch m.status {
	case StatusRendering:
		if snap.Status == queue.RunComplete {
			m.status = StatusComplete
			completed = true
		}
	case StatusComplete:
		if snap.Status == queue.RunRendering {
			m.status = StatusRendering
			m.runStarted = m.now()
		}
	}
	relevant := m.status.hasRun()
	if relevant {
		m.updatedAt = m.now()
	}
	title := m.title
	started := m.runStarted
	m.mu.Unlock()

	if !relevant {
		return
	}
	m.scheduleAutosave()
	if completed {
		m.notifyRunCompleted(snap, title, started)
	}
}

func (m *Manager) touchLocked() {
	m.updatedAt = m.now()
}
