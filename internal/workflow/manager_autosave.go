package workflow

import (
	"context"
	"time"

	"slidesmith/internal/autosave"
	"slidesmith/internal/logging"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
)

const autosaveTimeout = 10 * time.Second

// scheduleAutosave (re)arms the debounce timer. Safe to call with m.mu held.
func (m *Manager) scheduleAutosave() {
	if m.repo == nil {
		return
	}
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if m.saveTimer == nil {
		m.saveTimer = time.AfterFunc(m.debounce, func() { m.flushAutosave(false) })
		return
	}
	m.saveTimer.Reset(m.debounce)
}

func (m *Manager) cancelAutosave() {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
}

// flushAutosave writes the session now. An idle session has nothing worth
// restoring and clears the file instead. With final set it only writes when
// a save is still pending.
func (m *Manager) flushAutosave(final bool) {
	if m.repo == nil {
		return
	}
	if final {
		m.saveMu.Lock()
		pending := m.saveTimer != nil && m.saveTimer.Stop()
		m.saveTimer = nil
		m.saveMu.Unlock()
		if !pending {
			return
		}
	}

	m.mu.Lock()
	snap, keep := m.autosaveSnapshotLocked()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()
	var err error
	if keep {
		err = m.repo.Save(ctx, snap)
	} else {
		err = m.repo.Clear(ctx)
	}
	if err != nil {
		logging.WarnWithContext(m.logger, "session autosave failed", "autosave_failed",
			"session changes since the last save will not survive a restart",
			logging.Error(err),
		)
	}
}

func (m *Manager) autosaveSnapshotLocked() (autosave.Snapshot, bool) {
	if m.status == StatusIdle && len(m.draft) == 0 && m.title == "" {
		return autosave.Snapshot{}, false
	}
	session := m.sessionLocked()
	snap := autosave.Snapshot{
		Status:    string(session.Status),
		Config:    session.Config,
		Palette:   session.Palette,
		DeckID:    session.DeckID,
		Title:     session.Title,
		Selection: session.Selection,
		Cost:      session.Cost,
		Run:       session.Run,
	}
	return snap, true
}

// restoreAutosave loads the stored session once at startup. A snapshot
// taken while an outline was being generated comes back idle; a run that was
// rendering comes back paused.
func (m *Manager) restoreAutosave(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}
	snap, ok, err := m.repo.Load(ctx)
	if err != nil {
		return err
	}
	if !ok || snap == nil {
		return nil
	}

	status := Status(snap.Status)
	switch status {
	case StatusIdle, StatusOutlineReview, StatusRendering, StatusComplete:
	case StatusOutlining:
		status = StatusIdle
	default:
		m.logger.Warn("autosave has unknown session status; ignoring snapshot",
			logging.String("status", snap.Status),
			logging.String(logging.FieldEventType, "autosave_status_unknown"),
		)
		return nil
	}
	if status.hasRun() && len(snap.Run.Jobs) == 0 {
		status = StatusIdle
	}
	if status == StatusOutlineReview && len(snap.Run.Jobs) == 0 {
		status = StatusIdle
	}

	var pal palette.Palette
	if snap.Palette != "" {
		parsed, err := palette.Parse(snap.Palette)
		if err != nil {
			m.logger.Warn("autosave palette unreadable; using default",
				logging.Error(err),
				logging.String(logging.FieldEventType, "autosave_palette_invalid"),
			)
			parsed = palette.Default()
		}
		pal = parsed
	}

	runCost := 0.0
	if status.hasRun() {
		run := snap.Run
		if run.Context == nil {
			run.Context = &queue.RunContext{
				Palette:  pal,
				Audience: snap.Config.Audience,
				Topic:    snap.Config.Topic,
				Provider: snap.Config.Provider,
				Model:    snap.Config.Model,
			}
		}
		if run.Context.Palette.IsZero() {
			run.Context.Palette = palette.Default()
		}
		if status == StatusComplete {
			run.Status = queue.RunComplete
		}
		runCost = run.AccumulatedCost
		m.mu.Lock()
		m.status = status
		m.mu.Unlock()
		if err := m.runner.Restore(ctx, run); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.status = status
	m.config = snap.Config
	m.palette = pal
	m.title = snap.Title
	m.deckID = snap.DeckID
	m.selection = snap.Selection
	m.extraCost = max(0, snap.Cost-runCost)
	if status == StatusOutlineReview {
		m.draft = cloneJobs(snap.Run.Jobs)
	}
	m.updatedAt = snap.SavedAt
	m.mu.Unlock()

	m.logger.Info("session restored from autosave",
		logging.String("status", string(status)),
		logging.String("title", snap.Title),
		logging.Int("slides", len(snap.Run.Jobs)),
	)
	return nil
}
