package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slidesmith/internal/logging"
	"slidesmith/internal/outline"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
	"slidesmith/internal/services"
)

// ConfirmOutline starts the render run for the reviewed outline with the
// chosen palette. A zero palette uses the default. Slides that already carry
// output (an outline returned from a cancelled run) are not rendered again.
func (m *Manager) ConfirmOutline(ctx context.Context, pal palette.Palette) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if pal.IsZero() {
		pal = palette.Default()
	}
	if err := pal.Validate(); err != nil {
		return Session{}, services.Wrap(services.ErrValidation, "workflow", "confirm outline", "invalid palette", err)
	}

	m.mu.Lock()
	if m.status != StatusOutlineReview {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("confirm outline while %s: %w", m.status, ErrInvalidState)
	}
	if len(m.draft) == 0 {
		m.mu.Unlock()
		return Session{}, services.Wrap(services.ErrValidation, "workflow", "confirm outline", "outline has no slides", nil)
	}
	jobs := cloneJobs(m.draft)
	rc := queue.RunContext{
		Palette:  pal,
		Audience: m.config.Audience,
		Topic:    m.config.Topic,
		Provider: m.config.Provider,
		Model:    m.config.Model,
	}
	prevStatus := m.status
	m.palette = pal
	m.status = StatusRendering
	m.runStarted = m.now()
	m.touchLocked()
	m.mu.Unlock()

	if err := m.runner.Start(ctx, jobs, rc); err != nil {
		m.mu.Lock()
		m.status = prevStatus
		m.mu.Unlock()
		return Session{}, err
	}
	m.mu.Lock()
	// Outline cost is carried by extraCost; the runner starts from zero.
	m.draft = nil
	session := m.sessionLocked()
	m.mu.Unlock()
	m.scheduleAutosave()
	return session, nil
}

// Pause stops rendering after aborting the in-flight slide.
func (m *Manager) Pause() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.currentStatus().hasRun() {
		return ErrInvalidState
	}
	m.runner.Pause()
	return nil
}

// Resume continues a paused run.
func (m *Manager) Resume(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.currentStatus().hasRun() {
		return ErrInvalidState
	}
	return m.runner.Resume(ctx)
}

// Cancel abandons the render phase and returns the session to outline
// review. Rendered output is kept on the outline so a later confirm only
// renders what is missing.
func (m *Manager) Cancel(ctx context.Context) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.currentStatus().hasRun() {
		return Session{}, ErrInvalidState
	}
	m.runner.Cancel()
	if err := m.runner.Wait(ctx); err != nil {
		return Session{}, err
	}
	snap := m.runner.Snapshot()

	m.mu.Lock()
	m.status = StatusOutlineReview
	m.draft = cloneJobs(snap.Jobs)
	// Cost spent during the run stays on the session.
	m.extraCost += snap.AccumulatedCost
	m.touchLocked()
	session := m.sessionLocked()
	m.mu.Unlock()

	m.logger.Info("render run cancelled; back to outline review",
		logging.Int("rendered", snap.Counts()[queue.StateRendered]),
	)
	m.scheduleAutosave()
	return session, nil
}

// RetryFailed re-queues every failed slide.
func (m *Manager) RetryFailed(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.currentStatus().hasRun() {
		return ErrInvalidState
	}
	return m.runner.RetryFailed(ctx)
}

// Regenerate re-renders one slide outside the main loop with an optional
// instruction. onPartial receives progressive output when non-nil.
func (m *Manager) Regenerate(ctx context.Context, jobID, instruction string, onPartial func(string)) (queue.Job, error) {
	if !m.currentStatus().hasRun() {
		return queue.Job{}, ErrInvalidState
	}
	ctx = services.WithJobID(ctx, jobID)
	job, err := m.runner.RegenerateOne(ctx, jobID, instruction, onPartial)
	if err != nil {
		return queue.Job{}, err
	}
	return job, nil
}

// CancelRegenerate aborts an in-flight regeneration. It reports whether one
// was running.
func (m *Manager) CancelRegenerate(jobID string) bool {
	return m.runner.CancelRegenerate(jobID)
}

// GenerateNotes writes speaker notes for rendered slides. Notes generated
// before a provider failure are kept and the error is returned.
func (m *Manager) GenerateNotes(ctx context.Context, overwrite bool) (int, error) {
	if m.notes == nil {
		return 0, fmt.Errorf("notes writer unavailable: %w", services.ErrConfiguration)
	}
	if !m.currentStatus().hasRun() {
		return 0, ErrInvalidState
	}
	snap := m.runner.Snapshot()
	if snap.Context == nil {
		return 0, queue.ErrNoRun
	}
	result, genErr := m.notes.Write(ctx, snap.Jobs, *snap.Context, overwrite)

	applied := 0
	for _, job := range snap.Jobs {
		notes, ok := result.Notes[job.ID]
		if !ok || strings.TrimSpace(notes) == "" {
			continue
		}
		if _, err := m.runner.UpdateJob(job.ID, queue.JobEdit{Notes: &notes}); err != nil {
			m.logger.Warn("speaker notes not applied",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "notes_apply_failed"),
			)
			continue
		}
		applied++
	}

	m.mu.Lock()
	m.extraCost += result.Cost
	m.touchLocked()
	m.mu.Unlock()
	m.scheduleAutosave()

	m.logger.Info("speaker notes generated",
		logging.Int("slides", applied),
		logging.Float64("cost", result.Cost),
	)
	if genErr != nil {
		return applied, genErr
	}
	return applied, nil
}

// Reset discards the session, stops all rendering and clears the autosave.
func (m *Manager) Reset(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.outlineCancel != nil {
		m.outlineCancel()
		m.outlineCancel = nil
	}
	m.outlineGen++
	m.status = StatusIdle
	m.mu.Unlock()

	if err := m.runner.Reset(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = outline.Request{}
	m.palette = palette.Palette{}
	m.title = ""
	m.deckID = ""
	m.selection = ""
	m.draft = nil
	m.extraCost = 0
	m.lastErr = ""
	m.runStarted = time.Time{}
	m.touchLocked()
	m.mu.Unlock()

	m.cancelAutosave()
	if m.repo != nil {
		if err := m.repo.Clear(ctx); err != nil {
			return fmt.Errorf("clear autosave: %w", err)
		}
	}
	m.logger.Info("session reset")
	return nil
}

func (m *Manager) currentStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func cloneJobs(jobs []queue.Job) []queue.Job {
	out := make([]queue.Job, len(jobs))
	for i, job := range jobs {
		out[i] = job.Clone()
	}
	return out
}
