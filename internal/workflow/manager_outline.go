package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"slidesmith/internal/logging"
	"slidesmith/internal/outline"
	"slidesmith/internal/queue"
	"slidesmith/internal/services"
)

// GenerateOutline asks the outliner for a new outline and moves the session
// to outline review. On failure the session returns to idle with no partial
// outline and the error is returned. A render run in progress must be
// cancelled or reset first.
func (m *Manager) GenerateOutline(ctx context.Context, req outline.Request) (Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Session{}, ErrInvalidState
	}
	switch m.status {
	case StatusOutlining, StatusRendering, StatusComplete:
		m.mu.Unlock()
		return Session{}, fmt.Errorf("generate outline while %s: %w", m.status, ErrInvalidState)
	}
	if strings.TrimSpace(req.Provider) == "" {
		req.Provider = m.provider
	}
	outlineCtx, cancel := context.WithCancel(ctx)
	m.outlineGen++
	gen := m.outlineGen
	m.outlineCancel = cancel
	m.status = StatusOutlining
	m.config = req
	m.lastErr = ""
	m.touchLocked()
	m.mu.Unlock()
	defer cancel()

	m.logger.Info("outline requested",
		logging.Int("slide_count", req.SlideCount),
		logging.String("provider", req.Provider),
		logging.Int("source_chars", len(req.SourceText)),
	)
	result, err := m.outliner.Generate(outlineCtx, req)

	m.mu.Lock()
	if gen != m.outlineGen || m.status != StatusOutlining {
		m.mu.Unlock()
		if err == nil {
			err = context.Canceled
		}
		return Session{}, fmt.Errorf("outline superseded: %w", err)
	}
	m.outlineCancel = nil
	if err != nil {
		m.status = StatusIdle
		m.lastErr = err.Error()
		m.touchLocked()
		m.mu.Unlock()
		m.scheduleAutosave()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, services.ErrValidation) {
			m.logger.Warn("outline generation failed; session returned to idle",
				logging.Error(err),
				logging.String(logging.FieldEventType, "outline_failed"),
				logging.String(logging.FieldImpact, "no outline was created"),
			)
			m.notifyError(err, "outline")
		}
		return Session{}, err
	}
	m.status = StatusOutlineReview
	m.draft = result.Jobs
	m.title = result.Title
	if strings.TrimSpace(m.config.Topic) == "" {
		m.config.Topic = result.Topic
	}
	m.extraCost += result.Cost
	m.deckID = ""
	m.selection = ""
	if len(result.Jobs) > 0 {
		m.selection = result.Jobs[0].ID
	}
	m.touchLocked()
	session := m.sessionLocked()
	m.mu.Unlock()

	m.logger.Info("outline ready",
		logging.String("title", result.Title),
		logging.Int("slides", len(result.Jobs)),
		logging.Float64("cost", result.Cost),
	)
	m.scheduleAutosave()
	return session, nil
}

// EditJob applies a user edit. During outline review it edits the draft;
// during a run it goes through the runner, which refuses jobs that are
// rendering.
func (m *Manager) EditJob(jobID string, edit queue.JobEdit) (queue.Job, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	status := m.status
	if status.hasRun() {
		m.mu.Unlock()
		return m.runner.UpdateJob(jobID, edit)
	}
	defer m.mu.Unlock()
	if status != StatusOutlineReview {
		return queue.Job{}, ErrInvalidState
	}
	idx := indexOf(m.draft, jobID)
	if idx < 0 {
		return queue.Job{}, queue.ErrJobNotFound
	}
	edit.Apply(&m.draft[idx])
	m.touchLocked()
	updated := m.draft[idx].Clone()
	m.scheduleAutosave()
	return updated, nil
}

// AddJob inserts a new slide into the outline at index (clamped). Only
// allowed during outline review.
func (m *Manager) AddJob(index int, job queue.Job) (queue.Job, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusOutlineReview {
		return queue.Job{}, ErrInvalidState
	}
	job.Title = strings.TrimSpace(job.Title)
	if job.Title == "" {
		return queue.Job{}, services.Wrap(services.ErrValidation, "workflow", "add slide", "title is required", nil)
	}
	if len(m.draft) >= outline.MaxSlides {
		return queue.Job{}, services.Wrap(services.ErrValidation, "workflow", "add slide", fmt.Sprintf("an outline holds at most %d slides", outline.MaxSlides), nil)
	}
	job.ID = uuid.NewString()
	job.State = queue.StatePending
	job.Output = ""
	job.Error = ""
	job.RetryCount = 0
	job = job.Clone()
	if index < 0 || index > len(m.draft) {
		index = len(m.draft)
	}
	m.draft = append(m.draft, queue.Job{})
	copy(m.draft[index+1:], m.draft[index:])
	m.draft[index] = job
	m.touchLocked()
	m.scheduleAutosave()
	return job.Clone(), nil
}

// RemoveJob deletes a slide from the outline. Only allowed during outline
// review; the last slide cannot be removed.
func (m *Manager) RemoveJob(jobID string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusOutlineReview {
		return ErrInvalidState
	}
	idx := indexOf(m.draft, jobID)
	if idx < 0 {
		return queue.ErrJobNotFound
	}
	if len(m.draft) == 1 {
		return services.Wrap(services.ErrValidation, "workflow", "remove slide", "an outline needs at least one slide", nil)
	}
	m.draft = append(m.draft[:idx], m.draft[idx+1:]...)
	if m.selection == jobID {
		m.selection = ""
	}
	m.touchLocked()
	m.scheduleAutosave()
	return nil
}

// Select records the slide the user is looking at.
func (m *Manager) Select(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if jobID != "" && indexOf(m.jobsLocked(), jobID) < 0 {
		return queue.ErrJobNotFound
	}
	m.selection = jobID
	m.touchLocked()
	m.scheduleAutosave()
	return nil
}

// SetTitle renames the deck.
func (m *Manager) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return services.Wrap(services.ErrValidation, "workflow", "set title", "title is required", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusIdle || m.status == StatusOutlining {
		return ErrInvalidState
	}
	m.title = title
	m.touchLocked()
	m.scheduleAutosave()
	return nil
}

func indexOf(jobs []queue.Job, id string) int {
	for i := range jobs {
		if jobs[i].ID == id {
			return i
		}
	}
	return -1
}
