package workflow

import (
	"slidesmith/internal/queue"
)

// Session returns the current session state.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionLocked()
}

func (m *Manager) sessionLocked() Session {
	session := Session{
		Status:    m.status,
		Title:     m.title,
		DeckID:    m.deckID,
		Selection: m.selection,
		Config:    m.config,
		Cost:      m.extraCost,
		Error:     m.lastErr,
		UpdatedAt: m.updatedAt,
	}
	if !m.palette.IsZero() {
		session.Palette = m.palette.String()
	}
	if m.status.hasRun() {
		session.Run = m.runner.Snapshot()
		session.Cost += session.Run.AccumulatedCost
	} else {
		session.Run = queue.Snapshot{
			Status:    queue.RunIdle,
			UpdatedAt: m.updatedAt,
			Jobs:      cloneJobs(m.draft),
		}
	}
	session.Counts = session.Run.Counts()
	return session
}

func (m *Manager) jobsLocked() []queue.Job {
	if m.status.hasRun() {
		return m.runner.Snapshot().Jobs
	}
	return m.draft
}
