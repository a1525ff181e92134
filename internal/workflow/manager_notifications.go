package workflow

import (
	"context"
	"errors"
	"time"

	"slidesmith/internal/logging"
	"slidesmith/internal/queue"
)

func (m *Manager) notifyRunCompleted(snap queue.Snapshot, title string, started time.Time) {
	counts := snap.Counts()
	rendered := counts[queue.StateRendered]
	failed := counts[queue.StateFailed]
	duration := time.Duration(0)
	if !started.IsZero() {
		duration = m.now().Sub(started)
	}
	m.logger.Info("render run complete",
		logging.String("title", title),
		logging.Int("rendered", rendered),
		logging.Int("failed", failed),
		logging.Float64("cost", snap.AccumulatedCost),
		logging.Duration("duration", duration),
	)

	if !m.track() {
		return
	}
	go func() {
		defer m.wg.Done()
		if err := m.notifier.NotifyRunCompleted(m.lifetime, title, rendered, failed, duration); err != nil {
			if errors.Is(err, context.Canceled) {
				m.logger.Debug("shutting down, could not send run completion notification")
			} else {
				m.logger.Debug("run completion notification failed", logging.Error(err))
			}
		}
	}()
}

func (m *Manager) notifyError(cause error, contextLabel string) {
	if !m.track() {
		return
	}
	go func() {
		defer m.wg.Done()
		if err := m.notifier.NotifyError(m.lifetime, cause, contextLabel); err != nil {
			if errors.Is(err, context.Canceled) {
				m.logger.Debug("shutting down, could not send error notification")
			} else {
				m.logger.Debug("error notification failed", logging.Error(err))
			}
		}
	}()
}

// track registers a background notification unless the manager is closed.
func (m *Manager) track() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	return true
}
