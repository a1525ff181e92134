package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/export"
	"slidesmith/internal/logging"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
	"slidesmith/internal/services"
)

// Export formats accepted by Export.
const (
	FormatProject  = "json"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatNotes    = "notes"
)

// Document returns the session as an export document.
func (m *Manager) Document() (export.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusIdle || m.status == StatusOutlining {
		return export.Document{}, ErrInvalidState
	}
	session := m.sessionLocked()
	doc := export.FromSnapshot(session.Title, session.Run)
	doc.Cost = session.Cost
	if doc.Palette.IsZero() {
		doc.Palette = m.palette
	}
	if doc.Palette.IsZero() {
		doc.Palette = palette.Default()
	}
	if doc.Topic == "" {
		doc.Topic = m.config.Topic
	}
	if doc.Audience == "" {
		doc.Audience = m.config.Audience
	}
	return doc, nil
}

// Export writes the session in the given format and returns the suggested
// file name.
func (m *Manager) Export(w io.Writer, format string) (string, error) {
	doc, err := m.Document()
	if err != nil {
		return "", err
	}
	return WriteDocument(w, doc, format)
}

// WriteDocument renders doc in format and returns the suggested file name.
func WriteDocument(w io.Writer, doc export.Document, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatProject, "project":
		return export.FileName(doc.Title, "slidesmith.json"), export.ExportProject(w, doc)
	case FormatHTML:
		return export.FileName(doc.Title, "html"), export.HTML(w, doc)
	case FormatMarkdown, "md":
		return export.FileName(doc.Title, "md"), export.Markdown(w, doc)
	case FormatNotes, "txt":
		return export.FileName(doc.Title+" notes", "txt"), export.Notes(w, doc)
	default:
		return "", services.Wrap(services.ErrValidation, "workflow", "export", fmt.Sprintf("unknown export format %q", format), nil)
	}
}

// Import replaces the session with a project file. The imported deck is not
// linked to a stored deck until it is saved.
func (m *Manager) Import(ctx context.Context, r io.Reader) (Session, error) {
	doc, err := export.ImportProject(r)
	if err != nil {
		return Session{}, err
	}
	return m.install(ctx, doc, "", "", "")
}

// SaveDeck writes the session to the deck store, creating a deck on first
// save, and appends a deck version with label.
func (m *Manager) SaveDeck(ctx context.Context, label string) (*deckstore.Deck, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	doc, err := m.Document()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	deck := doc.Deck(m.deckID)
	deck.Provider = m.config.Provider
	deck.Model = m.config.Model
	m.mu.Unlock()

	saved, err := m.store.SaveDeck(ctx, deck, label)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.deckID = saved.ID
	m.touchLocked()
	m.mu.Unlock()
	m.scheduleAutosave()

	m.logger.Info("deck saved",
		logging.String(logging.FieldDeckID, saved.ID),
		logging.Int("slides", len(saved.Slides)),
	)
	return saved, nil
}

// LoadDeck replaces the session with a stored deck. Decks without any
// rendered slide open in outline review; the rest open as a paused or
// complete run.
func (m *Manager) LoadDeck(ctx context.Context, id string) (Session, error) {
	if m.store == nil {
		return Session{}, ErrNoStore
	}
	deck, err := m.store.GetDeck(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return m.install(ctx, export.FromDeck(deck), deck.ID, deck.Provider, deck.Model)
}

// install replaces the session with doc. An empty provider keeps the current
// selection.
func (m *Manager) install(ctx context.Context, doc export.Document, deckID, provider, model string) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	jobs := doc.Jobs()
	if len(jobs) == 0 {
		return Session{}, services.Wrap(services.ErrValidation, "workflow", "load deck", "deck has no slides", nil)
	}
	started := false
	for _, job := range jobs {
		if job.HasOutput() || job.State == queue.StateFailed {
			started = true
			break
		}
	}

	m.mu.Lock()
	if m.status == StatusOutlining {
		m.mu.Unlock()
		return Session{}, ErrInvalidState
	}
	m.config.Topic = doc.Topic
	m.config.Audience = doc.Audience
	m.config.SourceText = ""
	m.config.Provider = firstNonEmpty(provider, m.config.Provider, m.provider)
	m.config.Model = model
	if doc.Palette.IsZero() {
		doc.Palette = palette.Default()
	}
	m.palette = doc.Palette
	m.title = doc.Title
	m.deckID = deckID
	m.selection = jobs[0].ID
	m.lastErr = ""
	if started {
		// Set before Restore so its snapshot is not taken for a completion.
		m.status = StatusComplete
		if !settled(jobs) {
			m.status = StatusRendering
		}
		m.draft = nil
		m.extraCost = 0
	} else {
		m.status = StatusOutlineReview
		m.draft = cloneJobs(jobs)
		m.extraCost = doc.Cost
	}
	provider = m.config.Provider
	m.touchLocked()
	m.mu.Unlock()

	var err error
	if started {
		runStatus := queue.RunComplete
		if !settled(jobs) {
			runStatus = queue.RunPaused
		}
		err = m.runner.Restore(ctx, queue.Snapshot{
			Status:          runStatus,
			StopRequested:   runStatus == queue.RunPaused,
			AccumulatedCost: doc.Cost,
			Context: &queue.RunContext{
				Palette:  doc.Palette,
				Audience: doc.Audience,
				Topic:    doc.Topic,
				Provider: provider,
				Model:    model,
			},
			Jobs: jobs,
		})
	} else {
		err = m.runner.Reset(ctx)
	}
	if err != nil {
		return Session{}, err
	}

	m.logger.Info("session loaded",
		logging.String(logging.FieldDeckID, deckID),
		logging.String("title", doc.Title),
		logging.Int("slides", len(jobs)),
	)
	m.scheduleAutosave()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionLocked(), nil
}

func settled(jobs []queue.Job) bool {
	for _, job := range jobs {
		if job.State == queue.StatePending || job.State == queue.StateRendering {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
