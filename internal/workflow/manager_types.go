package workflow

import (
	"context"
	"fmt"
	"time"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/outline"
	"slidesmith/internal/queue"
	"slidesmith/internal/render"
	"slidesmith/internal/services"
)

// Status is the session phase.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusOutlining     Status = "outlining"
	StatusOutlineReview Status = "outline_review"
	StatusRendering     Status = "rendering"
	StatusComplete      Status = "complete"
)

var (
	// ErrInvalidState is returned when an operation does not apply to the
	// current session phase.
	ErrInvalidState = fmt.Errorf("operation not allowed in current session state: %w", services.ErrConflict)
	// ErrNoStore is returned by deck operations when no deck store is wired.
	ErrNoStore = fmt.Errorf("deck store unavailable: %w", services.ErrConfiguration)
)

// Outliner produces outlines. *outline.Generator satisfies it.
type Outliner interface {
	Generate(ctx context.Context, req outline.Request) (outline.Outline, error)
}

// NotesGenerator writes speaker notes. *render.NotesWriter satisfies it.
type NotesGenerator interface {
	Write(ctx context.Context, jobs []queue.Job, rc queue.RunContext, overwrite bool) (render.NotesResult, error)
}

// DeckStore is the subset of the deck store used by the session.
type DeckStore interface {
	GetDeck(ctx context.Context, id string) (*deckstore.Deck, error)
	SaveDeck(ctx context.Context, deck deckstore.Deck, label string) (*deckstore.Deck, error)
}

// Session is the observable state of the editing session.
type Session struct {
	Status    Status              `json:"status"`
	Title     string              `json:"title"`
	DeckID    string              `json:"deck_id,omitempty"`
	Selection string              `json:"selection,omitempty"`
	Palette   string              `json:"palette,omitempty"`
	Config    outline.Request     `json:"config"`
	Cost      float64             `json:"accumulated_cost"`
	Error     string              `json:"error,omitempty"`
	Counts    map[queue.State]int `json:"counts"`
	Run       queue.Snapshot      `json:"run"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// hasRun reports whether the runner holds the session's jobs.
func (s Status) hasRun() bool {
	return s == StatusRendering || s == StatusComplete
}
