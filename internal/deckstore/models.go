package deckstore

import (
	"fmt"
	"time"

	"slidesmith/internal/services"
)

// ErrNotFound is returned when a deck, slide, or version does not exist. It
// matches services.ErrNotFound under errors.Is.
var ErrNotFound = fmt.Errorf("deckstore: %w", services.ErrNotFound)

// Deck is a persisted slide deck.
type Deck struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Topic     string    `json:"topic,omitempty"`
	Audience  string    `json:"audience,omitempty"`
	Palette   string    `json:"palette,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Slides    []Slide   `json:"slides,omitempty"`
}

// DeckSummary is a list row without slide content.
type DeckSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Topic      string    `json:"topic,omitempty"`
	SlideCount int       `json:"slide_count"`
	Cost       float64   `json:"cost"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Slide is one positioned slide of a deck.
type Slide struct {
	Position      int       `json:"position"`
	JobID         string    `json:"job_id,omitempty"`
	Title         string    `json:"title"`
	ContentPoints []string  `json:"content_points"`
	LayoutHint    string    `json:"layout_hint,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	HTML          string    `json:"html,omitempty"`
	Failed        bool      `json:"failed,omitempty"`
	Error         string    `json:"error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DeckMeta carries optional metadata edits; nil fields are left unchanged.
type DeckMeta struct {
	Title    *string `json:"title,omitempty"`
	Topic    *string `json:"topic,omitempty"`
	Audience *string `json:"audience,omitempty"`
	Palette  *string `json:"palette,omitempty"`
}

// SlideUpdate carries optional slide edits; nil fields are left unchanged.
type SlideUpdate struct {
	Title         *string   `json:"title,omitempty"`
	ContentPoints *[]string `json:"content_points,omitempty"`
	LayoutHint    *string   `json:"layout_hint,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	HTML          *string   `json:"html,omitempty"`
}

// DeckVersion is one append-only deck snapshot. Snapshot is omitted from list results.
type DeckVersion struct {
	ID         int64     `json:"id"`
	DeckID     string    `json:"deck_id"`
	Label      string    `json:"label,omitempty"`
	SlideCount int       `json:"slide_count"`
	CreatedAt  time.Time `json:"created_at"`
	Snapshot   *Deck     `json:"snapshot,omitempty"`
}

// SlideVersion is one append-only rendered slide.
type SlideVersion struct {
	ID        int64     `json:"id"`
	DeckID    string    `json:"deck_id"`
	Position  int       `json:"position"`
	Title     string    `json:"title,omitempty"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"created_at"`
}
