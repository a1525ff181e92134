package testsupport

import (
	"context"
	"testing"

	"slidesmith/internal/config"
	"slidesmith/internal/deckstore"
	"slidesmith/internal/logging"
)

// MustOpenStore opens a deckstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *deckstore.Store {
	t.Helper()

	store, err := deckstore.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("deckstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewDeck creates a deck with one slide per title.
func NewDeck(t testing.TB, store *deckstore.Store, title string, slideTitles ...string) *deckstore.Deck {
	t.Helper()

	deck := deckstore.Deck{Title: title, Topic: title}
	for _, st := range slideTitles {
		deck.Slides = append(deck.Slides, deckstore.Slide{
			Title:         st,
			ContentPoints: []string{st + " point"},
		})
	}
	created, err := store.CreateDeck(context.Background(), deck)
	if err != nil {
		t.Fatalf("store.CreateDeck: %v", err)
	}
	return created
}
