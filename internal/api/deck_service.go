package api

import (
	"context"

	"slidesmith/internal/deckstore"
)

// DeckStore abstracts the deck persistence operations exposed over HTTP.
type DeckStore interface {
	ListDecks(ctx context.Context, query string, limit int) ([]deckstore.DeckSummary, error)
	GetDeck(ctx context.Context, id string) (*deckstore.Deck, error)
	CreateDeck(ctx context.Context, deck deckstore.Deck) (*deckstore.Deck, error)
	UpdateDeckMeta(ctx context.Context, id string, meta deckstore.DeckMeta) (*deckstore.Deck, error)
	DeleteDeck(ctx context.Context, id string) error
	DeckHistory(ctx context.Context, deckID string, limit int) ([]deckstore.DeckVersion, error)
	RestoreDeckVersion(ctx context.Context, deckID string, versionID int64) (*deckstore.Deck, error)
	SlideHistory(ctx context.Context, deckID string, position, limit int) ([]deckstore.SlideVersion, error)
	SlideVersion(ctx context.Context, id int64) (*deckstore.SlideVersion, error)
	UpdateSlide(ctx context.Context, deckID string, position int, update deckstore.SlideUpdate) (*deckstore.Slide, error)
	UpsertSlide(ctx context.Context, deckID string, position int, slide deckstore.Slide) (*deckstore.Slide, error)
}

// DeckService exposes deck store operations returning API DTOs.
type DeckService struct {
	store DeckStore
}

// NewDeckService constructs a DeckService around the provided store.
func NewDeckService(store DeckStore) *DeckService {
	if store == nil {
		return nil
	}
	return &DeckService{store: store}
}

// List returns decks whose title or topic matches query, newest first.
func (s *DeckService) List(ctx context.Context, query string, limit int) ([]DeckSummary, error) {
	if s == nil || s.store == nil {
		return []DeckSummary{}, nil
	}
	rows, err := s.store.ListDecks(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return FromDeckSummaries(rows), nil
}

// Describe returns one deck with its slides.
func (s *DeckService) Describe(ctx context.Context, id string) (Deck, error) {
	deck, err := s.store.GetDeck(ctx, id)
	if err != nil {
		return Deck{}, err
	}
	return FromDeck(deck), nil
}

// Create stores a new deck.
func (s *DeckService) Create(ctx context.Context, req CreateDeckRequest) (Deck, error) {
	deck, err := s.store.CreateDeck(ctx, req.ToDeck())
	if err != nil {
		return Deck{}, err
	}
	return FromDeck(deck), nil
}

// UpdateMeta edits deck metadata.
func (s *DeckService) UpdateMeta(ctx context.Context, id string, req DeckMetaRequest) (Deck, error) {
	deck, err := s.store.UpdateDeckMeta(ctx, id, req.ToDeckMeta())
	if err != nil {
		return Deck{}, err
	}
	return FromDeck(deck), nil
}

// Delete removes a deck with its history.
func (s *DeckService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteDeck(ctx, id)
}

// History lists deck versions newest first.
func (s *DeckService) History(ctx context.Context, id string, limit int) ([]DeckVersion, error) {
	rows, err := s.store.DeckHistory(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	return FromDeckVersions(rows), nil
}

// Restore rolls a deck back to a stored version.
func (s *DeckService) Restore(ctx context.Context, id string, version int64) (Deck, error) {
	deck, err := s.store.RestoreDeckVersion(ctx, id, version)
	if err != nil {
		return Deck{}, err
	}
	return FromDeck(deck), nil
}

// SlideHistory lists rendered versions of one slide newest first.
func (s *DeckService) SlideHistory(ctx context.Context, id string, position, limit int) ([]SlideVersion, error) {
	rows, err := s.store.SlideHistory(ctx, id, position, limit)
	if err != nil {
		return nil, err
	}
	return FromSlideVersions(rows), nil
}

// SlideVersion returns one historical render.
func (s *DeckService) SlideVersion(ctx context.Context, version int64) (SlideVersion, error) {
	row, err := s.store.SlideVersion(ctx, version)
	if err != nil {
		return SlideVersion{}, err
	}
	return FromSlideVersion(*row), nil
}

// UpdateSlide edits an existing slide.
func (s *DeckService) UpdateSlide(ctx context.Context, id string, position int, req SlideUpdateRequest) (Slide, error) {
	slide, err := s.store.UpdateSlide(ctx, id, position, req.ToSlideUpdate())
	if err != nil {
		return Slide{}, err
	}
	return FromSlide(*slide), nil
}

// UpsertSlide writes a slide at position, creating it when absent.
func (s *DeckService) UpsertSlide(ctx context.Context, id string, position int, req SlideUpdateRequest) (Slide, error) {
	slide, err := s.store.UpsertSlide(ctx, id, position, req.ToSlide(position))
	if err != nil {
		return Slide{}, err
	}
	return FromSlide(*slide), nil
}

// Raw returns the stored deck for callers that render it themselves.
func (s *DeckService) Raw(ctx context.Context, id string) (*deckstore.Deck, error) {
	return s.store.GetDeck(ctx, id)
}
