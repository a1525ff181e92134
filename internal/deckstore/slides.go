package deckstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"slidesmith/internal/services"
)

// UpdateSlide edits an existing slide. It fails with ErrNotFound when the
// deck has no slide at position.
func (s *Store) UpdateSlide(ctx context.Context, deckID string, position int, update SlideUpdate) (*Slide, error) {
	var out *Slide
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+slideColumns+" FROM slides WHERE deck_id = ? AND position = ?", deckID, position)
		current, err := scanSlide(row)
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("deck %q slide %d: %w", deckID, position, ErrNotFound)
			}
			return fmt.Errorf("get slide: %w", err)
		}
		applySlideUpdate(&current, update)
		now := formatTime(s.now())
		if err := insertSlide(ctx, tx, deckID, current, now); err != nil {
			return err
		}
		if err := appendSlideVersionIfChanged(ctx, tx, deckID, current, now); err != nil {
			return err
		}
		if err := touchDeck(ctx, tx, deckID, now); err != nil {
			return err
		}
		current.UpdatedAt = parseTimeString(now)
		out = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertSlide writes the slide at position, creating it when absent. The deck
// itself must exist.
func (s *Store) UpsertSlide(ctx context.Context, deckID string, position int, slide Slide) (*Slide, error) {
	if position < 1 {
		return nil, services.Wrap(services.ErrValidation, "deckstore", "upsert slide", "position must be >= 1", nil)
	}
	slide.Position = position
	slide.Title = strings.TrimSpace(slide.Title)
	if slide.ContentPoints == nil {
		slide.ContentPoints = []string{}
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM decks WHERE id = ?", deckID).Scan(&exists); err != nil {
			return fmt.Errorf("check deck: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("deck %q: %w", deckID, ErrNotFound)
		}
		now := formatTime(s.now())
		if err := insertSlide(ctx, tx, deckID, slide, now); err != nil {
			return err
		}
		if err := appendSlideVersionIfChanged(ctx, tx, deckID, slide, now); err != nil {
			return err
		}
		slide.UpdatedAt = parseTimeString(now)
		return touchDeck(ctx, tx, deckID, now)
	})
	if err != nil {
		return nil, err
	}
	return &slide, nil
}

func applySlideUpdate(slide *Slide, update SlideUpdate) {
	if update.Title != nil {
		slide.Title = strings.TrimSpace(*update.Title)
	}
	if update.ContentPoints != nil {
		slide.ContentPoints = append([]string{}, (*update.ContentPoints)...)
	}
	if update.LayoutHint != nil {
		slide.LayoutHint = strings.TrimSpace(*update.LayoutHint)
	}
	if update.Notes != nil {
		slide.Notes = *update.Notes
	}
	if update.HTML != nil {
		slide.HTML = *update.HTML
		if strings.TrimSpace(slide.HTML) != "" {
			slide.Failed = false
			slide.Error = ""
		}
	}
}

func touchDeck(ctx context.Context, q queryer, deckID, now string) error {
	if _, err := q.ExecContext(ctx, "UPDATE decks SET updated_at = ? WHERE id = ?", now, deckID); err != nil {
		return fmt.Errorf("touch deck: %w", err)
	}
	return nil
}

// appendSlideVersionIfChanged records slide HTML unless it matches the newest
// stored version for that position.
func appendSlideVersionIfChanged(ctx context.Context, q queryer, deckID string, slide Slide, now string) error {
	if strings.TrimSpace(slide.HTML) == "" {
		return nil
	}
	var latest sql.NullString
	err := q.QueryRowContext(ctx,
		"SELECT html FROM slide_versions WHERE deck_id = ? AND position = ? ORDER BY id DESC LIMIT 1",
		deckID, slide.Position,
	).Scan(&latest)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("read latest slide version: %w", err)
	}
	if latest.Valid && latest.String == slide.HTML {
		return nil
	}
	if _, err := q.ExecContext(ctx,
		"INSERT INTO slide_versions (deck_id, position, title, html, created_at) VALUES (?, ?, ?, ?, ?)",
		deckID, slide.Position, nullableString(slide.Title), slide.HTML, now,
	); err != nil {
		return fmt.Errorf("append slide version: %w", err)
	}
	return nil
}
