package deckstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"slidesmith/internal/logging"
	"slidesmith/internal/services"
)

// ListDecks returns deck summaries ordered by most recently updated. A
// non-empty query filters on title or topic (case-insensitive substring).
func (s *Store) ListDecks(ctx context.Context, query string, limit int) ([]DeckSummary, error) {
	limit = clampLimit(limit)
	query = strings.TrimSpace(query)

	sqlText := `SELECT d.id, d.title, d.topic, d.cost, d.updated_at,
            (SELECT COUNT(1) FROM slides s WHERE s.deck_id = d.id)
        FROM decks d`
	args := []any{}
	if query != "" {
		pattern := likePattern(query)
		sqlText += ` WHERE d.title LIKE ? ESCAPE '\' OR d.topic LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern)
	}
	sqlText += ` ORDER BY d.updated_at DESC, d.id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	out := []DeckSummary{}
	for rows.Next() {
		var (
			summary    DeckSummary
			topic      sql.NullString
			updatedRaw string
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &topic, &summary.Cost, &updatedRaw, &summary.SlideCount); err != nil {
			return nil, fmt.Errorf("scan deck summary: %w", err)
		}
		summary.Topic = topic.String
		summary.UpdatedAt = parseTimeString(updatedRaw)
		out = append(out, summary)
	}
	return out, rows.Err()
}

// GetDeck returns a deck with its slides ordered by position.
func (s *Store) GetDeck(ctx context.Context, id string) (*Deck, error) {
	return getDeck(ctx, s.db, id)
}

func getDeck(ctx context.Context, q queryer, id string) (*Deck, error) {
	row := q.QueryRowContext(ctx, "SELECT "+deckColumns+" FROM decks WHERE id = ?", id)
	deck, err := scanDeck(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("deck %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get deck: %w", err)
	}
	slides, err := listSlides(ctx, q, id)
	if err != nil {
		return nil, err
	}
	deck.Slides = slides
	return deck, nil
}

func listSlides(ctx context.Context, q queryer, deckID string) ([]Slide, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+slideColumns+" FROM slides WHERE deck_id = ? ORDER BY position", deckID)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	defer rows.Close()
	slides := []Slide{}
	for rows.Next() {
		slide, err := scanSlide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slide: %w", err)
		}
		slides = append(slides, slide)
	}
	return slides, rows.Err()
}

// CreateDeck inserts a new deck with its slides and records the first version.
// An empty ID is replaced with a fresh UUID.
func (s *Store) CreateDeck(ctx context.Context, deck Deck) (*Deck, error) {
	deck.Title = strings.TrimSpace(deck.Title)
	if deck.Title == "" {
		return nil, services.Wrap(services.ErrValidation, "deckstore", "create deck", "title is required", nil)
	}
	if deck.ID == "" {
		deck.ID = uuid.NewString()
	}
	var created *Deck
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.now())
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO decks (id, title, topic, audience, palette, provider, model, cost, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			deck.ID, deck.Title, nullableString(deck.Topic), nullableString(deck.Audience), nullableString(deck.Palette),
			nullableString(deck.Provider), nullableString(deck.Model), deck.Cost, now, now,
		); err != nil {
			return fmt.Errorf("insert deck: %w", err)
		}
		if err := s.replaceSlides(ctx, tx, deck.ID, deck.Slides, now); err != nil {
			return err
		}
		var err error
		created, err = s.appendDeckVersion(ctx, tx, deck.ID, "created", now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("deck created", logging.String(logging.FieldDeckID, created.ID), logging.Int("slides", len(created.Slides)))
	return created, nil
}

// SaveDeck replaces the deck's metadata and slides, creating the deck when it
// does not exist, and appends a deck version labelled label.
func (s *Store) SaveDeck(ctx context.Context, deck Deck, label string) (*Deck, error) {
	deck.Title = strings.TrimSpace(deck.Title)
	if deck.Title == "" {
		return nil, services.Wrap(services.ErrValidation, "deckstore", "save deck", "title is required", nil)
	}
	if deck.ID == "" {
		deck.ID = uuid.NewString()
	}
	if strings.TrimSpace(label) == "" {
		label = "saved"
	}
	var saved *Deck
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.now())
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO decks (id, title, topic, audience, palette, provider, model, cost, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET
                title = excluded.title,
                topic = excluded.topic,
                audience = excluded.audience,
                palette = excluded.palette,
                provider = excluded.provider,
                model = excluded.model,
                cost = excluded.cost,
                updated_at = excluded.updated_at`,
			deck.ID, deck.Title, nullableString(deck.Topic), nullableString(deck.Audience), nullableString(deck.Palette),
			nullableString(deck.Provider), nullableString(deck.Model), deck.Cost, now, now,
		); err != nil {
			return fmt.Errorf("upsert deck: %w", err)
		}
		if err := s.replaceSlides(ctx, tx, deck.ID, deck.Slides, now); err != nil {
			return err
		}
		var err error
		saved, err = s.appendDeckVersion(ctx, tx, deck.ID, label, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("deck saved",
		logging.String(logging.FieldDeckID, saved.ID),
		logging.Int("slides", len(saved.Slides)),
		logging.String("label", label),
	)
	return saved, nil
}

// UpdateDeckMeta applies metadata edits without touching slides.
func (s *Store) UpdateDeckMeta(ctx context.Context, id string, meta DeckMeta) (*Deck, error) {
	if meta.Title != nil && strings.TrimSpace(*meta.Title) == "" {
		return nil, services.Wrap(services.ErrValidation, "deckstore", "update deck", "title must not be empty", nil)
	}
	var updated *Deck
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getDeck(ctx, tx, id)
		if err != nil {
			return err
		}
		if meta.Title != nil {
			current.Title = strings.TrimSpace(*meta.Title)
		}
		if meta.Topic != nil {
			current.Topic = strings.TrimSpace(*meta.Topic)
		}
		if meta.Audience != nil {
			current.Audience = strings.TrimSpace(*meta.Audience)
		}
		if meta.Palette != nil {
			current.Palette = strings.TrimSpace(*meta.Palette)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE decks SET title = ?, topic = ?, audience = ?, palette = ?, updated_at = ? WHERE id = ?`,
			current.Title, nullableString(current.Topic), nullableString(current.Audience), nullableString(current.Palette),
			formatTime(s.now()), id,
		); err != nil {
			return fmt.Errorf("update deck: %w", err)
		}
		updated, err = getDeck(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDeck removes a deck together with its slides and history.
func (s *Store) DeleteDeck(ctx context.Context, id string) error {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM decks WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deck %q: %w", id, ErrNotFound)
	}
	s.logger.Info("deck deleted", logging.String(logging.FieldDeckID, id))
	return nil
}

func (s *Store) replaceSlides(ctx context.Context, tx *sql.Tx, deckID string, slides []Slide, now string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM slides WHERE deck_id = ?", deckID); err != nil {
		return fmt.Errorf("clear slides: %w", err)
	}
	for i, slide := range slides {
		slide.Position = i + 1
		if err := insertSlide(ctx, tx, deckID, slide, now); err != nil {
			return err
		}
		if err := appendSlideVersionIfChanged(ctx, tx, deckID, slide, now); err != nil {
			return err
		}
	}
	return nil
}

func insertSlide(ctx context.Context, q queryer, deckID string, slide Slide, now string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO slides (deck_id, position, job_id, title, content_points, layout_hint, notes, html, failed, error_message, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(deck_id, position) DO UPDATE SET
            job_id = excluded.job_id,
            title = excluded.title,
            content_points = excluded.content_points,
            layout_hint = excluded.layout_hint,
            notes = excluded.notes,
            html = excluded.html,
            failed = excluded.failed,
            error_message = excluded.error_message,
            updated_at = excluded.updated_at`,
		deckID, slide.Position, nullableString(slide.JobID), slide.Title, encodePoints(slide.ContentPoints),
		nullableString(slide.LayoutHint), nullableString(slide.Notes), nullableString(slide.HTML),
		boolToInt(slide.Failed), nullableString(slide.Error), now,
	)
	if err != nil {
		return fmt.Errorf("write slide %d: %w", slide.Position, err)
	}
	return nil
}

func (s *Store) appendDeckVersion(ctx context.Context, tx *sql.Tx, deckID, label, now string) (*Deck, error) {
	deck, err := getDeck(ctx, tx, deckID)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(deck)
	if err != nil {
		return nil, fmt.Errorf("encode deck snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO deck_versions (deck_id, label, slide_count, snapshot_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		deckID, nullableString(label), len(deck.Slides), string(snapshot), now,
	); err != nil {
		return nil, fmt.Errorf("append deck version: %w", err)
	}
	return deck, nil
}
