package deckstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SlideHistory returns up to limit rendered versions of one slide, newest first.
func (s *Store) SlideHistory(ctx context.Context, deckID string, position, limit int) ([]SlideVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, deck_id, position, title, html, created_at FROM slide_versions
         WHERE deck_id = ? AND position = ? ORDER BY id DESC LIMIT ?`,
		deckID, position, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("slide history: %w", err)
	}
	defer rows.Close()
	out := []SlideVersion{}
	for rows.Next() {
		v, err := scanSlideVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SlideVersion returns one historical slide render.
func (s *Store) SlideVersion(ctx context.Context, id int64) (*SlideVersion, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, deck_id, position, title, html, created_at FROM slide_versions WHERE id = ?", id)
	v, err := scanSlideVersion(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("slide version %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &v, nil
}

// DeckHistory lists deck versions newest first, without snapshots.
func (s *Store) DeckHistory(ctx context.Context, deckID string, limit int) ([]DeckVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, deck_id, label, slide_count, created_at FROM deck_versions
         WHERE deck_id = ? ORDER BY id DESC LIMIT ?`,
		deckID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("deck history: %w", err)
	}
	defer rows.Close()
	out := []DeckVersion{}
	for rows.Next() {
		var (
			v          DeckVersion
			label      sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&v.ID, &v.DeckID, &label, &v.SlideCount, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan deck version: %w", err)
		}
		v.Label = label.String
		v.CreatedAt = parseTimeString(createdRaw)
		out = append(out, v)
	}
	return out, rows.Err()
}

// RestoreDeckVersion returns the deck as it was captured in versionID. History
// and the current deck are left untouched; callers save the result to adopt it.
func (s *Store) RestoreDeckVersion(ctx context.Context, deckID string, versionID int64) (*Deck, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot_json FROM deck_versions WHERE id = ? AND deck_id = ?",
		versionID, deckID,
	).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("deck %q version %d: %w", deckID, versionID, ErrNotFound)
		}
		return nil, fmt.Errorf("read deck version: %w", err)
	}
	var deck Deck
	if err := json.Unmarshal([]byte(raw), &deck); err != nil {
		return nil, fmt.Errorf("decode deck snapshot: %w", err)
	}
	return &deck, nil
}

func scanSlideVersion(scanner rowScanner) (SlideVersion, error) {
	var (
		v          SlideVersion
		title      sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&v.ID, &v.DeckID, &v.Position, &title, &v.HTML, &createdRaw); err != nil {
		return SlideVersion{}, err
	}
	v.Title = title.String
	v.CreatedAt = parseTimeString(createdRaw)
	return v, nil
}
