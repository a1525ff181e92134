package deckstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const deckColumns = "id, title, topic, audience, palette, provider, model, cost, created_at, updated_at"

const slideColumns = "position, job_id, title, content_points, layout_hint, notes, html, failed, error_message, updated_at"

func scanDeck(scanner rowScanner) (*Deck, error) {
	var (
		d          Deck
		topic      sql.NullString
		audience   sql.NullString
		palette    sql.NullString
		provider   sql.NullString
		model      sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&d.ID, &d.Title, &topic, &audience, &palette, &provider, &model, &d.Cost, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	d.Topic = topic.String
	d.Audience = audience.String
	d.Palette = palette.String
	d.Provider = provider.String
	d.Model = model.String
	d.CreatedAt = parseTimeString(createdRaw)
	d.UpdatedAt = parseTimeString(updatedRaw)
	return &d, nil
}

func scanSlide(scanner rowScanner) (Slide, error) {
	var (
		s          Slide
		jobID      sql.NullString
		points     sql.NullString
		layout     sql.NullString
		notes      sql.NullString
		html       sql.NullString
		failed     int
		errMsg     sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(&s.Position, &jobID, &s.Title, &points, &layout, &notes, &html, &failed, &errMsg, &updatedRaw); err != nil {
		return Slide{}, err
	}
	s.JobID = jobID.String
	s.ContentPoints = decodePoints(points.String)
	s.LayoutHint = layout.String
	s.Notes = notes.String
	s.HTML = html.String
	s.Failed = failed != 0
	s.Error = errMsg.String
	s.UpdatedAt = parseTimeString(updatedRaw)
	return s, nil
}

func encodePoints(points []string) string {
	if len(points) == 0 {
		return "[]"
	}
	data, err := json.Marshal(points)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodePoints(raw string) []string {
	points := []string{}
	if strings.TrimSpace(raw) == "" {
		return points
	}
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return []string{}
	}
	return points
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return t
	}
	return time.Time{}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// likePattern escapes LIKE wildcards in a user query.
func likePattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	return "%" + escaped + "%"
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
