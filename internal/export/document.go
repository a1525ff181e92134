// Package export converts decks and render sessions into portable artifacts:
// the versioned JSON project file, a self-contained HTML deck, a Markdown
// outline and a plain-text speaker notes dump.
package export

import (
	"strings"
	"time"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
	"slidesmith/internal/textutil"
)

// Document is the format-neutral view of a deck.
type Document struct {
	Title    string          `json:"title"`
	Topic    string          `json:"topic,omitempty"`
	Audience string          `json:"audience,omitempty"`
	Palette  palette.Palette `json:"palette"`
	Cost     float64         `json:"cost"`
	Slides   []Slide         `json:"slides"`
}

// Slide is one exported slide.
type Slide struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	ContentPoints []string `json:"content_points"`
	LayoutHint    string   `json:"layout_hint,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Output        string   `json:"output,omitempty"`
	Failed        bool     `json:"failed,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// FromSnapshot builds a document from a render run.
func FromSnapshot(title string, snap queue.Snapshot) Document {
	doc := Document{Title: title, Cost: snap.AccumulatedCost}
	if snap.Context != nil {
		doc.Topic = snap.Context.Topic
		doc.Audience = snap.Context.Audience
		doc.Palette = snap.Context.Palette
	}
	for _, job := range snap.Jobs {
		doc.Slides = append(doc.Slides, Slide{
			ID:            job.ID,
			Title:         job.Title,
			ContentPoints: append([]string{}, job.ContentPoints...),
			LayoutHint:    job.LayoutHint,
			Notes:         job.Notes,
			Output:        job.Output,
			Failed:        job.State == queue.StateFailed,
			Error:         job.Error,
		})
	}
	return doc
}

// FromDeck builds a document from a stored deck. An unparsable palette falls
// back to the default.
func FromDeck(deck *deckstore.Deck) Document {
	pal, err := palette.Parse(deck.Palette)
	if err != nil {
		pal = palette.Default()
	}
	doc := Document{
		Title:    deck.Title,
		Topic:    deck.Topic,
		Audience: deck.Audience,
		Palette:  pal,
		Cost:     deck.Cost,
	}
	for _, s := range deck.Slides {
		doc.Slides = append(doc.Slides, Slide{
			ID:            s.JobID,
			Title:         s.Title,
			ContentPoints: append([]string{}, s.ContentPoints...),
			LayoutHint:    s.LayoutHint,
			Notes:         s.Notes,
			Output:        s.HTML,
			Failed:        s.Failed,
			Error:         s.Error,
		})
	}
	return doc
}

// Jobs converts slides back into render jobs. Slides with output are
// rendered, failed slides stay failed, everything else is pending.
func (d Document) Jobs() []queue.Job {
	jobs := make([]queue.Job, 0, len(d.Slides))
	for _, s := range d.Slides {
		job := queue.Job{
			ID:            s.ID,
			Title:         s.Title,
			ContentPoints: append([]string{}, s.ContentPoints...),
			LayoutHint:    s.LayoutHint,
			Notes:         s.Notes,
			Output:        s.Output,
			Error:         s.Error,
			State:         queue.StatePending,
		}
		switch {
		case s.Failed:
			job.State = queue.StateFailed
		case strings.TrimSpace(s.Output) != "":
			job.State = queue.StateRendered
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// Deck converts the document into a deckstore deck.
func (d Document) Deck(id string) deckstore.Deck {
	deck := deckstore.Deck{
		ID:       id,
		Title:    d.Title,
		Topic:    d.Topic,
		Audience: d.Audience,
		Cost:     d.Cost,
	}
	if !d.Palette.IsZero() {
		deck.Palette = d.Palette.String()
	}
	for i, s := range d.Slides {
		deck.Slides = append(deck.Slides, deckstore.Slide{
			Position:      i + 1,
			JobID:         s.ID,
			Title:         s.Title,
			ContentPoints: append([]string{}, s.ContentPoints...),
			LayoutHint:    s.LayoutHint,
			Notes:         s.Notes,
			HTML:          s.Output,
			Failed:        s.Failed,
			Error:         s.Error,
		})
	}
	return deck
}

// FileName returns a safe file name for the document with the given extension.
func FileName(title, ext string) string {
	base := textutil.SanitizeFileName(title)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func nowUTC() time.Time { return time.Now().UTC() }
