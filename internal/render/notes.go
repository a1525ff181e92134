package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slidesmith/internal/llm"
	"slidesmith/internal/logging"
	"slidesmith/internal/queue"
)

const notesSystemPrompt = `You write speaker notes for presentation slides.
Reply with plain text only: two to four short paragraphs the presenter can read aloud.
No markdown, no headings, no bullet characters.`

// NotesWriter generates speaker notes for rendered slides.
type NotesWriter struct {
	providers Providers
	logger    *slog.Logger
}

// NotesResult maps job ids to generated notes.
type NotesResult struct {
	Notes map[string]string
	Cost  float64
}

// NewNotesWriter constructs a NotesWriter.
func NewNotesWriter(providers Providers, logger *slog.Logger) *NotesWriter {
	return &NotesWriter{
		providers: providers,
		logger:    logging.NewComponentLogger(logger, "notes"),
	}
}

// Write generates notes for every rendered job, one request at a time. Jobs
// that already carry notes are skipped unless overwrite is set. The first
// provider error stops the pass; notes generated so far are still returned.
func (w *NotesWriter) Write(ctx context.Context, jobs []queue.Job, rc queue.RunContext, overwrite bool) (NotesResult, error) {
	result := NotesResult{Notes: map[string]string{}}
	provider, err := w.providers.Get(rc.Provider)
	if err != nil {
		return result, err
	}

	for i, job := range jobs {
		if job.State != queue.StateRendered {
			continue
		}
		if !overwrite && strings.TrimSpace(job.Notes) != "" {
			continue
		}
		res, err := provider.Generate(ctx, llm.Request{
			System: notesSystemPrompt,
			Prompt: notesPrompt(job, i+1, len(jobs), rc),
			Model:  rc.Model,
		})
		if err != nil {
			return result, fmt.Errorf("notes for slide %d: %w", i+1, err)
		}
		result.Cost += res.Cost
		if text := strings.TrimSpace(res.Text); text != "" {
			result.Notes[job.ID] = text
		}
	}
	w.logger.Info("speaker notes generated",
		logging.Int("slides", len(result.Notes)),
		logging.Float64("cost", result.Cost),
	)
	return result, nil
}

func notesPrompt(job queue.Job, page, total int, rc queue.RunContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Slide %d of %d: %s\n", page, total, strings.TrimSpace(job.Title))
	if rc.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", rc.Topic)
	}
	if rc.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", rc.Audience)
	}
	for _, point := range job.ContentPoints {
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(point))
	}
	return b.String()
}
