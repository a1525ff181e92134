package api

import (
	"sort"
	"time"

	"slidesmith/internal/deckstore"
	"slidesmith/internal/logging"
	"slidesmith/internal/preflight"
	"slidesmith/internal/queue"
	"slidesmith/internal/workflow"
)

// FromJob converts a render job to its API representation.
func FromJob(job queue.Job) Job {
	points := append([]string{}, job.ContentPoints...)
	return Job{
		ID:            job.ID,
		Title:         job.Title,
		ContentPoints: points,
		LayoutHint:    job.LayoutHint,
		Notes:         job.Notes,
		HTML:          job.Output,
		State:         string(job.State),
		RetryCount:    job.RetryCount,
		Error:         job.Error,
		Regenerating:  job.Regenerating,
	}
}

// FromJobs converts a slice of jobs preserving order.
func FromJobs(jobs []queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromSession converts the workflow session.
func FromSession(s workflow.Session) Session {
	runStatus := string(s.Run.Status)
	if runStatus == "" {
		runStatus = string(queue.RunIdle)
	}
	return Session{
		Status:    string(s.Status),
		Title:     s.Title,
		DeckID:    s.DeckID,
		Selection: s.Selection,
		Palette:   s.Palette,
		Config: SessionConfig{
			SlideCount: s.Config.SlideCount,
			Audience:   s.Config.Audience,
			Topic:      s.Config.Topic,
			Language:   s.Config.Language,
			Provider:   s.Config.Provider,
			Model:      s.Config.Model,
		},
		Cost:          s.Cost,
		Error:         s.Error,
		Counts:        MergeCounts(s.Counts),
		RunStatus:     runStatus,
		StopRequested: s.Run.StopRequested,
		Jobs:          FromJobs(s.Run.Jobs),
		UpdatedAt:     formatTime(s.UpdatedAt),
	}
}

// MergeCounts returns counts for every job state, filling zeros for states
// with no jobs so clients can render a stable table.
func MergeCounts(counts map[queue.State]int) map[string]int {
	out := map[string]int{
		string(queue.StatePending):   0,
		string(queue.StateRendering): 0,
		string(queue.StateRendered):  0,
		string(queue.StateFailed):    0,
	}
	for state, n := range counts {
		out[string(state)] += n
	}
	return out
}

// FromSlide converts a stored slide.
func FromSlide(slide deckstore.Slide) Slide {
	return Slide{
		Position:      slide.Position,
		JobID:         slide.JobID,
		Title:         slide.Title,
		ContentPoints: append([]string{}, slide.ContentPoints...),
		LayoutHint:    slide.LayoutHint,
		Notes:         slide.Notes,
		HTML:          slide.HTML,
		Failed:        slide.Failed,
		Error:         slide.Error,
		UpdatedAt:     formatTime(slide.UpdatedAt),
	}
}

// FromDeck converts a stored deck with its slides.
func FromDeck(deck *deckstore.Deck) Deck {
	if deck == nil {
		return Deck{}
	}
	dto := Deck{
		ID:        deck.ID,
		Title:     deck.Title,
		Topic:     deck.Topic,
		Audience:  deck.Audience,
		Palette:   deck.Palette,
		Provider:  deck.Provider,
		Model:     deck.Model,
		Cost:      deck.Cost,
		CreatedAt: formatTime(deck.CreatedAt),
		UpdatedAt: formatTime(deck.UpdatedAt),
		Slides:    make([]Slide, 0, len(deck.Slides)),
	}
	for _, slide := range deck.Slides {
		dto.Slides = append(dto.Slides, FromSlide(slide))
	}
	return dto
}

// FromDeckSummaries converts deck list rows.
func FromDeckSummaries(rows []deckstore.DeckSummary) []DeckSummary {
	out := make([]DeckSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, DeckSummary{
			ID:         row.ID,
			Title:      row.Title,
			Topic:      row.Topic,
			SlideCount: row.SlideCount,
			Cost:       row.Cost,
			UpdatedAt:  formatTime(row.UpdatedAt),
		})
	}
	return out
}

// FromDeckVersions converts deck history rows. Snapshots are not exposed.
func FromDeckVersions(rows []deckstore.DeckVersion) []DeckVersion {
	out := make([]DeckVersion, 0, len(rows))
	for _, row := range rows {
		out = append(out, DeckVersion{
			ID:         row.ID,
			DeckID:     row.DeckID,
			Label:      row.Label,
			SlideCount: row.SlideCount,
			CreatedAt:  formatTime(row.CreatedAt),
		})
	}
	return out
}

// FromSlideVersion converts one slide history row.
func FromSlideVersion(row deckstore.SlideVersion) SlideVersion {
	return SlideVersion{
		ID:        row.ID,
		DeckID:    row.DeckID,
		Position:  row.Position,
		Title:     row.Title,
		HTML:      row.HTML,
		CreatedAt: formatTime(row.CreatedAt),
	}
}

// FromSlideVersions converts slide history rows.
func FromSlideVersions(rows []deckstore.SlideVersion) []SlideVersion {
	out := make([]SlideVersion, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromSlideVersion(row))
	}
	return out
}

// FromCheckResults converts preflight results.
func FromCheckResults(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromLogEvents converts hub events.
func FromLogEvents(events []logging.Event) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		var fields map[string]string
		if len(evt.Fields) > 0 {
			fields = make(map[string]string, len(evt.Fields))
			for k, v := range evt.Fields {
				fields[k] = v
			}
		}
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: formatTime(evt.Timestamp),
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			DeckID:    evt.DeckID,
			JobID:     evt.JobID,
			Fields:    fields,
		})
	}
	return out
}

// ToJobEdit maps a request onto a queue edit.
func (r JobEditRequest) ToJobEdit() queue.JobEdit {
	return queue.JobEdit{
		Title:         r.Title,
		ContentPoints: r.ContentPoints,
		LayoutHint:    r.LayoutHint,
		Notes:         r.Notes,
		Output:        r.HTML,
	}
}

// ToDeckMeta maps a request onto a store metadata edit.
func (r DeckMetaRequest) ToDeckMeta() deckstore.DeckMeta {
	return deckstore.DeckMeta{
		Title:    r.Title,
		Topic:    r.Topic,
		Audience: r.Audience,
		Palette:  r.Palette,
	}
}

// ToSlideUpdate maps a request onto a store slide edit.
func (r SlideUpdateRequest) ToSlideUpdate() deckstore.SlideUpdate {
	return deckstore.SlideUpdate{
		Title:         r.Title,
		ContentPoints: r.ContentPoints,
		LayoutHint:    r.LayoutHint,
		Notes:         r.Notes,
		HTML:          r.HTML,
	}
}

// ToSlide builds a full slide for upsert. Missing content points become an
// empty list.
func (r SlideUpdateRequest) ToSlide(position int) deckstore.Slide {
	slide := deckstore.Slide{Position: position, ContentPoints: []string{}}
	if r.Title != nil {
		slide.Title = *r.Title
	}
	if r.ContentPoints != nil {
		slide.ContentPoints = append(slide.ContentPoints, (*r.ContentPoints)...)
	}
	if r.LayoutHint != nil {
		slide.LayoutHint = *r.LayoutHint
	}
	if r.Notes != nil {
		slide.Notes = *r.Notes
	}
	if r.HTML != nil {
		slide.HTML = *r.HTML
	}
	return slide
}

// SortedStates returns count keys in lifecycle order for display.
func SortedStates(counts map[string]int) []string {
	order := map[string]int{
		string(queue.StatePending):   0,
		string(queue.StateRendering): 1,
		string(queue.StateRendered):  2,
		string(queue.StateFailed):    3,
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := order[keys[i]]
		oj, jok := order[keys[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ToDeck builds a store deck from a create request. Slide positions follow
// request order.
func (r CreateDeckRequest) ToDeck() deckstore.Deck {
	deck := deckstore.Deck{
		Title:    r.Title,
		Topic:    r.Topic,
		Audience: r.Audience,
		Palette:  r.Palette,
		Slides:   make([]deckstore.Slide, 0, len(r.Slides)),
	}
	for i, s := range r.Slides {
		deck.Slides = append(deck.Slides, deckstore.Slide{
			Position:      i + 1,
			JobID:         s.JobID,
			Title:         s.Title,
			ContentPoints: append([]string{}, s.ContentPoints...),
			LayoutHint:    s.LayoutHint,
			Notes:         s.Notes,
			HTML:          s.HTML,
			Failed:        s.Failed,
			Error:         s.Error,
		})
	}
	return deck
}
