package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"slidesmith/internal/outline"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
	"slidesmith/internal/services"
	"slidesmith/internal/workflow"
)

func TestOutlineConfirmRendersEverySlide(t *testing.T) {
	h := newHarness(t, "")

	session := h.outlineReview(t)
	if session.Status != workflow.StatusOutlineReview {
		t.Fatalf("status = %s, want outline_review", session.Status)
	}
	if session.Title != "Cells" || len(session.Run.Jobs) != 3 {
		t.Fatalf("unexpected outline session: %+v", session)
	}
	if session.Selection != "job-1" {
		t.Fatalf("selection = %q, want first slide", session.Selection)
	}

	if _, err := h.manager.ConfirmOutline(context.Background(), palette.Palette{}); err != nil {
		t.Fatalf("ConfirmOutline: %v", err)
	}
	done := waitForStatus(t, h.manager, workflow.StatusComplete)
	if got := done.Counts[queue.StateRendered]; got != 3 {
		t.Fatalf("rendered = %d, want 3", got)
	}
	if math.Abs(done.Cost-0.53) > 1e-9 {
		t.Fatalf("cost = %v, want outline 0.50 plus render 0.03", done.Cost)
	}
	if done.Palette != palette.Default().String() {
		t.Fatalf("palette = %q, want default", done.Palette)
	}

	waitFor(t, "completion notification", func() bool { return len(h.notifier.completed()) == 1 })
	got := h.notifier.completed()[0]
	if got.title != "Cells" || got.rendered != 3 || got.failed != 0 {
		t.Fatalf("unexpected notification %+v", got)
	}
}

func TestOutlineFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, "")
	h.outliner.err = errBoom

	if _, err := h.manager.GenerateOutline(context.Background(), outline.Request{SourceText: "x", SlideCount: 2}); !errors.Is(err, errBoom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	session := h.manager.Session()
	if session.Status != workflow.StatusIdle {
		t.Fatalf("status = %s, want idle", session.Status)
	}
	if len(session.Run.Jobs) != 0 {
		t.Fatalf("expected no partial outline, got %d jobs", len(session.Run.Jobs))
	}
	if session.Error == "" {
		t.Fatal("expected last error on session")
	}
	waitFor(t, "error notification", func() bool { return h.notifier.errorCount() == 1 })
}

func TestConfirmRequiresOutlineReview(t *testing.T) {
	h := newHarness(t, "")
	if _, err := h.manager.ConfirmOutline(context.Background(), palette.Default()); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := h.manager.Pause(); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("expected invalid state for pause, got %v", err)
	}
	if _, err := h.manager.Regenerate(context.Background(), "job-1", "", nil); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("expected invalid state for regenerate, got %v", err)
	}
}

func TestOutlineEditing(t *testing.T) {
	h := newHarness(t, "")
	h.outlineReview(t)

	title := "Cell membranes"
	points := []string{"lipid bilayer", "proteins"}
	job, err := h.manager.EditJob("job-2", queue.JobEdit{Title: &title, ContentPoints: &points})
	if err != nil {
		t.Fatalf("EditJob: %v", err)
	}
	if job.Title != title || len(job.ContentPoints) != 2 {
		t.Fatalf("edit not applied: %+v", job)
	}

	added, err := h.manager.AddJob(1, queue.Job{Title: "History"})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if added.ID == "" || added.State != queue.StatePending {
		t.Fatalf("unexpected added job %+v", added)
	}
	if err := h.manager.RemoveJob("job-3"); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}

	jobs := h.manager.Session().Run.Jobs
	var titles []string
	for _, j := range jobs {
		titles = append(titles, j.Title)
	}
	if got := strings.Join(titles, ","); got != "Intro,History,Cell membranes" {
		t.Fatalf("outline order = %s", got)
	}

	if _, err := h.manager.EditJob("missing", queue.JobEdit{Title: &title}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.manager.AddJob(0, queue.Job{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty title, got %v", err)
	}
}

func TestCancelKeepsRenderedOutput(t *testing.T) {
	started := make(chan struct{}, 1)
	h := newHarness(t, "", withRenderer(func(ctx context.Context, req queue.RenderRequest) (queue.RenderResult, error) {
		if req.Page == 1 {
			return echoRenderer(ctx, req)
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return queue.RenderResult{}, ctx.Err()
	}))
	h.outlineReview(t)
	if _, err := h.manager.ConfirmOutline(context.Background(), palette.Default()); err != nil {
		t.Fatalf("ConfirmOutline: %v", err)
	}
	<-started

	session, err := h.manager.Cancel(context.Background())
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if session.Status != workflow.StatusOutlineReview {
		t.Fatalf("status = %s, want outline_review", session.Status)
	}
	jobs := session.Run.Jobs
	if jobs[0].State != queue.StateRendered || !jobs[0].HasOutput() {
		t.Fatalf("first slide lost its output: %+v", jobs[0])
	}
	if jobs[1].State != queue.StatePending || jobs[1].RetryCount != 0 || jobs[1].Error != "" {
		t.Fatalf("cancelled slide should be pending and clean: %+v", jobs[1])
	}
	if len(h.notifier.completed()) != 0 {
		t.Fatal("cancelled run must not notify completion")
	}
}

func TestGenerateNotesAppliesToRenderedSlides(t *testing.T) {
	h := newHarness(t, "", withNotes(stubNotes{notes: map[string]string{"job-1": "Say hello.", "job-2": "Explain membranes."}}))
	h.outlineReview(t)
	if _, err := h.manager.ConfirmOutline(context.Background(), palette.Default()); err != nil {
		t.Fatalf("ConfirmOutline: %v", err)
	}
	waitForStatus(t, h.manager, workflow.StatusComplete)

	applied, err := h.manager.GenerateNotes(context.Background(), false)
	if err != nil {
		t.Fatalf("GenerateNotes: %v", err)
	}
	if applied != 2 {
		t.Fatalf("applied = %d, want 2", applied)
	}
	session := h.manager.Session()
	job, _ := session.Run.Job("job-2")
	if job.Notes != "Explain membranes." {
		t.Fatalf("notes = %q", job.Notes)
	}
	if math.Abs(session.Cost-0.78) > 1e-9 {
		t.Fatalf("cost = %v, want notes cost included", session.Cost)
	}
}

func TestRegenerateDuringCompleteRun(t *testing.T) {
	h := newHarness(t, "", withRenderer(func(ctx context.Context, req queue.RenderRequest) (queue.RenderResult, error) {
		html := "<section>" + req.Job.Title + "</section>"
		if req.Instruction != "" {
			if req.OnPartial != nil {
				req.OnPartial("<section>")
			}
			html = "<section>" + req.Instruction + "</section>"
		}
		return queue.RenderResult{HTML: html, Cost: 0.01}, nil
	}))
	h.outlineReview(t)
	if _, err := h.manager.ConfirmOutline(context.Background(), palette.Default()); err != nil {
		t.Fatalf("ConfirmOutline: %v", err)
	}
	waitForStatus(t, h.manager, workflow.StatusComplete)

	var partials []string
	job, err := h.manager.Regenerate(context.Background(), "job-1", "darker", func(s string) { partials = append(partials, s) })
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if job.Output != "<section>darker</section>" || job.State != queue.StateRendered {
		t.Fatalf("unexpected regenerated job %+v", job)
	}
	if len(partials) == 0 {
		t.Fatal("expected progressive output")
	}
	if h.manager.Session().Status != workflow.StatusComplete {
		t.Fatal("regeneration should leave the session complete")
	}
}

func TestAutosaveRestoresOutlineReview(t *testing.T) {
	first := newHarness(t, "")
	first.outlineReview(t)
	title := "Renamed"
	if _, err := first.manager.EditJob("job-1", queue.JobEdit{Title: &title}); err != nil {
		t.Fatalf("EditJob: %v", err)
	}
	first.manager.Close()

	second := newHarness(t, first.repo.Path())
	session := second.manager.Session()
	if session.Status != workflow.StatusOutlineReview {
		t.Fatalf("restored status = %s, want outline_review", session.Status)
	}
	if len(session.Run.Jobs) != 3 || session.Run.Jobs[0].Title != "Renamed" {
		t.Fatalf("restored jobs = %+v", session.Run.Jobs)
	}
	if session.Config.SourceText != "cells" {
		t.Fatalf("restored config = %+v", session.Config)
	}
	if math.Abs(session.Cost-0.5) > 1e-9 {
		t.Fatalf("restored cost = %v", session.Cost)
	}
}

func TestAutosaveRestoresRenderingRunPaused(t *testing.T) {
	started := make(chan struct{}, 1)
	first := newHarness(t, "", withRenderer(func(ctx context.Context, req queue.RenderRequest) (queue.RenderResult, error) {
		if req.Page == 1 {
			return echoRenderer(ctx, req)
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return queue.RenderResult{}, ctx.Err()
	}))
	first.outlineReview(t)
	if _, err := first.manager.ConfirmOutline(context.Background(), palette.Default()); err != nil {
		t.Fatalf("ConfirmOutline: %v", err)
	}
	<-started
	first.manager.Close()

	second := newHarness(t, first.repo.Path())
	session := second.manager.Session()
	if session.Status != workflow.StatusRendering {
		t.Fatalf("restored status = %s, want rendering", session.Status)
	}
	if session.Run.Status != queue.RunPaused {
		t.Fatalf("restored run status = %s, want paused", session.Run.Status)
	}
	if session.Run.Jobs[0].State != queue.StateRendered {
		t.Fatalf("first slide should stay rendered: %+v", session.Run.Jobs[0])
	}
	for _, job := range session.Run.Jobs {
		if job.State == queue.StateRendering {
			t.Fatalf("restored run has a rendering job: %+v", job)
		}
	}

	if err := second.manager.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitForStatus(t, second.manager, workflow.StatusComplete)
}

func TestResetClearsAutosave(t *testing.T) {
	h := newHarness(t, "")
	h.outlineReview(t)
	waitFor(t, "autosave write", func() bool {
		_, ok, err := h.repo.Load(context.Background())
		return err == nil && ok
	})

	if err := h.manager.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, ok, err := h.repo.Load(context.Background()); err != nil || ok {
		t.Fatalf("expected autosave cleared, ok=%v err=%v", ok, err)
	}
	session := h.manager.Session()
	if session.Status != workflow.StatusIdle || session.Title != "" || session.Cost != 0 {
		t.Fatalf("session not reset: %+v", session)
	}
}

func TestSaveAndLoadDeck(t *testing.T) {
	h := newHarness(t, "")
	h.outlineReview(t)
	if _, err := h.manager.ConfirmOutline(context.Background(), palette.Default()); err != nil {
		t.Fatalf("ConfirmOutline: %v", err)
	}
	waitForStatus(t, h.manager, workflow.StatusComplete)
	waitFor(t, "completion notification", func() bool { return len(h.notifier.completed()) == 1 })

	saved, err := h.manager.SaveDeck(context.Background(), "")
	if err != nil {
		t.Fatalf("SaveDeck: %v", err)
	}
	if saved.ID == "" || len(saved.Slides) != 3 {
		t.Fatalf("unexpected saved deck %+v", saved)
	}
	if h.manager.Session().DeckID != saved.ID {
		t.Fatal("session should link to the saved deck")
	}
	again, err := h.manager.SaveDeck(context.Background(), "second")
	if err != nil {
		t.Fatalf("SaveDeck again: %v", err)
	}
	if again.ID != saved.ID {
		t.Fatalf("second save created a new deck %s", again.ID)
	}

	if err := h.manager.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	session, err := h.manager.LoadDeck(context.Background(), saved.ID)
	if err != nil {
		t.Fatalf("LoadDeck: %v", err)
	}
	if session.Status != workflow.StatusComplete {
		t.Fatalf("status = %s, want complete", session.Status)
	}
	if session.Run.Counts()[queue.StateRendered] != 3 {
		t.Fatalf("loaded jobs = %+v", session.Run.Jobs)
	}
	if len(h.notifier.completed()) != 1 {
		t.Fatalf("loading a finished deck must not notify, got %d notifications", len(h.notifier.completed()))
	}

	if _, err := h.manager.LoadDeck(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	h := newHarness(t, "")
	h.outlineReview(t)
	if _, err := h.manager.ConfirmOutline(context.Background(), palette.Default()); err != nil {
		t.Fatalf("ConfirmOutline: %v", err)
	}
	waitForStatus(t, h.manager, workflow.StatusComplete)

	var buf bytes.Buffer
	name, err := h.manager.Export(&buf, workflow.FormatProject)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasSuffix(name, ".slidesmith.json") {
		t.Fatalf("file name = %q", name)
	}

	other := newHarness(t, "")
	session, err := other.manager.Import(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if session.Status != workflow.StatusComplete || session.Title != "Cells" {
		t.Fatalf("unexpected imported session %+v", session)
	}
	if session.DeckID != "" {
		t.Fatal("imported session should not be linked to a stored deck")
	}

	var md bytes.Buffer
	if _, err := other.manager.Export(&md, workflow.FormatMarkdown); err != nil {
		t.Fatalf("Export markdown: %v", err)
	}
	if !strings.Contains(md.String(), "Membranes") {
		t.Fatalf("markdown missing slide: %s", md.String())
	}
	if _, err := other.manager.Export(&md, "pptx"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown format, got %v", err)
	}
}
