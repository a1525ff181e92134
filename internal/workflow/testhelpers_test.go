package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"slidesmith/internal/autosave"
	"slidesmith/internal/deckstore"
	"slidesmith/internal/logging"
	"slidesmith/internal/outline"
	"slidesmith/internal/queue"
	"slidesmith/internal/render"
	"slidesmith/internal/testsupport"
	"slidesmith/internal/workflow"
)

type stubOutliner struct {
	mu     sync.Mutex
	calls  int
	result outline.Outline
	err    error
	block  chan struct{}
}

func (s *stubOutliner) Generate(ctx context.Context, req outline.Request) (outline.Outline, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return outline.Outline{}, ctx.Err()
		}
	}
	if s.err != nil {
		return outline.Outline{}, s.err
	}
	return s.result, nil
}

func outlineOf(title string, slides ...string) outline.Outline {
	out := outline.Outline{Title: title, Topic: title, Cost: 0.5}
	for i, s := range slides {
		out.Jobs = append(out.Jobs, queue.Job{
			ID:            fmt.Sprintf("job-%d", i+1),
			Title:         s,
			ContentPoints: []string{s + " point"},
			State:         queue.StatePending,
		})
	}
	return out
}

type stubNotes struct {
	notes map[string]string
	err   error
}

func (s stubNotes) Write(_ context.Context, jobs []queue.Job, _ queue.RunContext, _ bool) (render.NotesResult, error) {
	result := render.NotesResult{Notes: map[string]string{}, Cost: 0.25}
	for _, job := range jobs {
		if n, ok := s.notes[job.ID]; ok && job.State == queue.StateRendered {
			result.Notes[job.ID] = n
		}
	}
	return result, s.err
}

type completion struct {
	title            string
	rendered, failed int
}

type recordingNotifier struct {
	mu          sync.Mutex
	completions []completion
	errors      []string
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, title string, rendered, failed int, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completions = append(n.completions, completion{title: title, rendered: rendered, failed: failed})
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, err error, label string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, label+": "+err.Error())
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func (n *recordingNotifier) completed() []completion {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]completion(nil), n.completions...)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

type harness struct {
	manager  *workflow.Manager
	outliner *stubOutliner
	notifier *recordingNotifier
	repo     *autosave.FileRepository
	store    *deckstore.Store
	deps     workflow.Deps
}

type harnessOption func(*workflow.Deps)

func withRenderer(fn queue.RendererFunc) harnessOption {
	return func(d *workflow.Deps) {
		d.Runner = queue.NewRunner(fn, fastRunnerOptions())
	}
}

func withNotes(n workflow.NotesGenerator) harnessOption {
	return func(d *workflow.Deps) { d.Notes = n }
}

func fastRunnerOptions() queue.Options {
	return queue.Options{
		MaxRetries:    3,
		InterJobDelay: time.Millisecond,
		BackoffStep:   time.Millisecond,
		BackoffMax:    5 * time.Millisecond,
		Placeholder:   render.Placeholder,
	}
}

func echoRenderer(ctx context.Context, req queue.RenderRequest) (queue.RenderResult, error) {
	return queue.RenderResult{HTML: "<section>" + req.Job.Title + "</section>", Cost: 0.01}, nil
}

// newHarness wires a manager over a real deck store and autosave file.
// repoPath lets two managers share one autosave file.
func newHarness(t *testing.T, repoPath string, opts ...harnessOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if repoPath == "" {
		repoPath = cfg.Autosave.Path
	}
	h := &harness{
		outliner: &stubOutliner{result: outlineOf("Cells", "Intro", "Membranes", "Summary")},
		notifier: &recordingNotifier{},
		repo:     autosave.NewFileRepository(repoPath, 0, logging.NewNop()),
		store:    testsupport.MustOpenStore(t, cfg),
	}
	h.deps = workflow.Deps{
		Runner:           queue.NewRunner(queue.RendererFunc(echoRenderer), fastRunnerOptions()),
		Outliner:         h.outliner,
		Store:            h.store,
		Autosave:         h.repo,
		Notifier:         h.notifier,
		Logger:           logging.NewNop(),
		AutosaveDebounce: 5 * time.Millisecond,
		DefaultProvider:  "openrouter",
	}
	for _, opt := range opts {
		opt(&h.deps)
	}
	h.manager = workflow.NewManager(h.deps)
	if err := h.manager.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(h.manager.Close)
	return h
}

func (h *harness) outlineReview(t *testing.T) workflow.Session {
	t.Helper()
	session, err := h.manager.GenerateOutline(context.Background(), outline.Request{SourceText: "cells", SlideCount: 3})
	if err != nil {
		t.Fatalf("GenerateOutline: %v", err)
	}
	return session
}

func waitForStatus(t *testing.T, m *workflow.Manager, want workflow.Status) workflow.Session {
	t.Helper()
	var last workflow.Session
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		last = m.Session()
		if last.Status == want {
			return last
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", last.Status, want)
	return last
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")
