package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slidesmith/internal/api"
	"slidesmith/internal/logging"
	"slidesmith/internal/outline"
	"slidesmith/internal/queue"
	"slidesmith/internal/testsupport"
	"slidesmith/internal/workflow"
)

type fixedOutliner struct{}

func (fixedOutliner) Generate(_ context.Context, req outline.Request) (outline.Outline, error) {
	out := outline.Outline{Title: "Cells", Topic: "biology", Cost: 0.1}
	for i := 1; i <= req.SlideCount; i++ {
		out.Jobs = append(out.Jobs, queue.Job{
			ID:            fmt.Sprintf("job-%d", i),
			Title:         fmt.Sprintf("Slide %d", i),
			ContentPoints: []string{"point"},
			State:         queue.StatePending,
		})
	}
	return out, nil
}

func streamingRenderer(_ context.Context, req queue.RenderRequest) (queue.RenderResult, error) {
	html := "<section>" + req.Job.Title + "</section>"
	if req.OnPartial != nil {
		req.OnPartial("<section>")
		req.OnPartial(html)
	}
	return queue.RenderResult{HTML: html, Cost: 0.01}, nil
}

type testEnv struct {
	daemon *Daemon
	server *httptest.Server
	hub    *logging.Hub
	token  string
}

func newTestEnv(t *testing.T, opts ...testsupport.ConfigOption) *testEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	runner := queue.NewRunner(queue.RendererFunc(streamingRenderer), queue.Options{
		MaxRetries:    2,
		InterJobDelay: time.Millisecond,
		BackoffStep:   time.Millisecond,
		BackoffMax:    2 * time.Millisecond,
	})
	manager := workflow.NewManager(workflow.Deps{
		Runner:          runner,
		Outliner:        fixedOutliner{},
		Store:           store,
		Logger:          logging.NewNop(),
		DefaultProvider: cfg.LLM.DefaultProvider,
	})
	if err := manager.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(manager.Close)

	hub := logging.NewHub(64)
	d, err := New(cfg, store, manager, hub, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(d.api.mux)
	t.Cleanup(srv.Close)
	return &testEnv{daemon: d, server: srv, hub: hub, token: cfg.Server.APIToken}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s %s (%d): %v: %s", method, path, resp.StatusCode, err, data)
		}
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp
}

func (e *testEnv) waitForSession(t *testing.T, status string) api.Session {
	t.Helper()
	var session api.Session
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		e.do(t, http.MethodGet, "/api/session", nil, &session)
		if session.Status == status {
			return session
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session status = %q, want %q", session.Status, status)
	return session
}

func TestSessionFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	var session api.Session
	resp := env.do(t, http.MethodPost, "/api/session/outline", api.OutlineRequest{SourceText: "cells", SlideCount: 2}, &session)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("outline status = %d", resp.StatusCode)
	}
	if session.Status != "outline_review" || len(session.Jobs) != 2 {
		t.Fatalf("session after outline = %+v", session)
	}

	title := "Renamed"
	var job api.Job
	resp = env.do(t, http.MethodPatch, "/api/session/jobs/job-1", api.JobEditRequest{Title: &title}, &job)
	if resp.StatusCode != http.StatusOK || job.Title != "Renamed" {
		t.Fatalf("edit = %d %+v", resp.StatusCode, job)
	}

	resp = env.do(t, http.MethodPost, "/api/session/confirm", api.ConfirmRequest{}, &session)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d", resp.StatusCode)
	}
	session = env.waitForSession(t, "complete")
	if session.Counts["rendered"] != 2 {
		t.Fatalf("counts = %v", session.Counts)
	}
	if session.Jobs[0].HTML != "<section>Renamed</section>" {
		t.Fatalf("job html = %q", session.Jobs[0].HTML)
	}

	var deck api.Deck
	resp = env.do(t, http.MethodPost, "/api/session/save", api.SaveRequest{Label: "first"}, &deck)
	if resp.StatusCode != http.StatusOK || deck.ID == "" || len(deck.Slides) != 2 {
		t.Fatalf("save = %d %+v", resp.StatusCode, deck)
	}

	var list api.DeckListResponse
	env.do(t, http.MethodGet, "/api/decks", nil, &list)
	if len(list.Decks) != 1 || list.Decks[0].ID != deck.ID {
		t.Fatalf("decks = %+v", list.Decks)
	}

	resp = env.do(t, http.MethodGet, "/api/decks/"+deck.ID+"/html", nil, nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "<section>Renamed</section>") {
		t.Fatalf("deck html = %d %q", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), ".html") {
		t.Fatalf("content disposition = %q", resp.Header.Get("Content-Disposition"))
	}

	resp = env.do(t, http.MethodGet, "/api/session/export?format=markdown", nil, nil)
	body, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Renamed") {
		t.Fatalf("export = %d %q", resp.StatusCode, body)
	}
}

func TestConfirmRejectsInvalidPalette(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/session/outline", api.OutlineRequest{SourceText: "x", SlideCount: 1}, nil)

	var payload api.ErrorResponse
	resp := env.do(t, http.MethodPost, "/api/session/confirm", api.ConfirmRequest{Palette: "not a palette"}, &payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(payload.Error, "palette") {
		t.Fatalf("error = %q", payload.Error)
	}
}

func TestSessionControlInWrongStateIsConflict(t *testing.T) {
	env := newTestEnv(t)
	var payload api.ErrorResponse
	resp := env.do(t, http.MethodPost, "/api/session/pause", nil, &payload)
	if resp.StatusCode != http.StatusConflict || payload.Error == "" {
		t.Fatalf("pause while idle = %d %+v", resp.StatusCode, payload)
	}
}

func TestUnknownDeckIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	var payload api.ErrorResponse
	resp := env.do(t, http.MethodGet, "/api/decks/missing", nil, &payload)
	if resp.StatusCode != http.StatusNotFound || payload.Error == "" {
		t.Fatalf("get missing deck = %d %+v", resp.StatusCode, payload)
	}
	resp = env.do(t, http.MethodPost, "/api/decks/d1/versions/abc/restore", nil, &payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("restore with bad version = %d", resp.StatusCode)
	}
}

func TestDeckCrudOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	var deck api.Deck
	resp := env.do(t, http.MethodPost, "/api/decks", api.CreateDeckRequest{
		Title:  "Stored",
		Slides: []api.Slide{{Title: "One"}, {Title: "Two"}},
	}, &deck)
	if resp.StatusCode != http.StatusCreated || len(deck.Slides) != 2 {
		t.Fatalf("create = %d %+v", resp.StatusCode, deck)
	}

	html := "<section>v2</section>"
	var slide api.Slide
	resp = env.do(t, http.MethodPatch, "/api/decks/"+deck.ID+"/slides/1", api.SlideUpdateRequest{HTML: &html}, &slide)
	if resp.StatusCode != http.StatusOK || slide.HTML != html {
		t.Fatalf("update slide = %d %+v", resp.StatusCode, slide)
	}

	var history api.SlideVersionListResponse
	env.do(t, http.MethodGet, "/api/decks/"+deck.ID+"/slides/1/history", nil, &history)
	if len(history.Versions) == 0 || history.Versions[0].HTML != html {
		t.Fatalf("history = %+v", history.Versions)
	}

	var version api.SlideVersion
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/slide-versions/%d", history.Versions[0].ID), nil, &version)
	if resp.StatusCode != http.StatusOK || version.HTML != html {
		t.Fatalf("slide version = %d %+v", resp.StatusCode, version)
	}

	newTitle := "Stored (edited)"
	resp = env.do(t, http.MethodPatch, "/api/decks/"+deck.ID, api.DeckMetaRequest{Title: &newTitle}, &deck)
	if resp.StatusCode != http.StatusOK || deck.Title != newTitle {
		t.Fatalf("update meta = %d %+v", resp.StatusCode, deck)
	}

	resp = env.do(t, http.MethodDelete, "/api/decks/"+deck.ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodGet, "/api/decks/"+deck.ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", resp.StatusCode)
	}
}

func TestRegenerateStreamsServerSentEvents(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/session/outline", api.OutlineRequest{SourceText: "x", SlideCount: 1}, nil)
	env.do(t, http.MethodPost, "/api/session/confirm", api.ConfirmRequest{}, nil)
	env.waitForSession(t, "complete")

	data, _ := json.Marshal(api.RegenerateRequest{Instruction: "shorter"})
	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/session/jobs/job-1/regenerate", bytes.NewReader(data))
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if strings.Count(text, "event: partial") != 2 || !strings.Contains(text, "event: done") {
		t.Fatalf("unexpected stream: %q", text)
	}
	if strings.Index(text, "event: partial") > strings.Index(text, "event: done") {
		t.Fatalf("done arrived before partials: %q", text)
	}
}

func TestRegenerateJSONWithoutStreaming(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/session/outline", api.OutlineRequest{SourceText: "x", SlideCount: 1}, nil)

	resp := env.do(t, http.MethodPost, "/api/session/jobs/job-1/regenerate", api.RegenerateRequest{}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("regenerate during review = %d, want 409", resp.StatusCode)
	}

	env.do(t, http.MethodPost, "/api/session/confirm", api.ConfirmRequest{}, nil)
	env.waitForSession(t, "complete")
	var job api.Job
	resp = env.do(t, http.MethodPost, "/api/session/jobs/job-1/regenerate", api.RegenerateRequest{}, &job)
	if resp.StatusCode != http.StatusOK || job.State != "rendered" {
		t.Fatalf("regenerate = %d %+v", resp.StatusCode, job)
	}
	resp = env.do(t, http.MethodDelete, "/api/session/jobs/job-1/regenerate", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cancel idle regeneration = %d", resp.StatusCode)
	}
}

func TestLogsEndpointFilters(t *testing.T) {
	env := newTestEnv(t)
	env.hub.Publish(logging.Event{Level: "INFO", Message: "queue", Component: "render-queue"})
	env.hub.Publish(logging.Event{Level: "DEBUG", Message: "noise", Component: "workflow"})
	env.hub.Publish(logging.Event{Level: "WARN", Message: "careful", Component: "workflow"})

	var out api.LogStreamResponse
	env.do(t, http.MethodGet, "/api/logs?component=workflow&level=info", nil, &out)
	if len(out.Events) != 1 || out.Events[0].Message != "careful" {
		t.Fatalf("events = %+v", out.Events)
	}
	if out.Next != 3 {
		t.Fatalf("next = %d, want 3", out.Next)
	}

	env.do(t, http.MethodGet, "/api/logs?since=3", nil, &out)
	if len(out.Events) != 0 || out.Next != 3 {
		t.Fatalf("since=3 = %+v", out)
	}
}

func TestStatusReportsChecks(t *testing.T) {
	env := newTestEnv(t)
	var status api.DaemonStatus
	resp := env.do(t, http.MethodGet, "/api/status", nil, &status)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if status.SessionStatus != "idle" || len(status.Checks) == 0 || len(status.Providers) == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Running {
		t.Fatal("daemon was never started")
	}
}

func TestAuthMiddlewareRequiresToken(t *testing.T) {
	env := newTestEnv(t, testsupport.WithAPIToken("s3cret"))

	resp, err := http.Get(env.server.URL + "/api/session")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var payload api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error != "unauthorized" {
		t.Fatalf("payload = %+v err=%v", payload, err)
	}

	if got := env.do(t, http.MethodGet, "/api/session", nil, nil); got.StatusCode != http.StatusOK {
		t.Fatalf("authorized status = %d", got.StatusCode)
	}
}

func TestAuthMiddlewareDisabledWithoutToken(t *testing.T) {
	called := false
	h := authMiddleware("", func(http.ResponseWriter, *http.Request) { called = true })
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("handler not called without token")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/session", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") != "abc-123" {
		t.Fatalf("request id = %q", resp.Header.Get("X-Request-ID"))
	}
}
