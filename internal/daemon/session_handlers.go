package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"slidesmith/internal/api"
	"slidesmith/internal/outline"
	"slidesmith/internal/palette"
	"slidesmith/internal/queue"
	"slidesmith/internal/services"
	"slidesmith/internal/workflow"
)

func (s *apiServer) writeSession(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, api.FromSession(s.daemon.manager.Session()))
}

func (s *apiServer) handleSession(w http.ResponseWriter, _ *http.Request) {
	s.writeSession(w)
}

func (s *apiServer) handleOutline(w http.ResponseWriter, r *http.Request) {
	var req api.OutlineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	session, err := s.daemon.manager.GenerateOutline(r.Context(), outline.Request{
		SourceText: req.SourceText,
		SlideCount: req.SlideCount,
		Audience:   req.Audience,
		Topic:      req.Topic,
		Language:   req.Language,
		Provider:   req.Provider,
		Model:      req.Model,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSession(session))
}

func (s *apiServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req api.ConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var pal palette.Palette
	if strings.TrimSpace(req.Palette) != "" {
		parsed, err := palette.Parse(req.Palette)
		if err != nil {
			s.writeFailure(w, r, services.Wrap(services.ErrValidation, "api", "confirm outline", "invalid palette", err))
			return
		}
		pal = parsed
	}
	session, err := s.daemon.manager.ConfirmOutline(r.Context(), pal)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSession(session))
}

func (s *apiServer) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.manager.Pause(); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeSession(w)
}

func (s *apiServer) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.manager.Resume(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeSession(w)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	session, err := s.daemon.manager.Cancel(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSession(session))
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.manager.RetryFailed(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeSession(w)
}

func (s *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.manager.Reset(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeSession(w)
}

func (s *apiServer) handleSave(w http.ResponseWriter, r *http.Request) {
	var req api.SaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	deck, err := s.daemon.manager.SaveDeck(r.Context(), req.Label)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromDeck(deck))
}

func (s *apiServer) handleLoad(w http.ResponseWriter, r *http.Request) {
	session, err := s.daemon.manager.LoadDeck(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSession(session))
}

func (s *apiServer) handleNotes(w http.ResponseWriter, r *http.Request) {
	var req api.NotesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	applied, err := s.daemon.manager.GenerateNotes(r.Context(), req.Overwrite)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotesResponse{
		Applied: applied,
		Session: api.FromSession(s.daemon.manager.Session()),
	})
}

func (s *apiServer) handleImport(w http.ResponseWriter, r *http.Request) {
	session, err := s.daemon.manager.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSession(session))
}

var exportContentTypes = map[string]string{
	workflow.FormatProject:  "application/json",
	workflow.FormatHTML:     "text/html; charset=utf-8",
	workflow.FormatMarkdown: "text/markdown; charset=utf-8",
	workflow.FormatNotes:    "text/plain; charset=utf-8",
	"project":               "application/json",
	"md":                    "text/markdown; charset=utf-8",
	"txt":                   "text/plain; charset=utf-8",
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	var buf bytes.Buffer
	filename, err := s.daemon.manager.Export(&buf, format)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		contentType = "application/octet-stream"
		if format == "" {
			contentType = exportContentTypes[workflow.FormatProject]
		}
	}
	writeAttachment(w, contentType, filename, buf.Bytes())
}

func (s *apiServer) handleAddJob(w http.ResponseWriter, r *http.Request) {
	var req api.JobAddRequest
	req.Index = -1
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	job, err := s.daemon.manager.AddJob(req.Index, queue.Job{
		Title:         req.Title,
		ContentPoints: req.ContentPoints,
		LayoutHint:    req.LayoutHint,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromJob(job))
}

func (s *apiServer) handleEditJob(w http.ResponseWriter, r *http.Request) {
	var req api.JobEditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	job, err := s.daemon.manager.EditJob(r.PathValue("id"), req.ToJobEdit())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.manager.RemoveJob(r.PathValue("id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeSession(w)
}

// handleRegenerate re-renders one slide. Clients that accept
// text/event-stream receive partial HTML as "partial" events followed by a
// final "done" or "error" event; others get the finished job as JSON.
func (s *apiServer) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req api.RegenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	jobID := r.PathValue("id")

	flusher, canFlush := w.(http.Flusher)
	if !canFlush || !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		job, err := s.daemon.manager.Regenerate(r.Context(), jobID, req.Instruction, nil)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromJob(job))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var mu sync.Mutex
	send := func(evt api.RegenerateEvent) {
		data, err := json.Marshal(evt)
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
		flusher.Flush()
	}

	job, err := s.daemon.manager.Regenerate(r.Context(), jobID, req.Instruction, func(partial string) {
		send(api.RegenerateEvent{Type: "partial", HTML: partial})
	})
	if err != nil {
		send(api.RegenerateEvent{Type: "error", Error: err.Error()})
		return
	}
	dto := api.FromJob(job)
	send(api.RegenerateEvent{Type: "done", Job: &dto})
}

func (s *apiServer) handleCancelRegenerate(w http.ResponseWriter, r *http.Request) {
	if !s.daemon.manager.CancelRegenerate(r.PathValue("id")) {
		s.writeError(w, http.StatusNotFound, "no regeneration in progress")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
