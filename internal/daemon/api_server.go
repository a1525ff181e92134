package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidesmith/internal/api"
	"slidesmith/internal/config"
	"slidesmith/internal/logging"
	"slidesmith/internal/services"
)

// maxBodyBytes bounds request bodies; source text and imported projects are
// the largest payloads.
const maxBodyBytes = 16 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	decks  *api.DeckService
	mux    http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg config.Server, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		decks:  api.NewDeckService(d.store),
	}
	srv.mux = srv.routes(cfg.APIToken)
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware(token, fn))
	}

	handle("GET /api/status", s.handleStatus)
	handle("GET /api/logs", s.handleLogs)
	handle("POST /api/notifications/test", s.handleTestNotification)

	handle("GET /api/decks", s.handleListDecks)
	handle("POST /api/decks", s.handleCreateDeck)
	handle("GET /api/decks/{id}", s.handleGetDeck)
	handle("PATCH /api/decks/{id}", s.handleUpdateDeck)
	handle("DELETE /api/decks/{id}", s.handleDeleteDeck)
	handle("GET /api/decks/{id}/html", s.handleDeckHTML)
	handle("GET /api/decks/{id}/versions", s.handleDeckVersions)
	handle("POST /api/decks/{id}/versions/{version}/restore", s.handleRestoreDeckVersion)
	handle("GET /api/decks/{id}/slides/{position}/history", s.handleSlideHistory)
	handle("PATCH /api/decks/{id}/slides/{position}", s.handleUpdateSlide)
	handle("PUT /api/decks/{id}/slides/{position}", s.handleUpsertSlide)
	handle("GET /api/slide-versions/{version}", s.handleSlideVersion)

	handle("GET /api/session", s.handleSession)
	handle("POST /api/session/outline", s.handleOutline)
	handle("POST /api/session/confirm", s.handleConfirm)
	handle("POST /api/session/pause", s.handlePause)
	handle("POST /api/session/resume", s.handleResume)
	handle("POST /api/session/cancel", s.handleCancel)
	handle("POST /api/session/retry", s.handleRetry)
	handle("POST /api/session/reset", s.handleReset)
	handle("POST /api/session/save", s.handleSave)
	handle("POST /api/session/load/{id}", s.handleLoad)
	handle("POST /api/session/notes", s.handleNotes)
	handle("POST /api/session/import", s.handleImport)
	handle("GET /api/session/export", s.handleExport)
	handle("POST /api/session/jobs", s.handleAddJob)
	handle("PATCH /api/session/jobs/{id}", s.handleEditJob)
	handle("DELETE /api/session/jobs/{id}", s.handleRemoveJob)
	handle("POST /api/session/jobs/{id}/regenerate", s.handleRegenerate)
	handle("DELETE /api/session/jobs/{id}/regenerate", s.handleCancelRegenerate)

	return s.withRequestID(mux)
}

// withRequestID tags each request with a correlation id carried by the
// context into log fields and echoed in the X-Request-ID header.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("server bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	// No write timeout: outline and regenerate requests wait on LLM calls
	// and may stream.
	server := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server, listener := s.server, s.listener
	s.server, s.listener = nil, nil
	s.mu.Unlock()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status()
	cfg := s.daemon.cfg
	payload := api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		Bind:            status.Bind,
		DatabasePath:    status.DatabasePath,
		LockFilePath:    status.LockFilePath,
		LogPath:         status.LogPath,
		DefaultProvider: cfg.LLM.DefaultProvider,
		Providers:       cfg.ProviderNames(),
		SessionStatus:   string(status.Session.Status),
		SessionTitle:    status.Session.Title,
		Counts:          api.MergeCounts(status.Session.Counts),
		Checks:          api.FromCheckResults(s.daemon.Preflight(r.Context())),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.Format("2006-01-02T15:04:05.000Z07:00")
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []api.LogEvent{}})
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	component := strings.TrimSpace(query.Get("component"))
	deckID := strings.TrimSpace(query.Get("deck"))
	level := strings.ToUpper(strings.TrimSpace(query.Get("level")))

	events, next := hub.Since(since, limit)
	filtered := make([]logging.Event, 0, len(events))
	for _, evt := range events {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if deckID != "" && evt.DeckID != deckID {
			continue
		}
		if level != "" && !levelAtLeast(evt.Level, level) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{
		Events: api.FromLogEvents(filtered),
		Next:   next,
	})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, message+": "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.TestNotificationResponse{Sent: sent, Message: message})
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

func levelAtLeast(have, want string) bool {
	h, ok := levelRank[strings.ToUpper(have)]
	if !ok {
		return true
	}
	w, ok := levelRank[want]
	if !ok {
		return true
	}
	return h >= w
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return services.Wrap(services.ErrValidation, "api", "decode request", "invalid JSON body", err)
	}
	return nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	value, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "api", "parse path", fmt.Sprintf("invalid %s %q", name, r.PathValue(name)), nil)
	}
	return value, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeFailure maps err onto a status code and logs unexpected failures.
func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if errors.Is(err, context.Canceled) {
		status = 499
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("api request failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeError(w, status, err.Error())
}
