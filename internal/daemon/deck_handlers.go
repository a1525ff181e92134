package daemon

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"slidesmith/internal/api"
	"slidesmith/internal/export"
)

func (s *apiServer) handleListDecks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	decks, err := s.decks.List(r.Context(), query.Get("q"), limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeckListResponse{Decks: decks})
}

func (s *apiServer) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req api.CreateDeckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	deck, err := s.decks.Create(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, deck)
}

func (s *apiServer) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.decks.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deck)
}

func (s *apiServer) handleUpdateDeck(w http.ResponseWriter, r *http.Request) {
	var req api.DeckMetaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	deck, err := s.decks.UpdateMeta(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deck)
}

func (s *apiServer) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := s.decks.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeckHTML renders a stored deck as a standalone HTML document.
func (s *apiServer) handleDeckHTML(w http.ResponseWriter, r *http.Request) {
	deck, err := s.decks.Raw(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	doc := export.FromDeck(deck)
	var buf bytes.Buffer
	if err := export.HTML(&buf, doc); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeAttachment(w, "text/html; charset=utf-8", export.FileName(doc.Title, "html"), buf.Bytes())
}

func (s *apiServer) handleDeckVersions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	versions, err := s.decks.History(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeckVersionListResponse{Versions: versions})
}

func (s *apiServer) handleRestoreDeckVersion(w http.ResponseWriter, r *http.Request) {
	version, err := pathInt(r, "version")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	deck, err := s.decks.Restore(r.Context(), r.PathValue("id"), version)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deck)
}

func (s *apiServer) handleSlideHistory(w http.ResponseWriter, r *http.Request) {
	position, err := pathInt(r, "position")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	versions, err := s.decks.SlideHistory(r.Context(), r.PathValue("id"), int(position), limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SlideVersionListResponse{Versions: versions})
}

func (s *apiServer) handleSlideVersion(w http.ResponseWriter, r *http.Request) {
	version, err := pathInt(r, "version")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	row, err := s.decks.SlideVersion(r.Context(), version)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

func (s *apiServer) handleUpdateSlide(w http.ResponseWriter, r *http.Request) {
	s.writeSlide(w, r, false)
}

func (s *apiServer) handleUpsertSlide(w http.ResponseWriter, r *http.Request) {
	s.writeSlide(w, r, true)
}

func (s *apiServer) writeSlide(w http.ResponseWriter, r *http.Request, upsert bool) {
	position, err := pathInt(r, "position")
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req api.SlideUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var slide api.Slide
	if upsert {
		slide, err = s.decks.UpsertSlide(r.Context(), r.PathValue("id"), int(position), req)
	} else {
		slide, err = s.decks.UpdateSlide(r.Context(), r.PathValue("id"), int(position), req)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, slide)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
