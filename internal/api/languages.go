package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zohaib704-ai/Code-sphere/internal/model"
)

type languagesResponse struct {
	Success   bool             `json:"success"`
	Cached    bool             `json:"cached"`
	Timestamp string           `json:"timestamp,omitempty"`
	Languages []model.Language `json:"languages"`
}

type languageResponse struct {
	Success  bool           `json:"success"`
	Language model.Language `json:"language"`
}

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	snap, cached, err := s.catalog.Get(r.Context())
	if err != nil {
		s.logger.Warn("list languages", "error", err)
		s.writeFailure(w, err)
		return
	}

	resp := languagesResponse{
		Success:   true,
		Cached:    cached,
		Languages: snap.Languages,
	}
	if !snap.FetchedAt.IsZero() {
		resp.Timestamp = snap.FetchedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	lang, err := s.catalog.Lookup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, languageResponse{Success: true, Language: lang})
}
