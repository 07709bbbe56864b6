// cmd/search-service/handlers.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/engine"
	"restaurant-finder/internal/models"
	"restaurant-finder/internal/repository"
)

type apiServer struct {
	searches   repository.SearchRepository
	candidates repository.CandidateRepository
	engine     *engine.SearchEngine
	logger     logger.Logger
}

func newAPIServer(searches repository.SearchRepository, candidates repository.CandidateRepository, eng *engine.SearchEngine, log logger.Logger) *apiServer {
	return &apiServer{
		searches:   searches,
		candidates: candidates,
		engine:     eng,
		logger:     log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /searches", s.handleCreateSearch)
	mux.HandleFunc("GET /searches/{id}/events", s.handleSearchEvents)
	mux.HandleFunc("GET /searches/{id}/candidates/{candidateId}", s.handleGetCandidate)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type createSearchRequest struct {
	Latitude      float64              `json:"latitude"`
	Longitude     float64              `json:"longitude"`
	DistanceRange models.DistanceRange `json:"distanceRange"`
	ServiceWindow models.ServiceWindow `json:"serviceWindow"`
	Preferences   json.RawMessage      `json:"preferences"`
}

func (s *apiServer) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var req createSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.DistanceRange {
	case models.DistanceClose, models.DistanceMidRange, models.DistanceFar:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown distance range")
		return
	}

	var prefs models.Preferences
	if len(req.Preferences) > 0 {
		if err := models.ValidatePreferences(req.Preferences); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := json.Unmarshal(req.Preferences, &prefs); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid preferences")
			return
		}
	}

	search := &models.Search{
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		DistanceRange: req.DistanceRange,
		ServiceWindow: req.ServiceWindow,
		Preferences:   prefs,
	}
	if err := s.searches.Create(r.Context(), search); err != nil {
		s.logger.Error("failed to create search", map[string]interface{}{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, "failed to create search")
		return
	}

	s.writeJSON(w, http.StatusCreated, search)
}

// handleSearchEvents runs the engine for one search and streams its progress
// as server-sent events. After the result event the client gets a redirect
// event pointing at the persisted candidate resource.
func (s *apiServer) handleSearchEvents(w http.ResponseWriter, r *http.Request) {
	searchID := r.PathValue("id")
	locale := r.URL.Query().Get("locale")
	if locale == "" {
		locale = "en"
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, errc := s.engine.SearchCandidate(r.Context(), searchID, locale)
	for event := range events {
		s.writeEvent(w, flusher, event)

		if event.Kind == engine.EventResult && event.Candidate != nil && event.Candidate.ID != "" {
			s.writeEvent(w, flusher, engine.ProgressEvent{
				Kind: engine.EventRedirect,
				URL:  fmt.Sprintf("/searches/%s/candidates/%s", searchID, event.Candidate.ID),
			})
		}
	}

	if err := <-errc; err != nil {
		if errors.Is(err, repository.ErrSearchNotFound) {
			s.writeEvent(w, flusher, engine.ProgressEvent{Kind: "error", Message: "search not found"})
			return
		}
		s.logger.Error("search run failed", map[string]interface{}{
			"search_id": searchID,
			"error":     err.Error(),
		})
		s.writeEvent(w, flusher, engine.ProgressEvent{Kind: "error", Message: "search failed"})
	}
}

func (s *apiServer) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	candidate, err := s.candidates.FindByID(r.Context(), r.PathValue("candidateId"))
	if errors.Is(err, repository.ErrCandidateNotFound) {
		s.writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load candidate", map[string]interface{}{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, "failed to load candidate")
		return
	}
	s.writeJSON(w, http.StatusOK, candidate)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *apiServer) writeEvent(w http.ResponseWriter, flusher http.Flusher, event engine.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
	flusher.Flush()
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
