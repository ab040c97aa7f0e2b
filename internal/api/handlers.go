package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/buildcamp/progression-engine/internal/progression"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondEngineError maps engine errors onto HTTP statuses: missing
// records are 404, duplicate or already-written state is 409, bad input
// is 400 and moves the state machines forbid are 422.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progression.ErrProjectNotFound),
		errors.Is(err, progression.ErrQuestNotFound),
		errors.Is(err, progression.ErrUserNotFound),
		errors.Is(err, progression.ErrMentorNotFound),
		errors.Is(err, progression.ErrMentorshipNotFound),
		errors.Is(err, progression.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, progression.ErrDuplicateMentorship),
		errors.Is(err, progression.ErrRatingAlreadySet),
		errors.Is(err, progression.ErrStageConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())

	case errors.Is(err, progression.ErrInvalidInput),
		errors.Is(err, progression.ErrInvalidStage),
		errors.Is(err, progression.ErrInvalidRating):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())

	case errors.Is(err, progression.ErrStageNotEligible),
		errors.Is(err, progression.ErrInvalidTransition),
		errors.Is(err, progression.ErrTrackNotSet),
		errors.Is(err, progression.ErrQuestOwnerMismatch),
		errors.Is(err, progression.ErrMentorAtCapacity),
		errors.Is(err, progression.ErrMentorUnavailable),
		errors.Is(err, progression.ErrMentorshipNotActive):
		respondError(w, http.StatusUnprocessableEntity, "invalid_state", err.Error())

	default:
		slog.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Stats handler

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		respondError(w, http.StatusServiceUnavailable, "stats_unavailable", "stats reporting is not configured")
		return
	}

	snapshot, err := s.reporter.Collect(r.Context())
	if err != nil {
		slog.Error("failed to collect stats", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to collect stats")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}
