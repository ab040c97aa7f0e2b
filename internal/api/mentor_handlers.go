package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buildcamp/progression-engine/internal/models"
)

func (s *Server) handleUpsertMentor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var profile models.MentorProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	profile.UserID = id

	mentor, err := s.engine.UpsertMentorProfile(r.Context(), &profile)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mentor)
}

func (s *Server) handleGetMentor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	mentor, err := s.engine.GetMentorProfile(r.Context(), id)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mentor)
}

func (s *Server) handleListMentors(w http.ResponseWriter, r *http.Request) {
	mentors, err := s.engine.ListMentors(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"mentors": mentors,
		"total":   len(mentors),
	})
}

func (s *Server) handleRecommendMentors(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	ranked, err := s.engine.RecommendMentors(r.Context(), userID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": ranked,
		"total":           len(ranked),
	})
}

func (s *Server) handleRequestMentorship(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMentorshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	mentorship, err := s.engine.RequestMentorship(r.Context(), &req)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, mentorship)
}

func (s *Server) handleGetMentorship(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	mentorship, err := s.engine.GetMentorship(r.Context(), id)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mentorship)
}

func (s *Server) handleUpdateMentorshipStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.UpdateMentorshipStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	mentorship, err := s.engine.UpdateMentorshipStatus(r.Context(), id, &req)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mentorship)
}

func (s *Server) handleScheduleSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.ScheduleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, err := s.engine.ScheduleSession(r.Context(), id, &req)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := s.engine.GetSession(r.Context(), id)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleRateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.RateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, err := s.engine.RateSession(r.Context(), id, &req)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}
