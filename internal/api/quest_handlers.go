package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buildcamp/progression-engine/internal/models"
)

func (s *Server) handleCreateQuest(w http.ResponseWriter, r *http.Request) {
	var quest models.Quest
	if err := json.NewDecoder(r.Body).Decode(&quest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	created, err := s.engine.CreateQuest(r.Context(), &quest)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetQuest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	quest, err := s.engine.GetQuest(r.Context(), id)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quest)
}

func (s *Server) handleAssignQuest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.AssignQuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.OwnerID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "owner_id is required")
		return
	}
	if req.OwnerKind == "" {
		req.OwnerKind = models.OwnerUser
	}

	assignment, created, err := s.engine.AssignQuest(r.Context(), id, req.OwnerID, req.OwnerKind)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, assignment)
}

func (s *Server) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	questID := chi.URLParam(r, "id")
	ownerID := chi.URLParam(r, "ownerId")

	assignment, err := s.engine.GetAssignment(r.Context(), questID, ownerID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, assignment)
}

func (s *Server) handleUpdateAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	questID := chi.URLParam(r, "id")
	ownerID := chi.URLParam(r, "ownerId")

	var req models.UpdateAssignmentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	assignment, err := s.engine.UpdateAssignmentStatus(r.Context(), questID, ownerID, &req)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, assignment)
}

func (s *Server) handleAssignmentHistory(w http.ResponseWriter, r *http.Request) {
	questID := chi.URLParam(r, "id")
	ownerID := chi.URLParam(r, "ownerId")

	events, err := s.engine.ListAssignmentHistory(r.Context(), questID, ownerID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  len(events),
	})
}

func (s *Server) handleWeeklyAssign(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req models.WeeklyAssignRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	assigned, err := s.engine.AssignWeeklyQuests(r.Context(), userID, req.ProgramID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"assignments": assigned,
		"total":       len(assigned),
	})
}

func (s *Server) handleSetTrack(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req models.SetTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	settings, err := s.engine.SetTrack(r.Context(), userID, req.Track)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleGetUserSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	settings, err := s.engine.GetUserSettings(r.Context(), userID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}
