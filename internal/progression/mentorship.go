package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/buildcamp/progression-engine/internal/models"
	"github.com/buildcamp/progression-engine/internal/storage"
)

// RequestMentorship opens a mentorship in the requested state. The pair
// may hold at most one live mentorship; a second request while one is
// open comes back as ErrDuplicateMentorship.
func (e *Engine) RequestMentorship(ctx context.Context, req *models.CreateMentorshipRequest) (*models.Mentorship, error) {
	if strings.TrimSpace(req.MentorID) == "" || strings.TrimSpace(req.ParticipantID) == "" {
		return nil, fmt.Errorf("%w: mentor_id and participant_id are required", ErrInvalidInput)
	}
	if req.MentorID == req.ParticipantID {
		return nil, fmt.Errorf("%w: participant cannot mentor themselves", ErrInvalidInput)
	}

	mentor, err := e.repo.GetMentorProfile(ctx, req.MentorID)
	if err != nil {
		return nil, err
	}
	if mentor == nil {
		return nil, ErrMentorNotFound
	}
	if mentor.Availability == models.AvailabilityUnavailable {
		return nil, ErrMentorUnavailable
	}
	if mentor.IsAtCapacity() {
		return nil, ErrMentorAtCapacity
	}

	mentorship := &models.Mentorship{
		ID:            uuid.New().String(),
		MentorID:      req.MentorID,
		ParticipantID: req.ParticipantID,
		Status:        models.MentorshipRequested,
		Message:       req.Message,
		Goals:         req.Goals,
		CreatedAt:     e.now().UTC(),
	}

	if err := e.repo.CreateMentorship(ctx, mentorship); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateMentorship
		}
		return nil, err
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, req.ParticipantID)
	}

	slog.Info("mentorship requested",
		"mentorship_id", mentorship.ID,
		"mentor_id", req.MentorID,
		"participant_id", req.ParticipantID,
	)

	return mentorship, nil
}

// GetMentorship retrieves a mentorship by ID
func (e *Engine) GetMentorship(ctx context.Context, id string) (*models.Mentorship, error) {
	mentorship, err := e.repo.GetMentorship(ctx, id)
	if err != nil {
		return nil, err
	}
	if mentorship == nil {
		return nil, ErrMentorshipNotFound
	}
	return mentorship, nil
}

// UpdateMentorshipStatus moves a mentorship along its lifecycle. The
// conditional write in the repository turns a lost race into
// ErrInvalidTransition rather than silently reapplying the move.
func (e *Engine) UpdateMentorshipStatus(ctx context.Context, id string, req *models.UpdateMentorshipStatusRequest) (*models.Mentorship, error) {
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}

	mentorship, err := e.repo.GetMentorship(ctx, id)
	if err != nil {
		return nil, err
	}
	if mentorship == nil {
		return nil, ErrMentorshipNotFound
	}

	if !mentorship.Status.CanTransition(req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, mentorship.Status, req.Status)
	}

	moved, err := e.repo.UpdateMentorshipStatus(ctx, id, mentorship.Status, req.Status)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}

	mentorship.Status = req.Status

	// Active and completed both shift the mentor's derived load
	if e.cache != nil {
		e.cache.Invalidate(ctx, mentorship.ParticipantID)
	}

	slog.Info("mentorship status updated", "mentorship_id", id, "status", req.Status)

	return mentorship, nil
}

// ScheduleSession creates a session under an active mentorship
func (e *Engine) ScheduleSession(ctx context.Context, mentorshipID string, req *models.ScheduleSessionRequest) (*models.MentorshipSession, error) {
	if req.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_at is required", ErrInvalidInput)
	}
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	mentorship, err := e.repo.GetMentorship(ctx, mentorshipID)
	if err != nil {
		return nil, err
	}
	if mentorship == nil {
		return nil, ErrMentorshipNotFound
	}
	if mentorship.Status != models.MentorshipActive {
		return nil, ErrMentorshipNotActive
	}

	session := &models.MentorshipSession{
		ID:              uuid.New().String(),
		MentorshipID:    mentorshipID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
	}

	if err := e.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("session scheduled", "session_id", session.ID, "mentorship_id", mentorshipID)

	return session, nil
}

// GetSession retrieves a session by ID
func (e *Engine) GetSession(ctx context.Context, id string) (*models.MentorshipSession, error) {
	session, err := e.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// RateSession sets a session's rating exactly once. A repeat attempt
// fails even when it carries the same value.
func (e *Engine) RateSession(ctx context.Context, sessionID string, req *models.RateSessionRequest) (*models.MentorshipSession, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	session, err := e.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	set, err := e.repo.SetSessionRating(ctx, sessionID, req.Rating)
	if err != nil {
		return nil, err
	}
	if !set {
		return nil, ErrRatingAlreadySet
	}

	rating := req.Rating
	session.Rating = &rating

	slog.Info("session rated", "session_id", sessionID, "rating", req.Rating)

	return session, nil
}
