package progression

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/buildcamp/progression-engine/internal/models"
)

// CreateQuest registers a quest. Quests are immutable once created.
func (e *Engine) CreateQuest(ctx context.Context, q *models.Quest) (*models.Quest, error) {
	if strings.TrimSpace(q.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	switch q.QuestType {
	case models.QuestIndividual, models.QuestTeam, models.QuestBoth:
	default:
		return nil, fmt.Errorf("%w: unknown quest type %q", ErrInvalidInput, q.QuestType)
	}
	if q.Difficulty < 1 {
		return nil, fmt.Errorf("%w: difficulty must be at least 1", ErrInvalidInput)
	}
	for _, track := range q.Tracks {
		if !models.Track(track).IsValid() {
			return nil, fmt.Errorf("%w: unknown track %q", ErrInvalidInput, track)
		}
	}

	q.ID = uuid.New().String()
	q.CreatedAt = e.now().UTC()

	if err := e.repo.CreateQuest(ctx, q); err != nil {
		return nil, err
	}

	slog.Info("quest created", "quest_id", q.ID, "title", q.Title, "type", q.QuestType)

	return q, nil
}

// GetQuest retrieves a quest by ID
func (e *Engine) GetQuest(ctx context.Context, id string) (*models.Quest, error) {
	quest, err := e.repo.GetQuest(ctx, id)
	if err != nil {
		return nil, err
	}
	if quest == nil {
		return nil, ErrQuestNotFound
	}
	return quest, nil
}

// AssignQuest assigns a quest to one owner. The call is idempotent: if
// the owner already holds the quest the existing assignment comes back
// with created=false, whatever its current status.
func (e *Engine) AssignQuest(ctx context.Context, questID, ownerID string, kind models.OwnerKind) (*models.QuestAssignment, bool, error) {
	quest, err := e.repo.GetQuest(ctx, questID)
	if err != nil {
		return nil, false, err
	}
	if quest == nil {
		return nil, false, ErrQuestNotFound
	}

	switch kind {
	case models.OwnerUser:
		if !quest.QuestType.ForIndividuals() {
			return nil, false, ErrQuestOwnerMismatch
		}
	case models.OwnerProject:
		if !quest.QuestType.ForTeams() {
			return nil, false, ErrQuestOwnerMismatch
		}
		project, err := e.repo.GetProject(ctx, ownerID)
		if err != nil {
			return nil, false, err
		}
		if project == nil {
			return nil, false, ErrProjectNotFound
		}
	default:
		return nil, false, fmt.Errorf("%w: unknown owner kind %q", ErrInvalidInput, kind)
	}

	assignment := &models.QuestAssignment{
		ID:         uuid.New().String(),
		QuestID:    questID,
		OwnerID:    ownerID,
		OwnerKind:  kind,
		Status:     models.AssignmentNotStarted,
		AssignedAt: e.now().UTC(),
	}

	created, err := e.repo.CreateAssignment(ctx, assignment)
	if err != nil {
		return nil, false, err
	}

	if !created {
		existing, err := e.repo.GetAssignment(ctx, questID, ownerID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	slog.Info("quest assigned", "quest_id", questID, "owner_id", ownerID, "owner_kind", kind)

	return assignment, true, nil
}

// AssignWeeklyQuests fills a user's backlog up to the open-assignment
// cap with track-eligible quests, easiest first. Re-running it in the
// same week assigns nothing new because held quests are excluded and
// the cap counts what is already open.
func (e *Engine) AssignWeeklyQuests(ctx context.Context, userID, programID string) ([]*models.QuestAssignment, error) {
	settings, err := e.repo.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil || settings.Track == "" {
		return nil, ErrTrackNotSet
	}

	open, err := e.repo.CountOpenAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	slots := e.policy.Quests.MaxOpenAssignments - open
	if slots <= 0 {
		return nil, nil
	}

	candidates, err := e.repo.ListAssignableQuests(ctx, userID, settings.Track, programID)
	if err != nil {
		return nil, err
	}

	var assigned []*models.QuestAssignment
	for _, quest := range candidates {
		if len(assigned) >= slots {
			break
		}

		assignment := &models.QuestAssignment{
			ID:         uuid.New().String(),
			QuestID:    quest.ID,
			OwnerID:    userID,
			OwnerKind:  models.OwnerUser,
			Status:     models.AssignmentNotStarted,
			AssignedAt: e.now().UTC(),
		}

		created, err := e.repo.CreateAssignment(ctx, assignment)
		if err != nil {
			return nil, err
		}
		if created {
			assigned = append(assigned, assignment)
		}
	}

	slog.Info("weekly quests assigned",
		"user_id", userID,
		"track", settings.Track,
		"assigned", len(assigned),
		"open_before", open,
	)

	return assigned, nil
}

// GetAssignment retrieves the assignment for a (quest, owner) pair
func (e *Engine) GetAssignment(ctx context.Context, questID, ownerID string) (*models.QuestAssignment, error) {
	assignment, err := e.repo.GetAssignment(ctx, questID, ownerID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrQuestNotFound
	}
	return assignment, nil
}

// UpdateAssignmentStatus moves an assignment along its lifecycle. Every
// accepted move appends an event so the history stays complete.
func (e *Engine) UpdateAssignmentStatus(ctx context.Context, questID, ownerID string, req *models.UpdateAssignmentStatusRequest) (*models.QuestAssignment, error) {
	assignment, err := e.repo.GetAssignment(ctx, questID, ownerID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrQuestNotFound
	}

	if !assignment.Status.CanTransition(req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, assignment.Status, req.Status)
	}

	now := e.now().UTC()
	assignment.Status = req.Status

	switch req.Status {
	case models.AssignmentInProgress:
		if assignment.StartedAt == nil {
			assignment.StartedAt = &now
		}
	case models.AssignmentSubmitted:
		assignment.SubmittedAt = &now
		if req.SubmissionText != "" {
			assignment.SubmissionText = req.SubmissionText
		}
		if len(req.SubmissionLinks) > 0 {
			assignment.SubmissionLinks = req.SubmissionLinks
		}
	case models.AssignmentCompleted, models.AssignmentVerified:
		assignment.CompletedAt = &now
		assignment.Progress = 100
	}

	if err := e.repo.UpdateAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	event := &models.AssignmentEvent{
		AssignmentID: assignment.ID,
		Status:       req.Status,
		Note:         req.Note,
		OccurredAt:   now,
	}
	if err := e.repo.AppendAssignmentEvent(ctx, event); err != nil {
		slog.Error("failed to append assignment event", "assignment_id", assignment.ID, "error", err)
	}

	slog.Info("assignment status updated",
		"assignment_id", assignment.ID,
		"quest_id", questID,
		"owner_id", ownerID,
		"status", req.Status,
	)

	return assignment, nil
}

// ListAssignmentHistory returns the recorded transitions of the owner's
// assignment for one quest, oldest first
func (e *Engine) ListAssignmentHistory(ctx context.Context, questID, ownerID string) ([]*models.AssignmentEvent, error) {
	assignment, err := e.repo.GetAssignment(ctx, questID, ownerID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrQuestNotFound
	}

	return e.repo.ListAssignmentEvents(ctx, assignment.ID)
}

// SetTrack records a user's track choice. Existing assignments are
// never revoked by a track change.
func (e *Engine) SetTrack(ctx context.Context, userID string, track models.Track) (*models.UserSettings, error) {
	if !track.IsValid() {
		return nil, fmt.Errorf("%w: unknown track %q", ErrInvalidInput, track)
	}

	if err := e.repo.SetUserTrack(ctx, userID, track, e.now().UTC()); err != nil {
		return nil, err
	}

	settings, err := e.repo.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	slog.Info("track set", "user_id", userID, "track", track)

	return settings, nil
}

// GetUserSettings retrieves the stored settings for one user
func (e *Engine) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings, err := e.repo.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrUserNotFound
	}
	return settings, nil
}
