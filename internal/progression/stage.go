package progression

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buildcamp/progression-engine/internal/models"
	"github.com/buildcamp/progression-engine/internal/policy"
)

// CreateProject creates a project at the idea stage with the owner as
// its first member.
func (e *Engine) CreateProject(ctx context.Context, req *models.CreateProjectRequest) (*models.Project, error) {
	if strings.TrimSpace(req.Slug) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: slug and name are required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalidInput)
	}

	now := e.now().UTC()
	project := &models.Project{
		ID:        uuid.New().String(),
		Slug:      strings.ToLower(strings.TrimSpace(req.Slug)),
		Name:      strings.TrimSpace(req.Name),
		Stage:     models.StageIdea,
		CreatedAt: now,
	}

	if err := e.repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	owner := &models.ProjectMember{
		ProjectID: project.ID,
		UserID:    req.OwnerID,
		Role:      "owner",
		JoinedAt:  now,
	}
	if _, err := e.repo.AddProjectMember(ctx, owner); err != nil {
		return nil, err
	}
	project.Members = []*models.ProjectMember{owner}

	slog.Info("project created", "project_id", project.ID, "slug", project.Slug)

	return project, nil
}

// GetProject retrieves a project with its members
func (e *Engine) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := e.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

// AddMember adds a user to a project. Adding an existing member is a
// no-op, not an error.
func (e *Engine) AddMember(ctx context.Context, projectID string, req *models.AddMemberRequest) (*models.ProjectMember, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}

	project, err := e.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	role := req.Role
	if role == "" {
		role = "member"
	}

	member := &models.ProjectMember{
		ProjectID: projectID,
		UserID:    req.UserID,
		Role:      role,
		JoinedAt:  e.now().UTC(),
	}

	added, err := e.repo.AddProjectMember(ctx, member)
	if err != nil {
		return nil, err
	}
	if !added {
		slog.Debug("member already on project", "project_id", projectID, "user_id", req.UserID)
	}

	return member, nil
}

// CheckAdvancement evaluates the exit criteria of the project's current
// stage against a fresh evidence snapshot. It never mutates state.
func (e *Engine) CheckAdvancement(ctx context.Context, projectID string) (*models.AdvancementResult, error) {
	project, err := e.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	result := &models.AdvancementResult{
		ProjectID:    project.ID,
		CurrentStage: project.Stage,
	}

	next, ok := project.Stage.Next()
	if !ok {
		return result, nil
	}
	result.NextStage = &next

	snapshot, err := e.repo.GetEvidenceSnapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}

	criteria := e.policy.Criteria(project.Stage)
	result.MissingCriteria = evaluateCriteria(criteria, snapshot, e.now().UTC())
	result.CanAdvance = len(result.MissingCriteria) == 0

	return result, nil
}

// evaluateCriteria returns one message per unmet criterion, in a fixed
// order so repeated checks against the same evidence read identically.
func evaluateCriteria(c policy.StageCriteria, snap *models.EvidenceSnapshot, now time.Time) []string {
	var missing []string

	if c.MinMembers > 0 && snap.MemberCount < c.MinMembers {
		missing = append(missing, fmt.Sprintf("at least %d members required, have %d", c.MinMembers, snap.MemberCount))
	}
	if c.RequireSoloPerMember && snap.MembersWithVerifiedSolo < snap.MemberCount {
		missing = append(missing, fmt.Sprintf("every member needs a verified individual quest, %d of %d have one", snap.MembersWithVerifiedSolo, snap.MemberCount))
	}
	if c.MinVerifiedTeam > 0 && snap.VerifiedTeamQuests < c.MinVerifiedTeam {
		missing = append(missing, fmt.Sprintf("at least %d verified team quests required, have %d", c.MinVerifiedTeam, snap.VerifiedTeamQuests))
	}
	if c.MinVerifiedTotal > 0 && snap.VerifiedQuestsTotal < c.MinVerifiedTotal {
		missing = append(missing, fmt.Sprintf("at least %d verified quests required, have %d", c.MinVerifiedTotal, snap.VerifiedQuestsTotal))
	}
	if c.MaxSubmissionAge > 0 {
		if snap.LastSubmissionAt == nil {
			missing = append(missing, "no verified submission yet")
		} else if now.Sub(*snap.LastSubmissionAt) > c.MaxSubmissionAge {
			missing = append(missing, fmt.Sprintf("last verified submission older than %s", c.MaxSubmissionAge))
		}
	}

	return missing
}

// Advance moves a project to the next stage if its criteria are met.
// The compare-and-swap write keeps concurrent advancement attempts from
// skipping a stage.
func (e *Engine) Advance(ctx context.Context, projectID, actor string) (*models.Project, error) {
	check, err := e.CheckAdvancement(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if check.NextStage == nil {
		return nil, fmt.Errorf("%w: project is at the final stage", ErrStageNotEligible)
	}
	if !check.CanAdvance {
		return nil, fmt.Errorf("%w: %s", ErrStageNotEligible, strings.Join(check.MissingCriteria, "; "))
	}

	now := e.now().UTC()
	swapped, err := e.repo.UpdateProjectStage(ctx, projectID, check.CurrentStage, *check.NextStage, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrStageConflict
	}

	transition := &models.StageTransition{
		ProjectID:  projectID,
		FromStage:  check.CurrentStage,
		ToStage:    *check.NextStage,
		Reason:     models.TransitionReasonCriteriaMet,
		Actor:      actor,
		OccurredAt: now,
	}
	if err := e.repo.RecordStageTransition(ctx, transition); err != nil {
		slog.Error("failed to record stage transition", "project_id", projectID, "error", err)
	}

	slog.Info("project advanced",
		"project_id", projectID,
		"from", check.CurrentStage,
		"to", *check.NextStage,
	)

	return e.GetProject(ctx, projectID)
}

// SetStage writes a stage directly, bypassing criteria. Backward moves
// are allowed; every call leaves an audit record naming the actor.
func (e *Engine) SetStage(ctx context.Context, projectID string, req *models.SetStageRequest) (*models.Project, error) {
	if !req.Stage.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, req.Stage)
	}

	project, err := e.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	if project.Stage == req.Stage {
		return project, nil
	}

	now := e.now().UTC()
	if err := e.repo.SetProjectStage(ctx, projectID, req.Stage, now); err != nil {
		return nil, err
	}

	transition := &models.StageTransition{
		ProjectID:  projectID,
		FromStage:  project.Stage,
		ToStage:    req.Stage,
		Reason:     models.TransitionReasonManualOverride,
		Actor:      req.Actor,
		OccurredAt: now,
	}
	if err := e.repo.RecordStageTransition(ctx, transition); err != nil {
		slog.Error("failed to record stage transition", "project_id", projectID, "error", err)
	}

	slog.Warn("project stage overridden",
		"project_id", projectID,
		"from", project.Stage,
		"to", req.Stage,
		"actor", req.Actor,
	)

	return e.GetProject(ctx, projectID)
}

// ListStageTransitions returns the audit trail for a project
func (e *Engine) ListStageTransitions(ctx context.Context, projectID string, limit int) ([]*models.StageTransition, error) {
	project, err := e.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	return e.repo.ListStageTransitions(ctx, projectID, limit)
}
