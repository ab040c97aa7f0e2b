package progression

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buildcamp/progression-engine/internal/models"
	"github.com/buildcamp/progression-engine/internal/policy"
)

func newTestEngine(repo *memRepo) *Engine {
	e := New(repo, policy.Default(), nil)
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func createTestProject(t *testing.T, e *Engine) *models.Project {
	t.Helper()

	project, err := e.CreateProject(context.Background(), &models.CreateProjectRequest{
		Slug:    "test-project",
		Name:    "Test Project",
		OwnerID: "user-1",
	})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	return project
}

func TestCreateProjectStartsAtIdea(t *testing.T) {
	e := newTestEngine(newMemRepo())
	project := createTestProject(t, e)

	if project.Stage != models.StageIdea {
		t.Errorf("expected stage idea, got %s", project.Stage)
	}
	if len(project.Members) != 1 || project.Members[0].UserID != "user-1" {
		t.Errorf("expected owner as sole member, got %+v", project.Members)
	}
	if project.Members[0].Role != "owner" {
		t.Errorf("expected owner role, got %s", project.Members[0].Role)
	}
}

func TestCreateProjectRejectsEmptyFields(t *testing.T) {
	e := newTestEngine(newMemRepo())

	_, err := e.CreateProject(context.Background(), &models.CreateProjectRequest{Slug: "x"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAddMemberIsIdempotent(t *testing.T) {
	e := newTestEngine(newMemRepo())
	project := createTestProject(t, e)

	req := &models.AddMemberRequest{UserID: "user-2"}
	if _, err := e.AddMember(context.Background(), project.ID, req); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if _, err := e.AddMember(context.Background(), project.ID, req); err != nil {
		t.Fatalf("repeat AddMember failed: %v", err)
	}

	got, err := e.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if len(got.Members) != 2 {
		t.Errorf("expected 2 members, got %d", len(got.Members))
	}
}

func TestCheckAdvancementReportsMissingCriteria(t *testing.T) {
	repo := newMemRepo()
	e := newTestEngine(repo)
	project := createTestProject(t, e)

	// One member, nothing verified: the solo-quest criterion is unmet
	repo.setEvidence(project.ID, models.EvidenceSnapshot{MemberCount: 1})

	check, err := e.CheckAdvancement(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("CheckAdvancement failed: %v", err)
	}

	if check.CanAdvance {
		t.Error("expected CanAdvance=false with no verified quests")
	}
	if check.NextStage == nil || *check.NextStage != models.StagePrototype {
		t.Errorf("expected next stage prototype, got %v", check.NextStage)
	}
	if len(check.MissingCriteria) == 0 {
		t.Error("expected missing criteria to be listed")
	}
}

func TestCheckAdvancementIsReadOnly(t *testing.T) {
	repo := newMemRepo()
	e := newTestEngine(repo)
	project := createTestProject(t, e)

	repo.setEvidence(project.ID, models.EvidenceSnapshot{
		MemberCount:             1,
		MembersWithVerifiedSolo: 1,
	})

	check, err := e.CheckAdvancement(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("CheckAdvancement failed: %v", err)
	}
	if !check.CanAdvance {
		t.Fatalf("expected CanAdvance=true, missing: %v", check.MissingCriteria)
	}

	got, _ := e.GetProject(context.Background(), project.ID)
	if got.Stage != models.StageIdea {
		t.Errorf("check must not change the stage, got %s", got.Stage)
	}
}

func TestAdvanceMovesOneStage(t *testing.T) {
	repo := newMemRepo()
	e := newTestEngine(repo)
	project := createTestProject(t, e)

	repo.setEvidence(project.ID, models.EvidenceSnapshot{
		MemberCount:             1,
		MembersWithVerifiedSolo: 1,
	})

	got, err := e.Advance(context.Background(), project.ID, "reviewer-1")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	if got.Stage != models.StagePrototype {
		t.Errorf("expected prototype, got %s", got.Stage)
	}

	transitions, err := e.ListStageTransitions(context.Background(), project.ID, 10)
	if err != nil {
		t.Fatalf("ListStageTransitions failed: %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition record, got %d", len(transitions))
	}
	if transitions[0].Reason != models.TransitionReasonCriteriaMet {
		t.Errorf("expected reason criteria_met, got %s", transitions[0].Reason)
	}
	if transitions[0].Actor != "reviewer-1" {
		t.Errorf("expected actor reviewer-1, got %s", transitions[0].Actor)
	}
}

func TestAdvanceRejectsUnmetCriteria(t *testing.T) {
	repo := newMemRepo()
	e := newTestEngine(repo)
	project := createTestProject(t, e)

	repo.setEvidence(project.ID, models.EvidenceSnapshot{MemberCount: 1})

	_, err := e.Advance(context.Background(), project.ID, "")
	if !errors.Is(err, ErrStageNotEligible) {
		t.Errorf("expected ErrStageNotEligible, got %v", err)
	}

	got, _ := e.GetProject(context.Background(), project.ID)
	if got.Stage != models.StageIdea {
		t.Errorf("failed advance must not change the stage, got %s", got.Stage)
	}
}

// racingRepo moves the project between the criteria check and the
// conditional stage write, like a concurrent advancement would
type racingRepo struct {
	*memRepo
}

func (r *racingRepo) UpdateProjectStage(ctx context.Context, id string, from, to models.Stage, at time.Time) (bool, error) {
	r.memRepo.mu.Lock()
	r.memRepo.projects[id].Stage = to
	r.memRepo.mu.Unlock()
	return r.memRepo.UpdateProjectStage(ctx, id, from, to, at)
}

func TestAdvanceDetectsConcurrentStageChange(t *testing.T) {
	mem := newMemRepo()
	e := newTestEngine(mem)
	project := createTestProject(t, e)

	mem.setEvidence(project.ID, models.EvidenceSnapshot{
		MemberCount:             1,
		MembersWithVerifiedSolo: 1,
	})

	racing := New(&racingRepo{memRepo: mem}, policy.Default(), nil)
	racing.now = e.now

	_, err := racing.Advance(context.Background(), project.ID, "")
	if !errors.Is(err, ErrStageConflict) {
		t.Errorf("expected ErrStageConflict, got %v", err)
	}

	got, _ := e.GetProject(context.Background(), project.ID)
	if got.Stage != models.StagePrototype {
		t.Errorf("expected the winning writer's stage to stand, got %s", got.Stage)
	}
}

func TestAdvanceAtTerminalStage(t *testing.T) {
	repo := newMemRepo()
	e := newTestEngine(repo)
	project := createTestProject(t, e)

	if _, err := e.SetStage(context.Background(), project.ID, &models.SetStageRequest{Stage: models.StageScale, Actor: "admin"}); err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}

	_, err := e.Advance(context.Background(), project.ID, "")
	if !errors.Is(err, ErrStageNotEligible) {
		t.Errorf("expected ErrStageNotEligible at terminal stage, got %v", err)
	}

	check, err := e.CheckAdvancement(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("CheckAdvancement failed: %v", err)
	}
	if check.NextStage != nil {
		t.Errorf("expected nil next stage at scale, got %v", *check.NextStage)
	}
}

func TestSetStageBypassesCriteriaAndAudits(t *testing.T) {
	repo := newMemRepo()
	e := newTestEngine(repo)
	project := createTestProject(t, e)

	got, err := e.SetStage(context.Background(), project.ID, &models.SetStageRequest{
		Stage: models.StageIncubate,
		Actor: "admin-1",
	})
	if err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}
	if got.Stage != models.StageIncubate {
		t.Errorf("expected incubate, got %s", got.Stage)
	}

	// Backward moves are allowed on the administrative path
	got, err = e.SetStage(context.Background(), project.ID, &models.SetStageRequest{
		Stage: models.StageBuild,
		Actor: "admin-1",
	})
	if err != nil {
		t.Fatalf("backward SetStage failed: %v", err)
	}
	if got.Stage != models.StageBuild {
		t.Errorf("expected build, got %s", got.Stage)
	}

	transitions, _ := e.ListStageTransitions(context.Background(), project.ID, 10)
	if len(transitions) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(transitions))
	}
	for _, tr := range transitions {
		if tr.Reason != models.TransitionReasonManualOverride {
			t.Errorf("expected manual_override reason, got %s", tr.Reason)
		}
		if tr.Actor != "admin-1" {
			t.Errorf("expected actor admin-1, got %s", tr.Actor)
		}
	}
}

func TestSetStageRejectsUnknownStage(t *testing.T) {
	e := newTestEngine(newMemRepo())
	project := createTestProject(t, e)

	_, err := e.SetStage(context.Background(), project.ID, &models.SetStageRequest{Stage: "launchpad"})
	if !errors.Is(err, ErrInvalidStage) {
		t.Errorf("expected ErrInvalidStage, got %v", err)
	}
}

func TestSetStageSameStageIsNoOp(t *testing.T) {
	e := newTestEngine(newMemRepo())
	project := createTestProject(t, e)

	got, err := e.SetStage(context.Background(), project.ID, &models.SetStageRequest{Stage: models.StageIdea})
	if err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}
	if got.Stage != models.StageIdea {
		t.Errorf("expected idea, got %s", got.Stage)
	}

	transitions, _ := e.ListStageTransitions(context.Background(), project.ID, 10)
	if len(transitions) != 0 {
		t.Errorf("same-stage set must not write an audit record, got %d", len(transitions))
	}
}

func TestStaleSubmissionBlocksAdvancement(t *testing.T) {
	repo := newMemRepo()
	e := newTestEngine(repo)
	project := createTestProject(t, e)

	if _, err := e.SetStage(context.Background(), project.ID, &models.SetStageRequest{Stage: models.StageProject, Actor: "admin"}); err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}

	old := e.now().Add(-45 * 24 * time.Hour)
	repo.setEvidence(project.ID, models.EvidenceSnapshot{
		MemberCount:         3,
		VerifiedQuestsTotal: 12,
		LastSubmissionAt:    &old,
	})

	check, err := e.CheckAdvancement(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("CheckAdvancement failed: %v", err)
	}
	if check.CanAdvance {
		t.Error("expected stale submission to block advancement")
	}

	fresh := e.now().Add(-2 * 24 * time.Hour)
	repo.setEvidence(project.ID, models.EvidenceSnapshot{
		MemberCount:         3,
		VerifiedQuestsTotal: 12,
		LastSubmissionAt:    &fresh,
	})

	check, err = e.CheckAdvancement(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("CheckAdvancement failed: %v", err)
	}
	if !check.CanAdvance {
		t.Errorf("expected fresh submission to allow advancement, missing: %v", check.MissingCriteria)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	e := newTestEngine(newMemRepo())

	_, err := e.GetProject(context.Background(), "missing")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}
