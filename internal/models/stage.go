package models

import "time"

// Stage represents one phase of the project lifecycle
type Stage string

const (
	StageIdea       Stage = "idea"
	StagePrototype  Stage = "prototype"
	StageBuild      Stage = "build"
	StageProject    Stage = "project"
	StageIncubate   Stage = "incubate"
	StageAccelerate Stage = "accelerate"
	StageScale      Stage = "scale"
)

// stageOrder fixes the total order of lifecycle stages
var stageOrder = []Stage{
	StageIdea,
	StagePrototype,
	StageBuild,
	StageProject,
	StageIncubate,
	StageAccelerate,
	StageScale,
}

// Stages returns the lifecycle stages in order
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// IsValid reports whether s is a known stage token
func (s Stage) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in the stage order, or -1 for unknown tokens
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal returns true if no automatic transition leaves this stage
func (s Stage) IsTerminal() bool {
	return s == StageScale
}

// Next returns the stage after s in the fixed order.
// ok is false when s is terminal or unknown.
func (s Stage) Next() (next Stage, ok bool) {
	idx := s.Index()
	if idx < 0 || idx >= len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[idx+1], true
}

// Before reports whether s comes strictly before other in the stage order
func (s Stage) Before(other Stage) bool {
	si, oi := s.Index(), other.Index()
	return si >= 0 && oi >= 0 && si < oi
}

// Project represents a team project moving through the lifecycle
type Project struct {
	ID             string           `json:"id"`
	Slug           string           `json:"slug"`
	Name           string           `json:"name"`
	Stage          Stage            `json:"stage"`
	CreatedAt      time.Time        `json:"created_at"`
	StageChangedAt *time.Time       `json:"stage_changed_at,omitempty"`
	Members        []*ProjectMember `json:"members,omitempty"`
}

// ProjectMember links a user to a project. Role is informational.
type ProjectMember struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// StageTransition is an audit record of a single stage change
type StageTransition struct {
	ID         int64     `json:"id"`
	ProjectID  string    `json:"project_id"`
	FromStage  Stage     `json:"from_stage"`
	ToStage    Stage     `json:"to_stage"`
	Reason     string    `json:"reason"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Transition reasons recorded in the audit trail
const (
	TransitionReasonCriteriaMet    = "criteria_met"
	TransitionReasonManualOverride = "manual_override"
)

// EvidenceSnapshot is the aggregated evidence a stage decision is based on.
// It is computed in one read and never mutated by criteria evaluation.
type EvidenceSnapshot struct {
	ProjectID               string     `json:"project_id"`
	MemberCount             int        `json:"member_count"`
	MembersWithVerifiedSolo int        `json:"members_with_verified_solo"`
	VerifiedTeamQuests      int        `json:"verified_team_quests"`
	VerifiedQuestsTotal     int        `json:"verified_quests_total"`
	LastSubmissionAt        *time.Time `json:"last_submission_at,omitempty"`
}

// AdvancementResult is the outcome of a stage advancement check.
// NextStage is nil only when the project already sits at the terminal stage.
type AdvancementResult struct {
	ProjectID       string   `json:"project_id"`
	CurrentStage    Stage    `json:"current_stage"`
	NextStage       *Stage   `json:"next_stage"`
	CanAdvance      bool     `json:"can_advance"`
	MissingCriteria []string `json:"missing_criteria"`
}

// CreateProjectRequest represents a request to create a project
type CreateProjectRequest struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// AddMemberRequest represents a request to add a project member
type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// SetStageRequest represents an administrative stage override
type SetStageRequest struct {
	Stage Stage  `json:"stage"`
	Actor string `json:"actor,omitempty"`
}
