package models

import "time"

// QuestType describes who a quest is meant for
type QuestType string

const (
	QuestIndividual QuestType = "individual"
	QuestTeam       QuestType = "team"
	QuestBoth       QuestType = "both"
)

// ForIndividuals reports whether a single user can hold this quest
func (t QuestType) ForIndividuals() bool {
	return t == QuestIndividual || t == QuestBoth
}

// ForTeams reports whether a project can hold this quest
func (t QuestType) ForTeams() bool {
	return t == QuestTeam || t == QuestBoth
}

// Quest is a discrete task completed for credit. Immutable once published.
type Quest struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	QuestType  QuestType `json:"quest_type"`
	Category   string    `json:"category"`
	Difficulty int       `json:"difficulty"`
	ProgramID  string    `json:"program_id,omitempty"`
	Tracks     []string  `json:"tracks,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AssignmentStatus represents the state of one quest assignment
type AssignmentStatus string

const (
	AssignmentNotStarted AssignmentStatus = "not_started"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentSubmitted  AssignmentStatus = "submitted"
	AssignmentVerified   AssignmentStatus = "verified"
	AssignmentRejected   AssignmentStatus = "rejected"
	AssignmentFailed     AssignmentStatus = "failed"
)

// assignmentTransitions is the total transition table for assignment
// statuses. Any pair not listed here is rejected.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentNotStarted: {AssignmentInProgress, AssignmentFailed},
	AssignmentInProgress: {AssignmentCompleted, AssignmentSubmitted, AssignmentFailed},
	AssignmentCompleted:  {AssignmentSubmitted},
	AssignmentSubmitted:  {AssignmentVerified, AssignmentRejected},
	AssignmentRejected:   {AssignmentInProgress},
}

// CanTransition reports whether s may move to next
func (s AssignmentStatus) CanTransition(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status admits no further transition
func (s AssignmentStatus) IsTerminal() bool {
	return len(assignmentTransitions[s]) == 0
}

// IsOpen reports whether the assignment counts against the open-backlog cap
func (s AssignmentStatus) IsOpen() bool {
	return s == AssignmentNotStarted || s == AssignmentInProgress
}

// OwnerKind says whether an assignment belongs to a user or a project
type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerProject OwnerKind = "project"
)

// QuestAssignment ties a quest to one owner (a user for individual
// quests, a project for team quests). At most one row exists per
// (quest, owner) pair; rows are superseded by terminal statuses, never
// deleted.
type QuestAssignment struct {
	ID              string           `json:"id"`
	QuestID         string           `json:"quest_id"`
	OwnerID         string           `json:"owner_id"`
	OwnerKind       OwnerKind        `json:"owner_kind"`
	Status          AssignmentStatus `json:"status"`
	Progress        int              `json:"progress"`
	SubmissionText  string           `json:"submission_text,omitempty"`
	SubmissionLinks []string         `json:"submission_links,omitempty"`
	AssignedAt      time.Time        `json:"assigned_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// AssignmentEvent is one recorded status transition of an assignment
type AssignmentEvent struct {
	ID           int64            `json:"id"`
	AssignmentID string           `json:"assignment_id"`
	Status       AssignmentStatus `json:"status"`
	Note         string           `json:"note,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// AssignQuestRequest represents a manual quest assignment
type AssignQuestRequest struct {
	OwnerID   string    `json:"owner_id"`
	OwnerKind OwnerKind `json:"owner_kind"`
}

// WeeklyAssignRequest scopes automatic assignment to a program cohort
type WeeklyAssignRequest struct {
	ProgramID string `json:"program_id,omitempty"`
}

// UpdateAssignmentStatusRequest moves an assignment along the transition table
type UpdateAssignmentStatusRequest struct {
	Status          AssignmentStatus `json:"status"`
	Note            string           `json:"note,omitempty"`
	SubmissionText  string           `json:"submission_text,omitempty"`
	SubmissionLinks []string         `json:"submission_links,omitempty"`
}
