package storage

import (
	"context"
	"errors"
	"time"

	"github.com/buildcamp/progression-engine/internal/models"
)

// ErrDuplicate is returned when a uniqueness constraint turns a racing
// duplicate insert into a detected conflict.
var ErrDuplicate = errors.New("duplicate record")

// Repository defines the interface for progression-engine persistence.
// Get methods return (nil, nil) when the record does not exist.
type Repository interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	AddProjectMember(ctx context.Context, m *models.ProjectMember) (bool, error)
	ListProjectMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error)

	// Stage writes. UpdateProjectStage is conditional: it writes only if
	// the stored stage still equals from, and reports whether it did.
	UpdateProjectStage(ctx context.Context, id string, from, to models.Stage, at time.Time) (bool, error)
	SetProjectStage(ctx context.Context, id string, to models.Stage, at time.Time) error
	RecordStageTransition(ctx context.Context, t *models.StageTransition) error
	ListStageTransitions(ctx context.Context, projectID string, limit int) ([]*models.StageTransition, error)
	PruneStageTransitions(ctx context.Context, before time.Time) (int64, error)

	// Evidence
	GetEvidenceSnapshot(ctx context.Context, projectID string) (*models.EvidenceSnapshot, error)

	// Quests
	CreateQuest(ctx context.Context, q *models.Quest) error
	GetQuest(ctx context.Context, id string) (*models.Quest, error)
	ListAssignableQuests(ctx context.Context, ownerID string, track models.Track, programID string) ([]*models.Quest, error)

	// Assignments. CreateAssignment reports whether a row was created;
	// false means the (quest, owner) pair already held one.
	CreateAssignment(ctx context.Context, a *models.QuestAssignment) (bool, error)
	GetAssignment(ctx context.Context, questID, ownerID string) (*models.QuestAssignment, error)
	UpdateAssignment(ctx context.Context, a *models.QuestAssignment) error
	AppendAssignmentEvent(ctx context.Context, e *models.AssignmentEvent) error
	ListAssignmentEvents(ctx context.Context, assignmentID string) ([]*models.AssignmentEvent, error)
	CountOpenAssignments(ctx context.Context, ownerID string) (int, error)

	// User settings
	GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	SetUserTrack(ctx context.Context, userID string, track models.Track, at time.Time) error

	// Mentors. Mentee counts are always derived from active mentorship
	// rows at query time.
	UpsertMentorProfile(ctx context.Context, m *models.MentorProfile) error
	GetMentorProfile(ctx context.Context, userID string) (*models.MentorProfile, error)
	ListMentorsWithLoad(ctx context.Context) ([]*models.MentorProfile, error)

	// Mentorships. CreateMentorship returns ErrDuplicate when a
	// non-terminal mentorship already exists for the pair.
	CreateMentorship(ctx context.Context, m *models.Mentorship) error
	GetMentorship(ctx context.Context, id string) (*models.Mentorship, error)
	UpdateMentorshipStatus(ctx context.Context, id string, from, to models.MentorshipStatus) (bool, error)
	CreateSession(ctx context.Context, s *models.MentorshipSession) error
	GetSession(ctx context.Context, id string) (*models.MentorshipSession, error)
	// SetSessionRating is write-once; false means a rating was already set.
	SetSessionRating(ctx context.Context, sessionID string, rating int) (bool, error)

	// API clients
	GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
