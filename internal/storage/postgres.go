package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildcamp/progression-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Projects ---

// CreateProject creates a new project record
func (r *PostgresRepository) CreateProject(ctx context.Context, p *models.Project) error {
	query := `
		INSERT INTO projects (id, slug, name, stage, created_at, stage_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Slug,
		p.Name,
		string(p.Stage),
		p.CreatedAt,
		nullTime(p.StageChangedAt),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by ID, members included
func (r *PostgresRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, slug, name, stage, created_at, stage_changed_at
		FROM projects
		WHERE id = $1
	`

	var p models.Project
	var stageStr string
	var stageChangedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&stageStr,
		&p.CreatedAt,
		&stageChangedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	p.Stage = models.Stage(stageStr)
	if stageChangedAt.Valid {
		p.StageChangedAt = &stageChangedAt.Time
	}

	members, err := r.ListProjectMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project members: %w", err)
	}
	p.Members = members

	return &p, nil
}

// AddProjectMember adds a user to a project. Returns false when the
// (project, user) pair already exists.
func (r *PostgresRepository) AddProjectMember(ctx context.Context, m *models.ProjectMember) (bool, error) {
	query := `
		INSERT INTO project_members (project_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query, m.ProjectID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return false, fmt.Errorf("failed to add project member: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListProjectMembers returns all members of a project
func (r *PostgresRepository) ListProjectMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	query := `
		SELECT project_id, user_id, role, joined_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	defer rows.Close()

	var members []*models.ProjectMember
	for rows.Next() {
		var m models.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// UpdateProjectStage writes the new stage only if the stored stage still
// equals from. A false return means a concurrent writer got there first.
func (r *PostgresRepository) UpdateProjectStage(ctx context.Context, id string, from, to models.Stage, at time.Time) (bool, error) {
	query := `
		UPDATE projects
		SET stage = $3, stage_changed_at = $4
		WHERE id = $1 AND stage = $2
	`

	result, err := r.pool.Exec(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return false, fmt.Errorf("failed to update project stage: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// SetProjectStage writes the stage unconditionally (administrative path)
func (r *PostgresRepository) SetProjectStage(ctx context.Context, id string, to models.Stage, at time.Time) error {
	query := `
		UPDATE projects
		SET stage = $2, stage_changed_at = $3
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, string(to), at)
	if err != nil {
		return fmt.Errorf("failed to set project stage: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("project not found: %s", id)
	}

	return nil
}

// RecordStageTransition appends an audit record for a stage change
func (r *PostgresRepository) RecordStageTransition(ctx context.Context, t *models.StageTransition) error {
	query := `
		INSERT INTO stage_transitions (project_id, from_stage, to_stage, reason, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		t.ProjectID,
		string(t.FromStage),
		string(t.ToStage),
		t.Reason,
		nullString(t.Actor),
		t.OccurredAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record stage transition: %w", err)
	}

	return nil
}

// ListStageTransitions returns the audit trail for a project, newest first
func (r *PostgresRepository) ListStageTransitions(ctx context.Context, projectID string, limit int) ([]*models.StageTransition, error) {
	query := `
		SELECT id, project_id, from_stage, to_stage, reason, actor, occurred_at
		FROM stage_transitions
		WHERE project_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*models.StageTransition
	for rows.Next() {
		var t models.StageTransition
		var fromStr, toStr string
		var actor sql.NullString

		if err := rows.Scan(&t.ID, &t.ProjectID, &fromStr, &toStr, &t.Reason, &actor, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage transition: %w", err)
		}

		t.FromStage = models.Stage(fromStr)
		t.ToStage = models.Stage(toStr)
		t.Actor = actor.String
		transitions = append(transitions, &t)
	}

	return transitions, rows.Err()
}

// PruneStageTransitions deletes audit records older than before
func (r *PostgresRepository) PruneStageTransitions(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM stage_transitions WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stage transitions: %w", err)
	}

	return result.RowsAffected(), nil
}

// GetEvidenceSnapshot aggregates the verified-quest and membership facts
// a stage decision is evaluated against
func (r *PostgresRepository) GetEvidenceSnapshot(ctx context.Context, projectID string) (*models.EvidenceSnapshot, error) {
	snap := &models.EvidenceSnapshot{ProjectID: projectID}

	memberQuery := `SELECT COUNT(*) FROM project_members WHERE project_id = $1`
	if err := r.pool.QueryRow(ctx, memberQuery, projectID).Scan(&snap.MemberCount); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	soloQuery := `
		SELECT COUNT(DISTINCT qa.owner_id)
		FROM quest_assignments qa
		JOIN quests q ON q.id = qa.quest_id
		JOIN project_members pm ON pm.user_id = qa.owner_id AND pm.project_id = $1
		WHERE qa.owner_kind = 'user'
		  AND qa.status = 'verified'
		  AND q.quest_type IN ('individual', 'both')
	`
	if err := r.pool.QueryRow(ctx, soloQuery, projectID).Scan(&snap.MembersWithVerifiedSolo); err != nil {
		return nil, fmt.Errorf("failed to count verified individual quests: %w", err)
	}

	teamQuery := `
		SELECT COUNT(*)
		FROM quest_assignments qa
		JOIN quests q ON q.id = qa.quest_id
		WHERE qa.owner_id = $1
		  AND qa.owner_kind = 'project'
		  AND qa.status = 'verified'
		  AND q.quest_type IN ('team', 'both')
	`
	if err := r.pool.QueryRow(ctx, teamQuery, projectID).Scan(&snap.VerifiedTeamQuests); err != nil {
		return nil, fmt.Errorf("failed to count verified team quests: %w", err)
	}

	totalQuery := `
		SELECT COUNT(*), MAX(qa.submitted_at)
		FROM quest_assignments qa
		WHERE qa.status = 'verified'
		  AND (qa.owner_id = $1
		       OR (qa.owner_kind = 'user' AND qa.owner_id IN (
		           SELECT user_id FROM project_members WHERE project_id = $1)))
	`
	var lastSubmission sql.NullTime
	if err := r.pool.QueryRow(ctx, totalQuery, projectID).Scan(&snap.VerifiedQuestsTotal, &lastSubmission); err != nil {
		return nil, fmt.Errorf("failed to count verified quests: %w", err)
	}
	if lastSubmission.Valid {
		snap.LastSubmissionAt = &lastSubmission.Time
	}

	return snap, nil
}

// --- Quests ---

// CreateQuest creates a new quest record
func (r *PostgresRepository) CreateQuest(ctx context.Context, q *models.Quest) error {
	query := `
		INSERT INTO quests (id, title, quest_type, category, difficulty, program_id, tracks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		q.ID,
		q.Title,
		string(q.QuestType),
		q.Category,
		q.Difficulty,
		nullString(q.ProgramID),
		textArray(q.Tracks),
		q.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create quest: %w", err)
	}

	return nil
}

// GetQuest retrieves a quest by ID
func (r *PostgresRepository) GetQuest(ctx context.Context, id string) (*models.Quest, error) {
	query := `
		SELECT id, title, quest_type, category, difficulty, program_id, tracks, created_at
		FROM quests
		WHERE id = $1
	`

	q, err := scanQuest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	return q, nil
}

// ListAssignableQuests returns individual-capable quests the owner does
// not already hold, in deterministic assignment order: ascending
// difficulty, then creation time, then id.
func (r *PostgresRepository) ListAssignableQuests(ctx context.Context, ownerID string, track models.Track, programID string) ([]*models.Quest, error) {
	query := `
		SELECT q.id, q.title, q.quest_type, q.category, q.difficulty, q.program_id, q.tracks, q.created_at
		FROM quests q
		WHERE q.quest_type IN ('individual', 'both')
		  AND (q.tracks = '{}' OR $2 = ANY(q.tracks))
		  AND ($3 = '' AND q.program_id IS NULL OR $3 <> '' AND (q.program_id IS NULL OR q.program_id = $3))
		  AND NOT EXISTS (
		      SELECT 1 FROM quest_assignments qa
		      WHERE qa.quest_id = q.id AND qa.owner_id = $1
		  )
		ORDER BY q.difficulty ASC, q.created_at ASC, q.id ASC
	`

	rows, err := r.pool.Query(ctx, query, ownerID, string(track), programID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignable quests: %w", err)
	}
	defer rows.Close()

	var quests []*models.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quest: %w", err)
		}
		quests = append(quests, q)
	}

	return quests, rows.Err()
}

// scanTarget is satisfied by both pgx.Row and pgx.Rows
type scanTarget interface {
	Scan(dest ...any) error
}

func scanQuest(row scanTarget) (*models.Quest, error) {
	var q models.Quest
	var typeStr string
	var programID sql.NullString

	err := row.Scan(
		&q.ID,
		&q.Title,
		&typeStr,
		&q.Category,
		&q.Difficulty,
		&programID,
		&q.Tracks,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.QuestType = models.QuestType(typeStr)
	q.ProgramID = programID.String
	return &q, nil
}

// --- Assignments ---

// CreateAssignment inserts an assignment if the (quest, owner) pair does
// not hold one yet. The unique constraint makes a duplicate-create race
// a detected no-op instead of a double record.
func (r *PostgresRepository) CreateAssignment(ctx context.Context, a *models.QuestAssignment) (bool, error) {
	query := `
		INSERT INTO quest_assignments (id, quest_id, owner_id, owner_kind, status, progress, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (quest_id, owner_id) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query,
		a.ID,
		a.QuestID,
		a.OwnerID,
		string(a.OwnerKind),
		string(a.Status),
		a.Progress,
		a.AssignedAt,
	)

	if err != nil {
		return false, fmt.Errorf("failed to create assignment: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// GetAssignment retrieves the assignment for a (quest, owner) pair
func (r *PostgresRepository) GetAssignment(ctx context.Context, questID, ownerID string) (*models.QuestAssignment, error) {
	query := `
		SELECT id, quest_id, owner_id, owner_kind, status, progress,
		       submission_text, submission_links, assigned_at, started_at, submitted_at, completed_at
		FROM quest_assignments
		WHERE quest_id = $1 AND owner_id = $2
	`

	var a models.QuestAssignment
	var kindStr, statusStr string
	var submissionText sql.NullString
	var startedAt, submittedAt, completedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, questID, ownerID).Scan(
		&a.ID,
		&a.QuestID,
		&a.OwnerID,
		&kindStr,
		&statusStr,
		&a.Progress,
		&submissionText,
		&a.SubmissionLinks,
		&a.AssignedAt,
		&startedAt,
		&submittedAt,
		&completedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	a.OwnerKind = models.OwnerKind(kindStr)
	a.Status = models.AssignmentStatus(statusStr)
	a.SubmissionText = submissionText.String

	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if submittedAt.Valid {
		a.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}

	return &a, nil
}

// UpdateAssignment writes the mutable assignment fields
func (r *PostgresRepository) UpdateAssignment(ctx context.Context, a *models.QuestAssignment) error {
	query := `
		UPDATE quest_assignments
		SET status = $2, progress = $3, submission_text = $4, submission_links = $5,
		    started_at = $6, submitted_at = $7, completed_at = $8
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		a.ID,
		string(a.Status),
		a.Progress,
		nullString(a.SubmissionText),
		textArray(a.SubmissionLinks),
		nullTime(a.StartedAt),
		nullTime(a.SubmittedAt),
		nullTime(a.CompletedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("assignment not found: %s", a.ID)
	}

	return nil
}

// AppendAssignmentEvent records one status transition
func (r *PostgresRepository) AppendAssignmentEvent(ctx context.Context, e *models.AssignmentEvent) error {
	query := `
		INSERT INTO assignment_events (assignment_id, status, note, occurred_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, e.AssignmentID, string(e.Status), nullString(e.Note), e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append assignment event: %w", err)
	}

	return nil
}

// ListAssignmentEvents returns the recorded transitions of one
// assignment in the order they occurred
func (r *PostgresRepository) ListAssignmentEvents(ctx context.Context, assignmentID string) ([]*models.AssignmentEvent, error) {
	query := `
		SELECT id, assignment_id, status, note, occurred_at
		FROM assignment_events
		WHERE assignment_id = $1
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignment events: %w", err)
	}
	defer rows.Close()

	var events []*models.AssignmentEvent
	for rows.Next() {
		var e models.AssignmentEvent
		var statusStr string
		var note sql.NullString

		if err := rows.Scan(&e.ID, &e.AssignmentID, &statusStr, &note, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment event: %w", err)
		}

		e.Status = models.AssignmentStatus(statusStr)
		e.Note = note.String
		events = append(events, &e)
	}

	return events, rows.Err()
}

// CountOpenAssignments counts not-started and in-progress assignments
// held by one owner
func (r *PostgresRepository) CountOpenAssignments(ctx context.Context, ownerID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM quest_assignments
		WHERE owner_id = $1 AND status IN ('not_started', 'in_progress')
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open assignments: %w", err)
	}

	return count, nil
}

// --- User settings ---

// GetUserSettings retrieves the program settings for one user
func (r *PostgresRepository) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	query := `
		SELECT user_id, track, track_changed_at, track_change_count, interests, onboarding_completed_at
		FROM user_settings
		WHERE user_id = $1
	`

	var s models.UserSettings
	var track sql.NullString
	var trackChangedAt, onboardedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&track,
		&trackChangedAt,
		&s.TrackChangeCount,
		&s.Interests,
		&onboardedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}

	s.Track = models.Track(track.String)
	if trackChangedAt.Valid {
		s.TrackChangedAt = &trackChangedAt.Time
	}
	if onboardedAt.Valid {
		s.OnboardingCompletedAt = &onboardedAt.Time
	}

	return &s, nil
}

// SetUserTrack writes the track and bumps the monotonic change counter.
// Existing quest assignments are deliberately left untouched.
func (r *PostgresRepository) SetUserTrack(ctx context.Context, userID string, track models.Track, at time.Time) error {
	query := `
		INSERT INTO user_settings (user_id, track, track_changed_at, track_change_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET track = EXCLUDED.track,
		    track_changed_at = EXCLUDED.track_changed_at,
		    track_change_count = user_settings.track_change_count + 1
	`

	_, err := r.pool.Exec(ctx, query, userID, string(track), at)
	if err != nil {
		return fmt.Errorf("failed to set user track: %w", err)
	}

	return nil
}

// --- Mentors ---

// UpsertMentorProfile creates or replaces a mentor profile
func (r *PostgresRepository) UpsertMentorProfile(ctx context.Context, m *models.MentorProfile) error {
	query := `
		INSERT INTO mentor_profiles (user_id, name, specialties, availability, capacity, rating)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, specialties = EXCLUDED.specialties,
		    availability = EXCLUDED.availability, capacity = EXCLUDED.capacity,
		    rating = EXCLUDED.rating
	`

	_, err := r.pool.Exec(ctx, query,
		m.UserID,
		m.Name,
		textArray(m.Specialties),
		string(m.Availability),
		m.Capacity,
		m.Rating,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert mentor profile: %w", err)
	}

	return nil
}

// mentorLoadQuery joins profiles with the derived count of mentees that
// currently consume capacity (active or paused mentorships)
const mentorLoadQuery = `
	SELECT mp.user_id, mp.name, mp.specialties, mp.availability, mp.capacity, mp.rating,
	       (SELECT COUNT(*) FROM mentorships m
	        WHERE m.mentor_id = mp.user_id AND m.status IN ('active', 'paused')) AS mentee_count
	FROM mentor_profiles mp
`

// GetMentorProfile retrieves one mentor with its derived mentee count
func (r *PostgresRepository) GetMentorProfile(ctx context.Context, userID string) (*models.MentorProfile, error) {
	query := mentorLoadQuery + ` WHERE mp.user_id = $1`

	m, err := scanMentor(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mentor profile: %w", err)
	}

	return m, nil
}

// ListMentorsWithLoad returns every mentor with its derived mentee count
func (r *PostgresRepository) ListMentorsWithLoad(ctx context.Context) ([]*models.MentorProfile, error) {
	query := mentorLoadQuery + ` ORDER BY mp.user_id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentors: %w", err)
	}
	defer rows.Close()

	var mentors []*models.MentorProfile
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mentor: %w", err)
		}
		mentors = append(mentors, m)
	}

	return mentors, rows.Err()
}

func scanMentor(row scanTarget) (*models.MentorProfile, error) {
	var m models.MentorProfile
	var availStr string

	err := row.Scan(
		&m.UserID,
		&m.Name,
		&m.Specialties,
		&availStr,
		&m.Capacity,
		&m.Rating,
		&m.MenteeCount,
	)
	if err != nil {
		return nil, err
	}

	m.Availability = models.Availability(availStr)
	return &m, nil
}

// --- Mentorships ---

// CreateMentorship inserts a mentorship request. The partial unique
// index on non-completed pairs turns a duplicate request into
// ErrDuplicate instead of a second row.
func (r *PostgresRepository) CreateMentorship(ctx context.Context, m *models.Mentorship) error {
	query := `
		INSERT INTO mentorships (id, mentor_id, participant_id, status, message, goals, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.MentorID,
		m.ParticipantID,
		string(m.Status),
		nullString(m.Message),
		textArray(m.Goals),
		m.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create mentorship: %w", err)
	}

	return nil
}

// GetMentorship retrieves a mentorship by ID
func (r *PostgresRepository) GetMentorship(ctx context.Context, id string) (*models.Mentorship, error) {
	query := `
		SELECT id, mentor_id, participant_id, status, message, goals, created_at
		FROM mentorships
		WHERE id = $1
	`

	var m models.Mentorship
	var statusStr string
	var message sql.NullString

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.MentorID,
		&m.ParticipantID,
		&statusStr,
		&message,
		&m.Goals,
		&m.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mentorship: %w", err)
	}

	m.Status = models.MentorshipStatus(statusStr)
	m.Message = message.String

	return &m, nil
}

// UpdateMentorshipStatus moves a mentorship from one status to another.
// The conditional write makes a concurrent transition a detected
// conflict instead of a lost update.
func (r *PostgresRepository) UpdateMentorshipStatus(ctx context.Context, id string, from, to models.MentorshipStatus) (bool, error) {
	query := `
		UPDATE mentorships
		SET status = $3
		WHERE id = $1 AND status = $2
	`

	result, err := r.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to update mentorship status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// CreateSession creates a new mentorship session
func (r *PostgresRepository) CreateSession(ctx context.Context, s *models.MentorshipSession) error {
	query := `
		INSERT INTO mentorship_sessions (id, mentorship_id, scheduled_at, duration_minutes)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, s.ID, s.MentorshipID, s.ScheduledAt, s.DurationMinutes)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*models.MentorshipSession, error) {
	query := `
		SELECT id, mentorship_id, scheduled_at, duration_minutes, rating
		FROM mentorship_sessions
		WHERE id = $1
	`

	var s models.MentorshipSession
	var rating sql.NullInt32

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.MentorshipID,
		&s.ScheduledAt,
		&s.DurationMinutes,
		&rating,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if rating.Valid {
		v := int(rating.Int32)
		s.Rating = &v
	}

	return &s, nil
}

// SetSessionRating sets the rating exactly once. A false return means
// the session was already rated.
func (r *PostgresRepository) SetSessionRating(ctx context.Context, sessionID string, rating int) (bool, error) {
	query := `
		UPDATE mentorship_sessions
		SET rating = $2
		WHERE id = $1 AND rating IS NULL
	`

	result, err := r.pool.Exec(ctx, query, sessionID, rating)
	if err != nil {
		return false, fmt.Errorf("failed to set session rating: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// --- API clients ---

// GetClientByAPIKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.APIClient
	var lastUsedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.APIKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&client.Permissions,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	_, err := r.pool.Exec(ctx, query, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// --- Helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// textArray keeps nil slices out of NOT NULL text[] columns
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
