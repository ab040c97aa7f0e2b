package progression

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/buildcamp/progression-engine/internal/models"
	"github.com/buildcamp/progression-engine/internal/storage"
)

// memRepo is an in-memory Repository with the same conflict semantics
// as the PostgreSQL implementation: conditional writes report whether
// they applied, unique constraints surface as storage.ErrDuplicate.
type memRepo struct {
	mu          sync.Mutex
	projects    map[string]*models.Project
	members     map[string][]*models.ProjectMember
	transitions []*models.StageTransition
	evidence    map[string]*models.EvidenceSnapshot
	quests      map[string]*models.Quest
	assignments map[string]*models.QuestAssignment // keyed quest|owner
	events      map[string][]*models.AssignmentEvent
	settings    map[string]*models.UserSettings
	mentors     map[string]*models.MentorProfile
	mentorships map[string]*models.Mentorship
	sessions    map[string]*models.MentorshipSession
	clients     map[string]*models.APIClient
	nextEventID int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		projects:    make(map[string]*models.Project),
		members:     make(map[string][]*models.ProjectMember),
		evidence:    make(map[string]*models.EvidenceSnapshot),
		quests:      make(map[string]*models.Quest),
		assignments: make(map[string]*models.QuestAssignment),
		events:      make(map[string][]*models.AssignmentEvent),
		settings:    make(map[string]*models.UserSettings),
		mentors:     make(map[string]*models.MentorProfile),
		mentorships: make(map[string]*models.Mentorship),
		sessions:    make(map[string]*models.MentorshipSession),
		clients:     make(map[string]*models.APIClient),
	}
}

func assignmentKey(questID, ownerID string) string {
	return questID + "|" + ownerID
}

func (r *memRepo) CreateProject(ctx context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.projects {
		if existing.Slug == p.Slug {
			return storage.ErrDuplicate
		}
	}

	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *memRepo) GetProject(ctx context.Context, id string) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}

	cp := *p
	cp.Members = append([]*models.ProjectMember(nil), r.members[id]...)
	return &cp, nil
}

func (r *memRepo) AddProjectMember(ctx context.Context, m *models.ProjectMember) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.members[m.ProjectID] {
		if existing.UserID == m.UserID {
			return false, nil
		}
	}

	cp := *m
	r.members[m.ProjectID] = append(r.members[m.ProjectID], &cp)
	return true, nil
}

func (r *memRepo) ListProjectMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.ProjectMember(nil), r.members[projectID]...), nil
}

func (r *memRepo) UpdateProjectStage(ctx context.Context, id string, from, to models.Stage, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok || p.Stage != from {
		return false, nil
	}

	p.Stage = to
	p.StageChangedAt = &at
	return true, nil
}

func (r *memRepo) SetProjectStage(ctx context.Context, id string, to models.Stage, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return storage.ErrDuplicate
	}

	p.Stage = to
	p.StageChangedAt = &at
	return nil
}

func (r *memRepo) RecordStageTransition(ctx context.Context, t *models.StageTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *t
	cp.ID = int64(len(r.transitions) + 1)
	r.transitions = append(r.transitions, &cp)
	return nil
}

func (r *memRepo) ListStageTransitions(ctx context.Context, projectID string, limit int) ([]*models.StageTransition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.StageTransition
	for i := len(r.transitions) - 1; i >= 0; i-- {
		if r.transitions[i].ProjectID == projectID {
			out = append(out, r.transitions[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) PruneStageTransitions(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*models.StageTransition
	var pruned int64
	for _, t := range r.transitions {
		if t.OccurredAt.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, t)
	}
	r.transitions = kept
	return pruned, nil
}

// setEvidence installs the snapshot returned for a project
func (r *memRepo) setEvidence(projectID string, snap models.EvidenceSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap.ProjectID = projectID
	r.evidence[projectID] = &snap
}

func (r *memRepo) GetEvidenceSnapshot(ctx context.Context, projectID string) (*models.EvidenceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap, ok := r.evidence[projectID]; ok {
		cp := *snap
		return &cp, nil
	}
	return &models.EvidenceSnapshot{ProjectID: projectID, MemberCount: len(r.members[projectID])}, nil
}

func (r *memRepo) CreateQuest(ctx context.Context, q *models.Quest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *q
	r.quests[q.ID] = &cp
	return nil
}

func (r *memRepo) GetQuest(ctx context.Context, id string) (*models.Quest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.quests[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (r *memRepo) ListAssignableQuests(ctx context.Context, ownerID string, track models.Track, programID string) ([]*models.Quest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Quest
	for _, q := range r.quests {
		if !q.QuestType.ForIndividuals() {
			continue
		}
		if len(q.Tracks) > 0 && !containsTrack(q.Tracks, string(track)) {
			continue
		}
		if programID == "" && q.ProgramID != "" {
			continue
		}
		if programID != "" && q.ProgramID != "" && q.ProgramID != programID {
			continue
		}
		if _, held := r.assignments[assignmentKey(q.ID, ownerID)]; held {
			continue
		}
		out = append(out, q)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Difficulty != out[j].Difficulty {
			return out[i].Difficulty < out[j].Difficulty
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func containsTrack(tracks []string, track string) bool {
	for _, t := range tracks {
		if t == track {
			return true
		}
	}
	return false
}

func (r *memRepo) CreateAssignment(ctx context.Context, a *models.QuestAssignment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assignmentKey(a.QuestID, a.OwnerID)
	if _, exists := r.assignments[key]; exists {
		return false, nil
	}

	cp := *a
	r.assignments[key] = &cp
	return true, nil
}

func (r *memRepo) GetAssignment(ctx context.Context, questID, ownerID string) (*models.QuestAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assignments[assignmentKey(questID, ownerID)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) UpdateAssignment(ctx context.Context, a *models.QuestAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *a
	r.assignments[assignmentKey(a.QuestID, a.OwnerID)] = &cp
	return nil
}

func (r *memRepo) AppendAssignmentEvent(ctx context.Context, e *models.AssignmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	cp := *e
	cp.ID = r.nextEventID
	r.events[e.AssignmentID] = append(r.events[e.AssignmentID], &cp)
	return nil
}

func (r *memRepo) ListAssignmentEvents(ctx context.Context, assignmentID string) ([]*models.AssignmentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AssignmentEvent(nil), r.events[assignmentID]...), nil
}

func (r *memRepo) CountOpenAssignments(ctx context.Context, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.assignments {
		if a.OwnerID == ownerID && a.Status.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (r *memRepo) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) SetUserTrack(ctx context.Context, userID string, track models.Track, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.settings[userID]
	if !ok {
		s = &models.UserSettings{UserID: userID}
		r.settings[userID] = s
	}
	s.Track = track
	s.TrackChangedAt = &at
	s.TrackChangeCount++
	return nil
}

func (r *memRepo) UpsertMentorProfile(ctx context.Context, m *models.MentorProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *m
	cp.MenteeCount = r.menteeCountLocked(m.UserID)
	r.mentors[m.UserID] = &cp
	return nil
}

func (r *memRepo) menteeCountLocked(mentorID string) int {
	count := 0
	for _, m := range r.mentorships {
		if m.MentorID == mentorID && (m.Status == models.MentorshipActive || m.Status == models.MentorshipPaused) {
			count++
		}
	}
	return count
}

func (r *memRepo) GetMentorProfile(ctx context.Context, userID string) (*models.MentorProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mentors[userID]
	if !ok {
		return nil, nil
	}
	cp := *m
	cp.MenteeCount = r.menteeCountLocked(userID)
	return &cp, nil
}

func (r *memRepo) ListMentorsWithLoad(ctx context.Context) ([]*models.MentorProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.MentorProfile
	for _, m := range r.mentors {
		cp := *m
		cp.MenteeCount = r.menteeCountLocked(m.UserID)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *memRepo) CreateMentorship(ctx context.Context, m *models.Mentorship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.mentorships {
		if existing.MentorID == m.MentorID && existing.ParticipantID == m.ParticipantID &&
			existing.Status != models.MentorshipCompleted {
			return storage.ErrDuplicate
		}
	}

	cp := *m
	r.mentorships[m.ID] = &cp
	return nil
}

func (r *memRepo) GetMentorship(ctx context.Context, id string) (*models.Mentorship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mentorships[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *memRepo) UpdateMentorshipStatus(ctx context.Context, id string, from, to models.MentorshipStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mentorships[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (r *memRepo) CreateSession(ctx context.Context, s *models.MentorshipSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memRepo) GetSession(ctx context.Context, id string) (*models.MentorshipSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) SetSessionRating(ctx context.Context, sessionID string, rating int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.Rating != nil {
		return false, nil
	}
	s.Rating = &rating
	return true, nil
}

func (r *memRepo) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[apiKey]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	return nil
}

func (r *memRepo) Ping(ctx context.Context) error { return nil }
func (r *memRepo) Close() error                   { return nil }
