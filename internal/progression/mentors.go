package progression

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/buildcamp/progression-engine/internal/models"
)

// UpsertMentorProfile creates or replaces a mentor profile and drops
// every cached recommendation, since any ranking may now be stale.
func (e *Engine) UpsertMentorProfile(ctx context.Context, m *models.MentorProfile) (*models.MentorProfile, error) {
	if strings.TrimSpace(m.UserID) == "" || strings.TrimSpace(m.Name) == "" {
		return nil, fmt.Errorf("%w: user_id and name are required", ErrInvalidInput)
	}
	switch m.Availability {
	case models.AvailabilityAvailable, models.AvailabilityLimited, models.AvailabilityUnavailable:
	case "":
		m.Availability = models.AvailabilityAvailable
	default:
		return nil, fmt.Errorf("%w: unknown availability %q", ErrInvalidInput, m.Availability)
	}
	if m.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity cannot be negative", ErrInvalidInput)
	}
	if m.Rating < 0 || m.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 0 and 5", ErrInvalidInput)
	}

	if err := e.repo.UpsertMentorProfile(ctx, m); err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.InvalidateAll(ctx)
	}

	slog.Info("mentor profile upserted", "user_id", m.UserID)

	return e.GetMentorProfile(ctx, m.UserID)
}

// GetMentorProfile retrieves a mentor with its derived mentee count
func (e *Engine) GetMentorProfile(ctx context.Context, userID string) (*models.MentorProfile, error) {
	mentor, err := e.repo.GetMentorProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if mentor == nil {
		return nil, ErrMentorNotFound
	}
	return mentor, nil
}

// ListMentors returns every mentor with its derived mentee count
func (e *Engine) ListMentors(ctx context.Context) ([]*models.MentorProfile, error) {
	return e.repo.ListMentorsWithLoad(ctx)
}

// RecommendMentors ranks mentors for a participant by specialty
// overlap, rating and remaining capacity, and returns the top entries.
// Unavailable and full mentors are never recommended.
func (e *Engine) RecommendMentors(ctx context.Context, participantID string) ([]*models.RankedMentor, error) {
	if e.cache != nil {
		if cached := e.cache.Get(ctx, participantID); cached != nil {
			return cached, nil
		}
	}

	settings, err := e.repo.GetUserSettings(ctx, participantID)
	if err != nil {
		return nil, err
	}

	var interests []string
	if settings != nil {
		interests = settings.Interests
	}

	mentors, err := e.repo.ListMentorsWithLoad(ctx)
	if err != nil {
		return nil, err
	}

	ranked := e.rankMentors(mentors, interests)

	if e.cache != nil {
		e.cache.Set(ctx, participantID, ranked)
	}

	return ranked, nil
}

// rankMentors is the pure scoring pass. Ties break on rating, then on
// current load, then on id so the result is deterministic.
func (e *Engine) rankMentors(mentors []*models.MentorProfile, interests []string) []*models.RankedMentor {
	weights := e.policy.Mentors

	var ranked []*models.RankedMentor
	for _, m := range mentors {
		if m.Availability == models.AvailabilityUnavailable || m.IsAtCapacity() {
			continue
		}

		score := weights.OverlapWeight*specialtyOverlap(interests, m.Specialties) +
			weights.RatingWeight*(m.Rating/5) +
			weights.HeadroomWeight*headroomFraction(m)

		ranked = append(ranked, &models.RankedMentor{Mentor: m, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Mentor.Rating != b.Mentor.Rating {
			return a.Mentor.Rating > b.Mentor.Rating
		}
		if a.Mentor.MenteeCount != b.Mentor.MenteeCount {
			return a.Mentor.MenteeCount < b.Mentor.MenteeCount
		}
		return a.Mentor.UserID < b.Mentor.UserID
	})

	if len(ranked) > weights.TopN {
		ranked = ranked[:weights.TopN]
	}

	return ranked
}

// specialtyOverlap is the fraction of the participant's interests a
// mentor covers. No interests means overlap contributes nothing.
func specialtyOverlap(interests, specialties []string) float64 {
	if len(interests) == 0 {
		return 0
	}

	have := make(map[string]bool, len(specialties))
	for _, s := range specialties {
		have[strings.ToLower(s)] = true
	}

	matched := 0
	for _, interest := range interests {
		if have[strings.ToLower(interest)] {
			matched++
		}
	}

	return float64(matched) / float64(len(interests))
}

func headroomFraction(m *models.MentorProfile) float64 {
	if m.Capacity <= 0 {
		return 0
	}
	return float64(m.Headroom()) / float64(m.Capacity)
}
