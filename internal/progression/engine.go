package progression

import (
	"errors"
	"time"

	"github.com/buildcamp/progression-engine/internal/cache"
	"github.com/buildcamp/progression-engine/internal/policy"
	"github.com/buildcamp/progression-engine/internal/storage"
)

// Domain errors returned by the engine. Handlers map these onto HTTP
// status codes; everything else is treated as an internal error.
var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrQuestNotFound      = errors.New("quest not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrMentorNotFound     = errors.New("mentor not found")
	ErrMentorshipNotFound = errors.New("mentorship not found")
	ErrSessionNotFound    = errors.New("session not found")

	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidStage      = errors.New("invalid stage")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrInvalidTransition = errors.New("transition not allowed")

	ErrTrackNotSet         = errors.New("user has no track set")
	ErrStageNotEligible    = errors.New("advancement criteria not met")
	ErrStageConflict       = errors.New("stage changed concurrently")
	ErrQuestOwnerMismatch  = errors.New("quest type does not match owner kind")
	ErrMentorAtCapacity    = errors.New("mentor is at capacity")
	ErrMentorUnavailable   = errors.New("mentor is unavailable")
	ErrDuplicateMentorship = errors.New("mentorship already exists for this pair")
	ErrMentorshipNotActive = errors.New("mentorship is not active")
	ErrRatingAlreadySet    = errors.New("session already rated")
)

// Engine evaluates stage advancement, assigns quests, ranks mentors and
// drives the mentorship lifecycle. All state lives in the repository;
// the engine itself is stateless and safe for concurrent use.
type Engine struct {
	repo   storage.Repository
	policy *policy.Policy
	cache  *cache.RecommendationCache
	now    func() time.Time
}

// New creates an engine. cache may be nil, in which case recommendation
// results are recomputed on every request.
func New(repo storage.Repository, pol *policy.Policy, recCache *cache.RecommendationCache) *Engine {
	if pol == nil {
		pol = policy.Default()
	}

	return &Engine{
		repo:   repo,
		policy: pol,
		cache:  recCache,
		now:    time.Now,
	}
}
