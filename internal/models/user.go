package models

import "time"

// Track is a participant's chosen cohort path
type Track string

const (
	TrackLearning     Track = "learning"
	TrackFounder      Track = "founder"
	TrackProfessional Track = "professional"
	TrackFreelancer   Track = "freelancer"
)

// IsValid reports whether t is a known track token
func (t Track) IsValid() bool {
	switch t {
	case TrackLearning, TrackFounder, TrackProfessional, TrackFreelancer:
		return true
	}
	return false
}

// UserSettings holds the per-user program state that drives quest
// eligibility. Changing track never revokes already-assigned quests.
type UserSettings struct {
	UserID                string     `json:"user_id"`
	Track                 Track      `json:"track,omitempty"`
	TrackChangedAt        *time.Time `json:"track_changed_at,omitempty"`
	TrackChangeCount      int        `json:"track_change_count"`
	Interests             []string   `json:"interests,omitempty"`
	OnboardingCompletedAt *time.Time `json:"onboarding_completed_at,omitempty"`
}

// SetTrackRequest represents a track change
type SetTrackRequest struct {
	Track Track `json:"track"`
}
