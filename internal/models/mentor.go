package models

import "time"

// Availability describes how much new mentee load a mentor accepts
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityLimited     Availability = "limited"
	AvailabilityUnavailable Availability = "unavailable"
)

// MentorProfile describes a mentor. MenteeCount is derived from active
// mentorship rows at query time, never stored as its own counter.
type MentorProfile struct {
	UserID       string       `json:"user_id"`
	Name         string       `json:"name"`
	Specialties  []string     `json:"specialties,omitempty"`
	Availability Availability `json:"availability"`
	Capacity     int          `json:"capacity"`
	Rating       float64      `json:"rating"`
	MenteeCount  int          `json:"mentee_count"`
}

// IsAtCapacity reports whether the mentor can take another mentee
func (m *MentorProfile) IsAtCapacity() bool {
	return m.MenteeCount >= m.Capacity
}

// Headroom returns the remaining mentee slots (never negative)
func (m *MentorProfile) Headroom() int {
	if m.MenteeCount >= m.Capacity {
		return 0
	}
	return m.Capacity - m.MenteeCount
}

// RankedMentor is a mentor with its computed compatibility score
type RankedMentor struct {
	Mentor *MentorProfile `json:"mentor"`
	Score  float64        `json:"score"`
}

// MentorshipStatus represents the state of a mentorship
type MentorshipStatus string

const (
	MentorshipRequested MentorshipStatus = "requested"
	MentorshipActive    MentorshipStatus = "active"
	MentorshipPaused    MentorshipStatus = "paused"
	MentorshipCompleted MentorshipStatus = "completed"
)

// mentorshipTransitions is the total transition table for mentorships.
// completed is terminal.
var mentorshipTransitions = map[MentorshipStatus][]MentorshipStatus{
	MentorshipRequested: {MentorshipActive},
	MentorshipActive:    {MentorshipPaused, MentorshipCompleted},
	MentorshipPaused:    {MentorshipActive, MentorshipCompleted},
}

// CanTransition reports whether s may move to next
func (s MentorshipStatus) CanTransition(next MentorshipStatus) bool {
	for _, allowed := range mentorshipTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the mentorship can no longer change state
func (s MentorshipStatus) IsTerminal() bool {
	return s == MentorshipCompleted
}

// IsValid reports whether s is a known status token
func (s MentorshipStatus) IsValid() bool {
	switch s {
	case MentorshipRequested, MentorshipActive, MentorshipPaused, MentorshipCompleted:
		return true
	}
	return false
}

// Mentorship is a bounded relationship between one mentor and one
// participant. At most one non-terminal row exists per pair.
type Mentorship struct {
	ID            string           `json:"id"`
	MentorID      string           `json:"mentor_id"`
	ParticipantID string           `json:"participant_id"`
	Status        MentorshipStatus `json:"status"`
	Message       string           `json:"message,omitempty"`
	Goals         []string         `json:"goals,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// MentorshipSession is one scheduled meeting. Rating is write-once, set
// after the session occurs.
type MentorshipSession struct {
	ID              string    `json:"id"`
	MentorshipID    string    `json:"mentorship_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Rating          *int      `json:"rating,omitempty"`
}

// CreateMentorshipRequest represents a mentorship connection request
type CreateMentorshipRequest struct {
	MentorID      string   `json:"mentor_id"`
	ParticipantID string   `json:"participant_id"`
	Message       string   `json:"message,omitempty"`
	Goals         []string `json:"goals,omitempty"`
}

// UpdateMentorshipStatusRequest moves a mentorship along its lifecycle
type UpdateMentorshipStatusRequest struct {
	Status MentorshipStatus `json:"status"`
}

// ScheduleSessionRequest creates a rateable session
type ScheduleSessionRequest struct {
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// RateSessionRequest sets a session rating (1..5, exactly once)
type RateSessionRequest struct {
	Rating int `json:"rating"`
}
