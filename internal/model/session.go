package model

import (
	"time"

	"github.com/lib/pq"
)

type Session struct {
	ID              string          `db:"id" json:"id"`
	ProfessionalID  string          `db:"professional_id" json:"professionalId"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	StartTime       time.Time       `db:"start_time" json:"startTime"`
	Duration        int             `db:"duration" json:"duration"`
	MaxParticipants int             `db:"max_participants" json:"maxParticipants"`
	Price           float64         `db:"price" json:"price"`
	Category        SessionCategory `db:"category" json:"category"`
	Location        *string         `db:"location" json:"location,omitempty"`
	MeetingLink     *string         `db:"meeting_link" json:"meetingLink,omitempty"`
	Status          SessionStatus   `db:"status" json:"status"`
	Participants    pq.StringArray  `db:"participants" json:"participants"`
	AverageRating   float64         `db:"average_rating" json:"averageRating"`
	ReviewCount     int             `db:"review_count" json:"reviewCount"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

func (s *Session) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.Duration) * time.Minute)
}

// HasEnded reports whether now is at or past the end time plus grace.
func (s *Session) HasEnded(now time.Time, grace time.Duration) bool {
	return !now.Before(s.EndTime().Add(grace))
}

// IsEditable is false once the session has started running or finished.
func (s *Session) IsEditable() bool {
	return s.Status == SessionStatusScheduled
}

func (s *Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (s *Session) IsFull() bool {
	return len(s.Participants) >= s.MaxParticipants
}

type CreateSessionParams struct {
	ProfessionalID  string
	Title           string
	Description     string
	StartTime       time.Time
	Duration        int
	MaxParticipants int
	Price           float64
	Category        SessionCategory
	Location        *string
	MeetingLink     *string
}

// UpdateSessionParams carries only the fields being changed.
type UpdateSessionParams struct {
	Title           *string
	Description     *string
	StartTime       *time.Time
	Duration        *int
	MaxParticipants *int
	Price           *float64
	Category        *SessionCategory
	Location        *string
	MeetingLink     *string
}

type SessionFilter struct {
	ProfessionalID string
	Status         SessionStatus
	Category       SessionCategory
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}
