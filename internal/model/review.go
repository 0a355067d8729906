package model

import (
	"database/sql/driver"
	"fmt"
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReviewAspects holds the optional per-aspect ratings of a review.
type ReviewAspects struct {
	Communication   *int `json:"communication,omitempty" validate:"omitempty,min=1,max=5"`
	Professionalism *int `json:"professionalism,omitempty" validate:"omitempty,min=1,max=5"`
	ValueForMoney   *int `json:"value,omitempty" validate:"omitempty,min=1,max=5"`
	Quality         *int `json:"quality,omitempty" validate:"omitempty,min=1,max=5"`
}

func (a ReviewAspects) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *ReviewAspects) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = ReviewAspects{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("review aspects: unsupported type %T", src)
	}
}

type Review struct {
	ID             string        `db:"id" json:"id"`
	ClientID       string        `db:"client_id" json:"clientId"`
	ProfessionalID *string       `db:"professional_id" json:"professionalId,omitempty"`
	ContentType    ContentType   `db:"content_type" json:"contentType"`
	ContentID      string        `db:"content_id" json:"contentId"`
	ContentTitle   string        `db:"content_title" json:"contentTitle"`
	BookingID      *string       `db:"booking_id" json:"bookingId,omitempty"`
	Rating         int           `db:"rating" json:"rating"`
	Title          *string       `db:"title" json:"title,omitempty"`
	Comment        *string       `db:"comment" json:"comment,omitempty"`
	Aspects        ReviewAspects `db:"aspects" json:"aspects"`
	Status         ReviewStatus  `db:"status" json:"status"`
	ResponseText   *string       `db:"response_text" json:"responseText,omitempty"`
	RespondedAt    *time.Time    `db:"responded_at" json:"respondedAt,omitempty"`
	IsVerified     bool          `db:"is_verified" json:"isVerified"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreateReviewParams struct {
	ClientID       string
	ProfessionalID *string
	ContentType    ContentType
	ContentID      string
	ContentTitle   string
	BookingID      *string
	Rating         int
	Title          *string
	Comment        *string
	Aspects        ReviewAspects
	Status         ReviewStatus
	IsVerified     bool
}

type ReviewFilter struct {
	ContentType    ContentType
	ContentID      string
	ProfessionalID string
	ClientID       string
	Status         ReviewStatus
	Limit          int
	Offset         int
}

// RatingSummary is the stored aggregate of approved reviews. AverageRating
// keeps full precision.
type RatingSummary struct {
	AverageRating float64 `db:"average_rating" json:"averageRating"`
	ReviewCount   int     `db:"review_count" json:"reviewCount"`
}

// Rounded returns the average rounded to one decimal for display.
func (s RatingSummary) Rounded() float64 {
	return math.Round(s.AverageRating*10) / 10
}

type ReviewStats struct {
	CompletedSessions int     `json:"completedSessions"`
	ReviewsReceived   int     `json:"reviewsReceived"`
	PendingReviews    int     `json:"pendingReviews"`
	ReviewRate        float64 `json:"reviewRate"`
}
