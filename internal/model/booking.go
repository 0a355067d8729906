package model

import (
	"fmt"
	"time"
)

const bookingNumberPrefix = "BK"

type Booking struct {
	ID                 string        `db:"id" json:"id"`
	BookingNumber      string        `db:"booking_number" json:"bookingNumber"`
	ClientID           string        `db:"client_id" json:"clientId"`
	ProfessionalID     string        `db:"professional_id" json:"professionalId"`
	ServiceName        string        `db:"service_name" json:"serviceName"`
	ServiceDuration    int           `db:"service_duration" json:"serviceDuration"`
	ServicePrice       float64       `db:"service_price" json:"servicePrice"`
	SessionID          *string       `db:"session_id" json:"sessionId,omitempty"`
	AppointmentDate    time.Time     `db:"appointment_date" json:"appointmentDate"`
	StartTime          string        `db:"start_time" json:"startTime"`
	EndTime            string        `db:"end_time" json:"endTime"`
	Location           *string       `db:"location" json:"location,omitempty"`
	Status             BookingStatus `db:"status" json:"status"`
	PaymentStatus      PaymentStatus `db:"payment_status" json:"paymentStatus"`
	Notes              *string       `db:"notes" json:"notes,omitempty"`
	CancelledBy        *Role         `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time    `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CompletedAt        *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updatedAt"`
}

// ReferencesSession reports whether the service snapshot points at sessionID.
func (b *Booking) ReferencesSession(sessionID string) bool {
	return b.SessionID != nil && *b.SessionID == sessionID
}

// FormatBookingNumber renders BK{YYYYMMDD}{NNNN} for the UTC day of t.
func FormatBookingNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", bookingNumberPrefix, t.UTC().Format("20060102"), seq)
}

type CreateBookingParams struct {
	BookingNumber   string
	ClientID        string
	ProfessionalID  string
	ServiceName     string
	ServiceDuration int
	ServicePrice    float64
	SessionID       *string
	AppointmentDate time.Time
	StartTime       string
	EndTime         string
	Location        *string
	Notes           *string
}

type CancelBookingParams struct {
	ID          string
	CancelledBy Role
	Reason      *string
}
