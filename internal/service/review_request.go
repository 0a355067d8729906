package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/repository"
)

// ReviewRequestResult records the outcome of one solicitation.
type ReviewRequestResult struct {
	BookingID string `json:"bookingId"`
	ClientID  string `json:"clientId"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

type ReminderResult struct {
	RemindersSent []ReviewRequestResult `json:"remindersSent"`
}

type reviewRequestPayload struct {
	BookingID        string            `json:"bookingId"`
	BookingNumber    string            `json:"bookingNumber"`
	SessionID        string            `json:"sessionId"`
	SessionTitle     string            `json:"sessionTitle"`
	ProfessionalID   string            `json:"professionalId"`
	ProfessionalName string            `json:"professionalName"`
	ContentType      model.ContentType `json:"contentType"`
}

// ReviewRequestDispatcher asks clients of completed bookings to leave a review.
// It never checks for an existing review; the unique index on reviews decides.
type ReviewRequestDispatcher struct {
	bookings       repository.BookingRepository
	sessions       repository.SessionRepository
	professionals  repository.ProfessionalRepository
	notifier       Notifier
	reminderWindow time.Duration
	now            func() time.Time
}

func NewReviewRequestDispatcher(
	bookings repository.BookingRepository,
	sessions repository.SessionRepository,
	professionals repository.ProfessionalRepository,
	notifier Notifier,
	reminderWindow time.Duration,
) *ReviewRequestDispatcher {
	return &ReviewRequestDispatcher{
		bookings:       bookings,
		sessions:       sessions,
		professionals:  professionals,
		notifier:       notifier,
		reminderWindow: reminderWindow,
		now:            time.Now,
	}
}

// Dispatch sends one review_request for a completed booking. Failures are
// recorded on the result, never returned.
func (d *ReviewRequestDispatcher) Dispatch(ctx context.Context, booking model.Booking, session *model.Session, professional *model.Professional) ReviewRequestResult {
	return d.send(ctx, model.NotificationReviewRequest, booking, session, professional)
}

func (d *ReviewRequestDispatcher) send(ctx context.Context, kind model.NotificationKind, booking model.Booking, session *model.Session, professional *model.Professional) ReviewRequestResult {
	result := ReviewRequestResult{BookingID: booking.ID, ClientID: booking.ClientID}

	if booking.Status != model.BookingStatusCompleted || session == nil || !booking.ReferencesSession(session.ID) {
		result.Error = "booking is not a completed session booking"
		return result
	}

	payload := reviewRequestPayload{
		BookingID:      booking.ID,
		BookingNumber:  booking.BookingNumber,
		SessionID:      session.ID,
		SessionTitle:   session.Title,
		ProfessionalID: booking.ProfessionalID,
		ContentType:    model.ContentTypeSession,
	}
	if professional != nil {
		payload.ProfessionalName = professional.DisplayName
	}

	if err := d.notifier.Notify(ctx, kind, booking.ClientID, payload); err != nil {
		log.Error().
			Err(err).
			Str("bookingId", booking.ID).
			Str("clientId", booking.ClientID).
			Str("kind", string(kind)).
			Msg("failed to send review request")
		result.Error = err.Error()
		return result
	}

	result.Sent = true
	return result
}

// SendReviewReminders re-solicits clients whose bookings with the professional
// completed inside the reminder window and who have not reviewed the session.
func (d *ReviewRequestDispatcher) SendReviewReminders(ctx context.Context, professionalUserID string) (*ReminderResult, error) {
	professional, err := d.professionals.FindByUserID(ctx, professionalUserID)
	if err != nil {
		return nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return nil, apperrors.NotFound("Professional profile")
	}

	since := d.now().Add(-d.reminderWindow)
	bookings, err := d.bookings.FindUnreviewedCompleted(ctx, professional.ID, &since)
	if err != nil {
		return nil, fmt.Errorf("find unreviewed bookings: %w", err)
	}

	result := &ReminderResult{RemindersSent: []ReviewRequestResult{}}
	sessions := make(map[string]*model.Session)

	for _, b := range bookings {
		sessionID := *b.SessionID
		session, ok := sessions[sessionID]
		if !ok {
			session, err = d.sessions.FindByID(ctx, sessionID)
			if err != nil {
				result.RemindersSent = append(result.RemindersSent, ReviewRequestResult{
					BookingID: b.ID,
					ClientID:  b.ClientID,
					Error:     err.Error(),
				})
				continue
			}
			sessions[sessionID] = session
		}

		result.RemindersSent = append(result.RemindersSent,
			d.send(ctx, model.NotificationReviewReminder, b, session, professional))
	}

	log.Info().
		Str("professionalId", professional.ID).
		Int("candidates", len(bookings)).
		Msg("review reminders processed")

	return result, nil
}
