package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/database"
	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/repository"
	"github.com/wellspring/marketplace-server-go/internal/util"
)

const (
	bookingNumberConstraint       = "bookings_booking_number_key"
	bookingActiveClientConstraint = "bookings_session_client_active_key"
)

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// BookingSequence issues the per-day booking number sequence.
type BookingSequence interface {
	Next(ctx context.Context, day time.Time) (int64, error)
}

// CreateBookingInput books either a scheduled session or, without a session,
// an ad-hoc service with a professional.
type CreateBookingInput struct {
	SessionID       string     `json:"sessionId" validate:"omitempty,uuid"`
	ProfessionalID  string     `json:"professionalId" validate:"omitempty,uuid"`
	ServiceName     string     `json:"serviceName" validate:"max=200"`
	ServiceDuration int        `json:"serviceDuration" validate:"omitempty,min=15,max=480"`
	ServicePrice    float64    `json:"servicePrice" validate:"min=0"`
	AppointmentAt   *time.Time `json:"appointmentAt"`
	Location        *string    `json:"location" validate:"omitempty,max=300"`
	Notes           *string    `json:"notes" validate:"omitempty,max=500"`
}

type CancelBookingInput struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type BookingService struct {
	tx            TxRunner
	bookings      repository.BookingRepository
	sessions      repository.SessionRepository
	professionals repository.ProfessionalRepository
	sequence      BookingSequence
	notifier      Notifier
	now           func() time.Time
}

func NewBookingService(
	tx TxRunner,
	bookings repository.BookingRepository,
	sessions repository.SessionRepository,
	professionals repository.ProfessionalRepository,
	sequence BookingSequence,
	notifier Notifier,
) *BookingService {
	return &BookingService{
		tx:            tx,
		bookings:      bookings,
		sessions:      sessions,
		professionals: professionals,
		sequence:      sequence,
		notifier:      notifier,
		now:           time.Now,
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, clientID string, input CreateBookingInput) (*model.Booking, error) {
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}

	var (
		params       model.CreateBookingParams
		professional *model.Professional
		err          error
	)
	if input.SessionID != "" {
		params, professional, err = s.sessionBooking(ctx, clientID, input)
	} else {
		params, professional, err = s.serviceBooking(ctx, input)
	}
	if err != nil {
		return nil, err
	}
	params.ClientID = clientID
	params.Notes = input.Notes

	now := s.now()
	seq, err := s.sequence.Next(ctx, now)
	if err != nil {
		return nil, apperrors.External("booking sequence", err)
	}
	params.BookingNumber = model.FormatBookingNumber(now, seq)

	booking, err := s.bookings.Create(ctx, params)
	if database.IsUniqueViolation(err, bookingActiveClientConstraint) {
		return nil, apperrors.AlreadyExists("Booking")
	}
	if database.IsUniqueViolation(err, bookingNumberConstraint) {
		return nil, apperrors.Conflict("Booking number already issued, please retry")
	}
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	log.Info().
		Str("bookingId", booking.ID).
		Str("bookingNumber", booking.BookingNumber).
		Str("clientId", clientID).
		Msg("booking created")

	s.notify(ctx, model.NotificationBookingRequested, professional.UserID, booking)
	return booking, nil
}

func (s *BookingService) sessionBooking(ctx context.Context, clientID string, input CreateBookingInput) (model.CreateBookingParams, *model.Professional, error) {
	session, err := s.sessions.FindByID(ctx, input.SessionID)
	if err != nil {
		return model.CreateBookingParams{}, nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return model.CreateBookingParams{}, nil, apperrors.NotFound("Session")
	}
	if session.Status != model.SessionStatusScheduled {
		return model.CreateBookingParams{}, nil, apperrors.Conflict("Session is not open for booking")
	}
	if session.HasParticipant(clientID) {
		return model.CreateBookingParams{}, nil, apperrors.AlreadyExists("Booking")
	}
	held, err := s.bookings.HasActiveForClient(ctx, session.ID, clientID)
	if err != nil {
		return model.CreateBookingParams{}, nil, fmt.Errorf("find client booking: %w", err)
	}
	if held {
		return model.CreateBookingParams{}, nil, apperrors.AlreadyExists("Booking")
	}

	active, err := s.bookings.CountBySession(ctx, session.ID,
		[]model.BookingStatus{model.BookingStatusPending, model.BookingStatusConfirmed})
	if err != nil {
		return model.CreateBookingParams{}, nil, fmt.Errorf("count session bookings: %w", err)
	}
	if active >= session.MaxParticipants {
		return model.CreateBookingParams{}, nil, apperrors.Conflict("Session is full")
	}

	professional, err := s.professionals.FindByID(ctx, session.ProfessionalID)
	if err != nil {
		return model.CreateBookingParams{}, nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return model.CreateBookingParams{}, nil, apperrors.NotFound("Professional")
	}

	location := session.Location
	if session.Category == model.SessionCategoryOnline {
		location = session.MeetingLink
	}
	start := session.StartTime.UTC()

	return model.CreateBookingParams{
		ProfessionalID:  session.ProfessionalID,
		ServiceName:     session.Title,
		ServiceDuration: session.Duration,
		ServicePrice:    session.Price,
		SessionID:       &session.ID,
		AppointmentDate: start,
		StartTime:       start.Format("15:04"),
		EndTime:         session.EndTime().UTC().Format("15:04"),
		Location:        location,
	}, professional, nil
}

func (s *BookingService) serviceBooking(ctx context.Context, input CreateBookingInput) (model.CreateBookingParams, *model.Professional, error) {
	missing := map[string]string{}
	if input.ProfessionalID == "" {
		missing["professionalId"] = "is required"
	}
	if input.ServiceName == "" {
		missing["serviceName"] = "is required"
	}
	if input.ServiceDuration == 0 {
		missing["serviceDuration"] = "is required"
	}
	if input.AppointmentAt == nil {
		missing["appointmentAt"] = "is required"
	}
	if len(missing) > 0 {
		return model.CreateBookingParams{}, nil, apperrors.ValidationError("Validation failed").WithDetails(missing)
	}
	if !input.AppointmentAt.After(s.now()) {
		return model.CreateBookingParams{}, nil, apperrors.InvalidInput("appointmentAt", "must be in the future")
	}

	professional, err := s.professionals.FindByID(ctx, input.ProfessionalID)
	if err != nil {
		return model.CreateBookingParams{}, nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return model.CreateBookingParams{}, nil, apperrors.NotFound("Professional")
	}

	start := input.AppointmentAt.UTC()
	end := start.Add(time.Duration(input.ServiceDuration) * time.Minute)
	return model.CreateBookingParams{
		ProfessionalID:  professional.ID,
		ServiceName:     input.ServiceName,
		ServiceDuration: input.ServiceDuration,
		ServicePrice:    input.ServicePrice,
		AppointmentDate: start,
		StartTime:       start.Format("15:04"),
		EndTime:         end.Format("15:04"),
		Location:        input.Location,
	}, professional, nil
}

// AcceptBooking confirms a pending booking and seats the client in the
// session in one transaction.
func (s *BookingService) AcceptBooking(ctx context.Context, professionalUserID, id string) (*model.Booking, error) {
	booking, _, err := s.ownedByProfessional(ctx, professionalUserID, id)
	if err != nil {
		return nil, err
	}

	next, err := model.BookingMachine.Fire(booking.Status, model.BookingEventConfirm)
	if err != nil {
		return nil, apperrors.InvalidTransition(err)
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.bookings.WithTx(tx).TransitionStatus(ctx, booking.ID,
			model.BookingMachine.Sources(model.BookingEventConfirm), next)
		if err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}
		if !ok {
			return apperrors.Conflict("Booking status changed, reload and retry")
		}

		if booking.SessionID == nil {
			return nil
		}
		added, err := s.sessions.WithTx(tx).AddParticipant(ctx, *booking.SessionID, booking.ClientID)
		if err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
		if !added {
			return apperrors.Conflict("Session is full or no longer scheduled")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Status = next
	s.notify(ctx, model.NotificationBookingConfirmed, booking.ClientID, booking)
	return booking, nil
}

func (s *BookingService) DeclineBooking(ctx context.Context, professionalUserID, id string, input CancelBookingInput) (*model.Booking, error) {
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}
	booking, _, err := s.ownedByProfessional(ctx, professionalUserID, id)
	if err != nil {
		return nil, err
	}

	next, err := model.BookingMachine.Fire(booking.Status, model.BookingEventDecline)
	if err != nil {
		return nil, apperrors.InvalidTransition(err)
	}

	ok, err := s.bookings.Cancel(ctx, model.CancelBookingParams{
		ID:          booking.ID,
		CancelledBy: model.RoleProfessional,
		Reason:      input.Reason,
	}, model.BookingMachine.Sources(model.BookingEventDecline))
	if err != nil {
		return nil, fmt.Errorf("decline booking: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("Booking status changed, reload and retry")
	}

	booking.Status = next
	s.notify(ctx, model.NotificationBookingCancelled, booking.ClientID, booking)
	return booking, nil
}

// CancelBooking cancels on behalf of the client, the professional or an
// admin, and frees the client's seat in the session.
func (s *BookingService) CancelBooking(ctx context.Context, actor Actor, id string, input CancelBookingInput) (*model.Booking, error) {
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}

	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("Booking")
	}

	cancelledBy := actor.Role
	var counterpart string
	switch {
	case booking.ClientID == actor.UserID:
		cancelledBy = model.RoleClient
		professional, err := s.professionals.FindByID(ctx, booking.ProfessionalID)
		if err != nil {
			return nil, fmt.Errorf("find professional: %w", err)
		}
		if professional != nil {
			counterpart = professional.UserID
		}
	case actor.IsAdmin():
		counterpart = booking.ClientID
	default:
		professional, err := s.professionals.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("find professional: %w", err)
		}
		if professional == nil || professional.ID != booking.ProfessionalID {
			return nil, apperrors.Forbidden("You cannot cancel this booking")
		}
		cancelledBy = model.RoleProfessional
		counterpart = booking.ClientID
	}

	next, err := model.BookingMachine.Fire(booking.Status, model.BookingEventCancel)
	if err != nil {
		return nil, apperrors.InvalidTransition(err)
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.bookings.WithTx(tx).Cancel(ctx, model.CancelBookingParams{
			ID:          booking.ID,
			CancelledBy: cancelledBy,
			Reason:      input.Reason,
		}, model.BookingMachine.Sources(model.BookingEventCancel))
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if !ok {
			return apperrors.Conflict("Booking status changed, reload and retry")
		}
		if booking.SessionID != nil {
			if err := s.sessions.WithTx(tx).RemoveParticipant(ctx, *booking.SessionID, booking.ClientID); err != nil {
				return fmt.Errorf("remove participant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Status = next
	booking.CancelledBy = &cancelledBy
	booking.CancellationReason = input.Reason

	if counterpart != "" {
		s.notify(ctx, model.NotificationBookingCancelled, counterpart, booking)
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, actor Actor, limit, offset int) ([]model.Booking, error) {
	var (
		bookings []model.Booking
		err      error
	)
	if actor.Role == model.RoleProfessional {
		professional, ferr := s.professionals.FindByUserID(ctx, actor.UserID)
		if ferr != nil {
			return nil, fmt.Errorf("find professional: %w", ferr)
		}
		if professional == nil {
			return nil, apperrors.NotFound("Professional profile")
		}
		bookings, err = s.bookings.ListByProfessional(ctx, professional.ID, limit, offset)
	} else {
		bookings, err = s.bookings.ListByClient(ctx, actor.UserID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return bookings, nil
}

func (s *BookingService) ownedByProfessional(ctx context.Context, professionalUserID, id string) (*model.Booking, *model.Professional, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, nil, apperrors.NotFound("Booking")
	}

	professional, err := s.professionals.FindByUserID(ctx, professionalUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return nil, nil, apperrors.NotFound("Professional profile")
	}
	if booking.ProfessionalID != professional.ID {
		return nil, nil, apperrors.Forbidden("This booking belongs to another professional")
	}
	return booking, professional, nil
}

func (s *BookingService) notify(ctx context.Context, kind model.NotificationKind, recipientID string, booking *model.Booking) {
	payload := map[string]any{
		"bookingId":     booking.ID,
		"bookingNumber": booking.BookingNumber,
		"serviceName":   booking.ServiceName,
		"status":        booking.Status,
	}
	if booking.SessionID != nil {
		payload["sessionId"] = *booking.SessionID
	}
	if err := s.notifier.Notify(ctx, kind, recipientID, payload); err != nil {
		log.Warn().
			Err(err).
			Str("bookingId", booking.ID).
			Str("kind", string(kind)).
			Msg("failed to send booking notification")
	}
}
