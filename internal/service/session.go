package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/audit"
	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/repository"
	"github.com/wellspring/marketplace-server-go/internal/util"
)

type CreateSessionInput struct {
	Title           string                `json:"title" validate:"required,max=200"`
	Description     string                `json:"description" validate:"max=2000"`
	StartTime       time.Time             `json:"startTime" validate:"required"`
	Duration        int                   `json:"duration" validate:"required,min=15,max=480"`
	MaxParticipants int                   `json:"maxParticipants" validate:"required,min=1,max=100"`
	Price           float64               `json:"price" validate:"min=0"`
	Category        model.SessionCategory `json:"category" validate:"required,oneof=individual group online workshop retreat"`
	Location        *string               `json:"location" validate:"omitempty,max=300"`
	MeetingLink     *string               `json:"meetingLink" validate:"omitempty,url"`
}

type UpdateSessionInput struct {
	Title           *string                `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string                `json:"description" validate:"omitempty,max=2000"`
	StartTime       *time.Time             `json:"startTime"`
	Duration        *int                   `json:"duration" validate:"omitempty,min=15,max=480"`
	MaxParticipants *int                   `json:"maxParticipants" validate:"omitempty,min=1,max=100"`
	Price           *float64               `json:"price" validate:"omitempty,min=0"`
	Category        *model.SessionCategory `json:"category" validate:"omitempty,oneof=individual group online workshop retreat"`
	Location        *string                `json:"location" validate:"omitempty,max=300"`
	MeetingLink     *string                `json:"meetingLink" validate:"omitempty,url"`
}

type CancelSessionInput struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type SessionService struct {
	sessions      repository.SessionRepository
	bookings      repository.BookingRepository
	professionals repository.ProfessionalRepository
	notifier      Notifier
	now           func() time.Time
}

func NewSessionService(
	sessions repository.SessionRepository,
	bookings repository.BookingRepository,
	professionals repository.ProfessionalRepository,
	notifier Notifier,
) *SessionService {
	return &SessionService{
		sessions:      sessions,
		bookings:      bookings,
		professionals: professionals,
		notifier:      notifier,
		now:           time.Now,
	}
}

// checkVenue enforces that online sessions carry a meeting link and all other
// categories a location.
func checkVenue(category model.SessionCategory, location, meetingLink *string) error {
	if category == model.SessionCategoryOnline {
		if meetingLink == nil || *meetingLink == "" {
			return apperrors.ValidationError("Validation failed").
				WithDetails(map[string]string{"meetingLink": "is required for online sessions"})
		}
		return nil
	}
	if location == nil || *location == "" {
		return apperrors.ValidationError("Validation failed").
			WithDetails(map[string]string{"location": "is required"})
	}
	return nil
}

func (s *SessionService) CreateSession(ctx context.Context, professionalUserID string, input CreateSessionInput) (*model.Session, error) {
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := checkVenue(input.Category, input.Location, input.MeetingLink); err != nil {
		return nil, err
	}
	if !input.StartTime.After(s.now()) {
		return nil, apperrors.InvalidInput("startTime", "must be in the future")
	}

	professional, err := s.professionals.FindByUserID(ctx, professionalUserID)
	if err != nil {
		return nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return nil, apperrors.NotFound("Professional profile")
	}

	session, err := s.sessions.Create(ctx, model.CreateSessionParams{
		ProfessionalID:  professional.ID,
		Title:           input.Title,
		Description:     input.Description,
		StartTime:       input.StartTime,
		Duration:        input.Duration,
		MaxParticipants: input.MaxParticipants,
		Price:           input.Price,
		Category:        input.Category,
		Location:        input.Location,
		MeetingLink:     input.MeetingLink,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("professionalId", professional.ID).
		Time("startTime", session.StartTime).
		Msg("session created")

	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// UpdateSession edits a scheduled session owned by the professional.
func (s *SessionService) UpdateSession(ctx context.Context, professionalUserID, id string, input UpdateSessionInput) (*model.Session, error) {
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}

	session, err := s.ownedSession(ctx, Actor{UserID: professionalUserID, Role: model.RoleProfessional}, id)
	if err != nil {
		return nil, err
	}
	if !session.IsEditable() {
		return nil, apperrors.Conflict(fmt.Sprintf("A %s session can no longer be edited", session.Status))
	}

	category := session.Category
	if input.Category != nil {
		category = *input.Category
	}
	location := session.Location
	if input.Location != nil {
		location = input.Location
	}
	meetingLink := session.MeetingLink
	if input.MeetingLink != nil {
		meetingLink = input.MeetingLink
	}
	if err := checkVenue(category, location, meetingLink); err != nil {
		return nil, err
	}
	if input.StartTime != nil && !input.StartTime.After(s.now()) {
		return nil, apperrors.InvalidInput("startTime", "must be in the future")
	}
	if input.MaxParticipants != nil && *input.MaxParticipants < len(session.Participants) {
		return nil, apperrors.InvalidInput("maxParticipants", "cannot be below the current participant count")
	}

	updated, err := s.sessions.Update(ctx, id, model.UpdateSessionParams{
		Title:           input.Title,
		Description:     input.Description,
		StartTime:       input.StartTime,
		Duration:        input.Duration,
		MaxParticipants: input.MaxParticipants,
		Price:           input.Price,
		Category:        input.Category,
		Location:        input.Location,
		MeetingLink:     input.MeetingLink,
	})
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if updated == nil {
		return nil, apperrors.Conflict("Session status changed, reload and retry")
	}
	return updated, nil
}

// CancelSession cancels the session and every pending or confirmed booking
// for it, notifying the affected clients.
func (s *SessionService) CancelSession(ctx context.Context, actor Actor, id string, input CancelSessionInput) (*model.Session, error) {
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}

	session, err := s.ownedSession(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next, err := model.SessionMachine.Fire(session.Status, model.SessionEventCancel)
	if err != nil {
		return nil, apperrors.InvalidTransition(err)
	}

	ok, err := s.sessions.TransitionStatus(ctx, session.ID,
		model.SessionMachine.Sources(model.SessionEventCancel), next)
	if err != nil {
		return nil, fmt.Errorf("cancel session: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("Session status changed, reload and retry")
	}
	session.Status = next

	active, err := s.bookings.FindBySession(ctx, session.ID,
		[]model.BookingStatus{model.BookingStatusPending, model.BookingStatusConfirmed})
	if err != nil {
		return nil, fmt.Errorf("find session bookings: %w", err)
	}

	cancelledBy := model.RoleProfessional
	if actor.IsAdmin() {
		cancelledBy = model.RoleAdmin
	}
	for _, b := range active {
		ok, err := s.bookings.Cancel(ctx, model.CancelBookingParams{
			ID:          b.ID,
			CancelledBy: cancelledBy,
			Reason:      input.Reason,
		}, model.BookingMachine.Sources(model.BookingEventCancel))
		if err != nil {
			log.Error().Err(err).Str("bookingId", b.ID).Msg("failed to cancel booking of cancelled session")
			continue
		}
		if !ok {
			continue
		}

		payload := map[string]any{
			"sessionId":     session.ID,
			"sessionTitle":  session.Title,
			"bookingId":     b.ID,
			"bookingNumber": b.BookingNumber,
		}
		if input.Reason != nil {
			payload["reason"] = *input.Reason
		}
		if err := s.notifier.Notify(ctx, model.NotificationSessionCancelled, b.ClientID, payload); err != nil {
			log.Warn().Err(err).Str("bookingId", b.ID).Msg("failed to notify client of session cancellation")
		}
	}

	audit.Log(ctx, audit.Event{
		Type:       audit.EventSessionCancel,
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		ResourceID: session.ID,
		Details:    map[string]any{"bookingsCancelled": len(active)},
	})

	return session, nil
}

// DeleteSession removes a session that no active booking references.
func (s *SessionService) DeleteSession(ctx context.Context, actor Actor, id string) error {
	session, err := s.ownedSession(ctx, actor, id)
	if err != nil {
		return err
	}
	switch session.Status {
	case model.SessionStatusInProgress:
		return apperrors.Conflict("A running session cannot be deleted")
	case model.SessionStatusCompleted:
		// Completed bookings and their reviews point at the session.
		return apperrors.Conflict("A completed session cannot be deleted")
	}

	active, err := s.bookings.CountBySession(ctx, session.ID, []model.BookingStatus{
		model.BookingStatusPending,
		model.BookingStatusConfirmed,
		model.BookingStatusInProgress,
	})
	if err != nil {
		return fmt.Errorf("count session bookings: %w", err)
	}
	if active > 0 {
		return apperrors.Conflict("Session has active bookings").
			WithDetails(map[string]int{"activeBookings": active})
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:       audit.EventSessionDelete,
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		ResourceID: session.ID,
	})
	return nil
}

// ownedSession loads the session and checks the actor owns it. Admins pass.
func (s *SessionService) ownedSession(ctx context.Context, actor Actor, id string) (*model.Session, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return session, nil
	}

	professional, err := s.professionals.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return nil, apperrors.NotFound("Professional profile")
	}
	if session.ProfessionalID != professional.ID {
		return nil, apperrors.Forbidden("This session belongs to another professional")
	}
	return session, nil
}
