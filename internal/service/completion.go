package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/audit"
	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/model"
	redisclient "github.com/wellspring/marketplace-server-go/internal/redis"
	"github.com/wellspring/marketplace-server-go/internal/repository"
)

// Locker hands out exclusive per-key leases across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

type CompletionStatus string

const (
	CompletionStatusCompleted CompletionStatus = "completed"
	CompletionStatusError     CompletionStatus = "error"
	CompletionStatusSkipped   CompletionStatus = "skipped"
)

type CompleteSessionResult struct {
	Session           *model.Session        `json:"session"`
	ReviewRequests    []ReviewRequestResult `json:"reviewRequests"`
	TotalParticipants int                   `json:"totalParticipants"`
}

type SessionCompletionResult struct {
	SessionID          string                `json:"sessionId"`
	Title              string                `json:"title"`
	Status             CompletionStatus      `json:"status"`
	ReviewRequestsSent int                   `json:"reviewRequestsSent"`
	ReviewRequests     []ReviewRequestResult `json:"reviewRequests,omitempty"`
	Error              string                `json:"error,omitempty"`
}

type AutoCompleteResult struct {
	CompletedCount int                       `json:"completedCount"`
	Results        []SessionCompletionResult `json:"results"`
}

// CompletionService moves sessions whose time window has elapsed to completed
// and cascades the change to their confirmed bookings.
type CompletionService struct {
	tx            TxRunner
	sessions      repository.SessionRepository
	bookings      repository.BookingRepository
	professionals repository.ProfessionalRepository
	dispatcher    *ReviewRequestDispatcher
	notifier      Notifier
	locker        Locker
	grace         time.Duration
	leaseTTL      time.Duration
	now           func() time.Time
}

// NewCompletionService builds the service. locker may be nil, in which case
// only the status-guarded update protects against concurrent runs.
func NewCompletionService(
	tx TxRunner,
	sessions repository.SessionRepository,
	bookings repository.BookingRepository,
	professionals repository.ProfessionalRepository,
	dispatcher *ReviewRequestDispatcher,
	notifier Notifier,
	locker Locker,
	grace time.Duration,
	leaseTTL time.Duration,
) *CompletionService {
	return &CompletionService{
		tx:            tx,
		sessions:      sessions,
		bookings:      bookings,
		professionals: professionals,
		dispatcher:    dispatcher,
		notifier:      notifier,
		locker:        locker,
		grace:         grace,
		leaseTTL:      leaseTTL,
		now:           time.Now,
	}
}

// CompleteSession completes one session on behalf of its owning professional.
func (s *CompletionService) CompleteSession(ctx context.Context, sessionID, professionalUserID string) (*CompleteSessionResult, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	professional, err := s.professionals.FindByUserID(ctx, professionalUserID)
	if err != nil {
		return nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return nil, apperrors.NotFound("Professional profile")
	}
	if session.ProfessionalID != professional.ID {
		return nil, apperrors.Forbidden("Only the session's professional can complete it")
	}

	next, err := model.SessionMachine.Fire(session.Status, model.SessionEventComplete)
	if err != nil {
		return nil, apperrors.InvalidTransition(err)
	}
	if !session.HasEnded(s.now(), 0) {
		return nil, apperrors.ValidationError("Session has not ended yet")
	}

	release, err := s.acquire(ctx, session.ID)
	if errors.Is(err, redisclient.ErrLeaseHeld) {
		return nil, apperrors.Conflict("Session completion already in progress")
	}
	if err != nil {
		return nil, fmt.Errorf("acquire session lease: %w", err)
	}
	defer release()

	completed, ok, err := s.completeWithBookings(ctx, session, model.SessionMachine.Sources(model.SessionEventComplete))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Conflict("Session status changed, reload and retry")
	}
	session.Status = next

	requests := s.dispatchReviewRequests(ctx, session, professional, completed)

	s.notifyProfessional(ctx, professional, session, requests)

	audit.Log(ctx, audit.Event{
		Type:       audit.EventSessionComplete,
		ActorID:    professionalUserID,
		ActorRole:  string(model.RoleProfessional),
		ResourceID: session.ID,
		Details:    map[string]any{"reviewRequests": len(requests)},
	})

	log.Info().
		Str("sessionId", session.ID).
		Str("professionalId", professional.ID).
		Int("reviewRequests", len(requests)).
		Msg("session completed manually")

	return &CompleteSessionResult{
		Session:           session,
		ReviewRequests:    requests,
		TotalParticipants: len(session.Participants),
	}, nil
}

// AutoCompleteExpiredSessions completes every scheduled session whose end
// time plus grace has passed. Per-session failures are reported in the result;
// only a failing selection query returns an error.
func (s *CompletionService) AutoCompleteExpiredSessions(ctx context.Context) (*AutoCompleteResult, error) {
	cutoff := s.now().Add(-s.grace)

	expired, err := s.sessions.FindExpired(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find expired sessions: %w", err)
	}

	result := &AutoCompleteResult{Results: make([]SessionCompletionResult, 0, len(expired))}
	for i := range expired {
		r := s.autoCompleteOne(ctx, &expired[i])
		if r.Status == CompletionStatusCompleted {
			result.CompletedCount++
		}
		result.Results = append(result.Results, r)
	}

	if len(expired) > 0 {
		log.Info().
			Int("candidates", len(expired)).
			Int("completed", result.CompletedCount).
			Msg("auto-completion run finished")
	}

	return result, nil
}

func (s *CompletionService) autoCompleteOne(ctx context.Context, session *model.Session) SessionCompletionResult {
	r := SessionCompletionResult{SessionID: session.ID, Title: session.Title}

	release, err := s.acquire(ctx, session.ID)
	if errors.Is(err, redisclient.ErrLeaseHeld) {
		r.Status = CompletionStatusSkipped
		r.Error = "completion in progress elsewhere"
		return r
	}
	if err != nil {
		return s.failed(r, session, fmt.Errorf("acquire session lease: %w", err))
	}
	defer release()

	completed, ok, err := s.completeWithBookings(ctx, session, []model.SessionStatus{model.SessionStatusScheduled})
	if err != nil {
		return s.failed(r, session, err)
	}
	if !ok {
		r.Status = CompletionStatusSkipped
		return r
	}
	session.Status = model.SessionStatusCompleted

	professional, err := s.professionals.FindByID(ctx, session.ProfessionalID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("failed to load session professional")
	}

	requests := s.dispatchReviewRequests(ctx, session, professional, completed)

	r.Status = CompletionStatusCompleted
	r.ReviewRequests = requests
	failedRequests := 0
	for _, req := range requests {
		if req.Sent {
			r.ReviewRequestsSent++
		} else {
			failedRequests++
		}
	}
	if failedRequests > 0 {
		r.Error = fmt.Sprintf("%d review request(s) failed", failedRequests)
	}

	s.notifyProfessional(ctx, professional, session, requests)
	return r
}

func (s *CompletionService) failed(r SessionCompletionResult, session *model.Session, err error) SessionCompletionResult {
	log.Error().Err(err).Str("sessionId", session.ID).Msg("session auto-completion failed")
	r.Status = CompletionStatusError
	r.Error = err.Error()
	return r
}

// completeWithBookings moves the session from one of the given statuses to
// completed and its confirmed bookings to completed in one transaction. Any
// failure rolls both back so the session stays selectable for the next run.
// ok is false when the session was no longer in a source status.
func (s *CompletionService) completeWithBookings(ctx context.Context, session *model.Session, from []model.SessionStatus) ([]model.Booking, bool, error) {
	var completed []model.Booking
	ok := false

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		transitioned, err := s.sessions.WithTx(tx).TransitionStatus(ctx, session.ID, from, model.SessionStatusCompleted)
		if err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		if !transitioned {
			return nil
		}

		bookings := s.bookings.WithTx(tx)
		confirmed, err := bookings.FindBySession(ctx, session.ID, []model.BookingStatus{model.BookingStatusConfirmed})
		if err != nil {
			return fmt.Errorf("complete bookings: %w", err)
		}

		completedAt := s.now()
		completed = make([]model.Booking, 0, len(confirmed))
		for _, b := range confirmed {
			next, err := model.BookingMachine.Fire(b.Status, model.BookingEventComplete)
			if err != nil {
				return fmt.Errorf("complete booking %s: %w", b.ID, err)
			}
			done, err := bookings.TransitionStatus(ctx, b.ID, []model.BookingStatus{model.BookingStatusConfirmed}, next)
			if err != nil {
				return fmt.Errorf("complete booking %s: %w", b.ID, err)
			}
			if !done {
				continue
			}
			b.Status = next
			b.CompletedAt = &completedAt
			completed = append(completed, b)
		}

		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return completed, ok, nil
}

// dispatchReviewRequests sends one review request per booking completed by
// the committed transaction.
func (s *CompletionService) dispatchReviewRequests(ctx context.Context, session *model.Session, professional *model.Professional, completed []model.Booking) []ReviewRequestResult {
	requests := make([]ReviewRequestResult, 0, len(completed))
	for _, b := range completed {
		requests = append(requests, s.dispatcher.Dispatch(ctx, b, session, professional))
	}
	return requests
}

func (s *CompletionService) notifyProfessional(ctx context.Context, professional *model.Professional, session *model.Session, requests []ReviewRequestResult) {
	if professional == nil {
		return
	}
	payload := map[string]any{
		"sessionId":      session.ID,
		"sessionTitle":   session.Title,
		"reviewRequests": len(requests),
	}
	if err := s.notifier.Notify(ctx, model.NotificationSessionCompleted, professional.UserID, payload); err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("failed to notify professional of completion")
	}
}

// acquire takes the session lease when a locker is configured. The returned
// release never fails the caller.
func (s *CompletionService) acquire(ctx context.Context, sessionID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, redisclient.SessionLeaseKey(sessionID), s.leaseTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to release session lease")
		}
	}, nil
}
