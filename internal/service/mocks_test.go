package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/wellspring/marketplace-server-go/internal/database"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/repository"
	"github.com/wellspring/marketplace-server-go/internal/sse"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindExpired(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Update(ctx context.Context, id string, params model.UpdateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) TransitionStatus(ctx context.Context, id string, from []model.SessionStatus, to model.SessionStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) AddParticipant(ctx context.Context, id string, userID string) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) RemoveParticipant(ctx context.Context, id string, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *mockSessionRepo) UpdateRating(ctx context.Context, id string, summary model.RatingSummary) error {
	args := m.Called(ctx, id, summary)
	return args.Error(0)
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingRepo) Create(ctx context.Context, params model.CreateBookingParams) (*model.Booking, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingRepo) FindBySession(ctx context.Context, sessionID string, statuses []model.BookingStatus) ([]model.Booking, error) {
	args := m.Called(ctx, sessionID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

func (m *mockBookingRepo) CountBySession(ctx context.Context, sessionID string, statuses []model.BookingStatus) (int, error) {
	args := m.Called(ctx, sessionID, statuses)
	return args.Int(0), args.Error(1)
}

func (m *mockBookingRepo) HasActiveForClient(ctx context.Context, sessionID, clientID string) (bool, error) {
	args := m.Called(ctx, sessionID, clientID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookingRepo) TransitionStatus(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookingRepo) Cancel(ctx context.Context, params model.CancelBookingParams, from []model.BookingStatus) (bool, error) {
	args := m.Called(ctx, params, from)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookingRepo) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]model.Booking, error) {
	args := m.Called(ctx, clientID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

func (m *mockBookingRepo) ListByProfessional(ctx context.Context, professionalID string, limit, offset int) ([]model.Booking, error) {
	args := m.Called(ctx, professionalID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

func (m *mockBookingRepo) FindUnreviewedCompleted(ctx context.Context, professionalID string, since *time.Time) ([]model.Booking, error) {
	args := m.Called(ctx, professionalID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

func (m *mockBookingRepo) CountCompletedSessionBookings(ctx context.Context, professionalID string) (int, error) {
	args := m.Called(ctx, professionalID)
	return args.Int(0), args.Error(1)
}

func (m *mockBookingRepo) FindCompletedForSession(ctx context.Context, clientID, sessionID string) (*model.Booking, error) {
	args := m.Called(ctx, clientID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingRepo) FindCompletedWithProfessional(ctx context.Context, clientID, professionalID string) (*model.Booking, error) {
	args := m.Called(ctx, clientID, professionalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingRepo) WithTx(tx *sqlx.Tx) repository.BookingRepository {
	return m
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, params model.CreateReviewParams) (*model.Review, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *mockReviewRepo) FindByID(ctx context.Context, id string) (*model.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *mockReviewRepo) ExistsForClientContent(ctx context.Context, clientID string, contentType model.ContentType, contentID string) (bool, error) {
	args := m.Called(ctx, clientID, contentType, contentID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepo) List(ctx context.Context, filter model.ReviewFilter) ([]model.Review, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Review), args.Error(1)
}

func (m *mockReviewRepo) UpdateStatus(ctx context.Context, id string, status model.ReviewStatus) (*model.Review, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *mockReviewRepo) SetResponse(ctx context.Context, id string, text string) (*model.Review, error) {
	args := m.Called(ctx, id, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *mockReviewRepo) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepo) Summarize(ctx context.Context, contentType model.ContentType, contentID string) (model.RatingSummary, error) {
	args := m.Called(ctx, contentType, contentID)
	return args.Get(0).(model.RatingSummary), args.Error(1)
}

func (m *mockReviewRepo) UpsertSummary(ctx context.Context, contentType model.ContentType, contentID string, summary model.RatingSummary) error {
	args := m.Called(ctx, contentType, contentID, summary)
	return args.Error(0)
}

func (m *mockReviewRepo) CountByProfessional(ctx context.Context, professionalID string, contentType model.ContentType) (int, error) {
	args := m.Called(ctx, professionalID, contentType)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepo) WithTx(tx *sqlx.Tx) repository.ReviewRepository {
	return m
}

type mockProfessionalRepo struct {
	mock.Mock
}

func (m *mockProfessionalRepo) FindByID(ctx context.Context, id string) (*model.Professional, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Professional), args.Error(1)
}

func (m *mockProfessionalRepo) FindByUserID(ctx context.Context, userID string) (*model.Professional, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Professional), args.Error(1)
}

func (m *mockProfessionalRepo) UpdateRating(ctx context.Context, id string, summary model.RatingSummary) error {
	args := m.Called(ctx, id, summary)
	return args.Error(0)
}

func (m *mockProfessionalRepo) WithTx(tx *sqlx.Tx) repository.ProfessionalRepository {
	return m
}

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, params model.CreateNotificationParams) (*model.Notification, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

func (m *mockNotificationRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	args := m.Called(ctx, recipientID, unreadOnly, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Notification), args.Error(1)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	args := m.Called(ctx, id, recipientID)
	return args.Bool(0), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, kind model.NotificationKind, recipientID string, payload any) error {
	args := m.Called(ctx, kind, recipientID, payload)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, userID string, event sse.Event) error {
	args := m.Called(ctx, userID, event)
	return args.Error(0)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context) error), args.Error(1)
}

type mockSequence struct {
	mock.Mock
}

func (m *mockSequence) Next(ctx context.Context, day time.Time) (int64, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(int64), args.Error(1)
}

// inlineTx runs the callback without a real transaction; the mocks ignore WithTx.
type inlineTx struct{}

func (inlineTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

// recordingTx runs the callback inline and counts the transactions that
// would have been rolled back.
type recordingTx struct {
	commits   int
	rollbacks int
}

func (r *recordingTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	if err := fn(nil); err != nil {
		r.rollbacks++
		return err
	}
	r.commits++
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string {
	return &s
}
