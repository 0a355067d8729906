package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wellspring/marketplace-server-go/internal/auth"
	"github.com/wellspring/marketplace-server-go/internal/httputil"
	"github.com/wellspring/marketplace-server-go/internal/middleware"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/service"
)

// serve sends a request through h as the given caller. A nil identity sends
// the request unauthenticated.
func serve(h http.Handler, method, target string, body string, identity *auth.Identity) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if identity != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), identity))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

var (
	clientIdentity       = &auth.Identity{UserID: "client-1", Role: model.RoleClient}
	professionalIdentity = &auth.Identity{UserID: "pro-user-1", Role: model.RoleProfessional}
	adminIdentity        = &auth.Identity{UserID: "admin-1", Role: model.RoleAdmin}
)

const (
	testSessionID       = "3f1c9a52-7d84-4b6e-9c20-5a8e1d7f4b13"
	testBookingID       = "b7e2d4f1-0c3a-4e59-8d16-2f9a7c5e3b80"
	testReviewID        = "e5a8c3d2-91f4-47b0-a6e3-8d2c1b9f0a57"
	testNotificationID  = "0d6f2b9e-4a17-4c83-b5e8-7f3a2c1d9e64"
	otherNotificationID = "9a4e7c1b-2d58-4f06-8b39-c6e1f0a2d7b5"
)

type mockSessionAPI struct {
	mock.Mock
}

func (m *mockSessionAPI) CreateSession(ctx context.Context, professionalUserID string, input service.CreateSessionInput) (*model.Session, error) {
	args := m.Called(ctx, professionalUserID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionAPI) GetSession(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionAPI) ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionAPI) UpdateSession(ctx context.Context, professionalUserID, id string, input service.UpdateSessionInput) (*model.Session, error) {
	args := m.Called(ctx, professionalUserID, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionAPI) CancelSession(ctx context.Context, actor service.Actor, id string, input service.CancelSessionInput) (*model.Session, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionAPI) DeleteSession(ctx context.Context, actor service.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockCompletionAPI struct {
	mock.Mock
}

func (m *mockCompletionAPI) CompleteSession(ctx context.Context, sessionID, professionalUserID string) (*service.CompleteSessionResult, error) {
	args := m.Called(ctx, sessionID, professionalUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CompleteSessionResult), args.Error(1)
}

func (m *mockCompletionAPI) AutoCompleteExpiredSessions(ctx context.Context) (*service.AutoCompleteResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AutoCompleteResult), args.Error(1)
}

type mockBookingAPI struct {
	mock.Mock
}

func (m *mockBookingAPI) CreateBooking(ctx context.Context, clientID string, input service.CreateBookingInput) (*model.Booking, error) {
	args := m.Called(ctx, clientID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingAPI) AcceptBooking(ctx context.Context, professionalUserID, id string) (*model.Booking, error) {
	args := m.Called(ctx, professionalUserID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingAPI) DeclineBooking(ctx context.Context, professionalUserID, id string, input service.CancelBookingInput) (*model.Booking, error) {
	args := m.Called(ctx, professionalUserID, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingAPI) CancelBooking(ctx context.Context, actor service.Actor, id string, input service.CancelBookingInput) (*model.Booking, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *mockBookingAPI) ListBookings(ctx context.Context, actor service.Actor, limit, offset int) ([]model.Booking, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

type mockReviewAPI struct {
	mock.Mock
}

func (m *mockReviewAPI) CreateReview(ctx context.Context, clientID string, input service.CreateReviewInput) (*model.Review, error) {
	args := m.Called(ctx, clientID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *mockReviewAPI) GetReview(ctx context.Context, id string) (*model.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *mockReviewAPI) ListReviews(ctx context.Context, filter model.ReviewFilter) ([]model.Review, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Review), args.Error(1)
}

func (m *mockReviewAPI) UpdateReviewStatus(ctx context.Context, actor service.Actor, id string, input service.UpdateReviewStatusInput) (*model.Review, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *mockReviewAPI) RespondToReview(ctx context.Context, professionalUserID, id string, input service.RespondToReviewInput) (*model.Review, error) {
	args := m.Called(ctx, professionalUserID, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Review), args.Error(1)
}

func (m *mockReviewAPI) DeleteReview(ctx context.Context, actor service.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockReviewAPI) GetReviewStats(ctx context.Context, professionalUserID string) (*model.ReviewStats, error) {
	args := m.Called(ctx, professionalUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReviewStats), args.Error(1)
}

type mockReminderAPI struct {
	mock.Mock
}

func (m *mockReminderAPI) SendReviewReminders(ctx context.Context, professionalUserID string) (*service.ReminderResult, error) {
	args := m.Called(ctx, professionalUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReminderResult), args.Error(1)
}

type mockNotificationAPI struct {
	mock.Mock
}

func (m *mockNotificationAPI) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (*service.NotificationList, error) {
	args := m.Called(ctx, userID, unreadOnly, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.NotificationList), args.Error(1)
}

func (m *mockNotificationAPI) MarkRead(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}
