package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/service"
)

func TestNotificationHandler_ListNotifications(t *testing.T) {
	t.Run("unread filter", func(t *testing.T) {
		notifications := new(mockNotificationAPI)
		router := NewNotificationHandler(notifications, nil).Routes()
		notifications.On("List", mock.Anything, "client-1", true, 10, 0).Return(&service.NotificationList{
			Notifications: []model.Notification{{ID: testNotificationID, Kind: model.NotificationReviewRequest}},
			UnreadCount:   1,
		}, nil)

		rec := serve(router, http.MethodGet, "/?unread=true&limit=10", "", clientIdentity)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"unreadCount":1`)
		notifications.AssertExpectations(t)
	})

	t.Run("bad unread flag", func(t *testing.T) {
		notifications := new(mockNotificationAPI)
		router := NewNotificationHandler(notifications, nil).Routes()

		rec := serve(router, http.MethodGet, "/?unread=maybe", "", clientIdentity)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		notifications.AssertNumberOfCalls(t, "List", 0)
	})

	t.Run("unexpected errors are hidden", func(t *testing.T) {
		notifications := new(mockNotificationAPI)
		router := NewNotificationHandler(notifications, nil).Routes()
		notifications.On("List", mock.Anything, "client-1", false, DefaultLimit, 0).Return(nil, errors.New("pq: connection reset"))

		rec := serve(router, http.MethodGet, "/", "", clientIdentity)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "pq:")
	})
}

func TestNotificationHandler_MarkRead(t *testing.T) {
	notifications := new(mockNotificationAPI)
	router := NewNotificationHandler(notifications, nil).Routes()
	notifications.On("MarkRead", mock.Anything, testNotificationID, "client-1").Return(nil)
	notifications.On("MarkRead", mock.Anything, otherNotificationID, "client-1").Return(apperrors.NotFound("Notification"))

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodPost, "/"+testNotificationID+"/read", "", clientIdentity).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/"+otherNotificationID+"/read", "", clientIdentity).Code)

	rec := serve(router, http.MethodPost, "/abc/read", "", clientIdentity)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Notification not found", decodeError(t, rec).Error)
	notifications.AssertNumberOfCalls(t, "MarkRead", 2)
}

func TestNotificationHandler_StreamRoute(t *testing.T) {
	router := NewNotificationHandler(new(mockNotificationAPI), NewEventsHandler(&fakeStream{})).Routes()

	rec := serve(router, http.MethodGet, "/stream", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
