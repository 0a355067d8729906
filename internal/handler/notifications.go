package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/service"
)

type NotificationAPI interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (*service.NotificationList, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type NotificationHandler struct {
	notifications NotificationAPI
	events        *EventsHandler
}

func NewNotificationHandler(notifications NotificationAPI, events *EventsHandler) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		events:        events,
	}
}

func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListNotifications)
	if h.events != nil {
		r.Method(http.MethodGet, "/stream", h.events)
	}
	r.With(requireUUID("id", "Notification")).Post("/{id}/read", h.MarkRead)

	return r
}

// GET /v1/notifications?unread=true
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := ParsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, apperrors.InvalidInput("unread", "must be a boolean"))
			return
		}
	}

	list, err := h.notifications.List(r.Context(), actor.UserID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// POST /v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), actor.UserID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
