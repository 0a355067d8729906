package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wellspring/marketplace-server-go/internal/middleware"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/service"
)

type BookingAPI interface {
	CreateBooking(ctx context.Context, clientID string, input service.CreateBookingInput) (*model.Booking, error)
	AcceptBooking(ctx context.Context, professionalUserID, id string) (*model.Booking, error)
	DeclineBooking(ctx context.Context, professionalUserID, id string, input service.CancelBookingInput) (*model.Booking, error)
	CancelBooking(ctx context.Context, actor service.Actor, id string, input service.CancelBookingInput) (*model.Booking, error)
	ListBookings(ctx context.Context, actor service.Actor, limit, offset int) ([]model.Booking, error)
}

type BookingHandler struct {
	bookings BookingAPI
}

func NewBookingHandler(bookings BookingAPI) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

func (h *BookingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	professionalOnly := middleware.RequireRole(model.RoleProfessional)

	r.Get("/", h.ListBookings)
	r.With(middleware.RequireRole(model.RoleClient)).Post("/", h.CreateBooking)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(requireUUID("id", "Booking"))
		r.With(professionalOnly).Post("/accept", h.AcceptBooking)
		r.With(professionalOnly).Post("/decline", h.DeclineBooking)
		r.Post("/cancel", h.CancelBooking)
	})

	return r
}

// POST /v1/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.CreateBookingInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.bookings.CreateBooking(r.Context(), actor.UserID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// GET /v1/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
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

	bookings, err := h.bookings.ListBookings(r.Context(), actor, page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": bookings,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// POST /v1/bookings/{id}/accept
func (h *BookingHandler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.bookings.AcceptBooking(r.Context(), actor.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// POST /v1/bookings/{id}/decline
func (h *BookingHandler) DeclineBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.CancelBookingInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.bookings.DeclineBooking(r.Context(), actor.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// POST /v1/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.CancelBookingInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.bookings.CancelBooking(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}
