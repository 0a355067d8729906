package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/middleware"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/service"
	"github.com/wellspring/marketplace-server-go/internal/util"
)

type ReviewAPI interface {
	CreateReview(ctx context.Context, clientID string, input service.CreateReviewInput) (*model.Review, error)
	GetReview(ctx context.Context, id string) (*model.Review, error)
	ListReviews(ctx context.Context, filter model.ReviewFilter) ([]model.Review, error)
	UpdateReviewStatus(ctx context.Context, actor service.Actor, id string, input service.UpdateReviewStatusInput) (*model.Review, error)
	RespondToReview(ctx context.Context, professionalUserID, id string, input service.RespondToReviewInput) (*model.Review, error)
	DeleteReview(ctx context.Context, actor service.Actor, id string) error
	GetReviewStats(ctx context.Context, professionalUserID string) (*model.ReviewStats, error)
}

type ReminderAPI interface {
	SendReviewReminders(ctx context.Context, professionalUserID string) (*service.ReminderResult, error)
}

type ReviewHandler struct {
	reviews   ReviewAPI
	reminders ReminderAPI
}

func NewReviewHandler(reviews ReviewAPI, reminders ReminderAPI) *ReviewHandler {
	return &ReviewHandler{
		reviews:   reviews,
		reminders: reminders,
	}
}

func (h *ReviewHandler) Routes() chi.Router {
	r := chi.NewRouter()

	professionalOnly := middleware.RequireRole(model.RoleProfessional)

	r.Get("/", h.ListReviews)
	r.With(middleware.RequireRole(model.RoleClient)).Post("/", h.CreateReview)
	r.With(professionalOnly).Get("/stats", h.GetReviewStats)
	r.With(professionalOnly).Post("/reminders", h.SendReviewReminders)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(requireUUID("id", "Review"))
		r.Get("/", h.GetReview)
		r.With(middleware.RequireRole(model.RoleAdmin)).Patch("/status", h.UpdateReviewStatus)
		r.With(professionalOnly).Post("/response", h.RespondToReview)
		r.Delete("/", h.DeleteReview)
	})

	return r
}

// POST /v1/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.CreateReviewInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), actor.UserID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, review)
}

// GET /v1/reviews?contentType=&contentId=
// Non-admins only see approved reviews.
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()
	filter := model.ReviewFilter{
		ContentType:    model.ContentType(q.Get("contentType")),
		ContentID:      q.Get("contentId"),
		ProfessionalID: q.Get("professionalId"),
		Status:         model.ReviewStatus(q.Get("status")),
		Limit:          page.Limit,
		Offset:         page.Offset,
	}
	if filter.ContentType != "" && !util.IsValidEnum(string(filter.ContentType), []string{
		string(model.ContentTypeProduct),
		string(model.ContentTypeEvent),
		string(model.ContentTypeSession),
		string(model.ContentTypeProfessional),
	}) {
		writeError(w, apperrors.InvalidInput("contentType", "unknown content type"))
		return
	}
	if filter.ProfessionalID != "" && !util.IsValidUUID(filter.ProfessionalID) {
		writeError(w, apperrors.InvalidInput("professionalId", "must be a UUID"))
		return
	}
	if !actor.IsAdmin() {
		filter.Status = model.ReviewStatusApproved
	}

	reviews, err := h.reviews.ListReviews(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reviews": reviews,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// GET /v1/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.GetReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, review)
}

// PATCH /v1/reviews/{id}/status
func (h *ReviewHandler) UpdateReviewStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.UpdateReviewStatusInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	review, err := h.reviews.UpdateReviewStatus(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, review)
}

// POST /v1/reviews/{id}/response
func (h *ReviewHandler) RespondToReview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.RespondToReviewInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	review, err := h.reviews.RespondToReview(r.Context(), actor.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, review)
}

// DELETE /v1/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.reviews.DeleteReview(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/reviews/stats
func (h *ReviewHandler) GetReviewStats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.reviews.GetReviewStats(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// POST /v1/reviews/reminders
func (h *ReviewHandler) SendReviewReminders(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.reminders.SendReviewReminders(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
