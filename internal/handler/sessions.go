package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wellspring/marketplace-server-go/internal/audit"
	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/middleware"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/service"
	"github.com/wellspring/marketplace-server-go/internal/util"
)

type SessionAPI interface {
	CreateSession(ctx context.Context, professionalUserID string, input service.CreateSessionInput) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.Session, error)
	UpdateSession(ctx context.Context, professionalUserID, id string, input service.UpdateSessionInput) (*model.Session, error)
	CancelSession(ctx context.Context, actor service.Actor, id string, input service.CancelSessionInput) (*model.Session, error)
	DeleteSession(ctx context.Context, actor service.Actor, id string) error
}

type CompletionAPI interface {
	CompleteSession(ctx context.Context, sessionID, professionalUserID string) (*service.CompleteSessionResult, error)
	AutoCompleteExpiredSessions(ctx context.Context) (*service.AutoCompleteResult, error)
}

type SessionHandler struct {
	sessions   SessionAPI
	completion CompletionAPI
}

func NewSessionHandler(sessions SessionAPI, completion CompletionAPI) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		completion: completion,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	professionalOnly := middleware.RequireRole(model.RoleProfessional)
	professionalOrAdmin := middleware.RequireRole(model.RoleProfessional, model.RoleAdmin)

	r.Get("/", h.ListSessions)
	r.With(professionalOnly).Post("/", h.CreateSession)
	r.With(middleware.RequireRole(model.RoleAdmin)).Post("/auto-complete", h.AutoComplete)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(requireUUID("id", "Session"))
		r.Get("/", h.GetSession)
		r.With(professionalOnly).Patch("/", h.UpdateSession)
		r.With(professionalOrAdmin).Delete("/", h.DeleteSession)
		r.With(professionalOrAdmin).Post("/cancel", h.CancelSession)
		r.With(professionalOnly).Post("/complete", h.CompleteSession)
	})

	return r
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.CreateSessionInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), actor.UserID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// GET /v1/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	filter, err := parseSessionFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	sessions, err := h.sessions.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

func parseSessionFilter(r *http.Request) (model.SessionFilter, error) {
	q := r.URL.Query()
	filter := model.SessionFilter{
		ProfessionalID: q.Get("professionalId"),
		Status:         model.SessionStatus(q.Get("status")),
		Category:       model.SessionCategory(q.Get("category")),
	}

	if filter.ProfessionalID != "" && !util.IsValidUUID(filter.ProfessionalID) {
		return filter, apperrors.InvalidInput("professionalId", "must be a UUID")
	}
	if filter.Status != "" && !util.IsValidEnum(string(filter.Status), []string{
		string(model.SessionStatusScheduled),
		string(model.SessionStatusInProgress),
		string(model.SessionStatusCompleted),
		string(model.SessionStatusCancelled),
	}) {
		return filter, apperrors.InvalidInput("status", "unknown session status")
	}
	if filter.Category != "" && !util.IsValidEnum(string(filter.Category), []string{
		string(model.SessionCategoryIndividual),
		string(model.SessionCategoryGroup),
		string(model.SessionCategoryOnline),
		string(model.SessionCategoryWorkshop),
		string(model.SessionCategoryRetreat),
	}) {
		return filter, apperrors.InvalidInput("category", "unknown session category")
	}

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.InvalidInput(name, "must be an RFC 3339 timestamp")
		}
		*dst = &t
	}

	return filter, nil
}

// GET /v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// PATCH /v1/sessions/{id}
func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.UpdateSessionInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessions.UpdateSession(r.Context(), actor.UserID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// POST /v1/sessions/{id}/cancel
func (h *SessionHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input service.CancelSessionInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessions.CancelSession(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// DELETE /v1/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sessions.DeleteSession(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/sessions/{id}/complete
func (h *SessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.completion.CompleteSession(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/sessions/auto-complete
// Runs one completion pass on demand, the same pass the background job runs.
func (h *SessionHandler) AutoComplete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.completion.AutoCompleteExpiredSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventAutoCompleteRun,
		ActorID:   actor.UserID,
		ActorRole: string(actor.Role),
		Details: map[string]any{
			"completed": result.CompletedCount,
			"examined":  len(result.Results),
		},
	})

	writeJSON(w, http.StatusOK, result)
}
