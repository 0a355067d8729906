package handler

import (
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/httputil"
	"github.com/wellspring/marketplace-server-go/internal/middleware"
	"github.com/wellspring/marketplace-server-go/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return apperrors.InvalidInput("body", "request body too large")
	}
	return apperrors.InvalidInput("body", "malformed JSON")
}

// actorFrom returns the authenticated caller. The auth middleware guarantees
// one on every /v1 route; the check guards handlers mounted without it.
func actorFrom(r *http.Request) (service.Actor, error) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		return service.Actor{}, apperrors.Unauthorized("Authentication required")
	}
	return service.Actor{UserID: identity.UserID, Role: identity.Role}, nil
}
