package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/util"
)

// requireUUID answers 404 for resource when the named path parameter is not a
// UUID, so malformed ids never reach a uuid column.
func requireUUID(param, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !util.IsValidUUID(chi.URLParam(r, param)) {
				writeError(w, apperrors.NotFound(resource))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
