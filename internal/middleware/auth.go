package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/audit"
	"github.com/wellspring/marketplace-server-go/internal/auth"
	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/model"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

func GetIdentity(ctx context.Context) *auth.Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*auth.Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"path": r.URL.Path},
			})
			writeError(w, apperrors.InvalidToken("Invalid token"))
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		logger := log.Ctx(ctx).With().Str("userId", identity.UserID).Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil {
				writeError(w, apperrors.Unauthorized("Authentication required"))
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventForbidden,
				ActorID:   identity.UserID,
				ActorRole: string(identity.Role),
				Details:   map[string]any{"path": r.URL.Path},
			})
			writeError(w, apperrors.Forbidden("Insufficient role"))
		})
	}
}

// extractToken reads the bearer header, falling back to the query string
// for EventSource clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
