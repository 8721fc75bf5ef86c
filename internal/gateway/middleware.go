package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/auth"
)

type identityKey struct{}

func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

type Authenticator struct {
	validator *auth.TokenValidator
	logger    *slog.Logger
}

func NewAuthenticator(validator *auth.TokenValidator, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		validator: validator,
		logger:    logger,
	}
}

// Require rejects requests without a valid bearer token and stores the
// caller's identity on the request context.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			writeError(w, a.logger, http.StatusUnauthorized, "missing bearer token")
			return
		}

		identity, err := a.validator.Validate(token)
		if err != nil {
			a.logger.Info("rejected token", "error", err, "path", r.URL.Path)
			writeError(w, a.logger, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	}
}

func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.Require(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFromContext(r.Context())
		if !identity.IsAdmin() {
			writeError(w, a.logger, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	})
}
