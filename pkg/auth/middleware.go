package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware enforces bearer-token authentication on API routes.
type Middleware struct {
	secret  string
	enabled bool
	logger  *zap.Logger
}

// NewMiddleware builds the auth middleware. When verification is disabled
// (local development) requests run as a fixed local user.
func NewMiddleware(secret string, enabled bool, logger *zap.Logger) *Middleware {
	return &Middleware{secret: secret, enabled: enabled, logger: logger.Named("auth")}
}

// RequireAuth wraps a handler, rejecting requests without a valid token and
// storing the principal's user ID in the request context.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next(w, r.WithContext(WithUserID(r.Context(), "local-dev")))
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, `{"error":"unauthorized","message":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}

		claims, err := VerifyToken(token, m.secret)
		if err != nil {
			m.logger.Debug("Token rejected", zap.Error(err))
			http.Error(w, `{"error":"unauthorized","message":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(WithUserID(r.Context(), claims.UserID())))
	}
}
