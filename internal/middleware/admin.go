package middleware

import (
	"crypto/subtle"
	"net/http"

	"votecore/pkg/errors"
	"votecore/pkg/logger"
)

// RequireAdminToken guards management routes with a shared X-Admin-Token.
// An empty configured token disables the routes entirely.
func RequireAdminToken(token string, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				WriteError(w, r, errors.NewAuthorizationError("Management endpoints are disabled"), logger)
				return
			}

			supplied := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				logger.WithRequest(r, RequestIDFromContext(r.Context())).
					WithField("client_ip", ClientIP(r)).
					Warn("Rejected management request")
				WriteError(w, r, errors.NewAuthenticationError("Invalid admin token"), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
