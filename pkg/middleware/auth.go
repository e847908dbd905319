package middleware

import (
	"errors"
	"net/http"

	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	httputil "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/http"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
)

// Authenticate verifies the bearer token and stores the resolved principal in the
// request context. Token problems are 401; resolver failures keep their own status.
func Authenticate(verifier *auth.Verifier, resolver auth.PrincipalResolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r)
			if err != nil {
				rejectUnauthorized(w, r, log, err)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				rejectUnauthorized(w, r, log, err)
				return
			}

			principal, err := resolver.ResolvePrincipal(r.Context(), claims)
			if err != nil {
				if apperrors.HasCode(err, apperrors.CodeUnauthorized) {
					rejectUnauthorized(w, r, log, err)
					return
				}
				log.FromContext(r.Context()).Error("Failed to resolve principal", "subject", claims.Subject, "error", err)
				_ = httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func rejectUnauthorized(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	level := log.FromContext(r.Context())
	if errors.Is(err, auth.ErrMissingToken) {
		level.Debug("Request without bearer token", "path", r.URL.Path)
	} else {
		level.Warn("Authentication failed", "path", r.URL.Path, "error", err)
	}
	_ = httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
}
