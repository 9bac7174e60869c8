package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"

	dErrors "certhub/pkg/domain-errors"
	"certhub/pkg/platform/httputil"
	"certhub/pkg/requestcontext"
)

// KeyParam is the query parameter carrying the admin secret.
const KeyParam = "key"

// RequireAdminKey admits requests whose ?key= equals secret. With no secret
// configured every request is refused.
func RequireAdminKey(secret string, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Query().Get(KeyParam)
			// constant-time to avoid leaking the secret through timing
			if secret == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
				logger.Warn().
					Str("request_id", requestcontext.RequestID(r.Context())).
					Str("client_ip", requestcontext.ClientIP(r.Context())).
					Str("path", r.URL.Path).
					Bool("secret_configured", secret != "").
					Msg("admin key mismatch")
				httputil.WriteFailure(w, http.StatusForbidden, dErrors.CodeForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireDebug admits requests only when diagnostics are enabled.
func RequireDebug(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				httputil.WriteFailure(w, http.StatusForbidden, dErrors.CodeForbidden, "debug endpoints are disabled")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
