package auth

import (
	"net/http"
	"strings"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, msg string)

// Middleware resolves the bearer token into a billing.Actor on the request
// context. Requests without an Authorization header pass through unchanged so
// the service can reject mutations itself; malformed or invalid tokens are
// rejected with 401.
func (a *Authenticator) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int, _, msg string) {
			http.Error(w, msg, status)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				onError(w, r, http.StatusUnauthorized, "unauthorized", "malformed authorization header")
				return
			}

			actor, err := a.Parse(raw)
			if err != nil {
				onError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(billing.ContextWithActor(r.Context(), actor)))
		})
	}
}
