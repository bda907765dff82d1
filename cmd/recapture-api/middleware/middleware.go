// Package middleware provides HTTP middleware for the RecaptureDocs API.
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recapturedocs/recapturedocs/internal/observability"
)

// InvitationConfig gates uploads behind a shared invitation code.
type InvitationConfig struct {
	Required bool
	Code     string
}

// Invitation rejects uploads that do not carry the configured invitation
// code, taken from the X-Invitation-Code header or else the "code" form
// field. Bodies larger than maxBytes are rejected.
func Invitation(cfg InvitationConfig, maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Required {
				next.ServeHTTP(w, r)
				return
			}

			code := r.Header.Get("X-Invitation-Code")
			if code == "" {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
				if err := r.ParseMultipartForm(maxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
					http.Error(w, `{"error": "invalid form"}`, http.StatusBadRequest)
					return
				}
				code = r.FormValue("code")
			}

			if subtle.ConstantTimeCompare([]byte(code), []byte(cfg.Code)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error": "a valid invitation code is required to use RecaptureDocs at this time"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TraceID copies the chi request id into the context so that loggers
// built with WithContext carry it.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.ContextWithTraceID(r.Context(), id))
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

// CORS returns CORS middleware for browser clients.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Invitation-Code")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
