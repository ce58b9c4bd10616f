package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
)

// DefaultCookieName is the cookie the CMS login sets.
const DefaultCookieName = "auth_token"

type middlewareConfig struct {
	cookieName string
	logger     *slog.Logger
}

// MiddlewareOption configures RequireAuth.
type MiddlewareOption func(*middlewareConfig)

// WithCookieName sets the cookie the token is read from.
func WithCookieName(name string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.cookieName = name
	}
}

// WithLogger sets the logger used for revocation lookup failures.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.logger = l
	}
}

// RequireAuth returns HTTP middleware that requires a valid token cookie.
// Requests without one get 401 {"error":"Unauthorized"}. The verified
// user is available to handlers through UserFromContext.
//
// Usage:
//
//	r.With(auth.RequireAuth(verifier)).Post("/api/upload", h)
func RequireAuth(v *Verifier, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	config := middlewareConfig{
		cookieName: DefaultCookieName,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(config.cookieName)
			if err != nil {
				writeAuthError(w, ErrUnauthorized)
				return
			}

			user, err := v.Verify(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, ErrUnauthorized) {
					config.logger.Warn("token verification failed", "error", err)
				}
				// Fail closed: an unreachable revocation list rejects the request.
				writeAuthError(w, ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRole returns middleware that requires the authenticated user to
// hold one of roles. It must run after RequireAuth.
//
// Usage:
//
//	r.With(auth.RequireAuth(v), auth.RequireRole("admin", "editor")).Post(...)
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := Require(r.Context())
			if err != nil {
				writeAuthError(w, err)
				return
			}
			if !slices.Contains(roles, user.Role) {
				writeAuthError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	status, ok := StatusCode(err)
	if !ok {
		status = http.StatusUnauthorized
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
}
