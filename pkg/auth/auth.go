package auth

import (
	"context"
	"errors"
	"net/http"
)

// ErrUnauthorized is returned when authentication is required but not present
// or the presented token is not valid.
var ErrUnauthorized = errors.New("unauthorized: authentication required")

// ErrForbidden is returned when authentication is present but insufficient.
var ErrForbidden = errors.New("forbidden: insufficient permissions")

// User is the identity carried by a verified token.
type User struct {
	ID    string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`

	// TokenID is the jti of the token the user authenticated with.
	TokenID string `json:"-"`
}

type userKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user stored by RequireAuth.
//
// Example:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    user, ok := auth.UserFromContext(r.Context())
//	    if !ok {
//	        // not behind RequireAuth
//	    }
//	}
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey{}).(User)
	return user, ok
}

// Require returns the authenticated user or ErrUnauthorized.
func Require(ctx context.Context) (User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return User{}, ErrUnauthorized
	}
	return user, nil
}

// StatusCode returns the appropriate HTTP status code for an auth error.
// Returns (statusCode, true) for auth errors, (0, false) otherwise.
//
// Example:
//
//	if code, ok := auth.StatusCode(err); ok {
//	    w.WriteHeader(code)
//	}
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, true
	default:
		return 0, false
	}
}

// IsAuthError returns true if the error is an authentication or authorization error.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
