package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the token payload issued by the CMS login.
type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with a shared secret.
type Verifier struct {
	secret      []byte
	issuer      string
	leeway      time.Duration
	revocations Revocations
	now         func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) {
		v.issuer = issuer
	}
}

// WithLeeway tolerates clock skew when checking exp and nbf.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.leeway = d
	}
}

// WithRevocations checks every token's jti against r.
func WithRevocations(r Revocations) VerifierOption {
	return func(v *Verifier) {
		v.revocations = r
	}
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string, opts ...VerifierOption) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: empty token secret")
	}
	v := &Verifier{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify parses raw, checks its signature, method, expiry and issuer, and
// consults the revocation list when one is configured. Every failure
// wraps ErrUnauthorized except revocation lookup errors, which are
// returned as-is.
func (v *Verifier) Verify(ctx context.Context, raw string) (User, error) {
	if raw == "" {
		return User{}, ErrUnauthorized
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(v.leeway))
	}

	var cl claims
	tkn, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !tkn.Valid || cl.Subject == "" {
		return User{}, fmt.Errorf("%w: %w", ErrUnauthorized, jwt.ErrTokenInvalidClaims)
	}

	if v.revocations != nil && cl.ID != "" {
		revoked, err := v.revocations.IsRevoked(ctx, cl.ID)
		if err != nil {
			return User{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return User{}, fmt.Errorf("%w: token revoked", ErrUnauthorized)
		}
	}

	return User{
		ID:      cl.Subject,
		Email:   cl.Email,
		Role:    cl.Role,
		TokenID: cl.ID,
	}, nil
}
