package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/canaldelcongreso/portal/pkg/auth"
)

const testSecret = "test-secret"

type testClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, mutate func(*testClaims)) string {
	t.Helper()
	now := time.Now()
	cl := testClaims{
		Email: "editor@canaldelcongreso.gob.mx",
		Role:  "editor",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "canaldelcongreso",
			Subject:   "42",
			ID:        "jti-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(&cl)
	}
	raw, err := jwt.NewWithClaims(method, cl).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return raw
}

func newVerifier(t *testing.T, opts ...auth.VerifierOption) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(testSecret, append([]auth.VerifierOption{auth.WithIssuer("canaldelcongreso")}, opts...)...)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	if _, err := auth.NewVerifier(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestVerify_ValidToken(t *testing.T) {
	v := newVerifier(t)
	raw := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), nil)

	user, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.ID != "42" || user.Email != "editor@canaldelcongreso.gob.mx" || user.Role != "editor" || user.TokenID != "jti-1" {
		t.Fatalf("user = %+v", user)
	}
}

func TestVerify_RejectsInvalidTokens(t *testing.T) {
	tests := []struct {
		name string
		raw  func(t *testing.T) string
	}{
		{"empty", func(*testing.T) string { return "" }},
		{"garbage", func(*testing.T) string { return "not.a.jwt" }},
		{"wrong secret", func(t *testing.T) string {
			return signToken(t, jwt.SigningMethodHS256, []byte("other"), nil)
		}},
		{"expired", func(t *testing.T) string {
			return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), func(c *testClaims) {
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			})
		}},
		{"no expiry", func(t *testing.T) string {
			return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), func(c *testClaims) {
				c.ExpiresAt = nil
			})
		}},
		{"wrong issuer", func(t *testing.T) string {
			return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), func(c *testClaims) {
				c.Issuer = "someone-else"
			})
		}},
		{"missing subject", func(t *testing.T) string {
			return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), func(c *testClaims) {
				c.Subject = ""
			})
		}},
		{"other hmac method", func(t *testing.T) string {
			return signToken(t, jwt.SigningMethodHS512, []byte(testSecret), nil)
		}},
		{"none method", func(t *testing.T) string {
			return signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, nil)
		}},
	}

	v := newVerifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.raw(t))
			if !errors.Is(err, auth.ErrUnauthorized) {
				t.Fatalf("Verify error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

type fakeRedis struct {
	keys map[string]bool
	err  error
	seen []string
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	f.seen = append(f.seen, keys...)
	var n int64
	for _, k := range keys {
		if f.keys[k] {
			n++
		}
	}
	return redis.NewIntResult(n, f.err)
}

func TestVerify_RevokedToken(t *testing.T) {
	rdb := &fakeRedis{keys: map[string]bool{"portal:revoked:jti-1": true}}
	v := newVerifier(t, auth.WithRevocations(auth.NewRedisRevocations(rdb)))

	_, err := v.Verify(context.Background(), signToken(t, jwt.SigningMethodHS256, []byte(testSecret), nil))
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("Verify error = %v, want ErrUnauthorized", err)
	}

	other := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), func(c *testClaims) { c.ID = "jti-2" })
	if _, err := v.Verify(context.Background(), other); err != nil {
		t.Fatalf("Verify(jti-2): %v", err)
	}
	if len(rdb.seen) != 2 || rdb.seen[1] != "portal:revoked:jti-2" {
		t.Fatalf("looked up keys %v", rdb.seen)
	}
}

func TestVerify_RevocationLookupFailure(t *testing.T) {
	boom := errors.New("connection refused")
	rdb := &fakeRedis{err: boom}
	v := newVerifier(t, auth.WithRevocations(auth.NewRedisRevocations(rdb, auth.WithRevocationPrefix("cms:"))))

	_, err := v.Verify(context.Background(), signToken(t, jwt.SigningMethodHS256, []byte(testSecret), nil))
	if !errors.Is(err, boom) {
		t.Fatalf("Verify error = %v, want %v", err, boom)
	}
	if errors.Is(err, auth.ErrUnauthorized) {
		t.Fatal("lookup failures must be distinguishable from invalid tokens")
	}
	if rdb.seen[0] != "cms:jti-1" {
		t.Fatalf("key = %q, want cms:jti-1", rdb.seen[0])
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		ok     bool
	}{
		{nil, 0, false},
		{auth.ErrUnauthorized, http.StatusUnauthorized, true},
		{auth.ErrForbidden, http.StatusForbidden, true},
		{errors.New("other"), 0, false},
	}
	for _, tt := range tests {
		status, ok := auth.StatusCode(tt.err)
		if status != tt.status || ok != tt.ok {
			t.Fatalf("StatusCode(%v) = %d, %v; want %d, %v", tt.err, status, ok, tt.status, tt.ok)
		}
		if auth.IsAuthError(tt.err) != tt.ok {
			t.Fatalf("IsAuthError(%v) = %v", tt.err, !tt.ok)
		}
	}
}

func TestUserFromContext(t *testing.T) {
	if _, ok := auth.UserFromContext(context.Background()); ok {
		t.Fatal("expected no user on empty context")
	}
	if _, err := auth.Require(context.Background()); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("Require error = %v", err)
	}

	ctx := auth.WithUser(context.Background(), auth.User{ID: "7", Role: "admin"})
	user, err := auth.Require(ctx)
	if err != nil || user.ID != "7" {
		t.Fatalf("Require = %+v, %v", user, err)
	}
}
