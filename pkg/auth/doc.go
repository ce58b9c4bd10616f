// Package auth verifies the CMS session token on protected endpoints.
//
// The CMS login issues an HS256 JWT in the auth_token cookie with the
// claims sub, email and role. This package only verifies tokens; issuing
// them belongs to the login flow.
//
//	v, err := auth.NewVerifier(secret,
//	    auth.WithIssuer("canaldelcongreso"),
//	    auth.WithRevocations(auth.NewRedisRevocations(rdb)),
//	)
//	r.With(auth.RequireAuth(v)).Post("/api/upload", uploadHandler)
//
// Handlers read the caller with UserFromContext.
package auth
