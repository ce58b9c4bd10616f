// Package config loads the portal configuration.
//
// Settings come from portal.json next to the binary's working directory,
// overlaid by PORTAL_* environment variables. A .env file is loaded into
// the environment first for local development.
//
// # Configuration File Structure
//
//	{
//	  "server":   { "addr": ":8080", "shutdownTimeout": "15s", "trustedProxies": ["10.0.0.0/8"] },
//	  "storage":  {
//	    "backend": "disk",
//	    "root": "public/uploads",
//	    "urlPrefix": "/uploads",
//	    "s3": { "bucket": "media", "region": "us-east-1", "publicUrl": "https://cdn.example.org" }
//	  },
//	  "upload":   { "maxRequestBytes": 525336576 },
//	  "auth":     { "enabled": true, "issuer": "canaldelcongreso" },
//	  "redis":    { "addr": "localhost:6379" },
//	  "database": { "url": "postgres://portal@localhost/portal" },
//	  "log":      { "level": "info", "format": "json" }
//	}
//
// Every key can be overridden from the environment: auth.secret is
// PORTAL_AUTH_SECRET and storage.s3.publicUrl is
// PORTAL_STORAGE_S3_PUBLIC_URL.
//
// # Usage
//
//	_ = config.LoadDotEnv(".env")
//	cfg, err := config.Load(".")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
