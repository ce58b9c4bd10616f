package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/canaldelcongreso/portal/internal/errors"
	"github.com/canaldelcongreso/portal/pkg/upload"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "portal.json"

	// EnvPrefix prefixes every environment override (PORTAL_SERVER_ADDR, ...).
	EnvPrefix = "PORTAL"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultUploadRoot is the disk storage root, relative to the config dir.
	DefaultUploadRoot = "public/uploads"

	// DefaultURLPrefix is the public path the disk root is served under.
	DefaultURLPrefix = "/uploads"
)

// Storage backends.
const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// Config represents the complete portal.json configuration.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Storage selects and configures where uploads are written.
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Upload contains upload endpoint limits.
	Upload UploadConfig `json:"upload" mapstructure:"upload"`

	// Auth configures token verification on the upload endpoint.
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Redis configures the token revocation list.
	Redis RedisConfig `json:"redis" mapstructure:"redis"`

	// Database configures the PostgreSQL pool.
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// Log configures the process logger.
	Log LogConfig `json:"log" mapstructure:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr,omitempty" mapstructure:"addr"`

	// ReadHeaderTimeout bounds header reads (e.g., "10s").
	ReadHeaderTimeout string `json:"readHeaderTimeout,omitempty" mapstructure:"readHeaderTimeout"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "15s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" mapstructure:"shutdownTimeout"`

	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers
	// are believed when logging the client address.
	TrustedProxies []string `json:"trustedProxies,omitempty" mapstructure:"trustedProxies"`
}

// StorageConfig selects the upload store.
type StorageConfig struct {
	// Backend is "disk" (default) or "s3".
	Backend string `json:"backend,omitempty" mapstructure:"backend"`

	// Root is the disk storage root.
	Root string `json:"root,omitempty" mapstructure:"root"`

	// URLPrefix is the public path of the disk root.
	URLPrefix string `json:"urlPrefix,omitempty" mapstructure:"urlPrefix"`

	// S3 configures the S3 backend.
	S3 S3Config `json:"s3" mapstructure:"s3"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Endpoint  string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	Region    string `json:"region,omitempty" mapstructure:"region"`
	Bucket    string `json:"bucket,omitempty" mapstructure:"bucket"`
	Prefix    string `json:"prefix,omitempty" mapstructure:"prefix"`
	AccessKey string `json:"accessKey,omitempty" mapstructure:"accessKey"`
	SecretKey string `json:"secretKey,omitempty" mapstructure:"secretKey"`
	PathStyle bool   `json:"pathStyle,omitempty" mapstructure:"pathStyle"`

	// PublicURL is the base URL objects are served from.
	PublicURL string `json:"publicUrl,omitempty" mapstructure:"publicUrl"`
}

// UploadConfig contains upload endpoint limits.
type UploadConfig struct {
	// MaxRequestBytes caps the multipart body. Default: the audio ceiling plus 1MB.
	MaxRequestBytes int64 `json:"maxRequestBytes,omitempty" mapstructure:"maxRequestBytes"`
}

// AuthConfig configures token verification.
type AuthConfig struct {
	// Enabled gates POST /api/upload behind a valid token cookie.
	Enabled bool `json:"enabled,omitempty" mapstructure:"enabled"`

	// Secret is the HS256 signing secret. Prefer PORTAL_AUTH_SECRET.
	Secret string `json:"secret,omitempty" mapstructure:"secret"`

	// Issuer, when set, must match the iss claim.
	Issuer string `json:"issuer,omitempty" mapstructure:"issuer"`

	// CookieName is the cookie carrying the token (default "auth_token").
	CookieName string `json:"cookieName,omitempty" mapstructure:"cookieName"`
}

// RedisConfig configures the token revocation list. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" mapstructure:"addr"`
	Password string `json:"password,omitempty" mapstructure:"password"`
	DB       int    `json:"db,omitempty" mapstructure:"db"`
	Prefix   string `json:"prefix,omitempty" mapstructure:"prefix"`
}

// DatabaseConfig configures the PostgreSQL pool. Empty URL disables it.
type DatabaseConfig struct {
	URL      string `json:"url,omitempty" mapstructure:"url"`
	MaxConns int32  `json:"maxConns,omitempty" mapstructure:"maxConns"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error (default "info").
	Level string `json:"level,omitempty" mapstructure:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format,omitempty" mapstructure:"format"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              DefaultAddr,
			ReadHeaderTimeout: "10s",
			ShutdownTimeout:   "15s",
		},
		Storage: StorageConfig{
			Backend:   BackendDisk,
			Root:      DefaultUploadRoot,
			URLPrefix: DefaultURLPrefix,
		},
		Upload: UploadConfig{
			MaxRequestBytes: upload.DefaultConfig().MaxRequestSize,
		},
		Auth: AuthConfig{
			CookieName: "auth_token",
		},
		Redis: RedisConfig{
			Prefix: "portal:revoked:",
		},
		Database: DatabaseConfig{
			MaxConns: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// A missing portal.json is not an error: defaults and the environment
// are used instead.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	cfg, err := LoadFile(path)
	if err != nil {
		if errors.CodeOf(err) == "P100" {
			cfg = New()
			cfg.configPath = path
			cfg.applyDefaults()
			if err := cfg.applyEnv(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from the specified file path and applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("P100").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				Wrap(err)
		}
		return nil, errors.New("P101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("P101").
			WithDetail("Failed to parse " + path + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process
// environment without overriding variables that are already set.
// A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.New("P101").WithDetail("Failed to load " + path).Wrap(err)
	}
	return nil
}

// envKeys lists every setting that can be overridden from the
// environment. PORTAL_ plus the upper-cased key with dots and camel-case
// boundaries turned into underscores: storage.s3.publicUrl is
// PORTAL_STORAGE_S3_PUBLIC_URL.
var envKeys = []string{
	"server.addr",
	"server.readHeaderTimeout",
	"server.shutdownTimeout",
	"server.trustedProxies",
	"storage.backend",
	"storage.root",
	"storage.urlPrefix",
	"storage.s3.endpoint",
	"storage.s3.region",
	"storage.s3.bucket",
	"storage.s3.prefix",
	"storage.s3.accessKey",
	"storage.s3.secretKey",
	"storage.s3.pathStyle",
	"storage.s3.publicUrl",
	"upload.maxRequestBytes",
	"auth.enabled",
	"auth.secret",
	"auth.issuer",
	"auth.cookieName",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.prefix",
	"database.url",
	"database.maxConns",
	"log.level",
	"log.format",
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	b.WriteByte('_')
	for i, r := range key {
		switch {
		case r == '.':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && key[i-1] != '.' {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteString(strings.ToUpper(string(r)))
		}
	}
	return b.String()
}

// applyEnv overlays environment variables onto c. Only variables that
// are set are applied.
func (c *Config) applyEnv() error {
	v := viper.New()
	for _, key := range envKeys {
		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return errors.New("P101").Wrap(err)
		}
	}
	if err := v.Unmarshal(c); err != nil {
		return errors.New("P101").
			WithDetail("Invalid environment override").
			Wrap(err)
	}
	c.applyDefaults()
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadHeaderTimeout == "" {
		c.Server.ReadHeaderTimeout = "10s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendDisk
	}
	if c.Storage.Root == "" {
		c.Storage.Root = DefaultUploadRoot
	}
	if c.Storage.URLPrefix == "" {
		c.Storage.URLPrefix = DefaultURLPrefix
	}

	if c.Upload.MaxRequestBytes == 0 {
		c.Upload.MaxRequestBytes = upload.DefaultConfig().MaxRequestSize
	}

	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "auth_token"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "portal:revoked:"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 4
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return errors.New("P103").
			WithDetail("server.addr is " + c.Server.Addr).
			Wrap(err)
	}
	for name, value := range map[string]string{
		"server.readHeaderTimeout": c.Server.ReadHeaderTimeout,
		"server.shutdownTimeout":   c.Server.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return errors.Newf(errors.CategoryConfig, "%s: invalid duration %q", name, value)
		}
	}

	switch c.Storage.Backend {
	case BackendDisk:
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("P106")
		}
	default:
		return errors.New("P102").
			WithDetail("storage.backend is " + `"` + c.Storage.Backend + `"`)
	}

	if c.Upload.MaxRequestBytes < 0 {
		return errors.New("P107")
	}

	if c.Auth.Enabled && c.Auth.Secret == "" {
		return errors.New("P104")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return errors.New("P105").WithDetail("log.level is " + c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("P105").WithDetail("log.format is " + c.Log.Format)
	}

	return nil
}

// UploadRoot returns the absolute path to the disk storage root.
func (c *Config) UploadRoot() string {
	if filepath.IsAbs(c.Storage.Root) {
		return c.Storage.Root
	}
	return filepath.Join(c.Dir(), c.Storage.Root)
}

// ReadHeaderTimeout returns server.readHeaderTimeout as a duration.
func (c *Config) ReadHeaderTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ReadHeaderTimeout)
	return d
}

// ShutdownTimeout returns server.shutdownTimeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}
