package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (P100-P119)
	// ============================================

	"P100": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Suggestion: "Create portal.json or pass --config with the path to one",
	},
	"P101": {
		Category:   CategoryConfig,
		Message:    "Invalid config file",
		Suggestion: "Check that portal.json is valid JSON",
	},
	"P102": {
		Category:   CategoryConfig,
		Message:    "Unknown storage backend",
		Suggestion: `Set storage.backend to "disk" or "s3"`,
	},
	"P103": {
		Category:   CategoryConfig,
		Message:    "Invalid listen address",
		Suggestion: `Use host:port, e.g. ":8080"`,
	},
	"P104": {
		Category:   CategoryConfig,
		Message:    "Token secret missing",
		Suggestion: "Set auth.secret or PORTAL_AUTH_SECRET, or disable auth",
	},
	"P105": {
		Category:   CategoryConfig,
		Message:    "Invalid log setting",
		Suggestion: `log.level is one of debug, info, warn, error; log.format is "text" or "json"`,
	},
	"P106": {
		Category:   CategoryConfig,
		Message:    "S3 bucket missing",
		Suggestion: "Set storage.s3.bucket when storage.backend is s3",
	},
	"P107": {
		Category:   CategoryConfig,
		Message:    "Invalid request size limit",
		Suggestion: "upload.maxRequestBytes must be positive",
	},

	// ============================================
	// Storage Errors (P120-P139)
	// ============================================

	"P120": {
		Category:   CategoryStorage,
		Message:    "Upload root not usable",
		Suggestion: "Check that the upload root exists or can be created and is writable",
	},

	// ============================================
	// Database Errors (P140-P159)
	// ============================================

	"P140": {
		Category:   CategoryDatabase,
		Message:    "Database unreachable",
		Suggestion: "Check database.url and that PostgreSQL is running",
	},
	"P141": {
		Category:   CategoryDatabase,
		Message:    "Redis unreachable",
		Suggestion: "Check redis.addr or disable the revocation list",
	},

	// ============================================
	// CLI Errors (P160-P179)
	// ============================================

	"P160": {
		Category:   CategoryCLI,
		Message:    "Cannot read file",
		Suggestion: "Check the path and permissions",
	},
	"P161": {
		Category: CategoryCLI,
		Message:  "Server failed",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
