package upload

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Form field names.
const (
	FileField     = "file"
	CategoryField = "type"
)

// maxMemory is how much of a multipart body is kept in memory while
// parsing; larger parts spill to temporary files.
const maxMemory = 32 << 20

// Config holds configuration for the upload handler.
type Config struct {
	// MaxRequestSize caps the whole request body in bytes.
	// Default: MaxAudioSize plus 1MB for multipart framing.
	MaxRequestSize int64
}

// DefaultConfig returns a Config sized for the largest media class.
func DefaultConfig() *Config {
	return &Config{
		MaxRequestSize: MaxAudioSize + MB,
	}
}

// Handler returns an http.Handler for file uploads.
// Mount this on your router: r.Post("/api/upload", upload.Handler(p))
//
// The handler expects a multipart form with a "file" field and an
// optional "type" field. It responds with the JSON Result on success and
// {"error": "..."} otherwise.
func Handler(p *Pipeline) http.Handler {
	return HandlerWithConfig(p, DefaultConfig())
}

// HandlerWithConfig returns an upload handler with custom configuration.
func HandlerWithConfig(p *Pipeline, config *Config) http.Handler {
	maxSize := config.MaxRequestSize
	if maxSize <= 0 {
		maxSize = DefaultConfig().MaxRequestSize
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		// Limit request body size before parsing
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)

		if err := r.ParseMultipartForm(maxMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				p.report(reject(ErrTooLarge, "File too large"))
				writeError(w, http.StatusBadRequest, "File too large")
				return
			}
			p.report(rejectDefault(ErrMissingFile))
			writeError(w, http.StatusBadRequest, msgMissingFile)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile(FileField)
		if err != nil {
			p.report(rejectDefault(ErrMissingFile))
			writeError(w, http.StatusBadRequest, msgMissingFile)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			p.report(err)
			writeError(w, http.StatusInternalServerError, msgUnexpected)
			return
		}

		res, err := p.Process(r.Context(), Request{
			Filename: header.Filename,
			Category: r.FormValue(CategoryField),
			Data:     data,
		})
		if err != nil {
			var re *RejectError
			if errors.As(err, &re) {
				writeError(w, http.StatusBadRequest, re.Message)
				return
			}
			writeError(w, http.StatusInternalServerError, msgUnexpected)
			return
		}

		writeJSON(w, http.StatusOK, res)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
