package upload

import "errors"

// ErrMissingFile is returned when the request carries no file part.
var ErrMissingFile = errors.New("upload: no file provided")

// ErrUndeterminableType is returned when neither the content nor the
// filename identify a supported type.
var ErrUndeterminableType = errors.New("upload: unable to determine file type")

// ErrTooLarge is returned when a file exceeds the ceiling of its media class.
var ErrTooLarge = errors.New("upload: file too large")

// ErrDisallowedType is returned when the detected type is not allowed.
var ErrDisallowedType = errors.New("upload: file type not allowed")

// ErrInvalidUploadType is returned when the resolved storage location
// escapes the storage root.
var ErrInvalidUploadType = errors.New("upload: invalid upload type")

// Messages shown to the caller for rejections without a computed message.
const (
	msgMissingFile       = "No file provided"
	msgUndeterminable    = "Unable to determine file type. Please upload a valid PDF, Word document, image or audio file"
	msgInvalidUploadType = "Invalid upload type"
	msgUnexpected        = "Error processing request"
)

// RejectError is a validation failure that is reported to the caller
// with a 400 status. Message is safe to show; Err classifies the failure.
type RejectError struct {
	Err     error
	Message string
}

func (e *RejectError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

func reject(err error, msg string) *RejectError {
	return &RejectError{Err: err, Message: msg}
}

// rejectDefault wraps a sentinel with its fixed caller-facing message.
func rejectDefault(err error) error {
	switch {
	case errors.Is(err, ErrMissingFile):
		return reject(ErrMissingFile, msgMissingFile)
	case errors.Is(err, ErrUndeterminableType):
		return reject(ErrUndeterminableType, msgUndeterminable)
	case errors.Is(err, ErrInvalidUploadType):
		return reject(ErrInvalidUploadType, msgInvalidUploadType)
	default:
		return err
	}
}

// IsRejection reports whether err is a caller-facing validation failure.
func IsRejection(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

// Reason returns a short, low-cardinality label for a pipeline error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingFile):
		return "missing_file"
	case errors.Is(err, ErrUndeterminableType):
		return "undeterminable_type"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrDisallowedType):
		return "disallowed_type"
	case errors.Is(err, ErrInvalidUploadType):
		return "path_escape"
	default:
		return "internal"
	}
}
