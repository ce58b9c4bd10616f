package upload

import (
	"fmt"
	"strings"
)

// Category is the caller-supplied logical bucket for an upload. It only
// selects the subdirectory of image uploads.
type Category string

// Known categories.
const (
	CategoryGeneral    Category = "general"
	CategoryNews       Category = "news"
	CategoryRadio      Category = "radio"
	CategoryPrograms   Category = "programs"
	CategoryOrgans     Category = "organs"
	CategoryDefensoria Category = "defensoria"
	CategoryDocuments  Category = "documents"
)

// DefaultCategory replaces any category outside the allow-list.
const DefaultCategory = CategoryGeneral

var categories = map[Category]bool{
	CategoryGeneral:    true,
	CategoryNews:       true,
	CategoryRadio:      true,
	CategoryPrograms:   true,
	CategoryOrgans:     true,
	CategoryDefensoria: true,
	CategoryDocuments:  true,
}

// NormalizeCategory returns s when it names a known category and
// DefaultCategory otherwise. Unknown values are coerced, not rejected.
func NormalizeCategory(s string) Category {
	c := Category(s)
	if categories[c] {
		return c
	}
	return DefaultCategory
}

// MediaClass is the coarse grouping that drives size limits and the
// storage subdirectory.
type MediaClass string

const (
	ClassImage    MediaClass = "image"
	ClassAudio    MediaClass = "audio"
	ClassDocument MediaClass = "document"
)

// MB is the unit used for size ceilings and in rejection messages.
const MB = 1024 * 1024

// Size ceilings per media class. A file of exactly the ceiling is accepted.
const (
	MaxImageSize    int64 = 10 * MB
	MaxAudioSize    int64 = 500 * MB
	MaxDocumentSize int64 = 50 * MB
)

// AllowedTypes is the final type allow-list, checked after detection.
var AllowedTypes = []string{
	TypeJPEG,
	TypePNG,
	TypeGIF,
	TypeWebP,
	TypeMP3,
	"audio/mp3",
	"audio/mpeg3",
	TypePDF,
	TypeDOC,
	TypeDOCX,
}

var allowedTypes = func() map[string]bool {
	m := make(map[string]bool, len(AllowedTypes))
	for _, t := range AllowedTypes {
		m[t] = true
	}
	return m
}()

// storedExtensions picks the on-disk extension from the detected type.
var storedExtensions = map[string]string{
	TypeJPEG:      ".jpg",
	TypePNG:       ".png",
	TypeGIF:       ".gif",
	TypeWebP:      ".webp",
	TypeMP3:       ".mp3",
	"audio/mp3":   ".mp3",
	"audio/mpeg3": ".mp3",
	TypePDF:       ".pdf",
	TypeDOC:       ".doc",
	TypeDOCX:      ".docx",
}

var documentTypes = map[string]bool{
	TypePDF:  true,
	TypeDOC:  true,
	TypeDOCX: true,
}

// Storage subdirectories for non-image classes.
const (
	AudioDir    = "audio"
	DocumentDir = "documents"
)

// ClassOf returns the media class of a detected MIME type. Anything that is
// neither audio nor a document is treated as an image.
func ClassOf(mime string) MediaClass {
	switch {
	case strings.HasPrefix(mime, "audio/"):
		return ClassAudio
	case documentTypes[mime]:
		return ClassDocument
	default:
		return ClassImage
	}
}

// MaxSize returns the size ceiling of a media class in bytes.
func MaxSize(class MediaClass) int64 {
	switch class {
	case ClassAudio:
		return MaxAudioSize
	case ClassDocument:
		return MaxDocumentSize
	default:
		return MaxImageSize
	}
}

// CheckSize rejects sizes above the ceiling of class.
func CheckSize(class MediaClass, size int64) error {
	limit := MaxSize(class)
	if size <= limit {
		return nil
	}
	return reject(ErrTooLarge, fmt.Sprintf("File too large. Maximum size for %s files is %dMB", class, limit/MB))
}

// IsAllowedType reports whether mime is on the final allow-list.
func IsAllowedType(mime string) bool {
	return allowedTypes[mime]
}

// CheckType rejects detected types outside the allow-list.
func CheckType(mime string) error {
	if IsAllowedType(mime) {
		return nil
	}
	return reject(ErrDisallowedType, "File type not allowed. Accepted formats: JPG, PNG, GIF, WEBP, MP3, PDF, DOC, DOCX")
}

// ExtensionFor returns the stored extension for an allowed type.
func ExtensionFor(mime string) (string, bool) {
	ext, ok := storedExtensions[mime]
	return ext, ok
}

// Subdir returns the storage subdirectory for an upload. Audio goes to
// AudioDir, which also catches any original filename ending in ".mp3".
// Documents go to DocumentDir and images to their category.
func Subdir(class MediaClass, category Category, originalName string) string {
	switch {
	case class == ClassAudio || strings.HasSuffix(strings.ToLower(originalName), ".mp3"):
		return AudioDir
	case class == ClassDocument:
		return DocumentDir
	default:
		return string(category)
	}
}
