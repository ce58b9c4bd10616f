package upload

import (
	"context"
	"path/filepath"
	"strings"
)

// Object is a validated upload ready to be persisted.
type Object struct {
	// Subdir is the directory under the storage root (audio, documents
	// or an image category).
	Subdir string

	// Name is the generated filename, including extension.
	Name string

	// ContentType is the detected MIME type.
	ContentType string

	// Data is the full file content.
	Data []byte
}

// Store is the interface for upload storage backends.
// Implementations must refuse any Subdir that resolves outside their root
// and must not leave a partial object behind on failure.
type Store interface {
	// Put persists obj. A location outside the root yields ErrInvalidUploadType.
	Put(ctx context.Context, obj Object) error

	// URL returns the public URL of a stored object.
	URL(subdir, name string) string
}

// ResolveDir joins subdir onto root and verifies, after normalization, that
// the result is root itself or a descendant of it. It returns the cleaned
// directory or ErrInvalidUploadType.
func ResolveDir(root, subdir string) (string, error) {
	base := filepath.Clean(root)
	dir := filepath.Clean(filepath.Join(base, subdir))
	if !withinDir(base, dir) {
		return "", ErrInvalidUploadType
	}
	return dir, nil
}

func withinDir(base, target string) bool {
	if target == base {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}

// validName reports whether name is a single, plain path element.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && strings.IndexByte(name, 0) == -1
}
