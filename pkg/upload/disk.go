package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// DiskStore stores uploads on the local filesystem below a fixed root,
// typically "<app-root>/public/uploads", which the web server exposes at
// URLPrefix.
type DiskStore struct {
	root      string
	urlPrefix string
}

// NewDiskStore creates a new DiskStore.
//
// Parameters:
//   - root: Directory that contains every stored upload
//   - urlPrefix: Public URL path the root is served under (e.g. "/uploads")
func NewDiskStore(root, urlPrefix string) (*DiskStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/"
	}
	return &DiskStore{root: abs, urlPrefix: urlPrefix}, nil
}

// Root returns the absolute storage root.
func (s *DiskStore) Root() string {
	return s.root
}

// Put writes obj to <root>/<subdir>/<name>, creating the subdirectory if
// needed. Existing files are never overwritten.
func (s *DiskStore) Put(_ context.Context, obj Object) error {
	dir, err := ResolveDir(s.root, obj.Subdir)
	if err != nil {
		return err
	}
	if !validName(obj.Name) {
		return ErrInvalidUploadType
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	p := filepath.Join(dir, obj.Name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}

	if _, err := f.Write(obj.Data); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("close upload file: %w", err)
	}
	return nil
}

// URL returns the public path of a stored file.
func (s *DiskStore) URL(subdir, name string) string {
	return path.Join(s.urlPrefix, subdir, name)
}
