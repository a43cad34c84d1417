package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/patternbook/patternbook/pkg/errs"
	"github.com/patternbook/patternbook/pkg/interfaces"
)

// FilesystemStore writes publisher artifacts beneath a root directory.
// Writes land in a temporary file first and are renamed into place, so a
// failed write never leaves a partial page behind.
type FilesystemStore struct {
	root string
}

var _ interfaces.ArtifactStore = (*FilesystemStore)(nil)

// NewFilesystemStore constructs a store rooted at the supplied directory.
func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{root: filepath.Clean(root)}
}

// EnsureDir creates the directory (and parents) relative to the root.
func (s *FilesystemStore) EnsureDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(s.resolve(path), 0o755)
}

// WriteFile persists a single artifact atomically.
func (s *FilesystemStore) WriteFile(ctx context.Context, req interfaces.WriteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.resolve(req.Path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("store: ensure parent for %s: %w", req.Path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".patternbook-*")
	if err != nil {
		return fmt.Errorf("store: temp file for %s: %w", req.Path, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, req.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", req.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close %s: %w", req.Path, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: rename %s: %w", req.Path, err)
	}
	return nil
}

// ReadFile returns the content of a previously written artifact. Missing
// files surface as read errors.
func (s *FilesystemStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, errs.WrapRead(err, fmt.Sprintf("store read %s", path))
	}
	return data, nil
}

// Remove deletes an artifact; missing paths are not an error.
func (s *FilesystemStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.resolve(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove %s: %w", path, err)
	}
	return nil
}

func (s *FilesystemStore) resolve(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}
