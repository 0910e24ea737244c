// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/ports/secondary"
)

// LibraryAdapter implements secondary.FileSystem on the local disk.
type LibraryAdapter struct{}

// NewLibraryAdapter creates a new filesystem library adapter.
func NewLibraryAdapter() *LibraryAdapter {
	return &LibraryAdapter{}
}

// Abs returns the absolute, cleaned form of path.
func (a *LibraryAdapter) Abs(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return abs, nil
}

// Exists reports whether path exists.
func (a *LibraryAdapter) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path is a directory.
func (a *LibraryAdapter) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path is a regular file.
func (a *LibraryAdapter) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ListNames returns the names of the entries in dir.
func (a *LibraryAdapter) ListNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// WalkSources returns every MOBI file beneath root, in lexical order.
// A symlinked root is followed and the results stay under the link.
// Unreadable subdirectories are skipped.
func (a *LibraryAdapter) WalkSources(root string) ([]string, error) {
	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	var sources []string
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == walkRoot {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !conversion.IsSourceFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return err
		}
		sources = append(sources, filepath.Join(root, rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return sources, nil
}

// Remove deletes a single file.
func (a *LibraryAdapter) Remove(path string) error {
	return os.Remove(path)
}

// Ensure LibraryAdapter implements the interface
var _ secondary.FileSystem = (*LibraryAdapter)(nil)
