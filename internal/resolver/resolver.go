// Package resolver locates the registry store governing a directory.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/starford/filerecords/internal/apperr"
)

// Find searches start and each of its ancestors, up to the file-system root,
// for a directory named storeName. It returns the absolute path of the first
// one found, or apperr.ErrNoRegistry.
func Find(start, storeName string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolver: %w", err)
	}
	for {
		candidate := filepath.Join(dir, storeName)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && info.IsDir():
			return candidate, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("resolver: stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("resolver: %s and its parents: %w", start, apperr.ErrNoRegistry)
		}
		dir = parent
	}
}

// Has reports whether dir itself holds a store named storeName.
func Has(dir, storeName string) bool {
	info, err := os.Stat(filepath.Join(dir, storeName))
	return err == nil && info.IsDir()
}
