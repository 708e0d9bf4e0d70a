package platform

import (
	"errors"
	"path/filepath"
)

// ErrRootNotFound is returned by FindRoot when no marker exists up to the
// filesystem root.
var ErrRootNotFound = errors.New("document root not found")

// rootMarkers identify a document root.
var rootMarkers = append([]string{".marginalia", ".git"}, ConfigFiles...)

// FindRoot looks upwards from startDir for a directory holding a system
// directory, a git repository or a configuration file, and returns its
// absolute path.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		for _, marker := range rootMarkers {
			if exists(filepath.Join(dir, marker)) {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}
