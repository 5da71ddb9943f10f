package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
)

// Resolve joins rel onto root and checks that the result, with every
// existing component's symlinks resolved, stays within root.
func Resolve(root, rel string) (string, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("cannot resolve project root %q: %w", root, err)
	}

	joined := filepath.Join(realRoot, rel)
	if filepath.IsAbs(rel) {
		joined = filepath.Clean(rel)
	}

	resolved, err := resolveExistingPath(joined)
	if err != nil {
		return "", cberr.PathOutsideRoot(rel)
	}
	if !isWithinRoot(resolved, realRoot) {
		return "", cberr.PathOutsideRoot(rel)
	}
	return resolved, nil
}

// resolveExistingPath resolves a path by finding the deepest existing ancestor,
// fully resolving it via EvalSymlinks, then appending the non-existent tail.
func resolveExistingPath(path string) (string, error) {
	current := path
	var tail []string

	for {
		_, err := os.Lstat(current)
		if err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				return "", fmt.Errorf("cannot resolve path %q: %w", current, err)
			}
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return filepath.Clean(resolved), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return filepath.Clean(path), nil
		}
		tail = append(tail, filepath.Base(current))
		current = parent
	}
}

// isWithinRoot checks if path is within or equal to root.
func isWithinRoot(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
