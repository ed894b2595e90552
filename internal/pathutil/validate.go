// Package pathutil provides path validation utilities for securing file operations.
// Config files and environment variables feed heatup's artifact paths (trace
// database, tick log), so writes are validated against a small set of allowed
// directory trees instead of landing wherever an override points.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/.heatup/config.yaml" becomes ".../.heatup/config.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath checks that a file path is within one of the allowed directory
// trees. The path is cleaned, made absolute, and symlink-resolved before the
// check, so neither dot-dot traversal nor a symlinked directory can route a
// write outside the allowed trees.
func ValidatePath(path string, allowedDirs []string) error {
	if path == "" {
		return fmt.Errorf("path validation failed: path is empty")
	}
	if len(allowedDirs) == 0 {
		return fmt.Errorf("path validation failed: no allowed directories configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	resolved, err := resolveWritePath(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	for _, dir := range allowedDirs {
		if within(resolved, dir) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(resolved))
}

// resolveWritePath returns the absolute, symlink-resolved form of a path that
// may not exist yet: symlinks are resolved on the deepest existing ancestor
// and the not-yet-created tail is appended back unchanged.
func resolveWritePath(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}

	existing := abs
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return "", fmt.Errorf("no existing ancestor for %s", RedactPath(abs))
		}
		tail = append(tail, filepath.Base(existing))
		existing = parent
	}
}

// within reports whether path sits at or under root once root is resolved the
// same way as the candidate path.
func within(path, root string) bool {
	resolvedRoot, err := resolveWritePath(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(resolvedRoot, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// StateDir returns heatup's per-user state directory, ~/.heatup. The default
// config file and trace database live here.
func StateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".heatup"), nil
}

// DefaultAllowedWriteDirs returns the trees heatup writes run artifacts into:
// the working directory, the state directory, and the system temp directory.
func DefaultAllowedWriteDirs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	stateDir, err := StateDir()
	if err != nil {
		return nil, err
	}
	return []string{cwd, stateDir, os.TempDir()}, nil
}
