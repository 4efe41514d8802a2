// Package pathutil provides utilities for safe path handling.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath is returned for an empty path argument.
	ErrEmptyPath = errors.New("path is empty")
	// ErrNullBytes is returned when a path contains a NUL byte.
	ErrNullBytes = errors.New("path contains null bytes")
	// ErrOutsideRoot is returned when a path resolves outside its root.
	ErrOutsideRoot = errors.New("path escapes root directory")
)

// ValidatePath cleans a path and resolves symlinks so that traversal via
// links is visible to callers. A path that does not exist yet is returned
// cleaned.
func ValidatePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "\x00") {
		return "", ErrNullBytes
	}

	realPath, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		return cleaned, nil
	}
	return realPath, nil
}

// ValidateWithin validates path and checks it stays under root once
// symlinks are resolved.
func ValidateWithin(root, path string) (string, error) {
	cleanRoot, err := ValidatePath(root)
	if err != nil {
		return "", err
	}
	cleanPath, err := ValidatePath(path)
	if err != nil {
		return "", err
	}

	absRoot, err := filepath.Abs(cleanRoot)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return cleanPath, nil
}

// ReadFile validates path and returns the file content.
func ReadFile(path string) ([]byte, error) {
	cleanPath, err := ValidatePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return os.ReadFile(cleanPath) // #nosec G304 - path is validated above
}

// IsPathSafe performs basic safety checks on a path.
// Returns true if the path appears safe for file operations.
func IsPathSafe(path string) bool {
	if path == "" || strings.Contains(path, "\x00") {
		return false
	}

	cleaned := filepath.Clean(path)
	return !strings.HasPrefix(cleaned, ".."+string(filepath.Separator))
}
