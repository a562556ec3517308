package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/lamim/scripturai/pkg/models"
)

// MaxKeyLength bounds object keys; Hugging Face and most filesystems reject longer paths
const MaxKeyLength = 1024

// ValidateKey rejects keys that could escape a store's root. Errors wrap
// models.ErrPrecondition: the same key fails again on every attempt.
// It checks for:
//   - Empty keys and keys over MaxKeyLength
//   - Path traversal segments (..)
//   - Absolute paths and backslashes
//   - Control characters
func ValidateKey(key string) error {
	if key == "" {
		return invalidKey("object key cannot be empty")
	}

	if len(key) > MaxKeyLength {
		return invalidKey(fmt.Sprintf("object key exceeds maximum length of %d", MaxKeyLength))
	}

	if strings.HasPrefix(key, "/") {
		return invalidKey(fmt.Sprintf("invalid object key %q: must be relative", key))
	}

	if strings.Contains(key, "\\") {
		return invalidKey(fmt.Sprintf("invalid object key %q: backslashes are not allowed", key))
	}

	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return invalidKey(fmt.Sprintf("invalid object key %q: contains '..' (path traversal attempt)", key))
		}
		if segment == "" || segment == "." {
			return invalidKey(fmt.Sprintf("invalid object key %q: empty path segment", key))
		}
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return invalidKey(fmt.Sprintf("invalid object key %q: contains control characters", key))
		}
	}

	if path.Clean(key) != key {
		return invalidKey(fmt.Sprintf("invalid object key %q: not in canonical form", key))
	}

	return nil
}

func invalidKey(msg string) error {
	return fmt.Errorf("%s: %w", msg, models.ErrPrecondition)
}
