package memory

import (
	"fmt"
	"strings"
)

// Entry is one resource. Keys are /-separated relative paths.
type Entry struct {
	Key   string
	Value []byte
}

// ValidateKey rejects keys that are empty, absolute, or that escape the
// key space with "." or ".." segments.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, segment := range strings.Split(key, "/") {
		switch segment {
		case "", ".", "..":
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
