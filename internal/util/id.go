package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUID string used as a row or job identifier.
func NewID() string {
	return uuid.NewString()
}

// IsID reports whether s is a well-formed UUID.
func IsID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
