package service

import (
	"strings"

	"github.com/google/uuid"
)

// newID returns a document ID: a random UUID as 32 lowercase hex digits.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
