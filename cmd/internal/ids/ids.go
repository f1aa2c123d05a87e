// Package ids generates identifiers: ULIDs for messages and connections,
// UUIDs for user identities.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars), sortable by now.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewUserID returns a random (v4) UUID string.
func NewUserID() string {
	return uuid.NewString()
}

// IsUserID reports whether s parses as a UUID.
func IsUserID(s string) bool {
	return uuid.Validate(s) == nil
}
