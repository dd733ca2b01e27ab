package util

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID string.
// ULIDs are time-sortable, which keeps the action log in insertion order.
func NewULID() string {
	return NewULIDWithTime(time.Now())
}

// NewULIDWithTime generates a ULID for a specific time.
func NewULIDWithTime(t time.Time) string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ParseULID parses a ULID string and returns its timestamp.
func ParseULID(s string) (time.Time, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}

// ShortID abbreviates a record ID for narrow columns. UUIDs keep their
// first group; ULIDs keep the last 7 characters, which carry the entropy.
func ShortID(id string) string {
	if head, _, ok := strings.Cut(id, "-"); ok && len(id) == 36 {
		return strings.ToLower(head)
	}
	if len(id) <= 7 {
		return strings.ToLower(id)
	}
	return strings.ToLower(id[len(id)-7:])
}
