// Package ids generates identifiers: UUIDs for sessions and orders, and
// monotonic ULIDs for timeline messages so that ids minted in the same
// millisecond still sort in creation order.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

func NewSessionID() string { return uuid.New().String() }

func NewOrderID() string { return uuid.New().String() }

func NewMessageID() string {
	return newULID(time.Now()).String()
}

func newULID(t time.Time) ulid.ULID {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}
