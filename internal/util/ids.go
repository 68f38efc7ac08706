package util

import (
	cryptoRand "crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(cryptoRand.Reader, 0)
)

// GenerateUUID returns a random v4 identifier for movements, events and notifications.
// It panics only if the system entropy source fails.
func GenerateUUID() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// GenerateULID returns a time-sortable identifier. IDs generated within the same millisecond
// remain strictly increasing, so ledger entries can be ordered by ID as a tie-breaker.
func GenerateULID(t time.Time) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), ulidEntropy).String()
}
