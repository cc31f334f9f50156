// Package ids generates opaque, globally unique identifiers that can be
// assigned before a row is inserted (spec §3: "all identifiers are opaque,
// globally unique, assignable before insertion").
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new lexicographically sortable unique ID string.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewAt is like New but stamps the ID with a caller-supplied time, used by
// tests running against a fake clock so generated IDs stay monotonic with
// the simulated timeline.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
