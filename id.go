package vectordb

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// idMu serializes timestamp/counter bookkeeping so ids generated within the
// same process, even in the same millisecond, still sort strictly
// increasing.
var (
	idMu         sync.Mutex
	lastIDMillis int64
	idSeq        uint32
)

// NewID produces an opaque identifier that is lexicographically sortable
// by creation time: a zero-padded millisecond timestamp, a per-millisecond
// sequence counter disambiguating same-millisecond calls, and a random
// suffix (sourced from crypto/rand, falling back to a UUID-derived value
// should that ever fail) guarding against cross-process collisions.
func NewID() string {
	idMu.Lock()
	now := time.Now().UnixMilli()
	if now == lastIDMillis {
		idSeq++
	} else {
		lastIDMillis = now
		idSeq = 0
	}
	seq := idSeq
	idMu.Unlock()

	return fmt.Sprintf("%013d-%04d-%s", now, seq, randomSuffix())
}

func randomSuffix() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return fmt.Sprintf("%016x", binary.BigEndian.Uint64(buf[:]))
	}
	return uuid.NewString()
}
