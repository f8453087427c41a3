package chat

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator hands out message ids of the form msg-<n>-<ulid>. The counter
// keeps ids unique within one controller even if the clock stalls, and the
// ULID keeps them unique across controllers.
type IDGenerator struct {
	mu      sync.Mutex
	n       uint64
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     now,
	}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		// monotonic entropy overflowed within one millisecond; the counter alone is still unique
		return fmt.Sprintf("msg-%d", g.n)
	}
	return fmt.Sprintf("msg-%d-%s", g.n, id)
}
