package ids

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator hands out identifiers. Implementations must be safe for
// concurrent use.
type Generator interface {
	NewID() string
}

type uuidGenerator struct{}

// NewUUIDGenerator returns random (v4) UUIDs in their 36-char canonical form.
func NewUUIDGenerator() Generator {
	return uuidGenerator{}
}

func (uuidGenerator) NewID() string {
	return uuid.New().String()
}

// ULIDGenerator produces lexically sortable ids: a millisecond timestamp
// followed by a random suffix that is incremented monotonically when two ids
// fall in the same millisecond.
type ULIDGenerator struct {
	prefix  string
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewULIDGenerator(prefix string) *ULIDGenerator {
	return &ULIDGenerator{
		prefix:  prefix,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewID panics if the monotonic suffix overflows within one millisecond;
// that would mean a duplicate id and callers treat it as fatal.
func (g *ULIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
	return g.prefix + id.String()
}

// NewRequestID returns a fresh correlation id for a relayed call.
func NewRequestID() string {
	return uuid.New().String()
}
