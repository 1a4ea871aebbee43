package storage

import (
	"sync"

	"github.com/aanthord/mtls-relay/internal/ids"
)

// Log is an append-only, process-lifetime sequence of immutable entries.
// A single mutex guards both id generation and the append so that ids never
// collide and append order equals completion order.
type Log[T any] struct {
	mu      sync.RWMutex
	entries []T
	ids     ids.Generator
}

func NewLog[T any](gen ids.Generator) *Log[T] {
	return &Log[T]{ids: gen}
}

// Append generates an id, builds the entry from it and appends it. build runs
// under the write lock and must not block.
func (l *Log[T]) Append(build func(id string) T) (string, T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.ids.NewID()
	entry := build(id)
	l.entries = append(l.entries, entry)
	return id, entry
}

// Cloner is implemented by entries that hold slices or maps, so that readers
// get their own copy instead of memory shared with the log.
type Cloner[T any] interface {
	Clone() T
}

// Snapshot returns a point-in-time copy. It is never nil so that an empty
// store serializes as [].
func (l *Log[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]T, len(l.entries))
	for i, e := range l.entries {
		if c, ok := any(e).(Cloner[T]); ok {
			out[i] = c.Clone()
			continue
		}
		out[i] = e
	}
	return out
}

func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Find returns the entries matching pred, in append order.
func (l *Log[T]) Find(pred func(T) bool) []T {
	out := []T{}
	for _, e := range l.Snapshot() {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
