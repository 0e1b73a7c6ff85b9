package history

import (
	"iter"
	"slices"
	"sync"
)

// DefaultCapacity is the rolling window size for a session's conversation.
const DefaultCapacity = 10

// Role tags who produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one recorded conversation turn fragment. Immutable once appended.
type Entry struct {
	Role    Role
	Content string
}

// Buffer is a fixed-capacity conversation window with FIFO eviction:
// appending to a full buffer discards the oldest entry. Safe for
// concurrent use.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

// NewBuffer creates a buffer holding at most capacity entries.
// Non-positive capacity falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity}
}

// Append adds an entry at the tail, evicting from the head when full.
func (b *Buffer) Append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
}

// Clear removes all entries.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// All returns a restartable iterator over a point-in-time copy of the
// entries, oldest first. Mutations after the call are not observed.
func (b *Buffer) All() iter.Seq[Entry] {
	b.mu.Lock()
	snap := slices.Clone(b.entries)
	b.mu.Unlock()
	return func(yield func(Entry) bool) {
		for _, e := range snap {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the current number of entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// IsEmpty reports whether the buffer holds no entries.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}
