// Package memory provides the layered conversation memory: a bounded
// per-user recent buffer, a semantic similarity store, and the assembler
// that merges them with durable facts into one grounding block.
package memory

import (
	"sync"
	"time"
)

// Record is one remembered conversation turn.
type Record struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Match is a semantic search hit: a record annotated with its
// similarity score against the query.
type Match struct {
	Record
	Score float32 `json:"score"`
}

// Buffer holds the in-process recent history for each user, bounded to
// a fixed cap with oldest-first eviction. It is safe for concurrent use
// across users; runs for the same user are serialized by the agent loop.
type Buffer struct {
	mu       sync.RWMutex
	cap      int
	users    map[string][]Record
	appended map[string]int // total messages ever appended, survives trimming
}

// NewBuffer creates a buffer with the given per-user cap.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 50
	}
	return &Buffer{
		cap:      capacity,
		users:    make(map[string][]Record),
		appended: make(map[string]int),
	}
}

// Append adds a record to a user's history, evicting the oldest entry
// once the cap is exceeded. It returns the user's lifetime appended
// count, which the write path uses to pace fact extraction.
func (b *Buffer) Append(userID string, rec Record) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := append(b.users[userID], rec)
	if len(entries) > b.cap {
		entries = entries[len(entries)-b.cap:]
	}
	b.users[userID] = entries

	b.appended[userID]++
	return b.appended[userID]
}

// Recent returns the last k records for a user, oldest first. The
// returned slice is a copy.
func (b *Buffer) Recent(userID string, k int) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.users[userID]
	if k > 0 && len(entries) > k {
		entries = entries[len(entries)-k:]
	}

	out := make([]Record, len(entries))
	copy(out, entries)
	return out
}

// Contains reports whether any buffered record for the user has exactly
// this content. The assembler uses it to drop semantic matches that
// would duplicate recent history.
func (b *Buffer) Contains(userID, content string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, rec := range b.users[userID] {
		if rec.Content == content {
			return true
		}
	}
	return false
}

// Len returns the number of buffered records for a user.
func (b *Buffer) Len(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.users[userID])
}
