// Package ledger implements the bounded set of recently seen content hashes
// that keeps a snapshot from looping through the mesh. Every node marks a
// hash before broadcasting it and refuses to re-apply or re-broadcast a hash
// it has already marked, so a message dies after visiting each node once no
// matter how the peer graph is wired.
package ledger

import "sync"

// DefaultCapacity bounds the ledger when the caller passes a non-positive
// capacity. Loop suppression only needs a short window of history.
const DefaultCapacity = 500

// Ledger is a capacity-bounded set of content hashes, safe for concurrent
// use. Eviction is approximate FIFO: when the set grows past capacity the
// oldest half is discarded in one sweep, amortising cleanup instead of
// shuffling entries on every insert.
type Ledger struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string // insertion order, kept in sync with seen
	cap   int
}

// New returns an empty Ledger holding at most capacity hashes.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		seen: make(map[string]struct{}, capacity),
		cap:  capacity,
	}
}

// Has reports whether hash has been marked and not yet evicted.
func (l *Ledger) Has(hash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[hash]
	return ok
}

// Mark records hash as seen. Marking an already-present hash is a no-op.
func (l *Ledger) Mark(hash string) {
	l.MarkIfNew(hash)
}

// MarkIfNew records hash and reports whether it was new. Check and mark
// happen under one lock acquisition, so of any number of concurrent callers
// presenting the same hash exactly one sees true. Dedup decisions must go
// through this method: a separate Has followed by Mark leaves a window where
// two connections delivering the same hash both see it as new.
func (l *Ledger) MarkIfNew(hash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[hash]; ok {
		return false
	}
	l.seen[hash] = struct{}{}
	l.order = append(l.order, hash)

	if len(l.seen) > l.cap {
		l.evictLocked()
	}
	return true
}

// Len returns the current number of held hashes.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// evictLocked drops the oldest entries until the set is at half capacity.
// Must be called with l.mu held.
func (l *Ledger) evictLocked() {
	target := l.cap / 2
	drop := 0
	for _, h := range l.order {
		if len(l.seen) <= target {
			break
		}
		delete(l.seen, h)
		drop++
	}
	l.order = append(l.order[:0], l.order[drop:]...)
}
