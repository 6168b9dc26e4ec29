// Package archive provides the durable, append-only per-user enrollment
// archive. It is independent of any index structure: the gesture path
// matches directly against it, and the face/voice identity indexes can be
// rebuilt from it.
package archive

import "sync"

// Store is an append-only map of user id to enrolled samples.
// It uses a copy-on-write snapshot of the per-user slices so that readers
// never observe a partially applied append. Safe for concurrent use.
type Store[T any] struct {
	mu      sync.RWMutex
	samples map[string][]T
	total   int
}

// Snapshot is an opaque capture of the store state, used to roll back an
// append whose durability flush failed.
type Snapshot[T any] struct {
	samples map[string][]T
	total   int
}

// New creates an empty archive store.
func New[T any]() *Store[T] {
	return &Store[T]{samples: make(map[string][]T)}
}

// Append adds sample to userID's list, creating the list if absent.
// Samples are never overwritten, deduplicated or pruned by the store.
func (s *Store[T]) Append(userID string, sample T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[userID] = append(s.samples[userID], sample)
	s.total++
}

// Samples returns the stored samples for userID, or an empty slice if none.
// The returned slice aliases internal storage; callers must not mutate it.
func (s *Store[T]) Samples(userID string) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samples[userID]
}

// Count returns the number of samples stored for userID.
func (s *Store[T]) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples[userID])
}

// Len returns the total number of samples across all users.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Users returns the number of users with at least one sample.
func (s *Store[T]) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Export returns a shallow copy of the archive contents for serialization.
// The sample slices alias internal storage; callers must not mutate them.
func (s *Store[T]) Export() map[string][]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]T, len(s.samples))
	for user, list := range s.samples {
		out[user] = list
	}
	return out
}

// Load replaces the store contents, typically during startup recovery.
func (s *Store[T]) Load(samples map[string][]T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if samples == nil {
		samples = make(map[string][]T)
	}
	total := 0
	for _, list := range samples {
		total += len(list)
	}
	s.samples = samples
	s.total = total
}

// Checkpoint captures the current state. The capture is O(users), not
// O(samples): slice headers are shared with live state, which is safe
// because the store is append-only.
func (s *Store[T]) Checkpoint() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot[T]{
		samples: make(map[string][]T, len(s.samples)),
		total:   s.total,
	}
	for user, list := range s.samples {
		snap.samples[user] = list
	}
	return snap
}

// Restore swaps a previously captured state back in. Used to undo an append
// when the write-through flush fails.
func (s *Store[T]) Restore(snap Snapshot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = snap.samples
	s.total = snap.total
}
