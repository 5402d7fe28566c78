// Package aggregate holds the set of distinct integers shared by all client
// connections.
//
// Each value is stored with its square. The aggregate metric is the mean of
// the stored squares. Mutation takes the write lock; Mean and Snapshot take
// the read lock and may run concurrently with each other.
package aggregate

import (
	"cmp"
	"errors"
	"slices"
	"sync"
)

// ErrEmpty is returned by Mean when no value has been added yet.
var ErrEmpty = errors.New("aggregate is empty")

// Entry is one stored value and its square.
type Entry struct {
	Key    int32   `json:"key"`
	Square float64 `json:"square"`
}

// Set is a concurrent set of distinct integers keyed by value.
type Set struct {
	mu      sync.RWMutex
	squares map[int32]float64
	sum     float64 // sum of all stored squares, maintained under mu
}

// New creates an empty set.
func New() *Set {
	return &Set{squares: make(map[int32]float64)}
}

// Add inserts v with its square. Re-adding an existing value is a no-op.
// Reports whether v was newly inserted.
func (s *Set) Add(v int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.squares[v]; ok {
		return false
	}
	sq := float64(v) * float64(v)
	s.squares[v] = sq
	s.sum += sq
	return true
}

// Mean returns the sum of squares divided by the number of distinct values.
func (s *Set) Mean() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.squares) == 0 {
		return 0, ErrEmpty
	}
	return s.sum / float64(len(s.squares)), nil
}

// Len returns the number of distinct values.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.squares)
}

// Snapshot copies every entry, ordered by key. The read lock is held only
// for the copy.
func (s *Set) Snapshot() []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.squares))
	for k, sq := range s.squares {
		entries = append(entries, Entry{Key: k, Square: sq})
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return entries
}
