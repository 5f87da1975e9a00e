// Package cache holds calculation results between the process call and later
// statistics, visualization, and export calls.
package cache

import (
	"sync"

	"rusle-platform/internal/models"
)

// Entry is one cached calculation: the lazy result plus the request context
// later operations need.
type Entry struct {
	Result *models.SoilLossResult
	AOI    *models.AreaOfInterest
	Scale  models.ScaleDecision
}

// ResultStore maps job identifiers to calculation entries. Implementations
// must be safe for concurrent use from independent request handlers; no
// ordering is guaranteed between writers of different job ids. Eviction
// policy is the integrator's choice.
type ResultStore interface {
	Put(jobID string, entry Entry)
	Get(jobID string) (Entry, bool)
	Delete(jobID string)
	Len() int
}

// MemoryStore is an unbounded in-process ResultStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

// Put stores or replaces the entry for a job.
func (s *MemoryStore) Put(jobID string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jobID] = entry
}

// Get returns the entry for a job.
func (s *MemoryStore) Get(jobID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[jobID]
	return entry, ok
}

// Delete removes the entry for a job. Deleting an absent job is a no-op.
func (s *MemoryStore) Delete(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobID)
}

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
