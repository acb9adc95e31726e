// Package records keeps the history of finished measurement sessions.
package records

import (
	"sync"

	"throughput-tester/pkg/models"
)

// Store is an append-only history of finished sessions.
type Store interface {
	Append(r models.Record)
	List() []models.Record
	Len() int
}

// MemoryStore is a volatile Store. Records live for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.Record
	// max number of records kept; 0 means unbounded
	retention int
}

// NewMemoryStore returns a store that keeps at most retention records,
// dropping the oldest first. A retention of 0 keeps everything.
func NewMemoryStore(retention int) *MemoryStore {
	if retention < 0 {
		retention = 0
	}
	return &MemoryStore{retention: retention}
}

func (s *MemoryStore) Append(r models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
	if s.retention > 0 && len(s.records) > s.retention {
		drop := len(s.records) - s.retention
		s.records = append(s.records[:0:0], s.records[drop:]...)
	}
}

// List returns a copy of the stored records in insertion order.
func (s *MemoryStore) List() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
