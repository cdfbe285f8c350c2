// Package store records emitted events in memory and in an optional journal.
package store

import (
	"sync"

	"github.com/jmylchreest/hostbridge/internal/model"
)

// DefaultCapacity is the number of records kept in memory.
const DefaultCapacity = 500

// ErrStoreClosed is returned when recording into a closed store.
var ErrStoreClosed = storeError("store is closed")

type storeError string

func (e storeError) Error() string {
	return string(e)
}

// FilterOptions selects records.
type FilterOptions struct {
	Event  string // Exact event name, empty for any
	Window string // Exact window label, empty for any
	Limit  int    // Most recent N, 0 for all
}

// Store keeps the most recent event records.
type Store struct {
	mu       sync.RWMutex
	records  []model.EventRecord
	capacity int

	persistence Persistence

	subscribers []chan model.EventRecord
	closed      bool
}

// NewStore creates a store holding up to capacity records.
// If persistence is not nil, every record is also appended to it.
func NewStore(capacity int, persistence Persistence) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:    capacity,
		persistence: persistence,
	}
}

// Add records r, evicting the oldest record when full.
func (s *Store) Add(r model.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.records = append(s.records, r)
	if over := len(s.records) - s.capacity; over > 0 {
		s.records = append([]model.EventRecord(nil), s.records[over:]...)
	}

	if s.persistence != nil {
		if err := s.persistence.Append(r); err != nil {
			return err
		}
	}

	for _, ch := range s.subscribers {
		select {
		case ch <- r:
		default:
			// Subscriber is behind, drop.
		}
	}
	return nil
}

// Filter returns matching records, oldest first.
func (s *Store) Filter(opts FilterOptions) []model.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.EventRecord
	for _, r := range s.records {
		if opts.Event != "" && r.Event != opts.Event {
			continue
		}
		if opts.Window != "" && !targets(r, opts.Window) {
			continue
		}
		out = append(out, r)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out
}

func targets(r model.EventRecord, window string) bool {
	if r.Window == window {
		return true
	}
	for _, t := range r.Targets {
		if t == window {
			return true
		}
	}
	return false
}

// Count returns the number of records in memory.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Hydrate loads the most recent records from persistence.
func (s *Store) Hydrate() error {
	if s.persistence == nil {
		return nil
	}
	records, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if over := len(records) - s.capacity; over > 0 {
		records = records[over:]
	}
	s.records = records
	return nil
}

// Clear drops all records from memory and persistence.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	if s.persistence != nil {
		return s.persistence.Clear()
	}
	return nil
}

// Subscribe returns a channel that receives new records.
func (s *Store) Subscribe() <-chan model.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan model.EventRecord, 32)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription.
func (s *Store) Unsubscribe(ch <-chan model.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes subscriber channels and the persistence.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil

	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}
