package catalog

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNoCatalog is returned when no dataset has been loaded yet.
	ErrNoCatalog = errors.New("catalog not loaded")
	// ErrUnknownEclipse is returned for an id missing from the current dataset.
	ErrUnknownEclipse = errors.New("unknown eclipse")
)

// Store provides thread-safe access to the current catalog dataset.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes fetch operations
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Lookup finds an eclipse by id in the current dataset.
func (s *Store) Lookup(id string) (Eclipse, error) {
	ds := s.dataset.Load()
	if ds == nil {
		return Eclipse{}, ErrNoCatalog
	}
	e, ok := ds.Lookup(id)
	if !ok {
		return Eclipse{}, ErrUnknownEclipse
	}
	return e, nil
}

// AgeSeconds returns the age of the current dataset in seconds, or -1 if
// none is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Lock acquires the fetch mutex.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the fetch mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
