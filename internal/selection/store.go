// Package selection owns the set of departments the user picked and the
// panel that lists them.
package selection

import (
	"slices"
	"sync"

	"github.com/JakeFAU/boamp-console/internal/department"
)

// Observer is notified after every effective Store mutation. Callbacks run
// outside the Store lock and may read the Store.
type Observer interface {
	Added(d department.Department)
	Removed(code string)
	Cleared()
}

// Store maps department codes to entries. Keys are unique; it is safe for
// concurrent use.
type Store struct {
	mu        sync.RWMutex
	items     map[string]department.Department
	observers []Observer
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]department.Department)}
}

// Subscribe registers an observer for subsequent mutations.
func (s *Store) Subscribe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Add inserts code with name. It returns false without notifying anyone when
// the code is already selected.
func (s *Store) Add(code, name string) bool {
	s.mu.Lock()
	if _, ok := s.items[code]; ok {
		s.mu.Unlock()
		return false
	}
	d := department.Department{Code: code, Name: name}
	s.items[code] = d
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.Added(d)
	}
	return true
}

// Remove deletes code. Removing an absent code is a no-op and returns false.
func (s *Store) Remove(code string) bool {
	s.mu.Lock()
	if _, ok := s.items[code]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.items, code)
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.Removed(code)
	}
	return true
}

// Clear empties the store and notifies observers.
func (s *Store) Clear() {
	s.mu.Lock()
	clear(s.items)
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.Cleared()
	}
}

// Has reports whether code is selected.
func (s *Store) Has(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[code]
	return ok
}

// Len returns the number of selected departments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sorted returns the selected departments in display order.
func (s *Store) Sorted() []department.Department {
	s.mu.RLock()
	out := make([]department.Department, 0, len(s.items))
	for _, d := range s.items {
		out = append(out, d)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b department.Department) int {
		return department.Compare(a.Code, b.Code)
	})
	return out
}

// Codes returns the selected codes in display order.
func (s *Store) Codes() []string {
	sorted := s.Sorted()
	codes := make([]string, len(sorted))
	for i, d := range sorted {
		codes[i] = d.Code
	}
	return codes
}
