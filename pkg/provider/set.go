package provider

import (
	"errors"
	"fmt"
	"slices"
)

// Set holds adapters keyed by provider name. It is built once at startup
// and read concurrently afterwards.
type Set struct {
	adapters map[string]Adapter
}

// NewSet indexes adapters by Name. Duplicate names are rejected.
func NewSet(adapters ...Adapter) (*Set, error) {
	s := &Set{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		if _, dup := s.adapters[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate provider %q", a.Name())
		}
		s.adapters[a.Name()] = a
	}
	return s, nil
}

// Lookup returns the adapter registered under name.
func (s *Set) Lookup(name string) (Adapter, bool) {
	a, ok := s.adapters[name]
	return a, ok
}

// Names returns the registered provider names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.adapters))
	for n := range s.adapters {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Close closes every adapter and joins their errors.
func (s *Set) Close() error {
	var errs []error
	for _, name := range s.Names() {
		if err := s.adapters[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
