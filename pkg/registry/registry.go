// Package registry holds the static catalog of models that can be queried.
//
// The catalog is loaded once at process start and never mutated afterwards,
// so a Registry is safe for concurrent reads by any number of goroutines
// without locking.
package registry

import (
	"errors"
	"fmt"
)

// ErrUnknownModel is returned by Resolve for ids absent from the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Registry is an immutable, ordered model catalog.
type Registry struct {
	order []ModelDescriptor
	byID  map[string]int
}

// New builds a Registry from descriptors, preserving their order.
// Empty ids, missing providers and duplicate ids are rejected.
func New(descs []ModelDescriptor) (*Registry, error) {
	r := &Registry{
		order: make([]ModelDescriptor, 0, len(descs)),
		byID:  make(map[string]int, len(descs)),
	}

	var errs []error
	for i, d := range descs {
		d = d.normalize()
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("models[%d]: id is required", i))
			continue
		}
		if d.Provider == "" {
			errs = append(errs, fmt.Errorf("models[%d] (%s): provider is required", i, d.ID))
			continue
		}
		if _, dup := r.byID[d.ID]; dup {
			errs = append(errs, fmt.Errorf("models[%d]: duplicate id %q", i, d.ID))
			continue
		}
		r.byID[d.ID] = len(r.order)
		r.order = append(r.order, d)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(r.order) == 0 {
		return nil, fmt.Errorf("registry: catalog is empty")
	}
	return r, nil
}

// Resolve returns the descriptor for id, or an error wrapping ErrUnknownModel.
func (r *Registry) Resolve(id string) (ModelDescriptor, error) {
	i, ok := r.byID[id]
	if !ok {
		return ModelDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return r.order[i].clone(), nil
}

// List returns every descriptor in catalog order.
func (r *Registry) List() []ModelDescriptor {
	out := make([]ModelDescriptor, len(r.order))
	for i, d := range r.order {
		out[i] = d.clone()
	}
	return out
}

// ListFree returns the free-tier descriptors in catalog order.
func (r *Registry) ListFree() []ModelDescriptor {
	var out []ModelDescriptor
	for _, d := range r.order {
		if d.IsFree {
			out = append(out, d.clone())
		}
	}
	return out
}

// Providers returns the distinct provider names referenced by the catalog,
// in order of first appearance.
func (r *Registry) Providers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range r.order {
		if !seen[d.Provider] {
			seen[d.Provider] = true
			out = append(out, d.Provider)
		}
	}
	return out
}

// Len returns the number of models in the catalog.
func (r *Registry) Len() int {
	return len(r.order)
}
