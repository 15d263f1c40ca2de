// Package registry provides the ordered name→entity mapping used by every
// configuration factory. One generic implementation replaces the per-entity
// bookkeeping: factories hold one Registry per discriminator tag.
package registry

import (
	"errors"
	"fmt"
)

// Registry errors
var (
	ErrNotFound      = errors.New("entry not found")
	ErrDuplicateName = errors.New("duplicate name")
)

// Registry is an insertion-ordered mapping from unique names to entities.
// It is not safe for concurrent mutation; the orchestration model is
// single-threaded and batch-oriented.
type Registry[T any] struct {
	label   string
	names   []string
	entries map[string]T
}

// New creates an empty registry. The label names the entity kind and is used
// in error messages ("Selection", "CatalogTemplate", ...).
func New[T any](label string) *Registry[T] {
	return &Registry[T]{
		label:   label,
		entries: make(map[string]T),
	}
}

// Label returns the entity-kind label.
func (r *Registry[T]) Label() string {
	return r.label
}

// Insert adds an entry. Re-registering an existing name is an error.
func (r *Registry[T]) Insert(name string, entry T) error {
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%s %q is already defined: %w", r.label, name, ErrDuplicateName)
	}
	r.names = append(r.names, name)
	r.entries[name] = entry
	return nil
}

// Get returns the entry for name. An unknown name yields an error that
// enumerates the valid names.
func (r *Registry[T]) Get(name string) (T, error) {
	entry, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q not found, known values are %v: %w", r.label, name, r.names, ErrNotFound)
	}
	return entry, nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns all registered names in insertion order.
func (r *Registry[T]) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	return len(r.names)
}

// Range calls fn for every entry in insertion order, stopping on error.
func (r *Registry[T]) Range(fn func(name string, entry T) error) error {
	for _, name := range r.names {
		if err := fn(name, r.entries[name]); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties the registry. Used to reset state between independent
// configuration loads.
func (r *Registry[T]) Clear() {
	r.names = r.names[:0]
	for name := range r.entries {
		delete(r.entries, name)
	}
}
