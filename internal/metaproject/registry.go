package metaproject

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Registry errors. Callers match with errors.Is; the service facade
// translates them into its public failure taxonomy.
var (
	// ErrDuplicateID indicates a create with an id already in use.
	ErrDuplicateID = errors.New("metaproject: id already in use")
	// ErrUnknownID indicates a lookup, update, or remove of a missing id.
	ErrUnknownID = errors.New("metaproject: unknown id")
)

// Registry is a keyed store of one entity kind. It carries no locking of its
// own; the service facade guards each registry with a named mutex.
type Registry[K ~string, V any] struct {
	entries map[K]V
}

// NewRegistry returns an empty registry.
func NewRegistry[K ~string, V any]() *Registry[K, V] {
	return &Registry[K, V]{entries: make(map[K]V)}
}

// Add inserts a new entry. Fails with ErrDuplicateID when the id is taken.
func (r *Registry[K, V]) Add(id K, value V) error {
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, string(id))
	}
	r.entries[id] = value
	return nil
}

// Get returns the entry for id or ErrUnknownID.
func (r *Registry[K, V]) Get(id K) (V, error) {
	value, ok := r.entries[id]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %s", ErrUnknownID, string(id))
	}
	return value, nil
}

// Contains reports whether id is registered.
func (r *Registry[K, V]) Contains(id K) bool {
	_, ok := r.entries[id]
	return ok
}

// Update replaces the entry for id. Fails with ErrUnknownID when absent.
func (r *Registry[K, V]) Update(id K, value V) error {
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownID, string(id))
	}
	r.entries[id] = value
	return nil
}

// Remove deletes the entry for id. Fails with ErrUnknownID when absent.
func (r *Registry[K, V]) Remove(id K) error {
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownID, string(id))
	}
	delete(r.entries, id)
	return nil
}

// List returns all entries ordered by id.
func (r *Registry[K, V]) List() []V {
	ids := make([]K, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id])
	}
	return out
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	return len(r.entries)
}

// MarshalJSON encodes the registry as its entry map.
func (r *Registry[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.entries)
}

// UnmarshalJSON decodes the registry from an entry map.
func (r *Registry[K, V]) UnmarshalJSON(data []byte) error {
	entries := make(map[K]V)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	r.entries = entries
	return nil
}
