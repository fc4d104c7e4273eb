package persona

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by MustFind for unknown persona ids.
var ErrNotFound = errors.New("persona not found")

// Store exposes persona retrieval for HTTP handlers and the model client.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice indexed by id.
// Callers always receive copies, so Traits cannot be mutated through it.
type MemoryStore struct {
	items []Persona
	index map[string]int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
// Later entries with a duplicate id are ignored.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{index: make(map[string]int, len(items))}
	for _, item := range items {
		if _, dup := s.index[item.ID]; dup {
			continue
		}
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, clone(item))
	}
	return s
}

// List returns the persona list in seed order.
func (s *MemoryStore) List() []Persona {
	out := make([]Persona, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, clone(item))
	}
	return out
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.index[id]
	if !ok {
		return Persona{}, false
	}
	return clone(s.items[i]), true
}

// MustFind is FindByID with an error for startup wiring.
func MustFind(store Store, id string) (Persona, error) {
	p, ok := store.FindByID(id)
	if !ok {
		return Persona{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

func clone(p Persona) Persona {
	p.Traits = append([]string(nil), p.Traits...)
	return p
}
