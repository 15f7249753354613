package robot

import (
	"fmt"
	"sort"

	"github.com/san-kum/torquescale/internal/dynamo"
)

// Provider is a source of robot models. Provide must return an error
// wrapping dynamo.ErrUnknownRobot for ids it does not know.
type Provider interface {
	Name() string
	IDs() []string
	Provide(id string) (*Model, error)
}

// Store resolves robot ids to models. Every model is built and validated in
// NewStore; afterwards the store is only read, so concurrent Load calls need
// no locking.
type Store struct {
	models map[string]*Model
	ids    []string
}

// NewStore loads every id offered by the providers. When two providers offer
// the same id the earlier one wins.
func NewStore(providers ...Provider) (*Store, error) {
	s := &Store{models: make(map[string]*Model)}

	for _, p := range providers {
		for _, id := range p.IDs() {
			if _, ok := s.models[id]; ok {
				continue
			}
			m, err := p.Provide(id)
			if err != nil {
				return nil, fmt.Errorf("robot: provider %s: %w", p.Name(), err)
			}
			if err := m.Validate(); err != nil {
				return nil, fmt.Errorf("robot: provider %s: %w", p.Name(), err)
			}
			s.models[id] = m
			s.ids = append(s.ids, id)
		}
	}

	sort.Strings(s.ids)
	return s, nil
}

// NewDefaultStore serves the built-in catalog only.
func NewDefaultStore() *Store {
	s, err := NewStore(NewCatalogProvider())
	if err != nil {
		// the catalog is compiled in; failing here is a programming error
		panic(err)
	}
	return s
}

// Load returns the shared model for id.
func (s *Store) Load(id string) (*Model, error) {
	m, ok := s.models[id]
	if !ok {
		return nil, &dynamo.UnknownRobotError{RobotID: id, Available: s.IDs()}
	}
	return m, nil
}

func (s *Store) Has(id string) bool {
	_, ok := s.models[id]
	return ok
}

// IDs lists the known robot ids in sorted order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
