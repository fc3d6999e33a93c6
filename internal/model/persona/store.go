package persona

// Store 提供只读的persona查询
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	// Default returns the persona a new transcript is seeded with.
	Default() (Persona, bool)
}

// MemoryStore keeps personas in declaration order with an id index.
type MemoryStore struct {
	items     []Persona
	index     map[string]int
	defaultID string
}

// NewMemoryStore indexes items. DefaultID is the default persona when present,
// otherwise the first item is.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{
		items: append([]Persona(nil), items...),
		index: make(map[string]int, len(items)),
	}
	for i, item := range s.items {
		if _, dup := s.index[item.ID]; !dup {
			s.index[item.ID] = i
		}
	}

	switch {
	case s.has(DefaultID):
		s.defaultID = DefaultID
	case len(s.items) > 0:
		s.defaultID = s.items[0].ID
	}
	return s
}

func (s *MemoryStore) has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// List 返回persona列表的副本
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.index[id]
	if !ok {
		return Persona{}, false
	}
	return s.items[i], true
}

// Default returns the default persona; false only for an empty store.
func (s *MemoryStore) Default() (Persona, bool) {
	return s.FindByID(s.defaultID)
}
