package trial

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store used by tests and single-node
// development. It mirrors the Redis store's semantics: exclusive per-match
// locks, copy-on-read documents, phase and player indexes.
type MemoryStore struct {
	mu      sync.Mutex
	matches map[string]*Match
	locks   map[string]*sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string]*Match),
		locks:   make(map[string]*sync.Mutex),
	}
}

func cloneMatch(m *Match) *Match {
	// JSON round-trip keeps clone semantics identical to the Redis store.
	data, _ := json.Marshal(m)
	var out Match
	_ = json.Unmarshal(data, &out)
	return &out
}

func (s *MemoryStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	lock := s.lockFor(id)
	if !lock.TryLock() {
		return nil, ErrConflict
	}
	return lock.Unlock, nil
}

func (s *MemoryStore) Create(ctx context.Context, m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = cloneMatch(m)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (s *MemoryStore) Update(ctx context.Context, m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.matches[m.ID]
	if !ok {
		return ErrMatchNotFound
	}
	m.Version = prev.Version + 1
	s.matches[m.ID] = cloneMatch(m)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, id)
	return nil
}

func (s *MemoryStore) FindByPlayer(ctx context.Context, playerID string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.PlayerIndex(playerID) >= 0 {
			return cloneMatch(m), nil
		}
	}
	return nil, ErrMatchNotFound
}

func (s *MemoryStore) ListByPhase(ctx context.Context, phase Phase) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, m := range s.matches {
		if m.Phase == phase {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
