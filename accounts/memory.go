package accounts

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps accounts in a map. Names are case-insensitive.
type MemoryStore struct {
	lock     sync.RWMutex
	accounts map[string]Account
}

func NewMemoryStore(accts ...Account) *MemoryStore {
	s := &MemoryStore{accounts: make(map[string]Account)}
	for _, a := range accts {
		s.Add(a)
	}
	return s
}

// Add inserts or replaces an account.
func (s *MemoryStore) Add(a Account) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.accounts[normalize(a.Username)] = a
}

func (s *MemoryStore) FindByName(_ context.Context, name string) (*Account, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	a, ok := s.accounts[normalize(name)]
	if !ok {
		return nil, ErrNotFound
	}
	a.Salt = append([]byte(nil), a.Salt...)
	return &a, nil
}

// All returns a copy of every account, sorted by name.
func (s *MemoryStore) All() []Account {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		a.Salt = append([]byte(nil), a.Salt...)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return normalize(out[i].Username) < normalize(out[j].Username) })
	return out
}
