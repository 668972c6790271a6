package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const stateTTL = 10 * time.Minute

// StateStore hands out single-use OAuth state values.
type StateStore struct {
	mu     sync.Mutex
	states *cache.Cache
}

func NewStateStore() *StateStore {
	return &StateStore{states: cache.New(stateTTL, stateTTL)}
}

func (s *StateStore) New() string {
	state := uuid.NewString()
	s.states.SetDefault(state, struct{}{})
	return state
}

// Consume returns ErrInvalidState unless state was issued and not yet used.
func (s *StateStore) Consume(state string) error {
	if state == "" {
		return ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.states.Get(state); !found {
		return ErrInvalidState
	}
	s.states.Delete(state)
	return nil
}
