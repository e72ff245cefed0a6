package chat

import "sync"

// MemoryStateStorage keeps chat states for the lifetime of a runtime.
type MemoryStateStorage struct {
	mu     sync.RWMutex
	states map[string]int
}

func NewMemoryStateStorage() *MemoryStateStorage {
	return &MemoryStateStorage{states: make(map[string]int)}
}

func (s *MemoryStateStorage) Load(chatID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[chatID]
	return state, ok
}

func (s *MemoryStateStorage) Save(chatID string, state int) {
	s.mu.Lock()
	s.states[chatID] = state
	s.mu.Unlock()
}

func (s *MemoryStateStorage) Delete(chatID string) {
	s.mu.Lock()
	delete(s.states, chatID)
	s.mu.Unlock()
}
