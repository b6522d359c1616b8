package widget

import "sync"

// CollapseStore remembers callout fold toggles by callout key. Callouts
// never toggled keep the default from their marker.
type CollapseStore struct {
	mu    sync.RWMutex
	state map[string]bool
}

// NewCollapseStore creates an empty store.
func NewCollapseStore() *CollapseStore {
	return &CollapseStore{state: make(map[string]bool)}
}

// Collapsed reports whether the callout is collapsed.
func (s *CollapseStore) Collapsed(key string, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.state[key]; ok {
		return v
	}
	return def
}

// Toggle flips the callout and returns the new state.
func (s *CollapseStore) Toggle(key string, def bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[key]
	if !ok {
		v = def
	}
	s.state[key] = !v
	return !v
}

// Set records an explicit state.
func (s *CollapseStore) Set(key string, collapsed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = collapsed
}

// Reset forgets every toggle.
func (s *CollapseStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.state)
}
