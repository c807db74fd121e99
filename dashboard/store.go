package dashboard

import (
	"context"
	"fmt"
	"sync"
)

// Store keeps one TaskView per browser session.
type Store struct {
	mu    sync.Mutex
	views map[string]*TaskView
}

func NewStore() *Store {
	return &Store{views: make(map[string]*TaskView)}
}

// Get returns the view cached under key, if any.
func (s *Store) Get(key string) (*TaskView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[key]
	return v, ok
}

// Load returns the cached view for key or builds one from the loader.
// reload forces a fresh fetch into the existing view.
func (s *Store) Load(ctx context.Context, key, buyerEmail string, loader TaskLoader, reload bool) (*TaskView, error) {
	if v, ok := s.Get(key); ok && !reload {
		return v, nil
	}

	tasks, err := loader.ListTasks(ctx, buyerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.views[key]; ok {
		v.Reload(tasks)
		return v, nil
	}
	v := NewTaskView(tasks)
	s.views[key] = v
	return v, nil
}

// Forget drops the view for key, e.g. on logout.
func (s *Store) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, key)
}
