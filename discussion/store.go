package discussion

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agorahq/agora/types"
)

// Store persists discussion states and their event streams. The in-memory
// implementation backs a single node; the Redis and database stores allow
// state to survive restarts and be shared.
type Store interface {
	Save(ctx context.Context, state *State) error
	Get(ctx context.Context, discussionID string) (*State, error)
	List(ctx context.Context) ([]*State, error)
	Delete(ctx context.Context, discussionID string) error

	AppendEvents(ctx context.Context, discussionID string, events []Event) error
	Events(ctx context.Context, discussionID string) ([]Event, error)
	ClearEvents(ctx context.Context, discussionID string) error
}

func notFound(discussionID string) error {
	return types.NewError(types.ErrDiscussionNotFound,
		fmt.Sprintf("discussion not found: %s", discussionID))
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
	events map[string][]Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]*State),
		events: make(map[string][]Event),
	}
}

func (s *MemoryStore) Save(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.DiscussionID] = state.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, discussionID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[discussionID]
	if !ok {
		return nil, notFound(discussionID)
	}
	return state.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*State, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, discussionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[discussionID]; !ok {
		return notFound(discussionID)
	}
	delete(s.states, discussionID)
	delete(s.events, discussionID)
	return nil
}

func (s *MemoryStore) AppendEvents(_ context.Context, discussionID string, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[discussionID] = append(s.events[discussionID], events...)
	return nil
}

func (s *MemoryStore) ClearEvents(_ context.Context, discussionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[discussionID]; !ok {
		return notFound(discussionID)
	}
	delete(s.events, discussionID)
	return nil
}

func (s *MemoryStore) Events(_ context.Context, discussionID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events[discussionID]))
	copy(out, s.events[discussionID])
	return out, nil
}
