package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use. Models are copied by value, so models holding
// maps or pointers share that data with the caller.
type Store[M any] struct {
	data map[string]*domain.Snapshot[M]
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore[M any]() *Store[M] {
	return &Store[M]{
		data: make(map[string]*domain.Snapshot[M]),
	}
}

// Save persists the snapshot in memory.
func (s *Store[M]) Save(ctx context.Context, sessionID string, snapshot *domain.Snapshot[M]) error {
	copied := clone(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves the snapshot from memory.
func (s *Store[M]) Load(ctx context.Context, sessionID string) (*domain.Snapshot[M], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	// Copy on read so the caller can't mutate store state directly by pointer
	return clone(snapshot), nil
}

// Delete removes the snapshot.
func (s *Store[M]) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns active sessions in lexical order.
func (s *Store[M]) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

func clone[M any](snapshot *domain.Snapshot[M]) *domain.Snapshot[M] {
	copied := *snapshot
	if snapshot.LastOutcome != nil {
		o := *snapshot.LastOutcome
		copied.LastOutcome = &o
	}
	return &copied
}
