package dialogue

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests and development. Checkpoints
// are stored as deep copies so callers cannot mutate stored state.
type MemoryStore struct {
	checkpoints map[string]*Checkpoint
	mutex       sync.RWMutex
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: map[string]*Checkpoint{}}
}

func (s *MemoryStore) Put(ctx context.Context, checkpoint *Checkpoint) error {
	if checkpoint == nil || checkpoint.SessionID == "" {
		return fmt.Errorf("checkpoint session id required")
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.checkpoints[checkpoint.SessionID] = checkpoint.Copy()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Checkpoint, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	checkpoint, ok := s.checkpoints[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrCheckpointNotFound)
	}
	return checkpoint.Copy(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.checkpoints, sessionID)
	return nil
}

// Len returns the number of stored checkpoints.
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.checkpoints)
}
