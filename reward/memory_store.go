package reward

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore accumulates rewards in a process-local map. State does not
// survive restart; it serves local development, tests, and the fallback
// path when Redis is unreachable.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Stats
	logger  *zap.Logger
}

// NewMemoryStore creates an empty in-memory reward store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		entries: make(map[string]Stats),
		logger:  logger.With(zap.String("component", "reward_store_memory")),
	}
}

// Record adds value to the action's accumulation.
func (s *MemoryStore) Record(ctx context.Context, actionID string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	entry := s.entries[actionID]
	entry.ActionID = actionID
	entry.Sum += value
	entry.Count++
	s.entries[actionID] = entry
	s.mu.Unlock()

	s.logger.Debug("reward recorded",
		zap.String("action_id", actionID),
		zap.Float64("value", value),
		zap.Int64("count", entry.Count))
	return nil
}

// Stats returns the accumulation for an action, zero-valued if unseen.
func (s *MemoryStore) Stats(ctx context.Context, actionID string) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[actionID]
	if !ok {
		return Stats{ActionID: actionID}, nil
	}
	return entry, nil
}

// Len returns the number of tracked actions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
