package rag

import (
	"sync"

	"go.uber.org/zap"
)

// ContextStore holds the single current RAG context string for the process.
// It is safe for concurrent use: writers are mutually exclusive and readers
// always observe a fully written value. Last write wins; no ordering is
// guaranteed across concurrent writers.
//
// The store is constructed once at startup and passed by reference to every
// consumer (prompt builder, handlers, control API).
type ContextStore struct {
	mu     sync.RWMutex
	value  string
	logger *zap.Logger
}

// NewContextStore creates an empty context store.
func NewContextStore(logger *zap.Logger) *ContextStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextStore{
		logger: logger.With(zap.String("component", "context_store")),
	}
}

// Set replaces the current context. Any string is accepted, including empty.
func (s *ContextStore) Set(text string) {
	s.mu.Lock()
	oldLen := len(s.value)
	s.value = text
	s.mu.Unlock()

	s.logger.Info("rag context updated",
		zap.Int("old_length", oldLen),
		zap.Int("new_length", len(text)))
}

// Get returns the current context, or the empty string if never set.
func (s *ContextStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Clear resets the context to empty.
func (s *ContextStore) Clear() {
	s.Set("")
}

// Len returns the length of the current context in bytes.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.value)
}

// Preview returns at most n bytes of the current context, for log records.
func (s *ContextStore) Preview(n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.value) <= n {
		return s.value
	}
	return s.value[:n]
}
