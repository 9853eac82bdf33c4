package tokenstore

import (
	"context"
	"sync"

	"github.com/nullcaster/videoroom-gateway/internal/v1/metrics"
)

// MemoryStore is the single-instance fallback used when Redis is disabled.
// It satisfies Store but does not survive a restart and is not shared across
// replicas.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]struct{})}
}

func (s *MemoryStore) AddToken(ctx context.Context, token string) error {
	s.mu.Lock()
	s.tokens[token] = struct{}{}
	s.mu.Unlock()
	metrics.TokenStoreOperations.WithLabelValues("add", "ok").Inc()
	return nil
}

func (s *MemoryStore) TokenSeen(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	_, ok := s.tokens[token]
	s.mu.Unlock()
	metrics.TokenStoreOperations.WithLabelValues("check", "ok").Inc()
	return ok, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
