package history

import (
	"context"
	"sync"

	"github.com/mvalles/asistente/llm"
)

// MemoryStore keeps conversation history in process memory, keyed by session
// id. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]llm.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]llm.Message)}
}

func (s *MemoryStore) Messages(ctx context.Context, sessionID string) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]llm.Message(nil), s.sessions[sessionID]...), nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, messages ...llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append(s.sessions[sessionID], messages...)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
