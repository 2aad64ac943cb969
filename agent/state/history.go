// Package state persists conversation histories between turns. The core
// agents never touch it; the orchestrator's caller loads a history, runs a
// turn, and saves the extended history back.
package state

import (
	"context"
	"errors"
	"strings"
	"sync"

	contractx "github.com/merrysway/coffeebot/agent/contract"
)

var (
	ErrHistoryNotFound = errors.New("conversation history not found")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Store is the history persistence contract.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]contractx.Message, error)
	Save(ctx context.Context, sessionID string, history []contractx.Message) error
	Delete(ctx context.Context, sessionID string) error
}

// InMemoryStore keeps histories for the process lifetime. Good enough for
// the CLI loop and for tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	histories map[string][]contractx.Message
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{histories: make(map[string][]contractx.Message)}
}

func (s *InMemoryStore) Load(ctx context.Context, sessionID string) ([]contractx.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	history, ok := s.histories[sessionID]
	if !ok {
		return nil, ErrHistoryNotFound
	}
	return contractx.CloneMessages(history), nil
}

func (s *InMemoryStore) Save(ctx context.Context, sessionID string, history []contractx.Message) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[sessionID] = contractx.CloneMessages(history)
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, sessionID)
	return nil
}
