package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"docchat/types"
)

// ConversationStorer persists the turns of each session.
// Append must be atomic at the store, concurrent appends to one session never lose a turn.
type ConversationStorer interface {
	Init(ctx context.Context) error
	Load(ctx context.Context, sessionID string) ([]types.Turn, error)
	Append(ctx context.Context, sessionID, question, answer string) error
	Close() error
}

func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", types.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", types.ErrStoreUnavailable, op, err)
}

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]string)}
}

func (m *MemoryStore) Init(context.Context) error { return nil }

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]types.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.PairTurns(m.conversations[sessionID]), nil
}

func (m *MemoryStore) Append(_ context.Context, sessionID, question, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[sessionID] = append(m.conversations[sessionID], question, answer)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
