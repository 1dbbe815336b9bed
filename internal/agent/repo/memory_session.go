package repo

import (
	"context"
	"sync"
	"time"

	"github.com/datasense-ai/server/internal/agent/model"
)

// MemorySessionRepository keeps turns in process memory. It is used when no
// Redis URL is configured, so history lasts only as long as the process.
type MemorySessionRepository struct {
	mu    sync.RWMutex
	turns map[string][]model.Turn
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{turns: make(map[string][]model.Turn)}
}

func (r *MemorySessionRepository) AddTurn(_ context.Context, sessionID string, turn model.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns[sessionID] = append(r.turns[sessionID], turn)
	return nil
}

func (r *MemorySessionRepository) LoadTurns(_ context.Context, sessionID string) ([]model.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Turn, len(r.turns[sessionID]))
	copy(out, r.turns[sessionID])
	return out, nil
}

func (r *MemorySessionRepository) ClearTurns(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.turns, sessionID)
	return nil
}

func (r *MemorySessionRepository) CountTurns(_ context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.turns[sessionID]), nil
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
