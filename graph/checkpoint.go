package graph

import (
	"context"
	"sync"
	"time"
)

// Checkpoint captures the state after a node completed.
type Checkpoint[S any] struct {
	ThreadID  string    `json:"thread_id"`
	Node      string    `json:"node"`
	Step      int       `json:"step"`
	State     S         `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Checkpointer persists execution state per thread.
type Checkpointer[S any] interface {
	// Save stores a checkpoint for the thread.
	Save(ctx context.Context, cp Checkpoint[S]) error

	// Latest returns the most recent checkpoint for the thread.
	Latest(ctx context.Context, threadID string) (Checkpoint[S], bool)

	// History returns all checkpoints for the thread, oldest first.
	History(ctx context.Context, threadID string) []Checkpoint[S]
}

// MemorySaver is an in-memory Checkpointer.
type MemorySaver[S any] struct {
	mu      sync.RWMutex
	threads map[string][]Checkpoint[S]
}

// NewMemorySaver creates an empty in-memory checkpointer.
func NewMemorySaver[S any]() *MemorySaver[S] {
	return &MemorySaver[S]{threads: make(map[string][]Checkpoint[S])}
}

// Save stores a checkpoint for the thread.
func (m *MemorySaver[S]) Save(_ context.Context, cp Checkpoint[S]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[cp.ThreadID] = append(m.threads[cp.ThreadID], cp)
	return nil
}

// Latest returns the most recent checkpoint for the thread.
func (m *MemorySaver[S]) Latest(_ context.Context, threadID string) (Checkpoint[S], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cps := m.threads[threadID]
	if len(cps) == 0 {
		var zero Checkpoint[S]
		return zero, false
	}
	return cps[len(cps)-1], true
}

// History returns all checkpoints for the thread, oldest first.
func (m *MemorySaver[S]) History(_ context.Context, threadID string) []Checkpoint[S] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cps := m.threads[threadID]
	out := make([]Checkpoint[S], len(cps))
	copy(out, cps)
	return out
}

// Clear removes all checkpoints for the thread.
func (m *MemorySaver[S]) Clear(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
}
