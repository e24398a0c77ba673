package hire

import (
	"context"
	"sync"
)

// Queue holds ids of gigs whose hire left bid updates behind.
type Queue interface {
	Push(ctx context.Context, gigID string) error
	// Drain removes and returns up to max queued ids.
	Drain(ctx context.Context, max int) ([]string, error)
}

// MemoryQueue is the process-local Queue used when Redis is not configured.
type MemoryQueue struct {
	mu    sync.Mutex
	items []string
}

func NewMemoryQueue() *MemoryQueue { return &MemoryQueue{} }

func (q *MemoryQueue) Push(_ context.Context, gigID string) error {
	q.mu.Lock()
	q.items = append(q.items, gigID)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Drain(_ context.Context, max int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max <= 0 || max > len(q.items) {
		max = len(q.items)
	}
	out := append([]string(nil), q.items[:max]...)
	q.items = q.items[max:]
	return out, nil
}
