package matchmaking

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process QueueStore for tests and single-node
// development.
type MemoryQueue struct {
	mu      sync.Mutex
	waiting map[string]Entry
	order   []string
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{waiting: make(map[string]Entry)}
}

func (q *MemoryQueue) PairOrEnqueue(_ context.Context, e Entry) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		if id == e.PlayerID {
			continue
		}
		opp, ok := q.waiting[id]
		if !ok {
			continue
		}
		q.remove(id)
		return &opp, nil
	}

	if _, ok := q.waiting[e.PlayerID]; ok {
		return nil, ErrAlreadyQueued
	}
	q.waiting[e.PlayerID] = e
	q.order = append(q.order, e.PlayerID)
	return nil, nil
}

func (q *MemoryQueue) Enqueue(_ context.Context, e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.waiting[e.PlayerID]; !ok {
		q.order = append(q.order, e.PlayerID)
	}
	q.waiting[e.PlayerID] = e
	return nil
}

func (q *MemoryQueue) Cancel(_ context.Context, playerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(playerID)
	return nil
}

// Waiting reports whether the player is queued. Test helper.
func (q *MemoryQueue) Waiting(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.waiting[playerID]
	return ok
}

func (q *MemoryQueue) remove(playerID string) {
	delete(q.waiting, playerID)
	for i, id := range q.order {
		if id == playerID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
