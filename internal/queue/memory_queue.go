package queue

import (
	"context"
	"sync"
)

// MemoryQueue is a Queue implementation backed by a slice, guarded by a
// mutex the same way the teacher's InMemoryQueue guards its channel.
// Dequeued-but-unacked items are tracked separately so RecoverStuck can
// requeue them after a crash.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []Item
	inFlight map[string]Item
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{inFlight: make(map[string]Item)}
}

func itemKey(i Item) string { return i.FlowUUID + "/" + i.JobUUID }

func (q *MemoryQueue) Enqueue(ctx context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, item)
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	q.inFlight[itemKey(item)] = item
	return &item, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, itemKey(item))
	return nil
}

func (q *MemoryQueue) RecoverStuck(ctx context.Context) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var recovered []Item
	for key, item := range q.inFlight {
		recovered = append(recovered, item)
		delete(q.inFlight, key)
		q.pending = append(q.pending, item)
	}
	return recovered, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), nil
}
