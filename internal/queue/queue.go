// Package queue implements the durable ready-job queue used by the
// bounded-parallel Manager: a record of Jobs that became ready to run
// but have not yet started, so a crash mid-run leaves behind a
// recoverable work list instead of a Flow the Manager can no longer
// make progress on.
package queue

import "context"

// Item is a single ready-to-run Job reference.
type Item struct {
	FlowUUID string
	JobUUID  string
	Index    int
}

// Queue is the durable ready-queue capability set. Implementations must
// make Ack atomic with respect to Dequeue: an item that is dequeued but
// never acked must be recoverable by RecoverStuck.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
	Dequeue(ctx context.Context) (*Item, error) // returns nil, nil when empty
	Ack(ctx context.Context, item Item) error
	RecoverStuck(ctx context.Context) ([]Item, error)
	Len(ctx context.Context) (int, error)
}
