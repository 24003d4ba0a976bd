package jobflow

import "github.com/jobflow-io/jobflow/internal/queue"

// ReadyQueue is the durable ready-job queue the bounded-parallel
// Manager uses for crash recovery: every Job the scheduler marks ready
// is enqueued before it runs and acked once it finishes.
type ReadyQueue = queue.Queue

// QueueItem is a single entry in a ReadyQueue.
type QueueItem = queue.Item

var (
	NewMemoryQueue = queue.NewMemoryQueue
	NewSQLiteQueue = queue.NewSQLiteQueue
	NewRedisQueue  = queue.NewRedisQueue
)
