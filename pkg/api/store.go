package api

import "context"

// Filter is a query against a Store's documents. Keys are dotted field
// paths into the stored document tree, matching the subset of MongoDB
// query syntax the teacher's store backends already speak.
type Filter map[string]any

// Record is one document as stored by a Store: the decoded tree plus
// enough bookkeeping for the store Router to reassemble a Job's output.
type Record struct {
	UUID       string
	Index      int
	Data       map[string]any
	Metadata   map[string]any
	Hosts      []string
	StoreNames map[string]string
}

// RecordIter streams query results one Record at a time so a caller
// never has to hold an entire collection in memory.
type RecordIter interface {
	Next(ctx context.Context) (*Record, error) // returns nil, nil at exhaustion
	Close() error
}

// Store is the capability set every storage backend (memory, SQLite,
// Postgres, Redis, MongoDB) must implement. A Router (internal/store) composes one
// main Store with zero or more named auxiliary Stores reachable through
// StoreNames routing.
type Store interface {
	Connect(ctx context.Context) error
	Close() error

	Query(ctx context.Context, filter Filter, properties []string) (RecordIter, error)
	QueryOne(ctx context.Context, filter Filter, properties []string) (*Record, error)
	Update(ctx context.Context, filter Filter, record *Record) error
	Remove(ctx context.Context, filter Filter) error
	Count(ctx context.Context, filter Filter) (int64, error)
	Distinct(ctx context.Context, field string, filter Filter) ([]any, error)
}
