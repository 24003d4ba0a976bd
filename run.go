package jobflow

import (
	"context"

	"github.com/jobflow-io/jobflow/internal/engine"
	"github.com/jobflow-io/jobflow/pkg/api"
)

// RunOption configures how RunLocally executes a Flow; it is the same
// vocabulary a Manager accepts.
type RunOption = api.ManagerOption

// Responses is the simplified per-(uuid,index) result RunLocally
// returns: every Job's Response, keyed by the identity it ran under.
// Cancelled and failed Jobs are omitted; use Manager.Run directly (via
// NewManager) when a full Report, including failures, is needed.
type Responses = map[string]map[int]*Response

// RunLocally builds a sequential Manager over store, runs flow to
// completion, and projects the resulting Report down to Responses. A nil
// store is replaced by NewMemoryStore().
// Passing WithWorkerPool(n) with n > 1 switches to the bounded-parallel
// Manager transparently.
func RunLocally(ctx context.Context, flow *Flow, store JobStore, opts ...RunOption) (Responses, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	cfg := api.DefaultManagerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var report api.Report
	var err error
	if cfg.Workers > 1 {
		pm := engine.NewParallel(store, cfg.Workers, nil, opts...)
		report, err = pm.Run(ctx, flow)
	} else {
		m := engine.New(store, opts...)
		report, err = m.Run(ctx, flow)
	}
	if report == nil {
		return nil, err
	}
	return report.Responses(), err
}

// NewManager constructs a sequential Manager directly, for callers that
// need the full api.Report (including failures and cancellations)
// rather than RunLocally's simplified Responses.
func NewManager(store JobStore, opts ...ManagerOption) *engine.Manager {
	return engine.New(store, opts...)
}

// NewParallelManager constructs the bounded-parallel Manager, optionally
// backed by a durable ready-queue (see internal/queue) for crash
// recovery.
func NewParallelManager(store JobStore, workers int, q ReadyQueue, opts ...ManagerOption) *engine.ParallelManager {
	return engine.NewParallel(store, workers, q, opts...)
}
