// Package engine implements the Manager: the scheduler that executes a
// Flow by repeatedly picking ready Jobs, resolving their inputs against
// a JobStore, invoking their underlying function, persisting the
// result, and applying any dynamic directives the Response carries.
package engine

import (
	"context"
	"time"

	"github.com/jobflow-io/jobflow/pkg/api"
)

// Manager is the sequential, single-threaded scheduler. It is the
// reference execution model: the bounded-parallel Manager in
// parallel_manager.go only changes how invoke (steps 3-4: reference
// resolution and the call) is dispatched, never the graph-mutation steps.
type Manager struct {
	store    api.JobStore
	cfg      *api.ManagerConfig
	observer api.Observer

	graph *Graph

	done      map[string]int
	cancelled map[string]bool
}

// New constructs a sequential Manager over store, applying opts on top
// of api.DefaultManagerConfig.
func New(store api.JobStore, opts ...api.ManagerOption) *Manager {
	cfg := api.DefaultManagerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Manager{
		store:     store,
		cfg:       cfg,
		observer:  cfg.Observer,
		done:      make(map[string]int),
		cancelled: make(map[string]bool),
	}
}

// Run executes flow to completion and returns a structured per-Job
// report. It implements the 8-step loop verbatim; ParallelManager.Run
// dispatches invoke (steps 3-4) across a worker pool but leaves every
// other step on a single scheduling goroutine.
func (m *Manager) Run(ctx context.Context, flow *api.Flow) (api.Report, error) {
	flowUUID := flow.AllUUIDs()
	var rootUUID string
	if len(flowUUID) > 0 {
		rootUUID = flowUUID[0]
	}
	m.observer.OnFlowStart(ctx, rootUUID)

	g, err := NewGraph(flow)
	if err != nil {
		m.observer.OnFlowFailed(ctx, rootUUID, err)
		return nil, err
	}
	m.graph = g

	report := make(api.Report)

	for {
		ready := m.graph.Ready(m.done, m.cancelled)
		if len(ready) == 0 {
			if m.graph.HasUnfinished(m.done, m.cancelled) {
				stuck := m.graph.Unfinished(m.done, m.cancelled)
				err := &api.UnresolvableGraphError{PendingUUIDs: stuck}
				m.observer.OnFlowFailed(ctx, rootUUID, err)
				return report, err
			}
			break
		}

		job := m.graph.Pop(ready[0])

		outcome, stop := m.step(ctx, job)
		if report[job.UUID] == nil {
			report[job.UUID] = make(map[int]*api.Outcome)
		}
		report[job.UUID][job.Index] = outcome

		if stop {
			break
		}
	}

	for _, uuid := range m.graph.AllUUIDs() {
		if m.cancelled[uuid] {
			if report[uuid] == nil {
				report[uuid] = make(map[int]*api.Outcome)
			}
			if _, exists := report[uuid][1]; !exists {
				report[uuid][1] = &api.Outcome{Status: api.StatusCancelled}
			}
		}
	}

	m.observer.OnFlowCompleted(ctx, rootUUID)
	return report, nil
}

// step runs the per-Job body of the scheduler loop (steps 2-8 of
// spec.md's algorithm) for a single popped Job, on the sequential
// Manager's own goroutine. A failure anywhere in this body — the Job's
// own function, reference resolution, persistence, or directive
// application — is caught and recorded against job; it never aborts the
// run for the jobs still ready elsewhere in the graph. Only a
// scheduler-level failure (graph construction, an unresolvable graph)
// stops Run early.
func (m *Manager) step(ctx context.Context, job *api.Job) (*api.Outcome, bool) {
	resp, err := m.invoke(ctx, job)
	return m.finish(ctx, job, resp, err)
}

// invoke runs steps 3-4: resolving references and calling the Job's
// underlying function. It is the one part of the loop the
// bounded-parallel Manager dispatches onto its worker pool.
func (m *Manager) invoke(ctx context.Context, job *api.Job) (*api.Response, error) {
	m.observer.OnJobStart(ctx, job)
	start := time.Now()
	resp, err := job.Run(ctx, m.store)
	m.observer.OnJobCompleted(ctx, job, resp, err, time.Since(start))
	return resp, err
}

// finish runs steps 5-8: persistence, directive application, and
// done/cancelled bookkeeping. It always executes on the single
// scheduling goroutine, even in bounded-parallel mode, per the Design
// Note that graph mutation is never concurrent.
//
// Per spec.md §7's propagation rule, any failure here is recorded
// against job as StatusFailed and its downstream dependents are
// cascade-cancelled; it is never surfaced as a reason for Run to abort
// early, mirroring the original implementation's local manager, which
// catches exceptions from a single job and keeps iterating the rest of
// the flow.
func (m *Manager) finish(ctx context.Context, job *api.Job, resp *api.Response, runErr error) (*api.Outcome, bool) {
	if runErr != nil {
		m.cascadeCancel(job.UUID)
		return &api.Outcome{Status: api.StatusFailed, Err: runErr}, false
	}

	if saveErr := m.store.Save(ctx, job.UUID, job.Index, resp.Output, job.Name, job.Metadata, job.Hosts, effectiveStoreNames(job, m.cfg), resp.StoredData); saveErr != nil {
		m.cascadeCancel(job.UUID)
		return &api.Outcome{Status: api.StatusFailed, Err: saveErr}, false
	}

	replaced, err := m.applyDirectives(ctx, job, resp)
	if err != nil {
		m.cascadeCancel(job.UUID)
		return &api.Outcome{Status: api.StatusFailed, Err: err}, false
	}

	if resp.StopChildren {
		m.cascadeCancel(job.UUID)
		m.observer.OnDirectiveApplied(ctx, job, "stop_children", nil)
	}

	if !replaced {
		m.done[job.UUID] = job.Index
	}

	return &api.Outcome{Status: api.StatusDone, Response: resp}, resp.StopJobflow
}

func effectiveStoreNames(job *api.Job, cfg *api.ManagerConfig) map[string]string {
	if len(job.StoreNames) > 0 {
		return job.StoreNames
	}
	return cfg.StoreNames
}

// cascadeCancel marks every transitive downstream Job of uuid as
// cancelled, per the stop_children/failure propagation rule.
func (m *Manager) cascadeCancel(uuid string) {
	for _, dep := range m.graph.Downstream(uuid) {
		if m.cancelled[dep] {
			continue
		}
		m.cancelled[dep] = true
		m.graph.Remove(dep)
		m.cascadeCancel(dep)
	}
}
