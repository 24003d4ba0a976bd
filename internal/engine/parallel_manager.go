package engine

import (
	"context"
	"sync"

	"github.com/jobflow-io/jobflow/internal/queue"
	"github.com/jobflow-io/jobflow/pkg/api"
	"github.com/jobflow-io/jobflow/pkg/worker"
)

// ParallelManager is the bounded-parallel scheduler. It dispatches
// invoke (reference resolution + the Job's underlying call) for every
// Job in a round across a worker.Pool, then applies finish (persist,
// directives, bookkeeping) for each completed Job, in ready order, back
// on this single goroutine. Graph mutation is never concurrent: only
// invoke ever runs off the scheduling goroutine.
type ParallelManager struct {
	*Manager

	workers int
	queue   queue.Queue
}

// NewParallel constructs a bounded-parallel Manager over store with n
// concurrent workers; values of n below 2 are raised to 2. q is
// optional; when non-nil, every Job the scheduler marks ready is
// enqueued and dequeued before it runs and acked once
// finish completes, so RecoverStuckJobs can rebuild the ready set after
// a crash.
func NewParallel(store api.JobStore, n int, q queue.Queue, opts ...api.ManagerOption) *ParallelManager {
	if n <= 1 {
		n = 2
	}
	return &ParallelManager{
		Manager: New(store, opts...),
		workers: n,
		queue:   q,
	}
}

type invokeResult struct {
	job  *api.Job
	resp *api.Response
	err  error
}

// Run executes flow using the bounded-parallel strategy. Its outer
// control flow mirrors Manager.Run exactly; only the body of each round
// differs.
func (pm *ParallelManager) Run(ctx context.Context, flow *api.Flow) (api.Report, error) {
	flowUUID := flow.AllUUIDs()
	var rootUUID string
	if len(flowUUID) > 0 {
		rootUUID = flowUUID[0]
	}
	pm.observer.OnFlowStart(ctx, rootUUID)

	g, err := NewGraph(flow)
	if err != nil {
		pm.observer.OnFlowFailed(ctx, rootUUID, err)
		return nil, err
	}
	pm.graph = g

	report := make(api.Report)

	for {
		ready := pm.graph.Ready(pm.done, pm.cancelled)
		if len(ready) == 0 {
			if pm.graph.HasUnfinished(pm.done, pm.cancelled) {
				stuck := pm.graph.Unfinished(pm.done, pm.cancelled)
				err := &api.UnresolvableGraphError{PendingUUIDs: stuck}
				pm.observer.OnFlowFailed(ctx, rootUUID, err)
				return report, err
			}
			break
		}

		jobs := make([]*api.Job, 0, len(ready))
		for _, uuid := range ready {
			job := pm.graph.Pop(uuid)
			if pm.queue != nil {
				_ = pm.queue.Enqueue(ctx, queue.Item{FlowUUID: rootUUID, JobUUID: job.UUID, Index: job.Index})
				_, _ = pm.queue.Dequeue(ctx)
			}
			jobs = append(jobs, job)
		}

		results := pm.invokeRound(ctx, jobs)

		stop := false
		for _, res := range results {
			outcome, roundStop := pm.finish(ctx, res.job, res.resp, res.err)
			if report[res.job.UUID] == nil {
				report[res.job.UUID] = make(map[int]*api.Outcome)
			}
			report[res.job.UUID][res.job.Index] = outcome

			if pm.queue != nil {
				_ = pm.queue.Ack(ctx, queue.Item{FlowUUID: rootUUID, JobUUID: res.job.UUID, Index: res.job.Index})
			}

			if roundStop {
				stop = true
				break
			}
		}
		if stop {
			break
		}
	}

	for _, uuid := range pm.graph.AllUUIDs() {
		if pm.cancelled[uuid] {
			if report[uuid] == nil {
				report[uuid] = make(map[int]*api.Outcome)
			}
			if _, exists := report[uuid][1]; !exists {
				report[uuid][1] = &api.Outcome{Status: api.StatusCancelled}
			}
		}
	}

	pm.observer.OnFlowCompleted(ctx, rootUUID)
	return report, nil
}

// invokeRound dispatches invoke for every job in the round across a
// worker.Pool sized to pm.workers, and collects each result by index so
// result order matches jobs order regardless of completion order.
func (pm *ParallelManager) invokeRound(ctx context.Context, jobs []*api.Job) []invokeResult {
	results := make([]invokeResult, len(jobs))
	pool := worker.New(pm.workers)

	var mu sync.Mutex
	for i, job := range jobs {
		i, job := i, job
		pool.Submit(ctx, func(ctx context.Context) error {
			resp, err := pm.invoke(ctx, job)
			mu.Lock()
			results[i] = invokeResult{job: job, resp: resp, err: err}
			mu.Unlock()
			return nil
		})
	}
	pool.Wait()
	return results
}

// RecoverStuckJobs reports Jobs the durable ready-queue still holds as
// dequeued-but-unacked, meaning a prior run crashed between invoke and
// finish for them. Reconciling a Flow against this list is left to the
// caller: the Manager itself holds no durable state across process
// restarts.
func (pm *ParallelManager) RecoverStuckJobs(ctx context.Context) ([]queue.Item, error) {
	if pm.queue == nil {
		return nil, nil
	}
	return pm.queue.RecoverStuck(ctx)
}
