package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/jobflow-io/jobflow/internal/store"
	"github.com/jobflow-io/jobflow/pkg/api"
)

func newTestStore() api.JobStore {
	return store.NewRouter(store.NewMemoryStore(), nil)
}

func constJob(reg *api.Registry, name string, value any) *api.Job {
	reg.Register(name, func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		return api.NewResponse(value), nil
	})
	return api.NewJob(name, nil, nil, api.WithRegistry(reg))
}

// S1: a linear chain a -> b -> c, each adding 1 to the previous output.
func TestManager_LinearChain(t *testing.T) {
	reg := api.NewRegistry()
	incr := func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		n := args[0].(int64)
		return api.NewResponse(n + 1), nil
	}
	reg.Register("incr", incr)

	a := constJob(reg, "start", int64(1))
	b := api.NewJob("incr", []any{a.Output()}, nil, api.WithRegistry(reg))
	c := api.NewJob("incr", []any{b.Output()}, nil, api.WithRegistry(reg))
	flow := api.NewFlow("chain", a, b, c)

	m := New(newTestStore())
	report, err := m.Run(context.Background(), flow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report[c.UUID][1].Response.Output != int64(3) {
		t.Fatalf("expected c's output to be 3, got %v", report[c.UUID][1].Response.Output)
	}
}

// S2: fan-in, a job whose two arguments reference two independent upstream jobs.
func TestManager_FanIn(t *testing.T) {
	reg := api.NewRegistry()
	sum := func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		return api.NewResponse(args[0].(int64) + args[1].(int64)), nil
	}
	reg.Register("sum", sum)

	left := constJob(reg, "left", int64(10))
	right := constJob(reg, "right", int64(32))
	total := api.NewJob("sum", []any{left.Output(), right.Output()}, nil, api.WithRegistry(reg))
	flow := api.NewFlow("fan-in", left, right, total)

	m := New(newTestStore())
	report, err := m.Run(context.Background(), flow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report[total.UUID][1].Response.Output != int64(42) {
		t.Fatalf("expected fan-in sum 42, got %v", report[total.UUID][1].Response.Output)
	}
}

// S3: a consumer dereferences a nested attribute path on an upstream
// job's map-shaped output.
func TestManager_NestedReferencePath(t *testing.T) {
	reg := api.NewRegistry()
	nested := constJob(reg, "nested", map[string]any{"a": map[string]any{"b": int64(5)}})

	echo := func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		return api.NewResponse(args[0]), nil
	}
	reg.Register("echo", echo)
	consumer := api.NewJob("echo", []any{nested.Output().Attr("a").Attr("b")}, nil, api.WithRegistry(reg))

	flow := api.NewFlow("nested", nested, consumer)
	m := New(newTestStore())
	report, err := m.Run(context.Background(), flow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report[consumer.UUID][1].Response.Output != int64(5) {
		t.Fatalf("expected dereferenced value 5, got %v", report[consumer.UUID][1].Response.Output)
	}
}

// S4: a self-replace directive bumps a job's index and reruns it under
// the same uuid, until it stops self-replacing.
func TestManager_SelfReplace(t *testing.T) {
	reg := api.NewRegistry()
	var job *api.Job
	reg.Register("self_replace_once", func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		n := args[0].(int64)
		if n == 0 {
			next := api.NewJob("self_replace_once", []any{1}, nil, api.WithRegistry(reg))
			next.SetUUID(job.UUID)
			return &api.Response{Output: "first", Replace: api.NewFlow("retry", next)}, nil
		}
		return api.NewResponse("done"), nil
	})
	job = api.NewJob("self_replace_once", []any{0}, nil, api.WithRegistry(reg))

	flow := api.NewFlow("self-replace", job)
	m := New(newTestStore())
	report, err := m.Run(context.Background(), flow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report[job.UUID][1].Response.Output != "first" {
		t.Fatalf("expected index 1 output %q, got %v", "first", report[job.UUID][1].Response.Output)
	}
	if report[job.UUID][2] == nil || report[job.UUID][2].Response.Output != "done" {
		t.Fatalf("expected index 2 output %q, got %v", "done", report[job.UUID][2])
	}
}

// S5: stop_children cancels downstream dependents without running them.
func TestManager_StopChildren(t *testing.T) {
	reg := api.NewRegistry()
	reg.Register("stopper", func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		return &api.Response{Output: "stopped-here", StopChildren: true}, nil
	})
	ran := false
	reg.Register("should_not_run", func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		ran = true
		return api.NewResponse("ran"), nil
	})

	stopper := api.NewJob("stopper", nil, nil, api.WithRegistry(reg))
	dependent := api.NewJob("should_not_run", []any{stopper.Output()}, nil, api.WithRegistry(reg))
	flow := api.NewFlow("stop-children", stopper, dependent)

	m := New(newTestStore())
	report, err := m.Run(context.Background(), flow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ran {
		t.Fatalf("expected the downstream job never to run")
	}
	if report[dependent.UUID][1].Status != api.StatusCancelled {
		t.Fatalf("expected the downstream job to be reported cancelled, got %v", report[dependent.UUID][1].Status)
	}
}

// A Job whose handler returns an error is recorded as failed and its
// downstream dependent is cascade-cancelled, but an independent Job
// elsewhere in the same flow still runs to completion: a single Job's
// failure never aborts the whole run.
func TestManager_JobFailure(t *testing.T) {
	reg := api.NewRegistry()
	boom := errors.New("boom")
	reg.Register("fails", func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		return nil, boom
	})
	ran := false
	reg.Register("should_not_run", func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		ran = true
		return api.NewResponse("ran"), nil
	})

	failing := api.NewJob("fails", nil, nil, api.WithRegistry(reg))
	dependent := api.NewJob("should_not_run", []any{failing.Output()}, nil, api.WithRegistry(reg))
	independent := constJob(reg, "independent", int64(7))
	flow := api.NewFlow("job-failure", failing, dependent, independent)

	m := New(newTestStore())
	report, err := m.Run(context.Background(), flow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report[failing.UUID][1].Status != api.StatusFailed {
		t.Fatalf("expected the failing job to be reported failed, got %v", report[failing.UUID][1].Status)
	}
	if !errors.Is(report[failing.UUID][1].Err, boom) {
		t.Fatalf("expected the failure to wrap %v, got %v", boom, report[failing.UUID][1].Err)
	}
	if ran {
		t.Fatalf("expected the downstream job never to run")
	}
	if report[dependent.UUID][1].Status != api.StatusCancelled {
		t.Fatalf("expected the downstream job to be reported cancelled, got %v", report[dependent.UUID][1].Status)
	}
	if report[independent.UUID][1].Status != api.StatusDone {
		t.Fatalf("expected the independent job to still run to completion, got %v", report[independent.UUID][1].Status)
	}
	if report[independent.UUID][1].Response.Output != int64(7) {
		t.Fatalf("expected the independent job's output to be 7, got %v", report[independent.UUID][1].Response.Output)
	}
}

// A true replace rewires every downstream dependent onto the
// replacement flow's output, leaving the original job's own record
// resolvable under its own uuid/index.
func TestManager_TrueReplace(t *testing.T) {
	reg := api.NewRegistry()
	reg.Register("replaced", func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		better := constJob(reg, "better", "better-output")
		return &api.Response{Output: "original-output", Replace: api.NewFlow("replacement", better)}, nil
	})
	echo := func(ctx context.Context, args []any, kwargs map[string]any) (*api.Response, error) {
		return api.NewResponse(args[0]), nil
	}
	reg.Register("echo", echo)

	original := api.NewJob("replaced", nil, nil, api.WithRegistry(reg))
	consumer := api.NewJob("echo", []any{original.Output()}, nil, api.WithRegistry(reg))
	flow := api.NewFlow("replace", original, consumer)

	m := New(newTestStore())
	report, err := m.Run(context.Background(), flow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report[consumer.UUID][1].Response.Output != "better-output" {
		t.Fatalf("expected the consumer to see the replacement's output, got %v", report[consumer.UUID][1].Response.Output)
	}
	if report[original.UUID][1].Response.Output != "original-output" {
		t.Fatalf("expected the original job's own record to remain resolvable, got %v", report[original.UUID][1])
	}
}
