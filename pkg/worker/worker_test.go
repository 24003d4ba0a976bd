package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsConcurrentlyUpToLimit(t *testing.T) {
	p := New(2)
	var running atomic.Int32
	var maxRunning atomic.Int32

	for i := 0; i < 6; i++ {
		p.Submit(context.Background(), func(ctx context.Context) error {
			n := running.Add(1)
			if n > maxRunning.Load() {
				maxRunning.Store(n)
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	if errs := p.Wait(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if maxRunning.Load() > 2 {
		t.Fatalf("expected at most 2 tasks running concurrently, saw %d", maxRunning.Load())
	}
}

func TestPool_CollectsErrors(t *testing.T) {
	p := New(1)
	boom := errors.New("boom")
	p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	p.Submit(context.Background(), func(ctx context.Context) error { return boom })

	errs := p.Wait()
	if len(errs) != 1 || errs[0] != boom {
		t.Fatalf("expected exactly the boom error, got %v", errs)
	}
}
