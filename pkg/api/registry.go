package api

import (
	"context"
	"fmt"
	"sync"
)

// Handler is the in-process form of a registered callable: the function
// body backing a Job. Args/kwargs have already had every OutputReference
// resolved by the time Handler is invoked.
type Handler func(ctx context.Context, args []any, kwargs map[string]any) (*Response, error)

// Registry resolves a Job's stable Function name back to the Go callable
// that implements it. Jobs carry a name rather than a closure so that a
// Job's body is describable data (spec.md's "opaque callable reference"),
// the same way the teacher's workflow registry resolves a step name back
// to a StepFunc.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// DefaultRegistry is the Registry Maker registers every function into.
var DefaultRegistry = NewRegistry()

// Register associates name with a handler. Re-registering the same name
// overwrites the previous handler, mirroring how the teacher's function
// decorators can be redefined during iterative development.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("jobflow: no function registered under name %q", name)
	}
	return h, nil
}
