package api

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jobflow-io/jobflow/internal/codec"
)

// JobStore is the subset of the store router a Job needs to run: resolve
// its inputs and persist its output. The concrete router lives in
// internal/store; Job only depends on this interface so pkg/api stays
// free of storage backends.
type JobStore interface {
	GetOutput(ctx context.Context, uuid string, index int, load bool, sourceStores []string) (any, error)
	Save(ctx context.Context, uuid string, index int, output any, name string, metadata map[string]any, hosts []string, storeNames map[string]string, storedData any) error
}

// Job is a deferred invocation of a registered function: the atomic unit
// of work the Manager schedules.
type Job struct {
	UUID  string
	Index int
	Name  string

	Function string
	Args     []any
	Kwargs   map[string]any

	OutputSchema *Schema
	StoreNames   map[string]string
	Metadata     map[string]any
	Hosts        []string

	registry *Registry
	parent   *Flow
}

// JobOption configures a Job at construction time.
type JobOption func(*Job)

// WithName sets the Job's display name.
func WithName(name string) JobOption {
	return func(j *Job) { j.Name = name }
}

// WithOutputSchema attaches a schema that the Job's return value must
// satisfy.
func WithOutputSchema(schema *Schema) JobOption {
	return func(j *Job) { j.OutputSchema = schema }
}

// WithStoreNames sets the exact-key routing table used to split the
// Job's output across named auxiliary stores (see JobStore.Save).
func WithStoreNames(storeNames map[string]string) JobOption {
	return func(j *Job) { j.StoreNames = storeNames }
}

// WithMetadata attaches opaque scheduler annotations to the Job.
func WithMetadata(metadata map[string]any) JobOption {
	return func(j *Job) { j.Metadata = metadata }
}

// WithRegistry overrides the Registry used to look up Function at run
// time. Defaults to DefaultRegistry.
func WithRegistry(reg *Registry) JobOption {
	return func(j *Job) { j.registry = reg }
}

// NewJob constructs a Job bound to a registered function name. It is
// normally called by Maker, not directly by user code.
func NewJob(function string, args []any, kwargs map[string]any, opts ...JobOption) *Job {
	j := &Job{
		UUID:     uuid.NewString(),
		Index:    1,
		Function: function,
		Args:     args,
		Kwargs:   kwargs,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.Name == "" {
		j.Name = function
	}
	return j
}

// SetUUID replaces the Job's uuid. Valid only before the Job has been
// scheduled (the engine never calls this once a Flow has been submitted
// to a Manager).
func (j *Job) SetUUID(newUUID string) {
	j.UUID = newUUID
}

// Output returns an OutputReference to this Job's uuid with an empty
// path. The reference carries no index; it resolves to the highest index
// stored for that uuid.
func (j *Job) Output() OutputReference {
	return NewOutputReference(j.UUID)
}

// Attr returns a reference to a named attribute of the Job's output,
// checked against the Job's OutputSchema if one is set. Prefer this over
// Output().Attr(name) when the Job declares an OutputSchema: it catches a
// typo'd attribute name at graph-construction time instead of at
// resolution time, deep inside a running Flow.
func (j *Job) Attr(name string) (OutputReference, error) {
	if j.OutputSchema != nil {
		if err := j.OutputSchema.ValidateAccess(name); err != nil {
			return OutputReference{}, err
		}
	}
	return j.Output().Attr(name), nil
}

// InputReferences returns every OutputReference reachable in the Job's
// positional and keyword arguments.
func (j *Job) InputReferences() ([]OutputReference, error) {
	var all []OutputReference
	for _, arg := range j.Args {
		refs, err := FindRefs(arg)
		if err != nil {
			return nil, err
		}
		all = append(all, refs...)
	}
	keys := sortedKeys(j.Kwargs)
	for _, k := range keys {
		refs, err := FindRefs(j.Kwargs[k])
		if err != nil {
			return nil, err
		}
		all = append(all, refs...)
	}
	return all, nil
}

// InputUUIDs returns the set of distinct uuids referenced by the Job's
// arguments.
func (j *Job) InputUUIDs() (map[string]struct{}, error) {
	refs, err := j.InputReferences()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		out[r.UUID()] = struct{}{}
	}
	return out, nil
}

// Rewire replaces every reference to uuid from inside the Job's
// arguments with a reference to to, preserving any attribute/index path
// already applied. Used by the Manager when applying detour and replace
// directives.
func (j *Job) Rewire(from string, to OutputReference) error {
	for i, arg := range j.Args {
		rv, err := RewireRefs(arg, from, to)
		if err != nil {
			return err
		}
		j.Args[i] = rv
	}
	for _, k := range sortedKeys(j.Kwargs) {
		rv, err := RewireRefs(j.Kwargs[k], from, to)
		if err != nil {
			return err
		}
		j.Kwargs[k] = rv
	}
	return nil
}

// UpdateKwargs recursively rewrites keyword arguments matching a
// predicate, used by higher-level utilities (maker options, sub-flow
// wiring) rather than by the Manager itself.
func (j *Job) UpdateKwargs(match func(any) bool, apply func(any) any) {
	for k, v := range j.Kwargs {
		j.Kwargs[k] = rewrite(v, match, apply)
	}
}

func rewrite(v any, match func(any) bool, apply func(any) any) any {
	if match(v) {
		return apply(v)
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = rewrite(vv, match, apply)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = rewrite(vv, match, apply)
		}
		return out
	default:
		return v
	}
}

// Run resolves the Job's arguments against store, invokes the registered
// function, and returns its Response. It never persists the result
// itself and is never invoked by user code directly — only the Manager
// calls it, after which the Manager is responsible for calling
// store.Save with the returned Response.
func (j *Job) Run(ctx context.Context, store JobStore) (*Response, error) {
	reg := j.registry
	if reg == nil {
		reg = DefaultRegistry
	}
	handler, err := reg.Lookup(j.Function)
	if err != nil {
		return nil, err
	}

	resolver := func(ref OutputReference) (any, error) {
		value, err := store.GetOutput(ctx, ref.UUID(), 0, true, ref.SourceStores())
		if err != nil {
			return nil, &ReferenceResolutionError{UUID: ref.UUID(), FailedAt: -1, Err: err}
		}
		if len(ref.Path()) == 0 {
			return value, nil
		}
		resolved, perr := codec.ApplyPath(value, ref.Path())
		if perr != nil {
			var pathErr *codec.PathError
			if errors.As(perr, &pathErr) {
				return nil, &ReferenceResolutionError{UUID: ref.UUID(), Path: pathErr.Path, FailedAt: pathErr.FailedAt, Err: pathErr.Err}
			}
			return nil, &ReferenceResolutionError{UUID: ref.UUID(), FailedAt: -1, Err: perr}
		}
		return resolved, nil
	}

	resolvedArgs := make([]any, len(j.Args))
	for i, arg := range j.Args {
		rv, err := ResolveRefs(arg, resolver)
		if err != nil {
			return nil, err
		}
		resolvedArgs[i] = rv
	}

	resolvedKwargs := make(map[string]any, len(j.Kwargs))
	for _, k := range sortedKeys(j.Kwargs) {
		rv, err := ResolveRefs(j.Kwargs[k], resolver)
		if err != nil {
			return nil, err
		}
		resolvedKwargs[k] = rv
	}

	resp, err := handler(ctx, resolvedArgs, resolvedKwargs)
	if err != nil {
		return nil, &JobFailure{UUID: j.UUID, Index: j.Index, Err: err}
	}
	if resp == nil {
		resp = &Response{}
	}

	if j.OutputSchema != nil {
		if verr := j.OutputSchema.Validate(resp.Output); verr != nil {
			return nil, &SchemaViolationError{UUID: j.UUID, Reason: verr.Error()}
		}
	}

	return resp, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
