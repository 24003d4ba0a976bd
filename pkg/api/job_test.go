package api

import (
	"context"
	"testing"
)

type stubStore struct {
	outputs map[string]any
}

func (s *stubStore) GetOutput(ctx context.Context, uuid string, index int, load bool, sourceStores []string) (any, error) {
	v, ok := s.outputs[uuid]
	if !ok {
		return nil, &OutputNotFoundError{UUID: uuid, Index: index}
	}
	return v, nil
}

func (s *stubStore) Save(ctx context.Context, uuid string, index int, output any, name string, metadata map[string]any, hosts []string, storeNames map[string]string, storedData any) error {
	if s.outputs == nil {
		s.outputs = map[string]any{}
	}
	s.outputs[uuid] = output
	return nil
}

func TestNewJob_DefaultsIndexAndName(t *testing.T) {
	j := NewJob("double", []any{2}, nil)
	if j.Index != 1 {
		t.Fatalf("expected a freshly constructed Job to start at index 1, got %d", j.Index)
	}
	if j.Name != "double" {
		t.Fatalf("expected default Name to fall back to the function name, got %q", j.Name)
	}
	if j.UUID == "" {
		t.Fatalf("expected NewJob to assign a uuid")
	}
}

func TestJob_InputUUIDs(t *testing.T) {
	upstream := NewJob("source", nil, nil)
	j := NewJob("consumer", []any{upstream.Output().Attr("value")}, map[string]any{
		"extra": upstream.Output(),
	})

	uuids, err := j.InputUUIDs()
	if err != nil {
		t.Fatalf("InputUUIDs: %v", err)
	}
	if _, ok := uuids[upstream.UUID]; !ok || len(uuids) != 1 {
		t.Fatalf("expected exactly the upstream job's uuid, got %v", uuids)
	}
}

func TestJob_Rewire(t *testing.T) {
	upstream := NewJob("source", nil, nil)
	replacement := NewOutputReference("replacement-uuid")
	j := NewJob("consumer", []any{upstream.Output().Attr("value")}, nil)

	if err := j.Rewire(upstream.UUID, replacement); err != nil {
		t.Fatalf("Rewire: %v", err)
	}
	ref, ok := j.Args[0].(OutputReference)
	if !ok {
		t.Fatalf("expected arg to stay an OutputReference, got %T", j.Args[0])
	}
	if ref.UUID() != "replacement-uuid" || len(ref.Path()) != 1 {
		t.Fatalf("expected rewired reference to point at replacement-uuid with path preserved, got %v", ref)
	}
}

func TestJob_Run_ResolvesArgsAndInvokes(t *testing.T) {
	reg := NewRegistry()
	reg.Register("add_one", func(ctx context.Context, args []any, kwargs map[string]any) (*Response, error) {
		n := args[0].(int64)
		return NewResponse(n + 1), nil
	})

	upstream := NewJob("source", nil, nil, WithRegistry(reg))
	j := NewJob("add_one", []any{upstream.Output()}, nil, WithRegistry(reg))

	store := &stubStore{outputs: map[string]any{upstream.UUID: int64(41)}}

	resp, err := j.Run(context.Background(), store)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Output != int64(42) {
		t.Fatalf("expected resolved output 42, got %v", resp.Output)
	}
}

func TestJob_Run_SchemaViolation(t *testing.T) {
	reg := NewRegistry()
	reg.Register("bad", func(ctx context.Context, args []any, kwargs map[string]any) (*Response, error) {
		return NewResponse(map[string]any{"only": "this"}), nil
	})

	schema := &Schema{Name: "Expected", Required: []string{"missing"}}
	j := NewJob("bad", nil, nil, WithRegistry(reg), WithOutputSchema(schema))

	_, err := j.Run(context.Background(), &stubStore{})
	if err == nil {
		t.Fatalf("expected a SchemaViolationError")
	}
	if _, ok := err.(*SchemaViolationError); !ok {
		t.Fatalf("expected *SchemaViolationError, got %T: %v", err, err)
	}
}

func TestJob_Attr_ValidatesAgainstSchema(t *testing.T) {
	schema := &Schema{Name: "Result", Required: []string{"value"}}
	j := NewJob("produce", nil, nil, WithOutputSchema(schema))

	ref, err := j.Attr("value")
	if err != nil {
		t.Fatalf("Attr(\"value\"): %v", err)
	}
	if ref.UUID() != j.UUID {
		t.Fatalf("expected a reference to %s, got %s", j.UUID, ref.UUID())
	}

	if _, err := j.Attr("missing"); err == nil {
		t.Fatalf("expected Attr(\"missing\") to fail against a schema that does not declare it")
	}
}

func TestJob_Run_ResolvesThroughPathChain(t *testing.T) {
	reg := NewRegistry()
	reg.Register("source", func(ctx context.Context, args []any, kwargs map[string]any) (*Response, error) {
		return NewResponse(map[string]any{"nested": []any{"a", "b"}}), nil
	})
	reg.Register("consume", func(ctx context.Context, args []any, kwargs map[string]any) (*Response, error) {
		return NewResponse(args[0]), nil
	})

	upstream := NewJob("source", nil, nil, WithRegistry(reg))
	j := NewJob("consume", []any{upstream.Output().Attr("nested").Index(1)}, nil, WithRegistry(reg))

	store := &stubStore{outputs: map[string]any{
		upstream.UUID: map[string]any{"nested": []any{"a", "b"}},
	}}

	resp, err := j.Run(context.Background(), store)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Output != "b" {
		t.Fatalf("expected resolved output %q, got %v", "b", resp.Output)
	}
}

func TestJob_Run_ReportsFailingPathStep(t *testing.T) {
	reg := NewRegistry()
	reg.Register("source", func(ctx context.Context, args []any, kwargs map[string]any) (*Response, error) {
		return NewResponse(map[string]any{"nested": []any{"a"}}), nil
	})
	reg.Register("consume", func(ctx context.Context, args []any, kwargs map[string]any) (*Response, error) {
		return NewResponse(args[0]), nil
	})

	upstream := NewJob("source", nil, nil, WithRegistry(reg))
	j := NewJob("consume", []any{upstream.Output().Attr("nested").Index(5)}, nil, WithRegistry(reg))

	store := &stubStore{outputs: map[string]any{
		upstream.UUID: map[string]any{"nested": []any{"a"}},
	}}

	_, err := j.Run(context.Background(), store)
	rerr, ok := err.(*ReferenceResolutionError)
	if !ok {
		t.Fatalf("expected *ReferenceResolutionError, got %T: %v", err, err)
	}
	if rerr.FailedAt != 1 {
		t.Fatalf("expected the failure reported at path step 1, got %d", rerr.FailedAt)
	}
}
