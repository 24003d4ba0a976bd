package api

import "testing"

func TestOutputReference_AttrIndexPurity(t *testing.T) {
	base := NewOutputReference("job-1")
	child := base.Attr("x").Index(0)

	if len(base.Path()) != 0 {
		t.Fatalf("Attr/Index must not mutate the receiver, base.Path() = %v", base.Path())
	}
	if len(child.Path()) != 2 {
		t.Fatalf("expected child to carry 2 path steps, got %v", child.Path())
	}
}

func TestOutputReference_Equal(t *testing.T) {
	a := NewOutputReference("job-1").Attr("x").Index(2)
	b := NewOutputReference("job-1").Attr("x").Index(2)
	c := NewOutputReference("job-1").Attr("y").Index(2)
	d := NewOutputReference("job-2").Attr("x").Index(2)

	if !a.Equal(b) {
		t.Fatalf("expected a.Equal(b) for structurally identical references")
	}
	if a.Equal(c) {
		t.Fatalf("expected a not to equal c (different attr)")
	}
	if a.Equal(d) {
		t.Fatalf("expected a not to equal d (different uuid)")
	}
}

func TestOutputReference_String(t *testing.T) {
	ref := NewOutputReference("job-1").Attr("x").Index(0)
	got := ref.String()
	want := "OutputReference(job-1, .x, [0])"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestOutputReference_EncodeDecodeRoundTrip(t *testing.T) {
	ref := NewOutputReference("job-1").Attr("x").Index(3).WithSourceStores("blobs")

	refs, err := FindRefs(map[string]any{"nested": []any{ref}})
	if err != nil {
		t.Fatalf("FindRefs: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected exactly 1 reference, got %d", len(refs))
	}
	if !refs[0].Equal(ref) {
		t.Fatalf("round-tripped reference %v does not equal original %v", refs[0], ref)
	}
	if len(refs[0].SourceStores()) != 1 || refs[0].SourceStores()[0] != "blobs" {
		t.Fatalf("expected source_stores to survive the round trip, got %v", refs[0].SourceStores())
	}
}

func TestResolveRefs_MemoizesPerCall(t *testing.T) {
	ref := NewOutputReference("job-1")
	calls := 0
	resolver := func(r OutputReference) (any, error) {
		calls++
		return 42, nil
	}

	out, err := ResolveRefs(map[string]any{"a": ref, "b": ref}, resolver)
	if err != nil {
		t.Fatalf("ResolveRefs: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the resolver to be called once for two occurrences of the same reference, got %d calls", calls)
	}
	m := out.(map[string]any)
	if m["a"] != int64(42) && m["a"] != 42 {
		t.Fatalf("unexpected resolved value for a: %v", m["a"])
	}
}

func TestRewireRefs_OnlyMatchingUUID(t *testing.T) {
	refA := NewOutputReference("job-a").Attr("x")
	refB := NewOutputReference("job-b")
	to := NewOutputReference("job-c")

	out, err := RewireRefs(map[string]any{"a": refA, "b": refB}, "job-a", to)
	if err != nil {
		t.Fatalf("RewireRefs: %v", err)
	}
	m := out.(map[string]any)

	rewired, ok := m["a"].(OutputReference)
	if !ok {
		t.Fatalf("expected a to decode back to an OutputReference, got %T", m["a"])
	}
	if rewired.UUID() != "job-c" || len(rewired.Path()) != 1 {
		t.Fatalf("expected rewired reference to point at job-c with path preserved, got %v", rewired)
	}

	untouched, ok := m["b"].(OutputReference)
	if !ok || untouched.UUID() != "job-b" {
		t.Fatalf("expected b to be untouched, got %v", m["b"])
	}
}
