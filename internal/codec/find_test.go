package codec

import "testing"

func TestFindKeyValue_NestedInMapsAndSlices(t *testing.T) {
	tree := map[string]any{
		"a": []any{
			map[string]any{"@class": "Target", "v": int64(1)},
			map[string]any{"@class": "Other"},
		},
		"b": map[string]any{"@class": "Target", "v": int64(2)},
	}

	locs := FindKeyValue(tree, "@class", "Target")
	if len(locs) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(locs), locs)
	}
	for _, loc := range locs {
		v, ok := GetAt(tree, loc)
		if !ok {
			t.Fatalf("GetAt failed for location %v", loc)
		}
		m := v.(map[string]any)
		if m["@class"] != "Target" {
			t.Fatalf("GetAt returned wrong node at %v: %v", loc, m)
		}
	}
}

func TestSetAt_MutatesInPlace(t *testing.T) {
	tree := map[string]any{
		"list": []any{
			map[string]any{"k": "old"},
		},
	}
	loc := Location{"list", 0, "k"}
	if !SetAt(tree, loc, "new") {
		t.Fatalf("SetAt reported failure")
	}
	v, ok := GetAt(tree, loc)
	if !ok || v != "new" {
		t.Fatalf("expected SetAt to replace the value in place, got %v", v)
	}
}

func TestSetAt_RootIsNoOp(t *testing.T) {
	tree := map[string]any{"k": "v"}
	if SetAt(tree, Location{}, "anything") {
		t.Fatalf("expected SetAt at the root location to report failure")
	}
}

func TestApplyPath_ReportsFailingStep(t *testing.T) {
	v := map[string]any{"a": []any{1, 2}}
	_, err := ApplyPath(v, Location{"a", 5})
	if err == nil {
		t.Fatalf("expected an out-of-range index to fail")
	}
	perr, ok := err.(*PathError)
	if !ok {
		t.Fatalf("expected *PathError, got %T", err)
	}
	if perr.FailedAt != 1 {
		t.Fatalf("expected the failure to be reported at step 1, got %d", perr.FailedAt)
	}
}
