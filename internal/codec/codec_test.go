package codec

import "testing"

type point struct {
	X int
	Y int
}

func TestEncodeDecode_Primitives(t *testing.T) {
	tree, err := Encode(map[string]any{"n": 3, "s": "hi", "b": true})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m, ok := tree.(map[string]any)
	if !ok {
		t.Fatalf("expected a map, got %T", tree)
	}
	if m["s"] != "hi" || m["b"] != true {
		t.Fatalf("unexpected encoded map: %v", m)
	}

	decoded, err := Decode(tree, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dm := decoded.(map[string]any)
	if dm["s"] != "hi" {
		t.Fatalf("round trip lost a field: %v", dm)
	}
}

func TestEncode_StructUsesExportedFields(t *testing.T) {
	tree, err := Encode(point{X: 1, Y: 2})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m := tree.(map[string]any)
	if m["X"] != int64(1) || m["Y"] != int64(2) {
		t.Fatalf("unexpected struct encoding: %v", m)
	}
}

type stamp struct {
	n int
}

func (s stamp) ClassID() (string, string) { return "test", "Stamp" }
func (s stamp) EncodeFields() (map[string]any, error) {
	return map[string]any{"n": s.n}, nil
}

func TestEncodeDecode_TypedObjectRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test", "Stamp", func(fields map[string]any) (any, error) {
		n := fields["n"].(int64)
		return stamp{n: int(n)}, nil
	})

	tree, err := Encode(stamp{n: 7})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m := tree.(map[string]any)
	if m["@module"] != "test" || m["@class"] != "Stamp" {
		t.Fatalf("expected typed-object markers, got %v", m)
	}

	decoded, err := Decode(tree, reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s, ok := decoded.(stamp)
	if !ok || s.n != 7 {
		t.Fatalf("expected decoded stamp{n:7}, got %#v", decoded)
	}
}

func TestDecode_UnknownTypedObjectStaysOpaque(t *testing.T) {
	tree := map[string]any{"@module": "test", "@class": "Unknown", "n": int64(1)}
	decoded, err := Decode(tree, NewRegistry())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := decoded.(map[string]any)
	if !ok || m["@class"] != "Unknown" {
		t.Fatalf("expected unregistered typed object to decode as an opaque map, got %#v", decoded)
	}
}
