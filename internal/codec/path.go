package codec

import (
	"fmt"
	"reflect"
)

// PathError reports the failing step of ApplyPath, letting callers build a
// ReferenceResolutionError with the failing index.
type PathError struct {
	Path     Location
	FailedAt int
	Err      error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("codec: path step %d (%v) failed: %v", e.FailedAt, e.Path[e.FailedAt], e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// ApplyPath dereferences a fetched value against an ordered path of
// attribute names (string) and indices (int). It accepts both decoded
// tree shapes (map[string]any / []any) and concrete Go values reached via
// reflection, so a path can walk through either representation.
func ApplyPath(v any, path Location) (any, error) {
	cur := v
	for i, step := range path {
		next, err := applyStep(cur, step)
		if err != nil {
			return nil, &PathError{Path: path, FailedAt: i, Err: err}
		}
		cur = next
	}
	return cur, nil
}

func applyStep(v any, step any) (any, error) {
	switch k := step.(type) {
	case string:
		if m, ok := v.(map[string]any); ok {
			val, ok := m[k]
			if !ok {
				return nil, fmt.Errorf("no attribute %q", k)
			}
			return val, nil
		}
		return reflectField(v, k)
	case int:
		if s, ok := v.([]any); ok {
			if k < 0 || k >= len(s) {
				return nil, fmt.Errorf("index %d out of range (len %d)", k, len(s))
			}
			return s[k], nil
		}
		return reflectIndex(v, k)
	default:
		return nil, fmt.Errorf("unsupported path step type %T", step)
	}
}

func reflectField(v any, name string) (any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("nil pointer, cannot access attribute %q", name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot access attribute %q on %T", name, v)
	}
	fv := rv.FieldByName(name)
	if !fv.IsValid() {
		return nil, fmt.Errorf("no attribute %q on %T", name, v)
	}
	return fv.Interface(), nil
}

func reflectIndex(v any, idx int) (any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("nil pointer, cannot index %d", idx)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot index %T", v)
	}
	if idx < 0 || idx >= rv.Len() {
		return nil, fmt.Errorf("index %d out of range (len %d)", idx, rv.Len())
	}
	return rv.Index(idx).Interface(), nil
}
