package codec

// Location is a path of map keys / slice indices into an encoded tree,
// as produced by FindKeyValue and consumed by GetAt/SetAt. It mirrors the
// locations returned by the original implementation's find_key_value /
// pydash.get helpers.
type Location []any

// FindKeyValue walks an encoded tree (as produced by Encode) and returns
// the Location of every map that has tree[key] == value. Traversal covers
// maps and slices, so a typed-object's fields and any container nested
// inside it are all reachable — this is what makes FindRefs total over
// arbitrarily nested containers.
func FindKeyValue(tree any, key string, value any) []Location {
	var out []Location
	var walk func(node any, path Location)
	walk = func(node any, path Location) {
		switch t := node.(type) {
		case map[string]any:
			if v, ok := t[key]; ok && v == value {
				out = append(out, append(Location{}, path...))
			}
			for k, v := range t {
				walk(v, append(path, k))
			}
		case []any:
			for i, v := range t {
				walk(v, append(path, i))
			}
		}
	}
	walk(tree, Location{})
	return out
}

// GetAt retrieves the value found at loc inside tree.
func GetAt(tree any, loc Location) (any, bool) {
	cur := tree
	for _, step := range loc {
		switch k := step.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[k]
			if !ok {
				return nil, false
			}
		case int:
			s, ok := cur.([]any)
			if !ok || k < 0 || k >= len(s) {
				return nil, false
			}
			cur = s[k]
		default:
			return nil, false
		}
	}
	return cur, true
}

// SetAt replaces the value found at loc inside tree with v. tree must be
// the same mutable map/slice structure returned by Encode; SetAt mutates
// it in place. Setting at the root (empty loc) is a no-op since the
// caller already holds the new root value.
func SetAt(tree any, loc Location, v any) bool {
	if len(loc) == 0 {
		return false
	}
	cur := tree
	for _, step := range loc[:len(loc)-1] {
		switch k := step.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return false
			}
			cur, ok = m[k]
			if !ok {
				return false
			}
		case int:
			s, ok := cur.([]any)
			if !ok || k < 0 || k >= len(s) {
				return false
			}
			cur = s[k]
		default:
			return false
		}
	}
	switch last := loc[len(loc)-1].(type) {
	case string:
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		m[last] = v
		return true
	case int:
		s, ok := cur.([]any)
		if !ok || last < 0 || last >= len(s) {
			return false
		}
		s[last] = v
		return true
	default:
		return false
	}
}
