package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jobflow-io/jobflow/internal/codec"
)

func init() {
	codec.DefaultRegistry.Register(refModule, refClass, decodeOutputReference)
	codec.DefaultRegistry.Register(refModule, setClass, decodeSet)
}

const (
	refModule = "jobflow"
	refClass  = "OutputReference"
	setClass  = "Set"
)

// OnMissing names a policy for a reference that cannot be found. The
// value is carried in ManagerConfig, but the Manager does not read it: an
// unresolvable reference always fails the Job with a
// ReferenceResolutionError, whatever OnMissing is set to.
type OnMissing string

const (
	OnMissingError OnMissing = "error" // return a ReferenceResolutionError
	OnMissingNone  OnMissing = "none"  // substitute nil
	OnMissingPass  OnMissing = "pass"  // leave the reference unresolved
)

// OutputReference is a lazy, immutable handle to the (not yet computed)
// output of a Job. Attr/Index return a new OutputReference with the
// access appended to Path; no evaluation happens until the scheduler
// resolves the Job's arguments through ResolveRefs.
type OutputReference struct {
	uuid         string
	path         codec.Location
	sourceStores []string
}

// NewOutputReference builds a reference to the output of the job with the
// given uuid, with an empty path.
func NewOutputReference(uuid string) OutputReference {
	return OutputReference{uuid: uuid}
}

// UUID returns the uuid of the job this reference points to.
func (r OutputReference) UUID() string { return r.uuid }

// Path returns the ordered sequence of attribute/index lookups to apply
// after fetching the referenced job's output.
func (r OutputReference) Path() codec.Location { return append(codec.Location{}, r.path...) }

// SourceStores returns the named auxiliary stores this reference is
// restricted to resolving through, or nil if unrestricted.
func (r OutputReference) SourceStores() []string { return r.sourceStores }

// WithSourceStores returns a copy of r restricted to resolving through the
// given auxiliary store names.
func (r OutputReference) WithSourceStores(names ...string) OutputReference {
	r2 := r
	r2.sourceStores = append([]string{}, names...)
	return r2
}

// Attr returns a new reference with an attribute/key access appended.
func (r OutputReference) Attr(name string) OutputReference {
	r2 := r
	r2.path = append(append(codec.Location{}, r.path...), name)
	return r2
}

// Index returns a new reference with an integer index access appended.
func (r OutputReference) Index(i int) OutputReference {
	r2 := r
	r2.path = append(append(codec.Location{}, r.path...), i)
	return r2
}

// Equal reports whether r and other point to the same uuid with the same
// path. This is the reference-purity law: attribute/index access never
// mutates or evaluates, it only builds a new, structurally comparable
// value.
func (r OutputReference) Equal(other OutputReference) bool {
	if r.uuid != other.uuid || len(r.path) != len(other.path) {
		return false
	}
	for i := range r.path {
		if fmt.Sprint(r.path[i]) != fmt.Sprint(other.path[i]) {
			return false
		}
		_, aIsInt := r.path[i].(int)
		_, bIsInt := other.path[i].(int)
		if aIsInt != bIsInt {
			return false
		}
	}
	return true
}

// String renders the reference the way the original implementation's
// repr does, e.g. OutputReference(1234, .x, [0]).
func (r OutputReference) String() string {
	if len(r.path) == 0 {
		return fmt.Sprintf("OutputReference(%s)", r.uuid)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "OutputReference(%s", r.uuid)
	for _, step := range r.path {
		switch k := step.(type) {
		case string:
			fmt.Fprintf(&b, ", .%s", k)
		case int:
			fmt.Fprintf(&b, ", [%d]", k)
		}
	}
	b.WriteString(")")
	return b.String()
}

// ClassID / EncodeFields implement codec.TypedObject, giving
// OutputReference the wire form {"@module":"jobflow",
// "@class":"OutputReference", "uuid":..., "attributes":[...]}.
func (r OutputReference) ClassID() (string, string) { return refModule, refClass }

func (r OutputReference) EncodeFields() (map[string]any, error) {
	attrs := make([]any, len(r.path))
	for i, step := range r.path {
		switch k := step.(type) {
		case string:
			attrs[i] = map[string]any{"type": "a", "value": k}
		case int:
			attrs[i] = map[string]any{"type": "i", "value": int64(k)}
		}
	}
	fields := map[string]any{
		"uuid":       r.uuid,
		"attributes": attrs,
	}
	if len(r.sourceStores) > 0 {
		stores := make([]any, len(r.sourceStores))
		for i, s := range r.sourceStores {
			stores[i] = s
		}
		fields["source_stores"] = stores
	}
	return fields, nil
}

func decodeOutputReference(fields map[string]any) (any, error) {
	uuid, _ := fields["uuid"].(string)
	ref := NewOutputReference(uuid)

	if rawAttrs, ok := fields["attributes"].([]any); ok {
		for _, raw := range rawAttrs {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			typ, _ := m["type"].(string)
			switch typ {
			case "a":
				name, _ := m["value"].(string)
				ref = ref.Attr(name)
			case "i":
				idx := toInt(m["value"])
				ref = ref.Index(idx)
			}
		}
	}
	if rawStores, ok := fields["source_stores"].([]any); ok {
		names := make([]string, 0, len(rawStores))
		for _, s := range rawStores {
			if str, ok := s.(string); ok {
				names = append(names, str)
			}
		}
		ref = ref.WithSourceStores(names...)
	}
	return ref, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Set is the engine's container type for the "set of T" shape mentioned
// in the wire format: an unordered collection encoded with a stable,
// order-independent wire form (its items are sorted by their encoded
// representation) so that two sets with the same members encode
// identically regardless of construction order.
type Set []any

func (Set) ClassID() (string, string) { return refModule, setClass }

func (s Set) EncodeFields() (map[string]any, error) {
	items := make([]any, len(s))
	for i, item := range s {
		enc, err := codec.Encode(item)
		if err != nil {
			return nil, err
		}
		items[i] = enc
	}
	sort.SliceStable(items, func(a, b int) bool {
		return fmt.Sprint(items[a]) < fmt.Sprint(items[b])
	})
	return map[string]any{"items": items}, nil
}

func decodeSet(fields map[string]any) (any, error) {
	items, _ := fields["items"].([]any)
	return Set(items), nil
}
