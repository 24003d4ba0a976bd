// Package codec implements the self-describing tree encoding used to
// persist Job arguments and outputs, and to carry late-bound references
// through arbitrarily nested containers.
//
// Values are mapped onto a small set of "tree" shapes: primitives map to
// their natural JSON types, ordered sequences become []any, string-keyed
// mappings become map[string]any, and anything else that implements
// TypedObject is encoded as a typed-object map carrying "@module" and
// "@class" markers. Decoding re-hydrates typed objects whose class has
// been registered; unknown typed objects decode as opaque maps.
package codec

import (
	"fmt"
	"reflect"
	"sort"
)

const (
	moduleKey  = "@module"
	classKey   = "@class"
	versionKey = "@version"
)

// TypedObject is implemented by values that need a custom wire
// representation (OutputReference, Set, Blob, ...). EncodeFields returns
// the object's fields only; the module/class markers are added by the
// encoder.
type TypedObject interface {
	ClassID() (module, class string)
	EncodeFields() (map[string]any, error)
}

// Decoder rehydrates a typed object from its decoded fields.
type Decoder func(fields map[string]any) (any, error)

// Registry maps (module, class) pairs to decoders. A process-wide
// DefaultRegistry is used unless callers build their own.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register associates a decoder with a (module, class) pair. Re-registering
// the same pair overwrites the previous decoder.
func (r *Registry) Register(module, class string, dec Decoder) {
	r.decoders[key(module, class)] = dec
}

func (r *Registry) lookup(module, class string) (Decoder, bool) {
	dec, ok := r.decoders[key(module, class)]
	return dec, ok
}

func key(module, class string) string { return module + "." + class }

// DefaultRegistry is the registry used by Encode/Decode when callers don't
// supply their own. jobflow's own types register themselves here via
// init().
var DefaultRegistry = NewRegistry()

// Encode converts an arbitrary Go value into the self-describing tree
// shape described in the package docs. It is total: any value reachable
// through structs, maps, slices, arrays, and pointers is representable
// (structs without a TypedObject implementation are encoded field-by-field
// using their exported fields).
func Encode(v any) (any, error) {
	return encode(reflect.ValueOf(v))
}

func encode(rv reflect.Value) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}

	if to, ok := rv.Interface().(TypedObject); ok {
		return encodeTyped(to)
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return encode(rv.Elem())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := encode(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			ev, err := encode(rv.MapIndex(k))
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k.Interface())] = ev
		}
		return out, nil
	case reflect.Struct:
		return encodeStruct(rv)
	default:
		return nil, fmt.Errorf("codec: cannot encode value of kind %s", rv.Kind())
	}
}

func encodeStruct(rv reflect.Value) (any, error) {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		ev, err := encode(rv.Field(i))
		if err != nil {
			return nil, err
		}
		out[f.Name] = ev
	}
	return out, nil
}

func encodeTyped(to TypedObject) (any, error) {
	module, class := to.ClassID()
	fields, err := to.EncodeFields()
	if err != nil {
		return nil, fmt.Errorf("codec: encoding %s.%s: %w", module, class, err)
	}
	out := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		ev, err := encode(reflect.ValueOf(v))
		if err != nil {
			return nil, fmt.Errorf("codec: encoding %s.%s field %q: %w", module, class, k, err)
		}
		out[k] = ev
	}
	out[moduleKey] = module
	out[classKey] = class
	out[versionKey] = nil
	return out, nil
}

// Decode re-hydrates a tree produced by Encode, using reg to resolve typed
// objects. Unknown typed objects (unregistered class) are returned as
// opaque map[string]any values, markers included.
func Decode(tree any, reg *Registry) (any, error) {
	if reg == nil {
		reg = DefaultRegistry
	}
	switch t := tree.(type) {
	case map[string]any:
		module, hasModule := t[moduleKey].(string)
		class, hasClass := t[classKey].(string)
		if hasModule && hasClass {
			dec, ok := reg.lookup(module, class)
			if ok {
				fields := make(map[string]any, len(t))
				for k, v := range t {
					if k == moduleKey || k == classKey || k == versionKey {
						continue
					}
					dv, err := Decode(v, reg)
					if err != nil {
						return nil, err
					}
					fields[k] = dv
				}
				return dec(fields)
			}
		}
		out := make(map[string]any, len(t))
		for k, v := range t {
			dv, err := Decode(v, reg)
			if err != nil {
				return nil, err
			}
			out[k] = dv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			dv, err := Decode(v, reg)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	default:
		return tree, nil
	}
}
