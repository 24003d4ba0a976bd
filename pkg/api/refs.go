package api

import (
	"github.com/jobflow-io/jobflow/internal/codec"
)

// FindRefs returns every OutputReference reachable inside arg by walking
// maps, slices, Sets, and typed-object fields. It is total: a reference
// nested arbitrarily deep inside any combination of these containers is
// found.
func FindRefs(arg any) ([]OutputReference, error) {
	if ref, ok := arg.(OutputReference); ok {
		return []OutputReference{ref}, nil
	}

	tree, err := codec.Encode(arg)
	if err != nil {
		return nil, &SerializationError{Op: "find_refs", Err: err}
	}

	locations := codec.FindKeyValue(tree, "@class", refClass)
	refs := make([]OutputReference, 0, len(locations))
	for _, loc := range locations {
		raw, ok := codec.GetAt(tree, loc)
		if !ok {
			continue
		}
		decoded, err := codec.Decode(raw, codec.DefaultRegistry)
		if err != nil {
			return nil, &SerializationError{Op: "find_refs", Err: err}
		}
		ref, ok := decoded.(OutputReference)
		if !ok {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Resolver resolves a single OutputReference to its value. The scheduler
// supplies one backed by a JobStore; tests may supply a stub.
type Resolver func(ref OutputReference) (any, error)

// ResolveRefs returns arg with every reachable OutputReference replaced by
// resolver's result. Resolution is memoized per distinct reference within
// a single call, matching the "resolution is memoized per reference
// within a single call" contract.
func ResolveRefs(arg any, resolver Resolver) (any, error) {
	if ref, ok := arg.(OutputReference); ok {
		return resolver(ref)
	}

	tree, err := codec.Encode(arg)
	if err != nil {
		return nil, &SerializationError{Op: "resolve_refs", Err: err}
	}

	locations := codec.FindKeyValue(tree, "@class", refClass)
	if len(locations) == 0 {
		return codec.Decode(tree, codec.DefaultRegistry)
	}

	cache := map[string]any{}
	for _, loc := range locations {
		raw, ok := codec.GetAt(tree, loc)
		if !ok {
			continue
		}
		decoded, err := codec.Decode(raw, codec.DefaultRegistry)
		if err != nil {
			return nil, &SerializationError{Op: "resolve_refs", Err: err}
		}
		ref, ok := decoded.(OutputReference)
		if !ok {
			continue
		}
		cacheKey := ref.String()
		resolved, ok := cache[cacheKey]
		if !ok {
			resolved, err = resolver(ref)
			if err != nil {
				return nil, err
			}
			cache[cacheKey] = resolved
		}
		codec.SetAt(tree, loc, resolved)
	}

	return codec.Decode(tree, codec.DefaultRegistry)
}

// RewireRefs returns arg with every reachable OutputReference whose uuid
// equals from replaced by a reference to to's uuid, with to's path
// prepended to the original reference's path. It is used by the
// scheduler to rewire dependents of a Job that was detoured or replaced,
// without disturbing any reference to a different uuid.
func RewireRefs(arg any, from string, to OutputReference) (any, error) {
	if ref, ok := arg.(OutputReference); ok {
		if ref.UUID() == from {
			return rewireOne(ref, to), nil
		}
		return ref, nil
	}

	tree, err := codec.Encode(arg)
	if err != nil {
		return nil, &SerializationError{Op: "rewire_refs", Err: err}
	}

	locations := codec.FindKeyValue(tree, "@class", refClass)
	for _, loc := range locations {
		raw, ok := codec.GetAt(tree, loc)
		if !ok {
			continue
		}
		decoded, err := codec.Decode(raw, codec.DefaultRegistry)
		if err != nil {
			return nil, &SerializationError{Op: "rewire_refs", Err: err}
		}
		ref, ok := decoded.(OutputReference)
		if !ok || ref.UUID() != from {
			continue
		}
		rewired := rewireOne(ref, to)
		rewiredTree, err := codec.Encode(rewired)
		if err != nil {
			return nil, &SerializationError{Op: "rewire_refs", Err: err}
		}
		codec.SetAt(tree, loc, rewiredTree)
	}

	return codec.Decode(tree, codec.DefaultRegistry)
}

func rewireOne(ref, to OutputReference) OutputReference {
	rewired := to
	for _, step := range ref.Path() {
		switch k := step.(type) {
		case string:
			rewired = rewired.Attr(k)
		case int:
			rewired = rewired.Index(k)
		}
	}
	return rewired
}
