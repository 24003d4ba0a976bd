package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobflow-io/jobflow/pkg/api"
)

func TestRouter_SaveGetOutput_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewRouter(NewMemoryStore(), nil)

	err := r.Save(ctx, "job-1", 1, map[string]any{"x": 1, "y": "hi"}, "job-1", nil, nil, nil, nil)
	require.NoError(t, err)

	out, err := r.GetOutput(ctx, "job-1", 0, true, nil)
	require.NoError(t, err)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "hi", m["y"])
}

func TestRouter_GetOutput_LatestIndex(t *testing.T) {
	ctx := context.Background()
	r := NewRouter(NewMemoryStore(), nil)

	require.NoError(t, r.Save(ctx, "job-1", 1, map[string]any{"n": 1}, "job-1", nil, nil, nil, nil))
	require.NoError(t, r.Save(ctx, "job-1", 2, map[string]any{"n": 2}, "job-1", nil, nil, nil, nil))

	out, err := r.GetOutput(ctx, "job-1", 0, true, nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	require.EqualValues(t, 2, m["n"], "index <= 0 must resolve to the highest index recorded, not the first inserted")
}

func TestRouter_MultiStoreRouting_ExactKeyMatch(t *testing.T) {
	ctx := context.Background()
	aux := NewMemoryStore()
	r := NewRouter(NewMemoryStore(), map[string]api.Store{"blobs": aux})

	err := r.Save(ctx, "job-1", 1,
		map[string]any{"small": "kept inline", "image_bytes": "deadbeef"},
		"job-1", nil, nil, map[string]string{"image_bytes": "blobs"}, nil,
	)
	require.NoError(t, err)

	// The aux store should hold exactly the extracted key's value.
	n, err := aux.Count(ctx, api.Filter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	out, err := r.GetOutput(ctx, "job-1", 0, true, nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	require.Equal(t, "kept inline", m["small"])
	require.Equal(t, "deadbeef", m["image_bytes"], "load=true must resurrect the blob transparently")
}

func TestRouter_MultiStoreRouting_SourceStoresRestriction(t *testing.T) {
	ctx := context.Background()
	aux := NewMemoryStore()
	r := NewRouter(NewMemoryStore(), map[string]api.Store{"blobs": aux})

	require.NoError(t, r.Save(ctx, "job-1", 1,
		map[string]any{"image_bytes": "deadbeef"},
		"job-1", nil, nil, map[string]string{"image_bytes": "blobs"}, nil,
	))

	out, err := r.GetOutput(ctx, "job-1", 0, true, []string{"other-store"})
	require.NoError(t, err)
	m := out.(map[string]any)
	marker, ok := m["image_bytes"].(map[string]any)
	require.True(t, ok, "a marker restricted to a different store must be left unresolved")
	require.Equal(t, "Blob", marker["@class"])
}

func TestRouter_Remove_CascadesBlobDeletion(t *testing.T) {
	ctx := context.Background()
	aux := NewMemoryStore()
	r := NewRouter(NewMemoryStore(), map[string]api.Store{"blobs": aux})

	require.NoError(t, r.Save(ctx, "job-1", 1,
		map[string]any{"image_bytes": "deadbeef"},
		"job-1", nil, nil, map[string]string{"image_bytes": "blobs"}, nil,
	))
	n, _ := aux.Count(ctx, api.Filter{})
	require.EqualValues(t, 1, n)

	require.NoError(t, r.Remove(ctx, "job-1", 0))

	n, _ = aux.Count(ctx, api.Filter{})
	require.EqualValues(t, 0, n, "removing the main record must cascade to its blobs")
}

func TestRouter_StoredData_NeverResolvable(t *testing.T) {
	ctx := context.Background()
	r := NewRouter(NewMemoryStore(), nil)

	require.NoError(t, r.Save(ctx, "job-1", 1, map[string]any{"x": 1}, "job-1", nil, nil, nil, map[string]any{"audit": true}))

	out, err := r.GetOutput(ctx, "job-1", 0, true, nil)
	require.NoError(t, err)
	m := out.(map[string]any)
	_, present := m["__stored_data__"]
	require.False(t, present, "StoredData must never surface as part of a resolvable output")
}
