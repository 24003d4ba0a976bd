package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobflow-io/jobflow/pkg/api"
)

func TestMemoryStore_UpdateInsertsThenReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Update(ctx, api.Filter{"uuid": "a", "index": 1}, &api.Record{
		UUID: "a", Index: 1, Data: map[string]any{"v": int64(1)},
	}))
	n, err := s.Count(ctx, api.Filter{"uuid": "a"})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, s.Update(ctx, api.Filter{"uuid": "a", "index": 1}, &api.Record{
		UUID: "a", Index: 1, Data: map[string]any{"v": int64(2)},
	}))
	rec, err := s.QueryOne(ctx, api.Filter{"uuid": "a", "index": 1}, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, int64(2), rec.Data["v"])
	n, err = s.Count(ctx, api.Filter{"uuid": "a"})
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "update on a matching filter must replace, not append")
}

func TestMemoryStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Update(ctx, api.Filter{"uuid": "a", "index": 1}, &api.Record{UUID: "a", Index: 1}))
	require.NoError(t, s.Update(ctx, api.Filter{"uuid": "b", "index": 1}, &api.Record{UUID: "b", Index: 1}))

	require.NoError(t, s.Remove(ctx, api.Filter{"uuid": "a"}))

	rec, err := s.QueryOne(ctx, api.Filter{"uuid": "a"}, nil)
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = s.QueryOne(ctx, api.Filter{"uuid": "b"}, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestMemoryStore_Distinct(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Update(ctx, api.Filter{"uuid": "a", "index": 1}, &api.Record{UUID: "a", Index: 1}))
	require.NoError(t, s.Update(ctx, api.Filter{"uuid": "a", "index": 2}, &api.Record{UUID: "a", Index: 2}))
	require.NoError(t, s.Update(ctx, api.Filter{"uuid": "b", "index": 1}, &api.Record{UUID: "b", Index: 1}))

	vals, err := s.Distinct(ctx, "uuid", api.Filter{})
	require.NoError(t, err)
	require.Len(t, vals, 2)
}
