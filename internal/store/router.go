package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jobflow-io/jobflow/internal/codec"
	"github.com/jobflow-io/jobflow/pkg/api"
)

const (
	blobClass    = "Blob"
	blobUUIDKey  = "blob_uuid"
	blobStoreKey = "store"
)

// Router implements api.JobStore over one main api.Store and zero or
// more named auxiliary api.Stores, exactly as spec'd: save rewrites
// matching subtrees into blob markers and persists them to the named
// aux store; get_output resurrects them on load; remove cascades the
// delete to every aux store referenced by a marker in the main record.
type Router struct {
	Main api.Store
	Aux  map[string]api.Store
}

var _ api.JobStore = (*Router)(nil)

// NewRouter builds a Router over a main store and a set of named
// auxiliary stores.
func NewRouter(main api.Store, aux map[string]api.Store) *Router {
	if aux == nil {
		aux = map[string]api.Store{}
	}
	return &Router{Main: main, Aux: aux}
}

// Connect connects the main store and every auxiliary store.
func (r *Router) Connect(ctx context.Context) error {
	if err := r.Main.Connect(ctx); err != nil {
		return err
	}
	for name, s := range r.Aux {
		if err := s.Connect(ctx); err != nil {
			return fmt.Errorf("jobflow: connecting aux store %q: %w", name, err)
		}
	}
	return nil
}

// Close closes the main store and every auxiliary store.
func (r *Router) Close() error {
	var firstErr error
	if err := r.Main.Close(); err != nil {
		firstErr = err
	}
	for _, s := range r.Aux {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Save encodes output, rewrites any subtree whose enclosing key exactly
// matches a pattern in storeNames into a blob marker persisted to the
// named auxiliary store, then commits the resulting main record.
func (r *Router) Save(ctx context.Context, uuidStr string, index int, output any, name string, metadata map[string]any, hosts []string, storeNames map[string]string, storedData any) error {
	tree, err := codec.Encode(output)
	if err != nil {
		return &api.SerializationError{Op: "save", Err: err}
	}

	if len(storeNames) > 0 {
		tree, err = r.extractBlobs(ctx, tree, storeNames)
		if err != nil {
			return err
		}
	}

	data, ok := tree.(map[string]any)
	if !ok {
		data = map[string]any{"__value__": tree}
	}
	if storedData != nil {
		storedTree, err := codec.Encode(storedData)
		if err != nil {
			return &api.SerializationError{Op: "save", Err: err}
		}
		data["__stored_data__"] = storedTree
	}

	record := &api.Record{
		UUID:       uuidStr,
		Index:      index,
		Data:       data,
		Metadata:   withJobName(metadata, name),
		Hosts:      hosts,
		StoreNames: storeNames,
	}
	return r.Main.Update(ctx, api.Filter{"uuid": uuidStr, "index": index}, record)
}

func withJobName(metadata map[string]any, name string) map[string]any {
	out := map[string]any{}
	for k, v := range metadata {
		out[k] = v
	}
	out["name"] = name
	return out
}

// extractBlobs walks tree and, wherever a map key exactly matches a
// pattern in storeNames, persists that key's value to the named
// auxiliary store under a fresh blob uuid and replaces it in place with
// a blob marker. Auxiliary blobs are written before this function
// returns, so the main record is never committed referencing a blob
// that does not yet exist.
func (r *Router) extractBlobs(ctx context.Context, tree any, storeNames map[string]string) (any, error) {
	switch t := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			if storeName, ok := storeNames[k]; ok {
				marker, err := r.storeBlob(ctx, storeName, v)
				if err != nil {
					return nil, err
				}
				out[k] = marker
				continue
			}
			rewritten, err := r.extractBlobs(ctx, v, storeNames)
			if err != nil {
				return nil, err
			}
			out[k] = rewritten
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			rewritten, err := r.extractBlobs(ctx, v, storeNames)
			if err != nil {
				return nil, err
			}
			out[i] = rewritten
		}
		return out, nil
	default:
		return tree, nil
	}
}

func (r *Router) storeBlob(ctx context.Context, storeName string, value any) (map[string]any, error) {
	aux, ok := r.Aux[storeName]
	if !ok {
		return nil, fmt.Errorf("jobflow: no auxiliary store registered under name %q", storeName)
	}
	blobUUID := uuid.NewString()
	data, ok := value.(map[string]any)
	if !ok {
		data = map[string]any{"__value__": value}
	}
	err := aux.Update(ctx, api.Filter{"uuid": blobUUID, "index": 0}, &api.Record{
		UUID: blobUUID, Index: 0, Data: data,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		blobUUIDKey:  blobUUID,
		blobStoreKey: storeName,
		"@class":     blobClass,
	}, nil
}

// GetOutput fetches the (uuid, index) main record and, if load is true,
// resurrects blob markers by querying the named auxiliary store. index
// <= 0 means "the latest index recorded for uuid". sourceStores, when
// non-empty, restricts resurrection to markers whose store name appears
// in the list; markers routed elsewhere are left unresolved.
func (r *Router) GetOutput(ctx context.Context, uuidStr string, index int, load bool, sourceStores []string) (any, error) {
	var record *api.Record
	var err error
	if index > 0 {
		record, err = r.Main.QueryOne(ctx, api.Filter{"uuid": uuidStr, "index": index}, nil)
	} else {
		record, err = r.latestRecord(ctx, uuidStr)
	}
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &api.OutputNotFoundError{UUID: uuidStr, Index: index}
	}

	data := record.Data
	if load {
		resolved, err := r.resolveBlobs(ctx, data, sourceStores)
		if err != nil {
			return nil, err
		}
		data = resolved.(map[string]any)
	}

	delete(data, "__stored_data__")
	if raw, ok := data["__value__"]; ok && len(data) == 1 {
		return codec.Decode(raw, codec.DefaultRegistry)
	}
	return codec.Decode(data, codec.DefaultRegistry)
}

// latestRecord scans every record saved under uuidStr and returns the one
// with the highest Index, since no api.Store backend guarantees an
// iteration order QueryOne could rely on for "index <= 0 means latest".
func (r *Router) latestRecord(ctx context.Context, uuidStr string) (*api.Record, error) {
	iter, err := r.Main.Query(ctx, api.Filter{"uuid": uuidStr}, nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var latest *api.Record
	for {
		rec, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		if latest == nil || rec.Index > latest.Index {
			latest = rec
		}
	}
	return latest, nil
}

func (r *Router) resolveBlobs(ctx context.Context, tree any, sourceStores []string) (any, error) {
	switch t := tree.(type) {
	case map[string]any:
		if class, ok := t["@class"].(string); ok && class == blobClass {
			storeName, _ := t[blobStoreKey].(string)
			if len(sourceStores) > 0 && !contains(sourceStores, storeName) {
				return t, nil
			}
			blobUUID, _ := t[blobUUIDKey].(string)
			return r.loadBlob(ctx, storeName, blobUUID)
		}
		out := make(map[string]any, len(t))
		for k, v := range t {
			rv, err := r.resolveBlobs(ctx, v, sourceStores)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			rv, err := r.resolveBlobs(ctx, v, sourceStores)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return tree, nil
	}
}

func (r *Router) loadBlob(ctx context.Context, storeName, blobUUID string) (any, error) {
	aux, ok := r.Aux[storeName]
	if !ok {
		return nil, fmt.Errorf("jobflow: no auxiliary store registered under name %q", storeName)
	}
	record, err := aux.QueryOne(ctx, api.Filter{"uuid": blobUUID}, nil)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("jobflow: dangling blob marker %s in store %q", blobUUID, storeName)
	}
	if raw, ok := record.Data["__value__"]; ok && len(record.Data) == 1 {
		return raw, nil
	}
	return record.Data, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Remove deletes the (uuid, index) main record, cascading the delete to
// every auxiliary blob referenced by a marker inside it.
func (r *Router) Remove(ctx context.Context, uuidStr string, index int) error {
	filter := api.Filter{"uuid": uuidStr}
	if index > 0 {
		filter["index"] = index
	}

	iter, err := r.Main.Query(ctx, filter, nil)
	if err != nil {
		return err
	}
	var records []*api.Record
	for {
		rec, err := iter.Next(ctx)
		if err != nil {
			iter.Close()
			return err
		}
		if rec == nil {
			break
		}
		records = append(records, rec)
	}
	iter.Close()

	for _, rec := range records {
		if err := r.removeBlobs(ctx, rec.Data); err != nil {
			return err
		}
	}
	return r.Main.Remove(ctx, filter)
}

func (r *Router) removeBlobs(ctx context.Context, tree any) error {
	switch t := tree.(type) {
	case map[string]any:
		if class, ok := t["@class"].(string); ok && class == blobClass {
			storeName, _ := t[blobStoreKey].(string)
			blobUUID, _ := t[blobUUIDKey].(string)
			if aux, ok := r.Aux[storeName]; ok {
				return aux.Remove(ctx, api.Filter{"uuid": blobUUID})
			}
			return nil
		}
		for _, v := range t {
			if err := r.removeBlobs(ctx, v); err != nil {
				return err
			}
		}
	case []any:
		for _, v := range t {
			if err := r.removeBlobs(ctx, v); err != nil {
				return err
			}
		}
	}
	return nil
}
