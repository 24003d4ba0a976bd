package store

import (
	"fmt"
	"strings"

	"github.com/jobflow-io/jobflow/pkg/api"
)

// matches reports whether record satisfies every key/value pair in
// filter. "uuid" and "index" address the Record's own fields; any other
// key is a dotted path into Record.Data, matching the subset of
// MongoDB-style query syntax the engine's stores all speak.
func matches(r *api.Record, filter api.Filter) bool {
	for k, want := range filter {
		got, ok := fieldValue(r, k)
		if !ok {
			return false
		}
		if !equalValue(got, want) {
			return false
		}
	}
	return true
}

func fieldValue(r *api.Record, field string) (any, bool) {
	switch field {
	case "uuid":
		return r.UUID, true
	case "index":
		return r.Index, true
	}
	return lookupPath(r.Data, strings.Split(field, "."))
}

func lookupPath(data map[string]any, path []string) (any, bool) {
	var cur any = data
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func equalValue(got, want any) bool {
	return stringify(got) == stringify(want)
}

func stringify(v any) string {
	return fmt.Sprintf("%v", v)
}

// projectRecord returns r itself, not a copy; properties is currently
// advisory only (every backend returns full records), kept in the
// signature so callers can start trimming payloads without an interface
// change later.
func projectRecord(r *api.Record, properties []string) *api.Record {
	return r
}
