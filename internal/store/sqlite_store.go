package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jobflow-io/jobflow/pkg/api"
)

// SQLiteStore is an api.Store backed by SQLite.
//
// It expects an *sql.DB using a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db    *sql.DB
	table string
}

var _ api.Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in db and returns a new
// SQLiteStore. table defaults to "jobflow_outputs".
func NewSQLiteStore(db *sql.DB, table string) (*SQLiteStore, error) {
	if table == "" {
		table = "jobflow_outputs"
	}
	s := &SQLiteStore{db: db, table: table}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uuid TEXT NOT NULL,
			idx INTEGER NOT NULL,
			data BLOB,
			metadata BLOB,
			hosts BLOB,
			store_names BLOB,
			PRIMARY KEY (uuid, idx)
		);`, s.table),
	)
	return err
}

func (s *SQLiteStore) Connect(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteStore) Close() error                        { return s.db.Close() }

func (s *SQLiteStore) Update(ctx context.Context, filter api.Filter, record *api.Record) error {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return err
	}
	hosts, err := json.Marshal(record.Hosts)
	if err != nil {
		return err
	}
	storeNames, err := json.Marshal(record.StoreNames)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (uuid, idx, data, metadata, hosts, store_names)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid, idx) DO UPDATE SET
			data = excluded.data,
			metadata = excluded.metadata,
			hosts = excluded.hosts,
			store_names = excluded.store_names`, s.table),
		record.UUID, record.Index, data, metadata, hosts, storeNames,
	)
	return err
}

func (s *SQLiteStore) QueryOne(ctx context.Context, filter api.Filter, properties []string) (*api.Record, error) {
	uuid, index, rest := splitIdentityFilter(filter)
	where, args := sqliteWhere(uuid, index, rest)
	query := fmt.Sprintf(`SELECT uuid, idx, data, metadata, hosts, store_names FROM %s %s LIMIT 1`, s.table, where)

	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanSQLiteRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) Query(ctx context.Context, filter api.Filter, properties []string) (api.RecordIter, error) {
	uuid, index, rest := splitIdentityFilter(filter)
	where, args := sqliteWhere(uuid, index, rest)
	query := fmt.Sprintf(`SELECT uuid, idx, data, metadata, hosts, store_names FROM %s %s`, s.table, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRowsIter{rows: rows}, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, filter api.Filter) error {
	uuid, index, rest := splitIdentityFilter(filter)
	where, args := sqliteWhere(uuid, index, rest)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s %s`, s.table, where), args...)
	return err
}

func (s *SQLiteStore) Count(ctx context.Context, filter api.Filter) (int64, error) {
	uuid, index, rest := splitIdentityFilter(filter)
	where, args := sqliteWhere(uuid, index, rest)
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, s.table, where), args...)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) Distinct(ctx context.Context, field string, filter api.Filter) ([]any, error) {
	iter, err := s.Query(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	seen := map[string]bool{}
	var out []any
	for {
		rec, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		v, ok := fieldValue(rec, field)
		if !ok {
			continue
		}
		key := stringify(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out, nil
}

// splitIdentityFilter separates the "uuid"/"index" keys, which sqliteWhere
// maps onto indexed columns, from the rest of the filter (the data column
// is opaque JSON to SQLite). The SQL stores ignore the rest: they filter
// on uuid and index only.
func splitIdentityFilter(filter api.Filter) (uuid string, index int, rest api.Filter) {
	rest = api.Filter{}
	index = -1
	for k, v := range filter {
		switch k {
		case "uuid":
			uuid, _ = v.(string)
		case "index":
			if i, ok := v.(int); ok {
				index = i
			}
		default:
			rest[k] = v
		}
	}
	return uuid, index, rest
}

func sqliteWhere(uuid string, index int, rest api.Filter) (string, []any) {
	var clauses []string
	var args []any
	if uuid != "" {
		clauses = append(clauses, "uuid = ?")
		args = append(args, uuid)
	}
	if index >= 0 {
		clauses = append(clauses, "idx = ?")
		args = append(args, index)
	}
	_ = rest // not applied: only uuid and index narrow the query
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanSQLiteRow(scan func(dest ...any) error) (*api.Record, error) {
	var uuid string
	var idx int
	var data, metadata, hosts, storeNames []byte
	if err := scan(&uuid, &idx, &data, &metadata, &hosts, &storeNames); err != nil {
		return nil, err
	}
	return decodeSQLRow(uuid, idx, data, metadata, hosts, storeNames)
}

func decodeSQLRow(uuid string, idx int, data, metadata, hosts, storeNames []byte) (*api.Record, error) {
	rec := &api.Record{UUID: uuid, Index: idx}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, err
		}
	}
	if len(hosts) > 0 {
		if err := json.Unmarshal(hosts, &rec.Hosts); err != nil {
			return nil, err
		}
	}
	if len(storeNames) > 0 {
		if err := json.Unmarshal(storeNames, &rec.StoreNames); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

type sqlRowsIter struct {
	rows *sql.Rows
}

func (it *sqlRowsIter) Next(ctx context.Context) (*api.Record, error) {
	if !it.rows.Next() {
		return nil, it.rows.Err()
	}
	return scanSQLiteRow(it.rows.Scan)
}

func (it *sqlRowsIter) Close() error { return it.rows.Close() }
