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

// PostgresStore is an api.Store backed by PostgreSQL.
//
// It expects an *sql.DB using a PostgreSQL driver, for example
// "github.com/jackc/pgx/v5/stdlib":
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
type PostgresStore struct {
	db    *sql.DB
	table string
}

var _ api.Store = (*PostgresStore)(nil)

// NewPostgresStore initializes the required schema in db and returns a
// new PostgresStore. table defaults to "jobflow_outputs".
func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if table == "" {
		table = "jobflow_outputs"
	}
	s := &PostgresStore{db: db, table: table}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uuid TEXT NOT NULL,
			idx INTEGER NOT NULL,
			data BYTEA,
			metadata BYTEA,
			hosts BYTEA,
			store_names BYTEA,
			PRIMARY KEY (uuid, idx)
		);`, s.table),
	)
	return err
}

func (s *PostgresStore) Connect(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *PostgresStore) Close() error                        { return s.db.Close() }

func (s *PostgresStore) Update(ctx context.Context, filter api.Filter, record *api.Record) error {
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
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uuid, idx) DO UPDATE SET
			data = excluded.data,
			metadata = excluded.metadata,
			hosts = excluded.hosts,
			store_names = excluded.store_names`, s.table),
		record.UUID, record.Index, data, metadata, hosts, storeNames,
	)
	return err
}

func (s *PostgresStore) QueryOne(ctx context.Context, filter api.Filter, properties []string) (*api.Record, error) {
	uuid, index, rest := splitIdentityFilter(filter)
	where, args := postgresWhere(uuid, index, rest)
	query := fmt.Sprintf(`SELECT uuid, idx, data, metadata, hosts, store_names FROM %s %s LIMIT 1`, s.table, where)

	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanSQLiteRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) Query(ctx context.Context, filter api.Filter, properties []string) (api.RecordIter, error) {
	uuid, index, rest := splitIdentityFilter(filter)
	where, args := postgresWhere(uuid, index, rest)
	query := fmt.Sprintf(`SELECT uuid, idx, data, metadata, hosts, store_names FROM %s %s`, s.table, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRowsIter{rows: rows}, nil
}

func (s *PostgresStore) Remove(ctx context.Context, filter api.Filter) error {
	uuid, index, rest := splitIdentityFilter(filter)
	where, args := postgresWhere(uuid, index, rest)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s %s`, s.table, where), args...)
	return err
}

func (s *PostgresStore) Count(ctx context.Context, filter api.Filter) (int64, error) {
	uuid, index, rest := splitIdentityFilter(filter)
	where, args := postgresWhere(uuid, index, rest)
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, s.table, where), args...)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) Distinct(ctx context.Context, field string, filter api.Filter) ([]any, error) {
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

func postgresWhere(uuid string, index int, rest api.Filter) (string, []any) {
	var clauses []string
	var args []any
	if uuid != "" {
		args = append(args, uuid)
		clauses = append(clauses, fmt.Sprintf("uuid = $%d", len(args)))
	}
	if index >= 0 {
		args = append(args, index)
		clauses = append(clauses, fmt.Sprintf("idx = $%d", len(args)))
	}
	_ = rest
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
