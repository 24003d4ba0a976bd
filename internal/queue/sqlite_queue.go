package queue

import (
	"context"
	"database/sql"
)

// SQLiteQueue is a Queue implementation backed by SQLite, giving the
// bounded-parallel Manager a durable ready-queue that survives a process
// restart. Rows with in_flight = 1 after a crash are exactly the items
// RecoverStuck requeues.
type SQLiteQueue struct {
	db    *sql.DB
	table string
}

var _ Queue = (*SQLiteQueue)(nil)

// NewSQLiteQueue initializes the required schema in db and returns a new
// SQLiteQueue. table defaults to "jobflow_ready_queue".
func NewSQLiteQueue(db *sql.DB, table string) (*SQLiteQueue, error) {
	if table == "" {
		table = "jobflow_ready_queue"
	}
	q := &SQLiteQueue{db: db, table: table}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + q.table + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flow_uuid TEXT NOT NULL,
			job_uuid TEXT NOT NULL,
			idx INTEGER NOT NULL,
			in_flight INTEGER NOT NULL DEFAULT 0
		);`,
	)
	return err
}

func (q *SQLiteQueue) Enqueue(ctx context.Context, item Item) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO `+q.table+` (flow_uuid, job_uuid, idx, in_flight) VALUES (?, ?, ?, 0)`,
		item.FlowUUID, item.JobUUID, item.Index,
	)
	return err
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (*Item, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var id int64
	var item Item
	row := tx.QueryRowContext(ctx,
		`SELECT id, flow_uuid, job_uuid, idx FROM `+q.table+` WHERE in_flight = 0 ORDER BY id LIMIT 1`)
	if err := row.Scan(&id, &item.FlowUUID, &item.JobUUID, &item.Index); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE `+q.table+` SET in_flight = 1 WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &item, nil
}

func (q *SQLiteQueue) Ack(ctx context.Context, item Item) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM `+q.table+` WHERE flow_uuid = ? AND job_uuid = ? AND idx = ? AND in_flight = 1`,
		item.FlowUUID, item.JobUUID, item.Index,
	)
	return err
}

func (q *SQLiteQueue) RecoverStuck(ctx context.Context) ([]Item, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT flow_uuid, job_uuid, idx FROM `+q.table+` WHERE in_flight = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recovered []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.FlowUUID, &item.JobUUID, &item.Index); err != nil {
			return nil, err
		}
		recovered = append(recovered, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := q.db.ExecContext(ctx, `UPDATE `+q.table+` SET in_flight = 0 WHERE in_flight = 1`); err != nil {
		return nil, err
	}
	return recovered, nil
}

func (q *SQLiteQueue) Len(ctx context.Context) (int, error) {
	row := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table+` WHERE in_flight = 0`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
