package jobflow

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jobflow-io/jobflow/internal/store"
)

// NewMemoryStore builds a JobStore with an in-memory main store and no
// auxiliary stores: the default for RunLocally, tests, and short-lived
// scripts.
func NewMemoryStore() JobStore {
	return NewMemoryJobStore(nil)
}

// NewMemoryJobStore builds a JobStore with an in-memory main store and
// the given named auxiliary stores, for exercising multi-store routing
// without a real backend.
func NewMemoryJobStore(aux map[string]Store) JobStore {
	return store.NewRouter(store.NewMemoryStore(), aux)
}

// NewMemoryAuxStore builds an in-memory auxiliary api.Store suitable for
// passing in the aux map of any JobStore constructor.
func NewMemoryAuxStore() Store {
	return store.NewMemoryStore()
}

// NewSQLiteJobStore builds a JobStore whose main store is a SQLite
// table (created if absent) and whose auxiliary stores, if any, are
// keyed by the names a Job's WithJobStoreNames/Manager's
// WithDefaultStoreNames routes into.
func NewSQLiteJobStore(db *sql.DB, table string, aux map[string]Store) (JobStore, error) {
	main, err := store.NewSQLiteStore(db, table)
	if err != nil {
		return nil, err
	}
	return store.NewRouter(main, aux), nil
}

// NewPostgresJobStore builds a JobStore whose main store is a
// PostgreSQL table (created if absent).
func NewPostgresJobStore(db *sql.DB, table string, aux map[string]Store) (JobStore, error) {
	main, err := store.NewPostgresStore(db, table)
	if err != nil {
		return nil, err
	}
	return store.NewRouter(main, aux), nil
}

// NewRedisJobStore builds a JobStore whose main store is backed by
// client, with record keys namespaced under prefix.
func NewRedisJobStore(client *redis.Client, prefix string, aux map[string]Store) JobStore {
	return store.NewRouter(store.NewRedisStore(client, prefix), aux)
}

// NewMongoJobStore builds a JobStore whose main store is backed by a
// MongoDB collection.
func NewMongoJobStore(coll *mongo.Collection, aux map[string]Store) JobStore {
	return store.NewRouter(store.NewMongoStore(coll), aux)
}

// NewSQLiteAuxStore builds an auxiliary api.Store suitable for passing
// in the aux map of any of the constructors above.
func NewSQLiteAuxStore(db *sql.DB, table string) (Store, error) {
	return store.NewSQLiteStore(db, table)
}

// NewRedisAuxStore builds an auxiliary api.Store backed by Redis.
func NewRedisAuxStore(client *redis.Client, prefix string) Store {
	return store.NewRedisStore(client, prefix)
}

// NewMongoAuxStore builds an auxiliary api.Store backed by MongoDB.
func NewMongoAuxStore(coll *mongo.Collection) Store {
	return store.NewMongoStore(coll)
}
