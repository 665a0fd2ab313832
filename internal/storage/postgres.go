package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var postgresQueries = sqlQueries{
	schema: `CREATE TABLE IF NOT EXISTS kv_store (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,
	get:       `SELECT value FROM kv_store WHERE key = $1`,
	usedOther: `SELECT COALESCE(SUM(char_length(key) + char_length(value)), 0) FROM kv_store WHERE key <> $1`,
	upsert: `INSERT INTO kv_store (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
	remove: `DELETE FROM kv_store WHERE key = $1`,
	keys:   `SELECT key FROM kv_store ORDER BY key`,
}

// PostgresStore keeps the cache namespace in a shared PostgreSQL table so
// several server instances see the same entries (last write wins).
type PostgresStore struct {
	*sqlStore
}

// OpenPostgres connects to connStr and ensures the kv_store table exists.
func OpenPostgres(connStr string, quota int64, timeout time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{sqlStore: &sqlStore{db: db, q: postgresQueries, quota: quota, timeout: timeout}}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return s, nil
}
