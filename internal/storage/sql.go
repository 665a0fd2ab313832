package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqlQueries holds the dialect-specific statements for a kv_store table.
type sqlQueries struct {
	schema    string
	get       string
	usedOther string // sum of character lengths for every row except one key
	upsert    string
	remove    string
	keys      string
}

// sqlStore implements Store on a single kv_store table.
type sqlStore struct {
	db      *sql.DB
	q       sqlQueries
	quota   int64
	timeout time.Duration
	// retry wraps each operation; sqlite uses it to ride out SQLITE_BUSY.
	retry func(ctx context.Context, op func() error) error
}

func (s *sqlStore) ctx() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *sqlStore) run(op func(ctx context.Context) error) error {
	ctx, cancel := s.ctx()
	defer cancel()
	if s.retry == nil {
		return op(ctx)
	}
	return s.retry(ctx, func() error { return op(ctx) })
}

func (s *sqlStore) initSchema() error {
	return s.run(func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, s.q.schema)
		return err
	})
}

func (s *sqlStore) GetItem(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.run(func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, found, nil
}

func (s *sqlStore) SetItem(key, value string) error {
	err := s.run(func(ctx context.Context) error {
		if s.quota <= 0 {
			_, err := s.db.ExecContext(ctx, s.q.upsert, key, value)
			return err
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var chars int64
		if err := tx.QueryRowContext(ctx, s.q.usedOther, key).Scan(&chars); err != nil {
			return err
		}
		// Character counts approximate UTF-16 units; astral characters are undercounted by one unit.
		if chars*2+Sizeof(key)+Sizeof(value) > s.quota {
			return ErrQuotaExceeded
		}
		if _, err := tx.ExecContext(ctx, s.q.upsert, key, value); err != nil {
			return err
		}
		return tx.Commit()
	})
	if errors.Is(err, ErrQuotaExceeded) {
		return ErrQuotaExceeded
	}
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *sqlStore) RemoveItem(key string) error {
	err := s.run(func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, s.q.remove, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

func (s *sqlStore) Keys() ([]string, error) {
	var keys []string
	err := s.run(func(ctx context.Context) error {
		keys = keys[:0]
		rows, err := s.db.QueryContext(ctx, s.q.keys)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
