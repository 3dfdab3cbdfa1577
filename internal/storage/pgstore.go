package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore persists one JSON content blob per record id in a Postgres table.
// The table is created on first use.
type PgStore[T Record] struct {
	pool  *pgxpool.Pool
	table string

	// Optional unique secondary column, kept alongside the content blob so
	// the database enforces the uniqueness invariant.
	uniqueCol string
	uniqueVal func(T) string

	ensureOnce sync.Once
	ensureErr  error
}

type PgStoreOpt[T Record] func(*PgStore[T])

// WithUniqueColumn adds a unique column populated from each record on upsert.
func WithUniqueColumn[T Record](col string, val func(T) string) PgStoreOpt[T] {
	return func(s *PgStore[T]) {
		s.uniqueCol = col
		s.uniqueVal = val
	}
}

func NewPgStore[T Record](pool *pgxpool.Pool, table string, opts ...PgStoreOpt[T]) *PgStore[T] {
	s := &PgStore[T]{
		pool:  pool,
		table: table,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *PgStore[T]) ensure(ctx context.Context) error {
	s.ensureOnce.Do(func() {
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, content JSONB NOT NULL)", s.table)
		if s.uniqueCol != "" {
			ddl = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, %s TEXT NOT NULL UNIQUE, content JSONB NOT NULL)", s.table, s.uniqueCol)
		}
		_, s.ensureErr = s.pool.Exec(ctx, ddl)
	})
	return s.ensureErr
}

func (s *PgStore[T]) LoadAll(ctx context.Context) (map[string]T, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, fmt.Errorf("ensuring table %s: %w", s.table, err)
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT content FROM %s", s.table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	records := map[string]T{}
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", s.table, err)
		}

		var record T
		if err := json.Unmarshal(content, &record); err != nil {
			return nil, fmt.Errorf("unmarshalling %s row: %w", s.table, err)
		}
		records[record.Key()] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s rows: %w", s.table, err)
	}

	return records, nil
}

func (s *PgStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	if err := s.ensure(ctx); err != nil {
		return zero, fmt.Errorf("ensuring table %s: %w", s.table, err)
	}

	var content []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT content FROM %s WHERE id = $1", s.table), id).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("querying %s: %w", s.table, err)
	}

	var record T
	if err := json.Unmarshal(content, &record); err != nil {
		return zero, fmt.Errorf("unmarshalling %s row: %w", s.table, err)
	}

	return record, nil
}

func (s *PgStore[T]) Upsert(ctx context.Context, record T) error {
	if err := s.ensure(ctx); err != nil {
		return fmt.Errorf("ensuring table %s: %w", s.table, err)
	}

	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshalling record: %w", err)
	}

	if s.uniqueCol != "" {
		query := fmt.Sprintf(
			"INSERT INTO %s (id, %s, content) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET %s = EXCLUDED.%s, content = EXCLUDED.content",
			s.table, s.uniqueCol, s.uniqueCol, s.uniqueCol)
		_, err = s.pool.Exec(ctx, query, record.Key(), s.uniqueVal(record), content)
	} else {
		query := fmt.Sprintf(
			"INSERT INTO %s (id, content) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content",
			s.table)
		_, err = s.pool.Exec(ctx, query, record.Key(), content)
	}
	if err != nil {
		return fmt.Errorf("upserting into %s: %w", s.table, err)
	}

	return nil
}

func (s *PgStore[T]) Delete(ctx context.Context, id string) error {
	if err := s.ensure(ctx); err != nil {
		return fmt.Errorf("ensuring table %s: %w", s.table, err)
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), id); err != nil {
		return fmt.Errorf("deleting from %s: %w", s.table, err)
	}
	return nil
}

// Close is a no-op: the pool is shared across stores and owned by the caller.
func (s *PgStore[T]) Close() error {
	return nil
}
