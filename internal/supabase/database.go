package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ar-asset-backend/internal/database"
	"ar-asset-backend/internal/kv"
)

// PostgresKV is a kv.Store over a Postgres table, normally the Supabase
// project's own database.
type PostgresKV struct {
	db      *sql.DB
	queries database.KVQueries
}

func NewPostgresKV(db *sql.DB, table string) *PostgresKV {
	return &PostgresKV{db: db, queries: database.NewKVQueries(table)}
}

func (p *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx, p.queries.Get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", kv.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (p *PostgresKV) Set(ctx context.Context, key, value string) error {
	if _, err := p.db.ExecContext(ctx, p.queries.Set, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Remove(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, p.queries.Remove, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresKV) Close() error {
	return p.db.Close()
}
