package supabase

import (
	"context"
	"fmt"
	"time"

	"ar-asset-backend/internal/kv"

	"github.com/supabase-community/supabase-go"
)

// kvRow is one row of the key-value table shared by RestKV and PostgresKV.
type kvRow struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RestKV is a kv.Store over a Supabase table reached through PostgREST.
// postgrest-go has no context support, so ctx is only checked before each
// request.
type RestKV struct {
	client *supabase.Client
	table  string
	now    func() time.Time
}

func NewRestKV(client *supabase.Client, table string) *RestKV {
	return &RestKV{client: client, table: table, now: time.Now}
}

func (r *RestKV) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var rows []kvRow
	_, err := r.client.From(r.table).
		Select("key,value", "", false).
		Eq("key", key).
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", kv.ErrNotFound
	}
	return rows[0].Value, nil
}

func (r *RestKV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := kvRow{Key: key, Value: value, UpdatedAt: r.now().UTC()}
	_, _, err := r.client.From(r.table).
		Upsert(row, "key", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (r *RestKV) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := r.client.From(r.table).
		Delete("minimal", "").
		Eq("key", key).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (r *RestKV) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := r.client.From(r.table).
		Select("key", "", false).
		Limit(1, "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", r.table, err)
	}
	return nil
}
