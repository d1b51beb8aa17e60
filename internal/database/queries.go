package database

import (
	"fmt"

	"github.com/lib/pq"
)

// KVQueries holds the statements for a key-value table with columns
// key, value and updated_at.
type KVQueries struct {
	Table  string
	Get    string
	Set    string
	Remove string
}

func NewKVQueries(table string) KVQueries {
	t := pq.QuoteIdentifier(table)
	return KVQueries{
		Table: table,
		Get:   fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, t),
		Set: fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, t),
		Remove: fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, t),
	}
}
