// Package storage defines the path-addressed blob store that holds original
// uploads and synthesized markers.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ObjectStore is a stateless transport to a durable, path-addressed blob
// store with public-read URLs. Implementations do not retry; callers decide.
// Deleting a path that does not exist succeeds.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}

const (
	OpPut    = "put"
	OpDelete = "delete"
)

// Error reports a failed store call.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStoreError reports whether err came from an ObjectStore.
func IsStoreError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// ErrEmptyPath is returned for calls without an object path.
var ErrEmptyPath = errors.New("empty object path")
