// Package kvstore is the durable key-value port the session is persisted
// through, with memory, bbolt and redis backends.
package kvstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps every fault raised by a backend.
var ErrUnavailable = errors.New("durable store unavailable")

// Store reads, writes and deletes string values by key.
//
// Set writes every pair in a single operation: either all of them are stored
// or none are. Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func unavailable(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, fmt.Sprintf(format, args...), err)
}
