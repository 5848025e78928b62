package kv

import (
	"context"
	"errors"
)

// Store is a byte-oriented key-value store. It backs both the durable local cart and
// the session scoped notification table.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrKeyNotFound = errors.New("key not found")
