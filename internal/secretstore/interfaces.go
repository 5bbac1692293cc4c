package secretstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no value is stored for the key.
	ErrNotFound = errors.New("secret not found")

	// ErrReadOnly is returned by Set and Remove on read-only backends.
	ErrReadOnly = errors.New("secret store is read-only")
)

// SecretStore reads and writes secrets by key.
type SecretStore interface {
	// Get returns the stored value. Returns ErrNotFound if the key is missing or empty.
	Get(ctx context.Context, key string) (string, error)

	// Set persists value under key, overwriting any existing value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the value stored under key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
