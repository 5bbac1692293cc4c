package secretstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore provides read-only access to secrets stored in environment variables.
// A key maps to the variable prefix+KEY (upper-cased).
type EnvStore struct {
	prefix string
}

// Compile-time check to ensure EnvStore implements SecretStore
var _ SecretStore = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore reading variables that start with prefix.
func NewEnvStore(prefix string) (*EnvStore, error) {
	if prefix == "" {
		return nil, fmt.Errorf("environment prefix cannot be empty")
	}

	return &EnvStore{prefix: prefix}, nil
}

// VarName returns the environment variable consulted for key.
func (e *EnvStore) VarName(key string) string {
	return e.prefix + strings.ToUpper(key)
}

// Get returns the value of the variable backing key.
func (e *EnvStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value := strings.TrimSpace(os.Getenv(e.VarName(key)))
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Set is not supported for environment variables.
func (e *EnvStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("%w: cannot set %s", ErrReadOnly, e.VarName(key))
}

// Remove is not supported for environment variables.
func (e *EnvStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("%w: cannot remove %s", ErrReadOnly, e.VarName(key))
}
