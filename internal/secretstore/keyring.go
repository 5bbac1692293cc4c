package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// Keys are stored as accounts under a single service name.
type KeyringStore struct {
	service string
}

// Compile-time check to ensure KeyringStore implements SecretStore
var _ SecretStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore that files all secrets under the given service.
func NewKeyringStore(service string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}

	return &KeyringStore{service: service}, nil
}

// Get returns the secret from the system keyring.
func (k *KeyringStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring entry %s/%s: %w", k.service, key, err)
	}
	if value == "" {
		return "", ErrNotFound
	}

	return value, nil
}

// Set persists the secret to the system keyring, overwriting any existing value.
func (k *KeyringStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, key, value)
}

// Remove deletes the secret from the system keyring.
func (k *KeyringStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry %s/%s: %w", k.service, key, err)
	}
	return nil
}
