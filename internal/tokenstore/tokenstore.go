package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/florianilch/photofeed/internal/secretstore"
)

// Key is the secret store key under which the bearer token is kept.
const Key = "OAuth2Token"

// TokenStore keeps at most one bearer token in a secret store.
type TokenStore struct {
	secrets secretstore.SecretStore

	// serializes read-compare-write in Set
	writeMu sync.Mutex
}

// New creates a TokenStore backed by secrets.
func New(secrets secretstore.SecretStore) (*TokenStore, error) {
	if secrets == nil {
		return nil, fmt.Errorf("missing secret store")
	}
	return &TokenStore{secrets: secrets}, nil
}

// Get returns the stored token. ok is false when no token is stored.
func (s *TokenStore) Get(ctx context.Context) (token string, ok bool, err error) {
	token, err = s.secrets.Get(ctx, Key)
	if errors.Is(err, secretstore.ErrNotFound) {
		slog.DebugContext(ctx, "no token in secret store")
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading token: %w", err)
	}
	return token, true, nil
}

// Set stores token. The secret store is only written when token differs from
// the stored value. An empty token removes the stored value.
func (s *TokenStore) Set(ctx context.Context, token string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if token == "" {
		if err := s.secrets.Remove(ctx, Key); err != nil {
			return fmt.Errorf("removing token: %w", err)
		}
		slog.DebugContext(ctx, "token removed")
		return nil
	}

	current, err := s.secrets.Get(ctx, Key)
	if err != nil && !errors.Is(err, secretstore.ErrNotFound) {
		return fmt.Errorf("reading token: %w", err)
	}
	if current == token {
		return nil
	}

	if err := s.secrets.Set(ctx, Key, token); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	slog.DebugContext(ctx, "token stored")
	return nil
}

// Clear removes the stored token.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.Set(ctx, "")
}
