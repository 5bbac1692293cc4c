package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"

	"github.com/florianilch/photofeed/internal/apiclient"
)

// TokenWriter persists the access token obtained by an exchange.
type TokenWriter interface {
	Set(ctx context.Context, token string) error
}

// Config holds the OAuth2 client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// Endpoint defaults to the photo API provider when both URLs are empty.
	Endpoint oauth2.Endpoint
}

// ExchangerOption configures an Exchanger.
type ExchangerOption func(*exchangerConfig)

// exchangerConfig holds configuration for NewExchanger.
type exchangerConfig struct {
	transport http.RoundTripper
	timeout   time.Duration
}

// WithTransport sets the transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) ExchangerOption {
	return func(c *exchangerConfig) {
		c.transport = transport
	}
}

// WithTimeout bounds a single token request.
func WithTimeout(timeout time.Duration) ExchangerOption {
	return func(c *exchangerConfig) {
		c.timeout = timeout
	}
}

const (
	// maxPendingStates bounds the authorization attempts awaiting their redirect.
	maxPendingStates = 16
	// stateTTL is how long an issued state is accepted.
	stateTTL = 10 * time.Minute
)

// exchange tracks one in-flight code.
type exchange struct {
	code   string
	cancel context.CancelFunc
}

// Exchanger turns authorization codes into bearer tokens, at most once per
// in-flight code.
type Exchanger struct {
	oauth      *oauth2.Config
	tokens     TokenWriter
	httpClient *http.Client

	// issued state values, each accepted once
	states *expirable.LRU[string, struct{}]

	mu       sync.Mutex
	inflight *exchange
}

// NewExchanger creates an Exchanger that stores obtained tokens in tokens.
func NewExchanger(cfg Config, tokens TokenWriter, opts ...ExchangerOption) (*Exchanger, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("missing client id")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("missing redirect uri")
	}
	if tokens == nil {
		return nil, fmt.Errorf("missing token writer")
	}

	c := &exchangerConfig{
		transport: http.DefaultTransport,
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = Endpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		tokens: tokens,
		states: expirable.NewLRU[string, struct{}](maxPendingStates, nil, stateTTL),
		httpClient: &http.Client{
			Timeout:   c.timeout,
			Transport: c.transport,
		},
	}, nil
}

// Exchange trades code for an access token and persists it.
//
// A code that is already being exchanged is rejected with
// apiclient.ErrDuplicateRequest without sending a request. A different code
// cancels the previous exchange, which then resolves with apiclient.ErrTransport
// and never stores its token. Failures are not retried.
func (e *Exchanger) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: empty authorization code", apiclient.ErrInvalidRequest)
	}

	e.mu.Lock()
	if e.inflight != nil && e.inflight.code == code {
		e.mu.Unlock()
		slog.WarnContext(ctx, "authorization code is already being exchanged")
		return "", apiclient.ErrDuplicateRequest
	}
	if e.inflight != nil {
		slog.DebugContext(ctx, "cancelling superseded token exchange")
		e.inflight.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	current := &exchange{code: code, cancel: cancel}
	e.inflight = current
	e.mu.Unlock()

	defer e.finish(current)

	// oauth2 takes its HTTP client from the context
	reqCtx = context.WithValue(reqCtx, oauth2.HTTPClient, e.httpClient)
	token, err := e.oauth.Exchange(reqCtx, code)

	if e.superseded(current) {
		return "", fmt.Errorf("%w: exchange superseded by a newer code: %w", apiclient.ErrTransport, context.Canceled)
	}
	if err != nil {
		err = classifyExchangeError(err)
		slog.ErrorContext(ctx, "token exchange failed", "error", err)
		return "", err
	}

	if err := e.tokens.Set(ctx, token.AccessToken); err != nil {
		return "", fmt.Errorf("persisting token: %w", err)
	}

	slog.InfoContext(ctx, "authorization code exchanged", "scope", token.Extra("scope"))
	return token.AccessToken, nil
}

// IssueState returns a fresh state value for an authorization request and
// remembers it for ConsumeState. Only the most recent maxPendingStates values
// are remembered, each for stateTTL.
func (e *Exchanger) IssueState() string {
	state := NewState()
	e.states.Add(state, struct{}{})
	return state
}

// ConsumeState reports whether state was issued by IssueState and has not
// expired or been consumed yet. A state is accepted at most once.
func (e *Exchanger) ConsumeState(state string) bool {
	if state == "" {
		return false
	}
	return e.states.Remove(state)
}

// AuthCodeURL returns the provider page the user visits to authorize the client.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauth.AuthCodeURL(state)
}

// CodeFromRedirect extracts the authorization code from the URL the provider
// sent the user to: either the out-of-band code page or the configured
// redirect URI.
func (e *Exchanger) CodeFromRedirect(u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}

	matches := u.Path == NativeCallbackPath
	if redirect, err := url.Parse(e.oauth.RedirectURL); err == nil && redirect.Host != "" {
		matches = matches || (u.Host == redirect.Host && u.Path == redirect.Path)
	}
	if !matches {
		return "", false
	}

	code := u.Query().Get("code")
	return code, code != ""
}

func (e *Exchanger) superseded(current *exchange) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight != current
}

// finish clears in-flight tracking unless a newer exchange took over.
func (e *Exchanger) finish(current *exchange) {
	current.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight == current {
		e.inflight = nil
	}
}

// classifyExchangeError maps oauth2 failures onto the API error taxonomy.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &apiclient.HTTPStatusError{StatusCode: status, Body: string(retrieveErr.Body)}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apiclient.ErrTransport, err)
	}

	// oauth2 reports unparsable bodies and a missing access_token as plain errors
	return fmt.Errorf("%w: %w", apiclient.ErrDecoding, err)
}
