package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/florianilch/photofeed/internal/apiclient"
	"github.com/florianilch/photofeed/internal/feed"
	"github.com/florianilch/photofeed/internal/oauth"
	"github.com/florianilch/photofeed/internal/profile"
	"github.com/florianilch/photofeed/internal/server"
	"github.com/florianilch/photofeed/internal/tokenstore"
)

// Option configures an App.
type Option func(*options)

type options struct {
	transport http.RoundTripper
}

// WithTransport sets the transport for all outbound requests.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// App wires the token storage, the OAuth exchanger, the photo feed and the
// loopback server together, and orchestrates their lifecycle.
type App struct {
	cfg *Config

	tokens    *tokenstore.TokenStore
	exchanger *oauth.Exchanger // nil when oauth.client_id is unset
	feed      *feed.Engine
	profile   *profile.Service
	server    *server.Server // nil when oauth.client_id is unset
}

// New creates a new App instance. No I/O is performed.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(o)
	}

	secrets, err := cfg.Auth.NewSecretStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret store: %w", err)
	}

	tokens, err := tokenstore.New(secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	clientOpts := []apiclient.Option{
		apiclient.WithBaseURL(cfg.API.BaseURL),
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithTransport(o.transport),
	}
	if cfg.API.RateLimitPerHour > 0 {
		every := time.Hour / time.Duration(cfg.API.RateLimitPerHour)
		clientOpts = append(clientOpts, apiclient.WithRateLimit(rate.Every(every), max(cfg.API.RateBurst, 1)))
	}
	api, err := apiclient.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	engine, err := feed.NewEngine(api, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed: %w", err)
	}

	profiles, err := profile.NewService(api, tokens, cfg.Profile.AvatarCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile service: %w", err)
	}

	a := &App{
		cfg:     cfg,
		tokens:  tokens,
		feed:    engine,
		profile: profiles,
	}

	if cfg.OAuth.ClientID == "" {
		return a, nil
	}

	a.exchanger, err = oauth.NewExchanger(oauth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURI:  cfg.OAuth.RedirectURI,
		Scopes:       cfg.OAuth.Scopes,
		Endpoint:     endpoint(cfg.OAuth),
	}, tokens, oauth.WithTransport(o.transport), oauth.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth exchanger: %w", err)
	}

	a.server, err = server.New(engine, a.exchanger,
		server.WithCallbackPath(cfg.OAuth.CallbackPath),
		server.WithLogout(a.Logout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return a, nil
}

// endpoint returns the configured provider endpoint, or the zero value to use the default.
func endpoint(cfg OAuthConfig) oauth2.Endpoint {
	if cfg.AuthURL == "" && cfg.TokenURL == "" {
		return oauth2.Endpoint{}
	}
	ep := oauth.Endpoint
	if cfg.AuthURL != "" {
		ep.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		ep.TokenURL = cfg.TokenURL
	}
	return ep
}

// Feed returns the photo feed.
func (a *App) Feed() *feed.Engine {
	return a.feed
}

// Profile returns the profile service.
func (a *App) Profile() *profile.Service {
	return a.profile
}

// Tokens returns the access token store.
func (a *App) Tokens() *tokenstore.TokenStore {
	return a.tokens
}

// Exchanger returns the OAuth exchanger, or ErrOAuthNotConfigured.
func (a *App) Exchanger() (*oauth.Exchanger, error) {
	if a.exchanger == nil {
		return nil, ErrOAuthNotConfigured
	}
	return a.exchanger, nil
}

// Logout forgets the access token and drops everything loaded with it.
func (a *App) Logout(ctx context.Context) error {
	if err := a.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	a.feed.ResetPhotos()
	a.profile.Reset()

	slog.InfoContext(ctx, "logged out")
	return nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	if a.server == nil {
		return ErrOAuthNotConfigured
	}

	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if a.cfg.RedirectsToServer() {
		slog.InfoContext(gCtx, "application ready", "address", address, "login_url", "http://"+address+"/login")
	} else {
		// the provider will never call back; the code has to be pasted into `photofeed login`
		slog.WarnContext(gCtx, "oauth.redirect_uri does not point at this server, browser login will not complete here",
			"redirect_uri", a.cfg.OAuth.RedirectURI,
			"expected", a.cfg.CallbackURL(),
		)
		slog.InfoContext(gCtx, "application ready", "address", address)
	}

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
