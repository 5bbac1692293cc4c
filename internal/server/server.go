package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/florianilch/photofeed/internal/feed"
)

// DefaultCallbackPath receives the OAuth redirect.
const DefaultCallbackPath = "/oauth/callback"

// Feed is the part of feed.Engine exposed over HTTP.
type Feed interface {
	Photos() []feed.Photo
	LastLoadedPage() (int, bool)
	FetchNextPage(ctx context.Context) (int, error)
	ChangeLike(ctx context.Context, photoID string, like bool) (feed.Photo, error)
	ResetPhotos()
	Changes() (<-chan struct{}, func())
}

// Exchanger trades an authorization code for a stored token and tracks the
// state values of the authorization requests it started.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
	AuthCodeURL(state string) string
	IssueState() string
	ConsumeState(state string) bool
}

// Option configures a Server.
type Option func(*config)

type config struct {
	callbackPath string
	logout       func(context.Context) error
}

// WithCallbackPath sets the path of the OAuth redirect handler.
func WithCallbackPath(path string) Option {
	return func(c *config) {
		c.callbackPath = path
	}
}

// WithLogout enables POST /logout.
func WithLogout(logout func(context.Context) error) Option {
	return func(c *config) {
		c.logout = logout
	}
}

// Server is the loopback HTTP server that receives the OAuth redirect and
// lets a local UI drive the feed.
type Server struct {
	mux    *http.ServeMux
	server *http.Server

	feed      Feed
	exchanger Exchanger
	logout    func(context.Context) error
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server.
func New(f Feed, ex Exchanger, opts ...Option) (*Server, error) {
	if f == nil {
		return nil, fmt.Errorf("missing feed")
	}
	if ex == nil {
		return nil, fmt.Errorf("missing exchanger")
	}

	cfg := &config{callbackPath: DefaultCallbackPath}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.callbackPath == "" || cfg.callbackPath[0] != '/' {
		return nil, fmt.Errorf("invalid callback path %q", cfg.callbackPath)
	}

	s := &Server{
		mux:       http.NewServeMux(),
		feed:      f,
		exchanger: ex,
		logout:    cfg.logout,
	}

	logging := Logging(slog.Default())
	handle := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, applyMiddlewares(h, logging, Recovery))
	}
	// browsers send simple cross-site POSTs without a preflight
	mutate := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, applyMiddlewares(h, logging, Recovery, SameOrigin))
	}

	// the callback query carries the authorization code, keep it out of request logs
	s.mux.Handle("GET "+cfg.callbackPath, applyMiddlewares(http.HandlerFunc(s.handleCallback), Recovery))
	handle("GET /login", s.handleLogin)
	handle("GET /photos", s.handlePhotos)
	mutate("POST /photos/next", s.handleNextPage)
	mutate("POST /photos/reset", s.handleReset)
	mutate("POST /photos/{id}/like", s.handleLike(true))
	mutate("DELETE /photos/{id}/like", s.handleLike(false))
	mutate("POST /logout", s.handleLogout)
	// no logging middleware: the request lives as long as the stream
	s.mux.Handle("GET /events", applyMiddlewares(http.HandlerFunc(s.handleEvents), Recovery))

	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // bounds event streams
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
