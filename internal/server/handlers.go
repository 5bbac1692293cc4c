package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/florianilch/photofeed/internal/feed"
)

// heartbeatInterval keeps idle event streams from being closed by intermediaries.
const heartbeatInterval = 30 * time.Second

// PhotosResponse is the body of GET /photos.
type PhotosResponse struct {
	Photos         []feed.Photo `json:"photos"`
	LastLoadedPage *int         `json:"last_loaded_page"`
}

// NextPageResponse is the body of POST /photos/next.
type NextPageResponse struct {
	Added          int `json:"added"`
	LastLoadedPage int `json:"last_loaded_page"`
}

// ChangeEvent is the data of every /events message.
type ChangeEvent struct {
	Type string `json:"type"`
}

// StatusResponse acknowledges requests without a richer result.
type StatusResponse struct {
	Status string `json:"status"`
}

// handleLogin sends the browser to the provider with a freshly issued state.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.exchanger.AuthCodeURL(s.exchanger.IssueState()), http.StatusFound)
}

// handleCallback exchanges the code of a redirect answering one of our own
// authorization requests. Redirects without a known state are rejected before
// anything is sent to the provider.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if !s.exchanger.ConsumeState(query.Get("state")) {
		slog.WarnContext(ctx, "oauth callback rejected, unknown state")
		writeJSONError(ctx, w, "unknown or missing state, start over at /login", http.StatusBadRequest)
		return
	}

	if providerErr := query.Get("error"); providerErr != "" {
		slog.WarnContext(ctx, "authorization denied", "reason", providerErr)
		writeJSONError(ctx, w, "authorization failed: "+providerErr, http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeJSONError(ctx, w, "missing authorization code", http.StatusBadRequest)
		return
	}

	if _, err := s.exchanger.Exchange(ctx, code); err != nil {
		slog.ErrorContext(ctx, "oauth callback failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	slog.InfoContext(ctx, "oauth callback completed")
	writeJSON(ctx, w, StatusResponse{Status: "authorized"}, http.StatusOK)
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	resp := PhotosResponse{Photos: s.feed.Photos()}
	if resp.Photos == nil {
		resp.Photos = []feed.Photo{}
	}
	if page, ok := s.feed.LastLoadedPage(); ok {
		resp.LastLoadedPage = &page
	}
	writeJSON(r.Context(), w, resp, http.StatusOK)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	added, err := s.feed.FetchNextPage(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	page, _ := s.feed.LastLoadedPage()
	writeJSON(ctx, w, NextPageResponse{Added: added, LastLoadedPage: page}, http.StatusOK)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.feed.ResetPhotos()
	writeJSON(r.Context(), w, StatusResponse{Status: "reset"}, http.StatusOK)
}

func (s *Server) handleLike(like bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		photo, err := s.feed.ChangeLike(ctx, r.PathValue("id"), like)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, photo, http.StatusOK)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.logout == nil {
		writeJSONError(ctx, w, "logout not supported", http.StatusNotImplemented)
		return
	}
	if err := s.logout(ctx); err != nil {
		slog.ErrorContext(ctx, "logout failed", "error", err)
		writeJSONError(ctx, w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, StatusResponse{Status: "logged_out"}, http.StatusOK)
}

// handleEvents streams one event per feed change until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	changes, stop := s.feed.Changes()
	defer stop()

	if err := sse.WriteComment("subscribed"); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "event stream closed by client")
			return
		case <-heartbeat.C:
			if err := sse.WriteComment("heartbeat"); err != nil {
				return
			}
		case <-changes:
			if err := sse.WriteData(ChangeEvent{Type: "photos_changed"}); err != nil {
				slog.DebugContext(ctx, "failed to write event", "error", err)
				return
			}
		}
	}
}
