package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/florianilch/photofeed/internal/apiclient"
	"github.com/florianilch/photofeed/internal/feed"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

func writeJSONError(ctx context.Context, w http.ResponseWriter, message string, status int) {
	writeJSON(ctx, w, ErrorResponse{Error: message}, status)
}

// writeError answers with the status statusFor picks for err.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	writeJSONError(ctx, w, err.Error(), statusFor(err))
}

// statusFor maps feed and exchange errors onto HTTP status codes for local clients.
// Anything the photo API or the network caused is a 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apiclient.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, apiclient.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apiclient.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrPhotoNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
