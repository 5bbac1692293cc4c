package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Failure classes shared by every operation that talks to the photo API.
// Callers match them with errors.Is; HTTP status failures use *HTTPStatusError.
var (
	// ErrDuplicateRequest means a conflicting operation is already in flight.
	ErrDuplicateRequest = errors.New("duplicate request")
	// ErrUnauthorized means no access token is available.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidRequest means the request could not be built locally.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTransport means the request failed at the network level.
	ErrTransport = errors.New("transport error")
	// ErrDecoding means the response body had an unexpected shape.
	ErrDecoding = errors.New("decoding error")
	// ErrInvalidResponse means the response decoded but lacks required data.
	ErrInvalidResponse = errors.New("invalid response")
)

// maxErrorBody bounds how much of a response body ends up in error messages.
const maxErrorBody = 512

// HTTPStatusError reports a response outside the 2xx range.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	if body == "" {
		return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, body)
}

// CheckStatus returns an *HTTPStatusError unless resp has a 2xx status.
func CheckStatus(resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
}

// DecodeJSON unmarshals the response body into v, classifying failures as ErrDecoding.
func DecodeJSON(resp *Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	return nil
}
