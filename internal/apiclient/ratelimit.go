package apiclient

import (
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitTransport delays requests until the limiter grants a token.
// The photo API enforces an hourly request budget per application.
type rateLimitTransport struct {
	limiter *rate.Limiter
	base    http.RoundTripper
}

// Compile-time check that rateLimitTransport implements http.RoundTripper.
var _ http.RoundTripper = (*rateLimitTransport)(nil)

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	return t.base.RoundTrip(req)
}
