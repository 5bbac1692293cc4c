package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestClientDoAttachesBearerAndQuery(t *testing.T) {
	var gotAuth, gotQuery, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		gotMethod = r.Method
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/photos",
		Query:  url.Values{"page": {"2"}, "per_page": {"10"}},
		Token:  "tok",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(resp.Body))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "page=2&per_page=10", gotQuery)
	assert.Equal(t, "/photos", gotPath)
	assert.Equal(t, http.MethodGet, gotMethod)
}

func TestClientDoWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	client, err := New(WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), Request{Path: "/me"})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)

	err = CheckStatus(resp)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTeapot, statusErr.StatusCode)
	assert.Equal(t, "short and stout", statusErr.Body)
}

func TestClientDoTransportError(t *testing.T) {
	failing := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	client, err := New(WithBaseURL("https://api.example.test"), WithTransport(failing))
	require.NoError(t, err)

	_, err = client.Do(context.Background(), Request{Path: "/photos", Token: "tok"})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorContains(t, err, "connection refused")
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	calls := 0
	counting := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	})
	client, err := New(
		WithBaseURL("https://api.example.test"),
		WithTransport(counting),
		WithRateLimit(rate.Every(1e12), 1),
	)
	require.NoError(t, err)

	_, err = client.Do(context.Background(), Request{Path: "/photos"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Do(ctx, Request{Path: "/photos"})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, calls)
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := New(WithBaseURL("/relative"))
	assert.Error(t, err)
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{200, false},
		{201, false},
		{299, false},
		{199, true},
		{300, true},
		{401, true},
		{500, true},
	}
	for _, tt := range tests {
		err := CheckStatus(&Response{StatusCode: tt.status})
		assert.Equal(t, tt.wantErr, err != nil, "status %d", tt.status)
	}
}

func TestHTTPStatusErrorTruncatesBody(t *testing.T) {
	err := &HTTPStatusError{StatusCode: 500, Body: strings.Repeat("x", 2*maxErrorBody)}
	assert.Less(t, len(err.Error()), maxErrorBody+64)
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ ID string }
	require.NoError(t, DecodeJSON(&Response{Body: []byte(`{"ID":"a"}`)}, &v))
	assert.Equal(t, "a", v.ID)

	err := DecodeJSON(&Response{Body: []byte(`{`)}, &v)
	assert.ErrorIs(t, err, ErrDecoding)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
