package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/photofeed/internal/apiclient"
)

func testConfig(t *testing.T, apiURL string) *Config {
	t.Helper()
	cfg := &Config{
		API:  APIConfig{BaseURL: apiURL, RateLimitPerHour: 3600 * 100},
		Auth: AuthConfig{Storage: SecretStorageTypeFile, Dir: t.TempDir()},
	}
	require.NoError(t, cfg.ApplyDefaults())
	return cfg
}

func photoAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stored-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/photos":
			page := r.URL.Query().Get("page")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `[{"id":"p%s","width":1,"height":1,"liked_by_user":false,
				"urls":{"thumb":"https://img.test/t","full":"https://img.test/f"}}]`, page)
		case r.URL.Path == "/me":
			fmt.Fprint(w, `{"username":"ada","first_name":"Ada","last_name":"Lovelace"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewWiresFeedThroughStoredToken(t *testing.T) {
	srv := photoAPI(t)
	a, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Feed().FetchNextPage(ctx)
	require.ErrorIs(t, err, apiclient.ErrUnauthorized)

	require.NoError(t, a.Tokens().Set(ctx, "stored-token"))

	added, err := a.Feed().FetchNextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, a.Feed().Photos(), 1)
	assert.Equal(t, "p1", a.Feed().Photos()[0].ID)

	p, err := a.Profile().FetchProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "@ada", p.LoginName)
}

func TestLogoutClearsTokenAndCaches(t *testing.T) {
	srv := photoAPI(t)
	a, err := New(testConfig(t, srv.URL))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.Tokens().Set(ctx, "stored-token"))
	_, err = a.Feed().FetchNextPage(ctx)
	require.NoError(t, err)
	_, err = a.Profile().FetchProfile(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx))

	_, ok, err := a.Tokens().Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, a.Feed().Photos())
	_, loaded := a.Feed().LastLoadedPage()
	assert.False(t, loaded)
	_, cached := a.Profile().Profile()
	assert.False(t, cached)
}

func TestExchangerRequiresClientID(t *testing.T) {
	a, err := New(testConfig(t, "https://api.test"))
	require.NoError(t, err)

	_, err = a.Exchanger()
	require.ErrorIs(t, err, ErrOAuthNotConfigured)
	require.ErrorIs(t, a.Start(context.Background()), ErrOAuthNotConfigured)
}

func TestExchangerUsesConfiguredEndpoint(t *testing.T) {
	var form url.Values
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh","token_type":"bearer","scope":"public"}`)
	}))
	t.Cleanup(tokenSrv.Close)

	cfg := testConfig(t, "https://api.test")
	cfg.OAuth.ClientID = "client"
	cfg.OAuth.ClientSecret = "secret"
	cfg.OAuth.TokenURL = tokenSrv.URL

	a, err := New(cfg)
	require.NoError(t, err)
	ex, err := a.Exchanger()
	require.NoError(t, err)

	token, err := ex.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, "client", form.Get("client_id"))

	stored, ok, err := a.Tokens().Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fresh", stored)

	assert.True(t, strings.HasPrefix(ex.AuthCodeURL("s"), "https://unsplash.com/oauth/authorize?"))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "https://api.test")
	cfg.LogFormat = "xml"

	_, err := New(cfg)
	require.Error(t, err)
}

func TestRateLimitDisabled(t *testing.T) {
	srv := photoAPI(t)
	cfg := testConfig(t, srv.URL)
	cfg.API.RateLimitPerHour = -1
	cfg.API.RateBurst = 1

	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Tokens().Set(context.Background(), "stored-token"))

	// with throttling on, the second request would wait for an hour/limit slot
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for range 20 {
		_, err := a.Profile().FetchProfile(ctx)
		require.NoError(t, err)
	}
}
