package profile

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/photofeed/internal/apiclient"
)

type staticTokens string

func (s staticTokens) Get(context.Context) (string, bool, error) {
	return string(s), s != "", nil
}

type fakeAPI struct {
	calls   atomic.Int32
	gate    chan struct{}
	handler func(req apiclient.Request) *apiclient.Response
}

func (f *fakeAPI) Do(_ context.Context, req apiclient.Request) (*apiclient.Response, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.handler(req), nil
}

func okJSON(body string) *apiclient.Response {
	return &apiclient.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestFetchProfile(t *testing.T) {
	var gotPath, gotToken string
	api := &fakeAPI{handler: func(req apiclient.Request) *apiclient.Response {
		gotPath, gotToken = req.Path, req.Token
		return okJSON(`{"username":"jimmy","first_name":"James","last_name":"Bond","bio":"licensed"}`)
	}}
	svc, err := NewService(api, staticTokens("tok"), 0)
	require.NoError(t, err)

	p, err := svc.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Profile{Username: "jimmy", Name: "James Bond", LoginName: "@jimmy", Bio: "licensed"}, p)
	assert.Equal(t, "/me", gotPath)
	assert.Equal(t, "tok", gotToken)

	cached, ok := svc.Profile()
	assert.True(t, ok)
	assert.Equal(t, p, cached)

	svc.Reset()
	_, ok = svc.Profile()
	assert.False(t, ok)
}

func TestFetchProfileNullLastName(t *testing.T) {
	api := &fakeAPI{handler: func(apiclient.Request) *apiclient.Response {
		return okJSON(`{"username":"solo","first_name":"Han","last_name":null,"bio":null}`)
	}}
	svc, err := NewService(api, staticTokens("tok"), 0)
	require.NoError(t, err)

	p, err := svc.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Han", p.Name)
	assert.Empty(t, p.Bio)
}

func TestFetchProfileErrors(t *testing.T) {
	api := &fakeAPI{handler: func(apiclient.Request) *apiclient.Response {
		return &apiclient.Response{StatusCode: http.StatusUnauthorized, Body: []byte(`{"errors":["bad token"]}`)}
	}}
	svc, err := NewService(api, staticTokens("tok"), 0)
	require.NoError(t, err)

	_, err = svc.FetchProfile(context.Background())
	var statusErr *apiclient.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)

	noToken, err := NewService(api, staticTokens(""), 0)
	require.NoError(t, err)
	_, err = noToken.FetchProfile(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
}

func TestFetchAvatarURLCachesAndNotifies(t *testing.T) {
	var gotPath string
	api := &fakeAPI{handler: func(req apiclient.Request) *apiclient.Response {
		gotPath = req.Path
		return okJSON(`{"profile_image":{"small":"https://images.example.test/jimmy-small"}}`)
	}}
	svc, err := NewService(api, staticTokens("tok"), 4)
	require.NoError(t, err)

	notifications := 0
	svc.Subscribe(func() { notifications++ })

	for range 3 {
		avatar, err := svc.FetchAvatarURL(context.Background(), "jimmy")
		require.NoError(t, err)
		assert.Equal(t, "https://images.example.test/jimmy-small", avatar)
	}
	assert.Equal(t, int32(1), api.calls.Load())
	assert.Equal(t, "/users/jimmy", gotPath)
	assert.Equal(t, 1, notifications)

	svc.Reset()
	_, err = svc.FetchAvatarURL(context.Background(), "jimmy")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.calls.Load())
}

func TestFetchAvatarURLSharesConcurrentRequests(t *testing.T) {
	api := &fakeAPI{
		gate: make(chan struct{}),
		handler: func(apiclient.Request) *apiclient.Response {
			return okJSON(`{"profile_image":{"small":"https://images.example.test/a"}}`)
		},
	}
	svc, err := NewService(api, staticTokens("tok"), 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 4)
	fetch := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = svc.FetchAvatarURL(context.Background(), "a")
		}()
	}

	fetch(0)
	require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, time.Millisecond)
	for i := 1; i < len(results); i++ {
		fetch(i)
	}
	// give the followers time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(api.gate)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "https://images.example.test/a", r)
	}
	assert.Equal(t, int32(1), api.calls.Load())
}

func TestFetchAvatarURLMissingImage(t *testing.T) {
	api := &fakeAPI{handler: func(apiclient.Request) *apiclient.Response {
		return okJSON(`{"profile_image":{}}`)
	}}
	svc, err := NewService(api, staticTokens("tok"), 4)
	require.NoError(t, err)

	_, err = svc.FetchAvatarURL(context.Background(), "ghost")
	assert.ErrorIs(t, err, apiclient.ErrInvalidResponse)

	_, err = svc.FetchAvatarURL(context.Background(), "")
	assert.ErrorIs(t, err, apiclient.ErrInvalidRequest)
}

func TestResetDuringAvatarFetchDoesNotRepopulateCache(t *testing.T) {
	api := &fakeAPI{
		gate: make(chan struct{}),
		handler: func(apiclient.Request) *apiclient.Response {
			return okJSON(`{"profile_image":{"small":"https://images.example.test/before-logout"}}`)
		},
	}
	svc, err := NewService(api, staticTokens("tok"), 4)
	require.NoError(t, err)

	notifications := 0
	svc.Subscribe(func() { notifications++ })

	done := make(chan string)
	go func() {
		avatar, _ := svc.FetchAvatarURL(context.Background(), "jimmy")
		done <- avatar
	}()
	require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, time.Millisecond)

	svc.Reset()
	close(api.gate)
	assert.Equal(t, "https://images.example.test/before-logout", <-done)
	assert.Equal(t, 0, notifications)

	_, err = svc.FetchAvatarURL(context.Background(), "jimmy")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.calls.Load(), "the stale avatar was not cached")
}

func TestResetDuringProfileFetchDoesNotRepopulateCache(t *testing.T) {
	api := &fakeAPI{
		gate: make(chan struct{}),
		handler: func(apiclient.Request) *apiclient.Response {
			return okJSON(`{"username":"jimmy","first_name":"James"}`)
		},
	}
	svc, err := NewService(api, staticTokens("tok"), 0)
	require.NoError(t, err)

	errCh := make(chan error)
	go func() {
		_, err := svc.FetchProfile(context.Background())
		errCh <- err
	}()
	require.Eventually(t, func() bool { return api.calls.Load() == 1 }, time.Second, time.Millisecond)

	svc.Reset()
	close(api.gate)
	require.NoError(t, <-errCh)

	_, ok := svc.Profile()
	assert.False(t, ok)
}
