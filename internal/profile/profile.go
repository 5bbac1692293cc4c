// Package profile looks up the signed-in user's profile and avatars.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/photofeed/internal/apiclient"
	"github.com/florianilch/photofeed/internal/notify"
)

// DefaultAvatarCacheSize bounds the number of cached avatar URLs.
const DefaultAvatarCacheSize = 128

// Doer sends a request to the photo API.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// TokenGetter provides the bearer token, if any.
type TokenGetter interface {
	Get(ctx context.Context) (token string, ok bool, err error)
}

// Profile describes the signed-in user.
type Profile struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	LoginName string `json:"login_name"`
	Bio       string `json:"bio,omitempty"`
}

type profileRecord struct {
	Username  string  `json:"username"`
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
}

type userRecord struct {
	ProfileImage struct {
		Small string `json:"small"`
	} `json:"profile_image"`
}

// Service fetches profile data and caches it until Reset.
type Service struct {
	api    Doer
	tokens TokenGetter

	avatars *lru.Cache[string, string]
	group   singleflight.Group

	mu      sync.RWMutex
	profile *Profile
	// bumped by Reset so fetches started before it do not repopulate the caches
	generation uint64

	notifier notify.Notifier
}

// NewService creates a Service caching up to avatarCacheSize avatar URLs.
func NewService(api Doer, tokens TokenGetter, avatarCacheSize int) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("missing api client")
	}
	if tokens == nil {
		return nil, fmt.Errorf("missing token getter")
	}
	if avatarCacheSize <= 0 {
		avatarCacheSize = DefaultAvatarCacheSize
	}

	avatars, err := lru.New[string, string](avatarCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating avatar cache: %w", err)
	}

	return &Service{api: api, tokens: tokens, avatars: avatars}, nil
}

// Subscribe registers handler to be called when a new avatar URL was fetched.
func (s *Service) Subscribe(handler func()) *notify.Subscription {
	return s.notifier.Subscribe(handler)
}

// Profile returns the last fetched profile, if any.
func (s *Service) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// FetchProfile loads the signed-in user's profile.
func (s *Service) FetchProfile(ctx context.Context) (Profile, error) {
	generation := s.currentGeneration()

	var rec profileRecord
	if err := s.get(ctx, "/me", &rec); err != nil {
		slog.ErrorContext(ctx, "profile fetch failed", "error", err)
		return Profile{}, fmt.Errorf("fetching profile: %w", err)
	}
	if rec.Username == "" {
		return Profile{}, fmt.Errorf("%w: profile without username", apiclient.ErrInvalidResponse)
	}

	name := rec.FirstName
	if rec.LastName != nil {
		name = strings.TrimSpace(name + " " + *rec.LastName)
	}
	p := Profile{
		Username:  rec.Username,
		Name:      name,
		LoginName: "@" + rec.Username,
	}
	if rec.Bio != nil {
		p.Bio = *rec.Bio
	}

	s.mu.Lock()
	if s.generation == generation {
		s.profile = &p
	}
	s.mu.Unlock()
	return p, nil
}

// FetchAvatarURL returns the small profile image URL of username. Cached
// values are returned without a request; concurrent lookups of the same user
// share one request.
func (s *Service) FetchAvatarURL(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("%w: empty username", apiclient.ErrInvalidRequest)
	}
	if avatar, ok := s.avatars.Get(username); ok {
		return avatar, nil
	}

	v, err, _ := s.group.Do(username, func() (any, error) {
		generation := s.currentGeneration()

		var rec userRecord
		if err := s.get(ctx, "/users/"+url.PathEscape(username), &rec); err != nil {
			return "", err
		}
		if rec.ProfileImage.Small == "" {
			return "", fmt.Errorf("%w: user without profile image", apiclient.ErrInvalidResponse)
		}
		s.mu.Lock()
		fresh := s.generation == generation
		if fresh {
			s.avatars.Add(username, rec.ProfileImage.Small)
		}
		s.mu.Unlock()

		if fresh {
			s.notifier.Publish()
		}
		return rec.ProfileImage.Small, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "avatar fetch failed", "username", username, "error", err)
		return "", fmt.Errorf("fetching avatar of %s: %w", username, err)
	}
	return v.(string), nil
}

// Reset forgets the cached profile and avatars.
// A fetch still in flight returns its result to the caller without caching it.
func (s *Service) Reset() {
	s.mu.Lock()
	s.profile = nil
	s.generation++
	s.avatars.Purge()
	s.mu.Unlock()
}

func (s *Service) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Service) get(ctx context.Context, path string, v any) error {
	token, ok, err := s.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if !ok {
		return apiclient.ErrUnauthorized
	}

	resp, err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: path, Token: token})
	if err != nil {
		return err
	}
	if err := apiclient.CheckStatus(resp); err != nil {
		return err
	}
	return apiclient.DecodeJSON(resp, v)
}
