// Package feed synchronizes the paginated photo collection of the signed-in
// user and applies like/unlike toggles to it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/florianilch/photofeed/internal/apiclient"
	"github.com/florianilch/photofeed/internal/notify"
)

// PageSize is the number of photos requested per page.
const PageSize = 10

// ErrPhotoNotFound is returned by ChangeLike when the server accepted the
// toggle but the photo is not part of the loaded sequence.
var ErrPhotoNotFound = errors.New("photo not found")

// Doer sends a request to the photo API.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
}

// TokenGetter provides the bearer token, if any.
type TokenGetter interface {
	Get(ctx context.Context) (token string, ok bool, err error)
}

// Engine owns the in-memory photo sequence.
//
// FetchNextPage and ChangeLike share one busy slot: while either has a request
// in flight, further calls to both are rejected with
// apiclient.ErrDuplicateRequest instead of being queued. A request that never
// completes keeps the slot busy; bound it with the context or transport timeout.
type Engine struct {
	api    Doer
	tokens TokenGetter

	notifier notify.Notifier
	busy     *semaphore.Weighted

	// guards the fields below; never held across I/O
	mu             sync.RWMutex
	photos         []Photo
	lastLoadedPage int
	// the last merged page held fewer than PageSize records
	endReached bool
	// bumped by ResetPhotos so in-flight fetches can tell they are stale
	generation uint64
}

// NewEngine creates an Engine.
func NewEngine(api Doer, tokens TokenGetter) (*Engine, error) {
	if api == nil {
		return nil, fmt.Errorf("missing api client")
	}
	if tokens == nil {
		return nil, fmt.Errorf("missing token getter")
	}

	return &Engine{
		api:    api,
		tokens: tokens,
		busy:   semaphore.NewWeighted(1),
	}, nil
}

// Photos returns a copy of the loaded photos in server page order.
func (e *Engine) Photos() []Photo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.photos)
}

// LastLoadedPage returns the highest page merged so far. ok is false before
// the first successful fetch and after a reset.
func (e *Engine) LastLoadedPage() (page int, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastLoadedPage, e.lastLoadedPage > 0
}

// EndReached reports whether the last loaded page was short, meaning the
// server has no further pages. Pages whose records were all skipped still
// count as full when the server sent PageSize records.
func (e *Engine) EndReached() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.endReached
}

// Subscribe registers handler to be called after every change of the photo
// sequence. Handlers should re-read Photos.
func (e *Engine) Subscribe(handler func()) *notify.Subscription {
	return e.notifier.Subscribe(handler)
}

// Changes returns a coalescing change channel and its unsubscribe func.
func (e *Engine) Changes() (<-chan struct{}, func()) {
	return e.notifier.Channel()
}

// FetchNextPage loads the page after the last loaded one and appends its
// photos. Records missing a mandatory image locator are skipped. Returns the
// number of photos appended.
//
// Returns apiclient.ErrDuplicateRequest when another operation is in flight
// and apiclient.ErrUnauthorized when no token is stored; in both cases nothing
// is sent and callers polling for more pages may ignore the error. On any
// other failure the loaded state is unchanged and the call can be repeated.
func (e *Engine) FetchNextPage(ctx context.Context) (int, error) {
	if !e.busy.TryAcquire(1) {
		slog.DebugContext(ctx, "page fetch skipped, operation in flight")
		return 0, apiclient.ErrDuplicateRequest
	}
	defer e.busy.Release(1)

	token, err := e.token(ctx)
	if err != nil {
		slog.DebugContext(ctx, "page fetch skipped", "error", err)
		return 0, err
	}

	e.mu.RLock()
	page := e.lastLoadedPage + 1
	generation := e.generation
	e.mu.RUnlock()

	resp, err := e.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/photos",
		Query: url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(PageSize)},
		},
		Token: token,
	})
	if err == nil {
		err = apiclient.CheckStatus(resp)
	}
	var records []photoRecord
	if err == nil {
		err = apiclient.DecodeJSON(resp, &records)
	}
	if err != nil {
		slog.ErrorContext(ctx, "page fetch failed", "page", page, "error", err)
		return 0, fmt.Errorf("fetching page %d: %w", page, err)
	}

	photos := make([]Photo, 0, len(records))
	for i := range records {
		p, ok := records[i].toPhoto()
		if !ok {
			slog.WarnContext(ctx, "skipping photo without required image urls", "page", page, "photo_id", records[i].ID)
			continue
		}
		photos = append(photos, p)
	}

	e.mu.Lock()
	if e.generation != generation {
		e.mu.Unlock()
		slog.InfoContext(ctx, "discarding page fetched before reset", "page", page)
		return 0, nil
	}
	e.photos = append(e.photos, photos...)
	e.lastLoadedPage = page
	e.endReached = len(records) < PageSize
	total := len(e.photos)
	e.mu.Unlock()

	slog.DebugContext(ctx, "page loaded", "page", page, "added", len(photos), "total", total)
	e.notifier.Publish()
	return len(photos), nil
}

// ChangeLike likes (like=true) or unlikes the photo and replaces the loaded
// copy with the one returned by the server, keeping its position.
//
// Fails with apiclient.ErrDuplicateRequest while another operation is in
// flight, apiclient.ErrUnauthorized without a token, *apiclient.HTTPStatusError
// on a non-2xx response, apiclient.ErrDecoding or apiclient.ErrInvalidResponse
// on an unusable body, and ErrPhotoNotFound when the server accepted the
// change but the photo is not loaded locally. The last case leaves client and
// server out of sync.
func (e *Engine) ChangeLike(ctx context.Context, photoID string, like bool) (Photo, error) {
	log := slog.With("photo_id", photoID, "like", like)

	if !e.busy.TryAcquire(1) {
		log.WarnContext(ctx, "like toggle rejected, operation in flight")
		return Photo{}, apiclient.ErrDuplicateRequest
	}
	defer e.busy.Release(1)

	token, err := e.token(ctx)
	if err != nil {
		log.WarnContext(ctx, "like toggle rejected", "error", err)
		return Photo{}, err
	}
	if photoID == "" {
		return Photo{}, fmt.Errorf("%w: empty photo id", apiclient.ErrInvalidRequest)
	}

	method := http.MethodDelete
	if like {
		method = http.MethodPost
	}

	resp, err := e.api.Do(ctx, apiclient.Request{
		Method: method,
		Path:   "/photos/" + url.PathEscape(photoID) + "/like",
		Token:  token,
	})
	if err != nil {
		log.ErrorContext(ctx, "like toggle failed", "error", err)
		return Photo{}, err
	}
	if err := apiclient.CheckStatus(resp); err != nil {
		log.ErrorContext(ctx, "like toggle failed", "status", resp.StatusCode, "error", err)
		return Photo{}, err
	}

	var envelope likeEnvelope
	if err := apiclient.DecodeJSON(resp, &envelope); err != nil {
		log.ErrorContext(ctx, "like response not decodable", "error", err)
		return Photo{}, err
	}
	if envelope.Photo == nil {
		return Photo{}, fmt.Errorf("%w: like response without photo", apiclient.ErrInvalidResponse)
	}
	updated, ok := envelope.Photo.toPhoto()
	if !ok {
		log.ErrorContext(ctx, "like response photo lacks required image urls")
		return Photo{}, fmt.Errorf("%w: photo %q lacks required image urls", apiclient.ErrInvalidResponse, envelope.Photo.ID)
	}
	if updated.ID != photoID {
		log.ErrorContext(ctx, "like response describes another photo", "returned_id", updated.ID)
		return Photo{}, fmt.Errorf("%w: like of %q answered with photo %q", apiclient.ErrInvalidResponse, photoID, updated.ID)
	}

	e.mu.Lock()
	idx := slices.IndexFunc(e.photos, func(p Photo) bool { return p.ID == photoID })
	if idx < 0 {
		e.mu.Unlock()
		log.ErrorContext(ctx, "liked photo is not loaded locally")
		return Photo{}, fmt.Errorf("%w: %s", ErrPhotoNotFound, photoID)
	}
	e.photos[idx] = updated
	e.mu.Unlock()

	e.notifier.Publish()
	return updated, nil
}

// ResetPhotos drops all loaded photos and the page high-water mark. A fetch
// still in flight is discarded when it completes. The busy slot is untouched.
func (e *Engine) ResetPhotos() {
	e.mu.Lock()
	e.photos = nil
	e.lastLoadedPage = 0
	e.endReached = false
	e.generation++
	e.mu.Unlock()

	e.notifier.Publish()
}

// token returns the stored token or apiclient.ErrUnauthorized.
func (e *Engine) token(ctx context.Context) (string, error) {
	token, ok, err := e.tokens.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	if !ok {
		return "", apiclient.ErrUnauthorized
	}
	return token, nil
}
