package feed

import (
	"net/url"
	"time"
)

// Size is the pixel size of the original image, known before any download.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// URLs holds the locators of the differently sized renditions of a photo.
type URLs struct {
	Raw     string `json:"raw,omitempty"`
	Full    string `json:"full"`
	Regular string `json:"regular,omitempty"`
	Small   string `json:"small,omitempty"`
	Thumb   string `json:"thumb"`
}

// Photo is one remote image. ID is its identity; every other field may be
// replaced when a like toggle returns a fresh copy.
type Photo struct {
	ID   string `json:"id"`
	Size Size   `json:"size"`
	// CreatedAt is zero when the API omitted it or sent an unparsable timestamp.
	CreatedAt   time.Time `json:"created_at,omitzero"`
	Description string    `json:"description,omitempty"`
	ThumbURL    string    `json:"thumb_url"`
	LargeURL    string    `json:"large_url"`
	URLs        URLs      `json:"urls"`
	IsLiked     bool      `json:"is_liked"`
}

// photoRecord is the wire shape of a photo.
type photoRecord struct {
	ID          string  `json:"id"`
	CreatedAt   *string `json:"created_at"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	LikedByUser bool    `json:"liked_by_user"`
	Description *string `json:"description"`
	URLs        struct {
		Raw     string `json:"raw"`
		Full    string `json:"full"`
		Regular string `json:"regular"`
		Small   string `json:"small"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
}

// likeEnvelope is the response of the like endpoints.
type likeEnvelope struct {
	Photo *photoRecord `json:"photo"`
}

// toPhoto maps a record to a Photo. ok is false when the record lacks an id
// or one of the mandatory thumbnail and full-size locators.
func (r *photoRecord) toPhoto() (Photo, bool) {
	if r.ID == "" || !isLocator(r.URLs.Thumb) || !isLocator(r.URLs.Full) {
		return Photo{}, false
	}

	p := Photo{
		ID:       r.ID,
		Size:     Size{Width: r.Width, Height: r.Height},
		ThumbURL: r.URLs.Thumb,
		LargeURL: r.URLs.Full,
		URLs: URLs{
			Raw:     r.URLs.Raw,
			Full:    r.URLs.Full,
			Regular: r.URLs.Regular,
			Small:   r.URLs.Small,
			Thumb:   r.URLs.Thumb,
		},
		IsLiked: r.LikedByUser,
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.CreatedAt != nil {
		if t, err := time.Parse(time.RFC3339, *r.CreatedAt); err == nil {
			p.CreatedAt = t
		}
	}
	return p, true
}

func isLocator(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
