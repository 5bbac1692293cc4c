package oauth

import (
	"golang.org/x/oauth2"
)

// NativeRedirectURI is the out-of-band redirect: the provider shows the code
// on a page at NativeCallbackPath instead of redirecting to the client.
const NativeRedirectURI = "urn:ietf:wg:oauth:2.0:oob"

// NativeCallbackPath is the path of the provider page that displays an
// out-of-band authorization code.
const NativeCallbackPath = "/oauth/authorize/native"

// Endpoint defines the OAuth2 endpoints of the photo API provider.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://unsplash.com/oauth/authorize",
	TokenURL:  "https://unsplash.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DefaultScopes grants read access plus liking photos.
var DefaultScopes = []string{"public", "read_user", "write_likes"}
