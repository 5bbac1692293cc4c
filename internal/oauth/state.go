package oauth

import "github.com/google/uuid"

// NewState returns an unguessable value for the OAuth2 state parameter.
func NewState() string {
	return uuid.NewString()
}
