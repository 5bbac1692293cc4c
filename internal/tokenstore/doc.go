// Package tokenstore persists the single OAuth bearer token of the client.
//
// The token is owned by the store: it is only ever handed to callers that
// need to authorize a request and is never logged.
package tokenstore
