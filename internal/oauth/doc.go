// Package oauth implements the authorization-code login against the photo
// API's OAuth2 provider.
//
// The provider expects client credentials in the token request parameters
// (oauth2.AuthStyleInParams) and answers with a long-lived bearer token; there
// is no refresh token.
//
// # Login flow
//
//	ex, _ := oauth.NewExchanger(cfg, tokens)
//	fmt.Println(ex.AuthCodeURL(ex.IssueState()))
//	// user authorizes, the redirect carries ?code=...&state=...
//	if !ex.ConsumeState(redirectURL.Query().Get("state")) {
//		// not a response to our request
//	}
//	code, _ := ex.CodeFromRedirect(redirectURL)
//	token, err := ex.Exchange(ctx, code)
//
// The out-of-band code page shows only the code, so a code typed in by the
// user is exchanged without a state check.
//
// Exchange rejects a code that is already being exchanged with
// apiclient.ErrDuplicateRequest, and a new code cancels the exchange of the
// previous one.
package oauth
