package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// expiryMargin is subtracted from the provider-reported lifetime so a token
// is renewed before clock skew or in-flight latency can invalidate it.
const expiryMargin = 60 * time.Second

// TokenState is a snapshot of the current token triple. The zero value means
// "not authenticated". Only [Session] mutates token state; stores and flows
// pass copies around.
type TokenState struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the access token can be used at the given instant.
// A token without a recorded expiry is treated as already expired.
func (t TokenState) Valid(now time.Time) bool {
	return t.AccessToken != "" && !t.ExpiresAt.IsZero() && now.Before(t.ExpiresAt)
}

// tokenResponse is the token endpoint's JSON body for both the
// authorization_code and refresh_token grants. refresh_token is optional on
// refresh responses.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// decodeTokenResponse parses a 200 token endpoint body and folds it into the
// previous state, keeping the old refresh token when the provider omits one.
func decodeTokenResponse(r io.Reader, prev TokenState, now time.Time) (TokenState, error) {
	var tr tokenResponse
	if err := json.NewDecoder(r).Decode(&tr); err != nil {
		return TokenState{}, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return TokenState{}, fmt.Errorf("token response missing access_token or expires_in")
	}

	next := TokenState{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tr.ExpiresIn)*time.Second - expiryMargin),
	}
	if next.RefreshToken == "" {
		next.RefreshToken = prev.RefreshToken
	}

	return next, nil
}
