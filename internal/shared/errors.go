package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authorization flow errors
	ErrPortExhausted = fmt.Errorf("no free callback port")
	ErrAuthTimeout   = fmt.Errorf("authorization timed out")
	ErrTokenExchange = fmt.Errorf("token exchange failed")

	// Session errors
	ErrRefreshFailed = fmt.Errorf("token refresh failed")
	ErrAuthRequired  = fmt.Errorf("authentication required")

	// API and transport errors
	ErrAPIRequest = fmt.Errorf("API request failed")
	ErrNetwork    = fmt.Errorf("network request failed")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
