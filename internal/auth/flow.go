package auth

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/overtone/internal/server"
	"github.com/desertthunder/overtone/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://accounts.spotify.com/authorize"
	defaultTokenURL = "https://accounts.spotify.com/api/token"

	// defaultFlowTimeout bounds how long Run waits for the user to complete
	// consent in the browser.
	defaultFlowTimeout = 120 * time.Second

	// portAttempts is how many sequential ports are tried when the configured
	// callback port is occupied.
	portAttempts = 10

	requestTimeout = 10 * time.Second
)

// scopes requested on every authorization.
var scopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"playlist-read-private",
}

// Credentials identifies the registered Spotify application. They are used
// only to build the Basic-Auth header and the authorize URL and are never
// persisted alongside tokens.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func (c Credentials) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("%w: client_id and client_secret must be set", shared.ErrMissingCredentials)
	}
	return nil
}

// Flow performs one interactive OAuth2 authorization-code grant: it opens the
// provider consent page in the user's browser, captures the redirected code on
// a short-lived local listener, and exchanges it for a fresh token triple.
type Flow struct {
	creds       Credentials
	client      *http.Client
	logger      *log.Logger
	authURL     string
	tokenURL    string
	timeout     time.Duration
	openBrowser func(string) error
}

// FlowOpts contains construction options for a [Flow]. Zero values select
// the production Spotify endpoints, a 120 second consent deadline, and the
// system browser.
type FlowOpts struct {
	Credentials Credentials
	HTTPClient  *http.Client
	Logger      *log.Logger
	AuthURL     string
	TokenURL    string
	Timeout     time.Duration
	OpenBrowser func(string) error
}

// NewFlow creates a Flow with the provided options.
func NewFlow(opts FlowOpts) *Flow {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.AuthURL == "" {
		opts.AuthURL = defaultAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTokenURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFlowTimeout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Flow{
		creds:       opts.Credentials,
		client:      opts.HTTPClient,
		logger:      opts.Logger,
		authURL:     opts.AuthURL,
		tokenURL:    opts.TokenURL,
		timeout:     opts.Timeout,
		openBrowser: opts.OpenBrowser,
	}
}

// Run executes the full authorization-code grant and returns the resulting
// token state. The callback listener and its port binding are released before
// Run returns, whether the flow succeeded, timed out, or failed.
func (f *Flow) Run(ctx context.Context) (TokenState, error) {
	if err := f.creds.validate(); err != nil {
		return TokenState{}, err
	}

	host, port, err := callbackAddr(f.creds.RedirectURI)
	if err != nil {
		return TokenState{}, err
	}

	listener, boundPort, err := listenWithFallback(host, port)
	if err != nil {
		return TokenState{}, err
	}

	// The advertised redirect must carry the port we actually bound, which
	// may differ from the configured one after fallback.
	redirectURI := fmt.Sprintf("http://%s:%d/callback", host, boundPort)
	if boundPort != port {
		f.logger.Warn("configured callback port busy, using fallback", "configured", port, "bound", boundPort)
	}

	state := shared.GenerateState()
	handler := server.NewCallbackHandler(state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(f.logger))
	router.Handler(handler)

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			f.logger.Error("callback server error", "error", err)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			f.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authorizeURL := f.authorizeURL(state, redirectURI)
	f.logger.Info("waiting for authorization", "port", boundPort)

	if err := f.openBrowser(authorizeURL); err != nil {
		// Non-fatal: the user can still complete consent from a manually
		// opened tab while we wait on the listener.
		f.logger.Warn("failed to open browser", "error", err, "url", authorizeURL)
	}

	deadline := time.NewTimer(f.timeout)
	defer deadline.Stop()

	var code string
	select {
	case result := <-handler.Result():
		if result.Error() != nil {
			return TokenState{}, fmt.Errorf("authorization failed: %w", result.Error())
		}
		code = result.Code
	case <-deadline.C:
		return TokenState{}, fmt.Errorf("%w after %v", shared.ErrAuthTimeout, f.timeout)
	case <-ctx.Done():
		return TokenState{}, ctx.Err()
	}

	return f.exchange(ctx, code, redirectURI)
}

// authorizeURL builds the provider consent URL, forcing the dialog so a
// re-authorization always shows the account picker.
func (f *Flow) authorizeURL(state, redirectURI string) string {
	cfg := &oauth2.Config{
		ClientID:     f.creds.ClientID,
		ClientSecret: f.creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: f.authURL, TokenURL: f.tokenURL},
	}
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// exchange trades the captured authorization code for the initial token triple.
func (f *Flow) exchange(ctx context.Context, code, redirectURI string) (TokenState, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	resp, err := postToken(ctx, f.client, f.tokenURL, f.creds, form)
	if err != nil {
		return TokenState{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return TokenState{}, fmt.Errorf("%w: status %d: %s", shared.ErrTokenExchange, resp.StatusCode, body)
	}

	state, err := decodeTokenResponse(resp.Body, TokenState{}, time.Now())
	if err != nil {
		return TokenState{}, fmt.Errorf("%w: %v", shared.ErrTokenExchange, err)
	}
	if state.RefreshToken == "" {
		return TokenState{}, fmt.Errorf("%w: response missing refresh_token", shared.ErrTokenExchange)
	}

	f.logger.Info("authorization complete", "expires_at", state.ExpiresAt)
	return state, nil
}

// ValidateCredentials performs a stateless client_credentials grant to check
// that an application id/secret pair is accepted by the provider. Used by the
// setup surface before any user-level authorization.
func ValidateCredentials(ctx context.Context, client *http.Client, tokenURL string, creds Credentials) error {
	if err := creds.validate(); err != nil {
		return err
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	resp, err := postToken(ctx, client, tokenURL, creds, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credentials with status %d", shared.ErrInvalidCredentials, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
}

// postToken issues a form POST to the token endpoint with the Basic-Auth
// header built from the application credentials.
func postToken(ctx context.Context, client *http.Client, tokenURL string, creds Credentials, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	return resp, nil
}

// callbackAddr extracts the listener host and starting port from the
// configured redirect URI, defaulting to localhost:8888.
func callbackAddr(redirectURI string) (string, int, error) {
	host, port := "localhost", 8888
	if redirectURI == "" {
		return host, port, nil
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", 0, fmt.Errorf("%w: invalid redirect URI: %v", shared.ErrInvalidConfig, err)
	}
	if u.Hostname() != "" {
		host = u.Hostname()
	}
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, fmt.Errorf("%w: invalid redirect port %q", shared.ErrInvalidConfig, u.Port())
		}
		port = p
	}

	return host, port, nil
}

// listenWithFallback binds the callback listener, trying exactly portAttempts
// sequential ports starting at the configured one.
func listenWithFallback(host string, port int) (net.Listener, int, error) {
	for i := 0; i < portAttempts; i++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port+i))
		if err == nil {
			return listener, port + i, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: tried ports %d-%d", shared.ErrPortExhausted, port, port+portAttempts-1)
}
