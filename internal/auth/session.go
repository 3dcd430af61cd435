package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/overtone/internal/shared"
)

// refreshAttempts bounds retries of the refresh grant when the provider
// answers with a transient failure. An explicit 4xx rejection is never
// retried.
const refreshAttempts = 3

// RequestBuilder constructs a fresh request for one attempt of an
// authenticated call. It is invoked again when the single post-refresh retry
// needs a request whose body has not been consumed.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Outcome is the classified non-error result of an authenticated call.
type Outcome struct {
	Status int
	Body   []byte
}

// NoContent reports whether the provider answered with a valid empty state,
// e.g. nothing currently playing.
func (o *Outcome) NoContent() bool {
	return o.Status == http.StatusNoContent || o.Status == http.StatusAccepted
}

// Authorizer runs one interactive authorization-code flow and returns a fresh
// token triple. *Flow is the production implementation.
type Authorizer interface {
	Run(ctx context.Context) (TokenState, error)
}

// Session owns the current token state and wraps API requests with bearer
// authorization, silent refresh, and a single retry after a remote token
// rejection. The check→refresh→persist sequence is a critical section:
// concurrent callers that observe an expired token wait for one refresh
// instead of racing their own.
type Session struct {
	mu       sync.Mutex
	state    TokenState
	store    Store
	flow     Authorizer
	creds    Credentials
	client   *http.Client
	logger   *log.Logger
	tokenURL string
}

// SessionOpts contains construction options for a [Session].
type SessionOpts struct {
	Credentials Credentials
	Store       Store
	Flow        Authorizer
	HTTPClient  *http.Client
	Logger      *log.Logger
	TokenURL    string
}

// NewSession creates a Session seeded from the persisted token state.
func NewSession(opts SessionOpts) *Session {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTokenURL
	}

	s := &Session{
		store:    opts.Store,
		flow:     opts.Flow,
		creds:    opts.Credentials,
		client:   opts.HTTPClient,
		logger:   opts.Logger,
		tokenURL: opts.TokenURL,
	}
	if s.store != nil {
		s.state = s.store.Load()
	}

	return s
}

// Token returns a snapshot of the current token state.
func (s *Session) Token() TokenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Authorize forces a full interactive authorization regardless of the current
// token state. On failure the pre-call state is left untouched.
func (s *Session) Authorize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return fmt.Errorf("%w: no authorization flow configured", shared.ErrAuthRequired)
	}

	state, err := s.flow.Run(ctx)
	if err != nil {
		return err
	}

	s.state = state
	s.persistLocked()
	return nil
}

// Logout clears the in-memory and persisted token state.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = TokenState{}
	if s.store != nil {
		return s.store.Save(s.state)
	}
	return nil
}

// Do runs one authenticated API call: it ensures a usable access token,
// issues the built request with a bearer header, retries exactly once after
// a 401 by refreshing, and classifies the response.
//
// 200 yields an Outcome carrying the body, 202/204 a NoContent Outcome, any
// other status a wrapped [shared.ErrAPIRequest]. Transport failures surface
// as [shared.ErrNetwork].
func (s *Session) Do(ctx context.Context, build RequestBuilder) (*Outcome, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.send(ctx, build, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// The provider rejected a token our expiry check considered live,
		// e.g. remote revocation. One refresh, one replay, no third attempt.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		token, err = s.renewAfterReject(ctx, token)
		if err != nil {
			return nil, err
		}

		resp, err = s.send(ctx, build, token)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("%w: token rejected after refresh", shared.ErrAuthRequired)
		}
	}

	return classify(resp)
}

func (s *Session) send(ctx context.Context, build RequestBuilder, token TokenState) (*http.Response, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	return resp, nil
}

func classify(resp *http.Response) (*Outcome, error) {
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read response body: %v", shared.ErrNetwork, err)
		}
		return &Outcome{Status: resp.StatusCode, Body: body}, nil
	case http.StatusAccepted, http.StatusNoContent:
		io.Copy(io.Discard, resp.Body)
		return &Outcome{Status: resp.StatusCode}, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, body)
	}
}

// ensureToken returns a usable access token, refreshing or re-authorizing
// under the session lock. Concurrent expired-token callers block here and
// adopt the first caller's result.
func (s *Session) ensureToken(ctx context.Context) (TokenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Valid(time.Now()) {
		return s.state, nil
	}

	if s.state.RefreshToken != "" {
		err := s.refreshLocked(ctx)
		if err == nil {
			return s.state, nil
		}
		if s.state.RefreshToken != "" {
			// Transient failure: the refresh token is still good, so a later
			// call can retry the silent path instead of forcing consent.
			return TokenState{}, err
		}
		// Rejected: tokens were cleared, fall through to interactive flow.
	}

	return s.authorizeLocked(ctx)
}

// authorizeLocked runs the interactive flow while holding s.mu so a second
// caller never opens a second listener.
func (s *Session) authorizeLocked(ctx context.Context) (TokenState, error) {
	if s.flow == nil {
		return TokenState{}, fmt.Errorf("%w: no valid token and no authorization flow configured", shared.ErrAuthRequired)
	}

	state, err := s.flow.Run(ctx)
	if err != nil {
		return TokenState{}, fmt.Errorf("%w: %v", shared.ErrAuthRequired, err)
	}

	s.state = state
	s.persistLocked()
	return s.state, nil
}

// renewAfterReject handles a 401 on a token that passed the local expiry
// check. If a concurrent caller already renewed, its token is reused instead
// of spending another refresh.
func (s *Session) renewAfterReject(ctx context.Context, used TokenState) (TokenState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.AccessToken != "" && s.state.AccessToken != used.AccessToken {
		return s.state, nil
	}
	if s.state.RefreshToken == "" {
		return TokenState{}, fmt.Errorf("%w: access token rejected and no refresh token held", shared.ErrAuthRequired)
	}
	if err := s.refreshLocked(ctx); err != nil {
		return TokenState{}, fmt.Errorf("%w: %v", shared.ErrAuthRequired, err)
	}
	return s.state, nil
}

// refreshLocked renews the access token with the refresh grant. The caller
// holds s.mu. An explicit 4xx rejection means the refresh token is dead: both
// tokens are cleared and the cleared state persisted, forcing a full
// re-authorization on next use. Transient failures (5xx, transport errors)
// are retried up to refreshAttempts times and leave the stored tokens intact.
func (s *Session) refreshLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.state.RefreshToken)

	var lastErr error
	for attempt := 0; attempt < refreshAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		resp, err := postToken(ctx, s.client, s.tokenURL, s.creds, form)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			next, err := decodeTokenResponse(resp.Body, s.state, time.Now())
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
			}
			s.state = next
			s.persistLocked()
			s.logger.Debug("access token refreshed", "expires_at", next.ExpiresAt)
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			s.logger.Info("refresh token rejected, clearing stored tokens", "status", resp.StatusCode)
			s.state = TokenState{}
			s.persistLocked()
			return fmt.Errorf("%w: status %d: %s", shared.ErrRefreshFailed, resp.StatusCode, body)
		}

		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, lastErr)
}

func (s *Session) persistLocked() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.state); err != nil {
		s.logger.Warn("failed to persist token state", "error", err)
	}
}
