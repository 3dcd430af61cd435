package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/overtone/internal/auth"
	"github.com/desertthunder/overtone/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL       = "https://api.spotify.com/v1"
	defaultPlaylistLimit = 20
)

// Player defines the operation set collaborators (CLI commands, the overlay)
// invoke against the player surface.
type Player interface {
	// CurrentPlayback retrieves the current playback state.
	// Returns (nil, nil) when nothing is playing.
	CurrentPlayback(ctx context.Context) (*Playback, error)

	// PlaybackQueue retrieves the upcoming queue.
	PlaybackQueue(ctx context.Context) (*Queue, error)

	// Playlists retrieves the user's playlists, up to limit entries.
	Playlists(ctx context.Context, limit int) (*PlaylistPage, error)

	// Play resumes playback on the active device.
	Play(ctx context.Context) error

	// PlayPlaylist starts playback of the given playlist.
	PlayPlaylist(ctx context.Context, playlistID string) error

	// Pause pauses playback.
	Pause(ctx context.Context) error

	// Next skips to the next track.
	Next(ctx context.Context) error

	// Previous returns to the previous track.
	Previous(ctx context.Context) error

	// SetVolume sets the active device volume (0-100, clamped).
	SetVolume(ctx context.Context, percent int) error
}

// Caller issues one authenticated API call. *auth.Session is the production
// implementation.
type Caller interface {
	Do(ctx context.Context, build auth.RequestBuilder) (*auth.Outcome, error)
}

// Client implements [Player] against the Spotify Web API.
type Client struct {
	session Caller
	baseURL string
	limiter *rate.Limiter
	logger  *log.Logger
}

// ClientOpts contains construction options for a [Client].
type ClientOpts struct {
	Session Caller
	BaseURL string
	Limiter *rate.Limiter
	Logger  *log.Logger
}

// NewClient creates a Client backed by the given session.
func NewClient(opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Limiter == nil {
		// Gentle pacing so an overlay polling every couple of seconds plus a
		// burst of transport commands stays well inside the API rate limits.
		opts.Limiter = rate.NewLimiter(rate.Every(250*time.Millisecond), 4)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Client{
		session: opts.Session,
		baseURL: opts.BaseURL,
		limiter: opts.Limiter,
		logger:  opts.Logger,
	}
}

// do paces, builds, and runs one authenticated request.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*auth.Outcome, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
}

// CurrentPlayback retrieves the current playback state. A 204 from the
// provider means nothing is playing and yields (nil, nil), not an error.
func (c *Client) CurrentPlayback(ctx context.Context) (*Playback, error) {
	out, err := c.do(ctx, http.MethodGet, "/me/player", nil)
	if err != nil {
		return nil, err
	}
	if out.NoContent() {
		return nil, nil
	}

	var playback Playback
	if err := json.Unmarshal(out.Body, &playback); err != nil {
		return nil, fmt.Errorf("failed to decode playback state: %w", err)
	}
	return &playback, nil
}

// PlaybackQueue retrieves the upcoming queue.
func (c *Client) PlaybackQueue(ctx context.Context) (*Queue, error) {
	out, err := c.do(ctx, http.MethodGet, "/me/player/queue", nil)
	if err != nil {
		return nil, err
	}
	if out.Status != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d for queue", shared.ErrAPIRequest, out.Status)
	}

	var queue Queue
	if err := json.Unmarshal(out.Body, &queue); err != nil {
		return nil, fmt.Errorf("failed to decode queue: %w", err)
	}
	return &queue, nil
}

// Playlists retrieves the user's playlists, up to limit entries.
func (c *Client) Playlists(ctx context.Context, limit int) (*PlaylistPage, error) {
	if limit <= 0 {
		limit = defaultPlaylistLimit
	}
	if limit > 50 {
		limit = 50
	}

	out, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/me/playlists?limit=%d", limit), nil)
	if err != nil {
		return nil, err
	}
	if out.Status != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d for playlists", shared.ErrAPIRequest, out.Status)
	}

	var page PlaylistPage
	if err := json.Unmarshal(out.Body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode playlists: %w", err)
	}
	return &page, nil
}

// Play resumes playback on the active device.
func (c *Client) Play(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPut, "/me/player/play", nil)
	return err
}

// PlayPlaylist starts playback of the given playlist.
func (c *Client) PlayPlaylist(ctx context.Context, playlistID string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	body, err := json.Marshal(struct {
		ContextURI string `json:"context_uri"`
	}{ContextURI: "spotify:playlist:" + playlistID})
	if err != nil {
		return fmt.Errorf("failed to marshal play request: %w", err)
	}

	_, err = c.do(ctx, http.MethodPut, "/me/player/play", body)
	return err
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPut, "/me/player/pause", nil)
	return err
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/me/player/next", nil)
	return err
}

// Previous returns to the previous track.
func (c *Client) Previous(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/me/player/previous", nil)
	return err
}

// SetVolume sets the active device volume, clamping to 0-100.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/me/player/volume?volume_percent=%d", percent), nil)
	return err
}
