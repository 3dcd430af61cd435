// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/overtone/internal/spotify"
)

// MockPlayer is a test double for [spotify.Player]. Calls are counted and the
// canned return values can be overridden per test.
type MockPlayer struct {
	Playback     *spotify.Playback
	Queue        *spotify.Queue
	Page         *spotify.PlaylistPage
	Err          error
	Calls        map[string]int
	LastVolume   int
	LastPlaylist string
}

func NewMockPlayer() *MockPlayer {
	return &MockPlayer{Calls: map[string]int{}}
}

func (m *MockPlayer) record(name string) {
	if m.Calls == nil {
		m.Calls = map[string]int{}
	}
	m.Calls[name]++
}

func (m *MockPlayer) CurrentPlayback(ctx context.Context) (*spotify.Playback, error) {
	m.record("CurrentPlayback")
	return m.Playback, m.Err
}

func (m *MockPlayer) PlaybackQueue(ctx context.Context) (*spotify.Queue, error) {
	m.record("PlaybackQueue")
	return m.Queue, m.Err
}

func (m *MockPlayer) Playlists(ctx context.Context, limit int) (*spotify.PlaylistPage, error) {
	m.record("Playlists")
	return m.Page, m.Err
}

func (m *MockPlayer) Play(ctx context.Context) error {
	m.record("Play")
	return m.Err
}

func (m *MockPlayer) PlayPlaylist(ctx context.Context, playlistID string) error {
	m.record("PlayPlaylist")
	m.LastPlaylist = playlistID
	return m.Err
}

func (m *MockPlayer) Pause(ctx context.Context) error {
	m.record("Pause")
	return m.Err
}

func (m *MockPlayer) Next(ctx context.Context) error {
	m.record("Next")
	return m.Err
}

func (m *MockPlayer) Previous(ctx context.Context) error {
	m.record("Previous")
	return m.Err
}

func (m *MockPlayer) SetVolume(ctx context.Context, percent int) error {
	m.record("SetVolume")
	m.LastVolume = percent
	return m.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
