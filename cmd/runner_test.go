package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/overtone/internal/auth"
	"github.com/desertthunder/overtone/internal/repositories"
	"github.com/desertthunder/overtone/internal/shared"
	"github.com/desertthunder/overtone/internal/spotify"
	overtesting "github.com/desertthunder/overtone/internal/testing"
	"github.com/urfave/cli/v3"
)

// fakeSession is a sessionControl stub.
type fakeSession struct {
	token        auth.TokenState
	authorizeErr error
	authorized   bool
	loggedOut    bool
}

func (f *fakeSession) Authorize(ctx context.Context) error {
	f.authorized = true
	if f.authorizeErr != nil {
		return f.authorizeErr
	}
	f.token = auth.TokenState{AccessToken: "fresh", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour)}
	return nil
}

func (f *fakeSession) Logout() error {
	f.loggedOut = true
	f.token = auth.TokenState{}
	return nil
}

func (f *fakeSession) Token() auth.TokenState { return f.token }

type testRunner struct {
	runner  *Runner
	player  *overtesting.MockPlayer
	session *fakeSession
	output  *bytes.Buffer
}

func newTestRunner(t *testing.T) *testRunner {
	t.Helper()

	config := shared.DefaultConfig()
	config.Storage.DatabasePath = filepath.Join(t.TempDir(), "history.db")

	player := overtesting.NewMockPlayer()
	session := &fakeSession{}
	output := &bytes.Buffer{}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Player:  player,
		Session: session,
		Logger:  shared.NewLogger(&bytes.Buffer{}),
		Output:  output,
	})

	return &testRunner{runner: runner, player: player, session: session, output: output}
}

// run executes a CLI invocation against the runner's registered commands.
func (tr *testRunner) run(args ...string) error {
	app := &cli.Command{Name: "overtone", Commands: tr.runner.register()}
	return app.Run(context.Background(), append([]string{"overtone"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("Auth", func(t *testing.T) {
		t.Run("Status Not Authenticated", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("auth", "status"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(tr.output.String(), "Not authenticated") {
				t.Errorf("unexpected output: %s", tr.output.String())
			}
		})

		t.Run("Status Authenticated", func(t *testing.T) {
			tr := newTestRunner(t)
			tr.session.token = auth.TokenState{AccessToken: "live", ExpiresAt: time.Now().Add(time.Hour)}

			if err := tr.run("auth", "status"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(tr.output.String(), "✓ Authenticated") {
				t.Errorf("unexpected output: %s", tr.output.String())
			}
		})

		t.Run("Status Expired With Refresh Token", func(t *testing.T) {
			tr := newTestRunner(t)
			tr.session.token = auth.TokenState{AccessToken: "stale", RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Hour)}

			if err := tr.run("auth", "status"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(tr.output.String(), "expired") {
				t.Errorf("unexpected output: %s", tr.output.String())
			}
		})

		t.Run("Login", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("auth", "login"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !tr.session.authorized {
				t.Error("expected session.Authorize to be called")
			}
			if !strings.Contains(tr.output.String(), "Authorization successful") {
				t.Errorf("unexpected output: %s", tr.output.String())
			}
		})

		t.Run("Login Failure Propagates", func(t *testing.T) {
			tr := newTestRunner(t)
			tr.session.authorizeErr = shared.ErrAuthTimeout

			if err := tr.run("auth", "login"); !errors.Is(err, shared.ErrAuthTimeout) {
				t.Fatalf("expected ErrAuthTimeout, got %v", err)
			}
		})

		t.Run("Logout", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("auth", "logout"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !tr.session.loggedOut {
				t.Error("expected session.Logout to be called")
			}
		})
	})

	t.Run("Player", func(t *testing.T) {
		t.Run("Now With Nothing Playing", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("player", "now"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(tr.output.String(), "Nothing playing") {
				t.Errorf("unexpected output: %s", tr.output.String())
			}
		})

		t.Run("Now Renders Track", func(t *testing.T) {
			tr := newTestRunner(t)
			tr.player.Playback = &spotify.Playback{
				IsPlaying:  true,
				ProgressMS: 60000,
				Device:     spotify.Device{Name: "Desk", VolumePercent: 40},
				Item: &spotify.Track{
					Name:       "Song",
					Artists:    []spotify.Artist{{Name: "Artist"}},
					Album:      spotify.Album{Name: "Record"},
					DurationMS: 180000,
				},
			}

			if err := tr.run("player", "now"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			output := tr.output.String()
			for _, want := range []string{"Playing: Song", "Artist: Artist", "Album: Record", "1:00 / 3:00", "Desk"} {
				if !strings.Contains(output, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, output)
				}
			}
		})

		t.Run("Transport Commands", func(t *testing.T) {
			tr := newTestRunner(t)

			for _, c := range [][]string{
				{"player", "play"},
				{"player", "pause"},
				{"player", "next"},
				{"player", "previous"},
			} {
				if err := tr.run(c...); err != nil {
					t.Fatalf("command %v failed: %v", c, err)
				}
			}

			for _, name := range []string{"Play", "Pause", "Next", "Previous"} {
				if tr.player.Calls[name] != 1 {
					t.Errorf("expected one %s call, got %d", name, tr.player.Calls[name])
				}
			}
		})

		t.Run("Volume", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("player", "volume", "70"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tr.player.LastVolume != 70 {
				t.Errorf("expected volume 70, got %d", tr.player.LastVolume)
			}
		})

		t.Run("Volume Out Of Range", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("player", "volume", "150"); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("Volume Missing Argument", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("player", "volume"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Fatalf("expected ErrMissingArgument, got %v", err)
			}
		})

		t.Run("Queue", func(t *testing.T) {
			tr := newTestRunner(t)
			tr.player.Queue = &spotify.Queue{
				CurrentlyPlaying: &spotify.Track{Name: "Now", Artists: []spotify.Artist{{Name: "A"}}},
				Queue: []spotify.Track{
					{Name: "Next Up", Artists: []spotify.Artist{{Name: "B"}}},
				},
			}

			if err := tr.run("player", "queue"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			output := tr.output.String()
			if !strings.Contains(output, "Now: A - Now") || !strings.Contains(output, "1. B - Next Up") {
				t.Errorf("unexpected output: %s", output)
			}
		})
	})

	t.Run("Playlists", func(t *testing.T) {
		t.Run("List", func(t *testing.T) {
			tr := newTestRunner(t)
			tr.player.Page = &spotify.PlaylistPage{
				Items: []spotify.Playlist{{ID: "p1", Name: "Mix", Public: true}},
				Total: 1,
			}

			if err := tr.run("playlists", "list"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			output := tr.output.String()
			if !strings.Contains(output, "Mix") || !strings.Contains(output, "Visibility: Public") {
				t.Errorf("unexpected output: %s", output)
			}
		})

		t.Run("Play", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("playlists", "play", "p1"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tr.player.LastPlaylist != "p1" {
				t.Errorf("expected playlist p1, got %q", tr.player.LastPlaylist)
			}
		})

		t.Run("Play Missing ID", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("playlists", "play"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Fatalf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("History", func(t *testing.T) {
		seed := func(t *testing.T, tr *testRunner) {
			t.Helper()
			history, closeDB, err := tr.runner.openHistory()
			if err != nil {
				t.Fatalf("failed to open history: %v", err)
			}
			defer closeDB()

			if _, err := history.Record(repositories.Entry{TrackID: "t1", Title: "Song", Artist: "Artist"}); err != nil {
				t.Fatalf("failed to seed history: %v", err)
			}
		}

		t.Run("Empty", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.run("history"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(tr.output.String(), "No plays recorded") {
				t.Errorf("unexpected output: %s", tr.output.String())
			}
		})

		t.Run("Text Format", func(t *testing.T) {
			tr := newTestRunner(t)
			seed(t, tr)

			if err := tr.run("history"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(tr.output.String(), "1. Artist - Song") {
				t.Errorf("unexpected output: %s", tr.output.String())
			}
		})

		t.Run("CSV Format", func(t *testing.T) {
			tr := newTestRunner(t)
			seed(t, tr)

			if err := tr.run("history", "--format", "csv"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(tr.output.String(), "Played At,Title,Artist,Album,Track ID") {
				t.Errorf("unexpected output: %s", tr.output.String())
			}
		})

		t.Run("Unknown Format", func(t *testing.T) {
			tr := newTestRunner(t)
			seed(t, tr)

			if err := tr.run("history", "--format", "yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})

		t.Run("Write To File", func(t *testing.T) {
			tr := newTestRunner(t)
			seed(t, tr)

			outPath := filepath.Join(t.TempDir(), "history.md")
			if err := tr.run("history", "--format", "markdown", "--output", outPath); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			content := overtesting.MustReadFile(t, outPath)
			if !strings.Contains(content, "| Played At | Title | Artist | Album |") {
				t.Errorf("unexpected file content: %s", content)
			}
		})
	})

	t.Run("Writers", func(t *testing.T) {
		t.Run("writeJSON", func(t *testing.T) {
			tr := newTestRunner(t)

			if err := tr.runner.writeJSON(map[string]string{"k": "v"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tr.output.String() != "{\"k\":\"v\"}\n" {
				t.Errorf("unexpected output: %q", tr.output.String())
			}
		})

		t.Run("Failing Writer", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &overtesting.FWriter{}})

			if err := runner.writePlain("anything"); err == nil {
				t.Error("expected error from failing writer")
			}
		})
	})
}
