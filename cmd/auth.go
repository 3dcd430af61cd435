package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
)

// AuthLogin performs the interactive OAuth2 authorization flow.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// exchanges the auth code for tokens, persisting them for later commands.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	if err := r.session.Authorize(ctx); err != nil {
		return err
	}

	token := r.session.Token()
	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Access token valid until %s\n\n", token.ExpiresAt.Format(time.Kitchen))
	r.writePlain("You can now use: overtone player now\n")

	return nil
}

// AuthStatus reports the stored token state without touching the network.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token := r.session.Token()

	switch {
	case token.Valid(time.Now()):
		r.writePlain("✓ Authenticated\n")
		r.writePlain("Access token valid until %s\n", token.ExpiresAt.Format(time.RFC1123))
	case token.RefreshToken != "":
		r.writePlain("⚠ Access token expired\n")
		r.writePlain("A refresh token is stored; the next API call will renew it silently.\n")
	default:
		r.writePlain("✗ Not authenticated\n")
		r.writePlain("Run 'overtone auth login' to authorize.\n")
	}

	return nil
}

// AuthLogout clears the in-memory and persisted token state.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.session.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out, stored tokens cleared\n")
}
