package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/overtone/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistsList lists the user's playlists with optional limit.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	r.logger.Infof("listing playlists with limit %v", limit)

	page, err := r.player.Playlists(ctx, limit)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(page, pretty)
	}

	r.writePlain("Found %d playlists (%d total):\n\n", len(page.Items), page.Total)
	for i, p := range page.Items {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount())
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}

	return nil
}

// PlaylistsPlay starts playback of the given playlist.
func (r *Runner) PlaylistsPlay(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.StringArg("id")
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id argument is required", shared.ErrMissingArgument)
	}

	if err := r.player.PlayPlaylist(ctx, playlistID); err != nil {
		return err
	}
	return r.writePlain("▶ Playing playlist %s\n", playlistID)
}
