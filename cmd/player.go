package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/overtone/internal/formatter"
	"github.com/desertthunder/overtone/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlayerNow shows the current playback state.
func (r *Runner) PlayerNow(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	playback, err := r.player.CurrentPlayback(ctx)
	if err != nil {
		return err
	}

	if playback == nil || playback.Item == nil {
		return r.writePlain("Nothing playing\n")
	}

	if useJSON {
		return r.writeJSON(playback, pretty)
	}

	track := playback.Item
	state := "Playing"
	if !playback.IsPlaying {
		state = "Paused"
	}

	r.writePlain("%s: %s\n", state, track.Name)
	r.writePlain("   Artist: %s\n", track.ArtistNames())
	if track.Album.Name != "" {
		r.writePlain("   Album: %s\n", track.Album.Name)
	}
	r.writePlain("   Position: %s / %s\n", formatter.Duration(playback.ProgressMS), formatter.Duration(track.DurationMS))
	if playback.Device.Name != "" {
		r.writePlain("   Device: %s (volume %d%%)\n", playback.Device.Name, playback.Device.VolumePercent)
	}

	return nil
}

// PlayerPlay resumes playback on the active device.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	if err := r.player.Play(ctx); err != nil {
		return err
	}
	return r.writePlain("▶ Playback resumed\n")
}

// PlayerPause pauses playback.
func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	if err := r.player.Pause(ctx); err != nil {
		return err
	}
	return r.writePlain("⏸ Playback paused\n")
}

// PlayerNext skips to the next track.
func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	if err := r.player.Next(ctx); err != nil {
		return err
	}
	return r.writePlain("⏭ Skipped to next track\n")
}

// PlayerPrevious returns to the previous track.
func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	if err := r.player.Previous(ctx); err != nil {
		return err
	}
	return r.writePlain("⏮ Returned to previous track\n")
}

// PlayerVolume sets the active device volume.
func (r *Runner) PlayerVolume(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("percent")
	if arg == "" {
		return fmt.Errorf("%w: volume percent argument is required", shared.ErrMissingArgument)
	}

	percent, err := strconv.Atoi(arg)
	if err != nil || percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume must be a number between 0 and 100", shared.ErrInvalidArgument)
	}

	if err := r.player.SetVolume(ctx, percent); err != nil {
		return err
	}
	return r.writePlain("🔊 Volume set to %d%%\n", percent)
}

// PlayerQueue shows the upcoming playback queue.
func (r *Runner) PlayerQueue(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	limit := cmd.Int("limit")

	queue, err := r.player.PlaybackQueue(ctx)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(queue, true)
	}

	if queue.CurrentlyPlaying != nil {
		r.writePlain("Now: %s - %s\n\n", queue.CurrentlyPlaying.ArtistNames(), queue.CurrentlyPlaying.Name)
	}

	if len(queue.Queue) == 0 {
		return r.writePlain("Queue is empty\n")
	}

	tracks := queue.Queue
	if limit > 0 && limit < len(tracks) {
		tracks = tracks[:limit]
	}

	r.writePlain("Up next:\n")
	for i, track := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, track.ArtistNames(), track.Name)
	}

	return nil
}
