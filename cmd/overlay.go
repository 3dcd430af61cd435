package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/overtone/internal/ui"
	"github.com/urfave/cli/v3"
)

// Overlay launches the interactive now-playing overlay.
func (r *Runner) Overlay(ctx context.Context, cmd *cli.Command) error {
	history, closeDB, err := r.openHistory()
	if err != nil {
		// The overlay is still useful without history recording.
		r.logger.Warn("history recording disabled", "error", err)
		history = nil
	} else {
		defer closeDB()
	}

	model := ui.NewModel(ctx, ui.ModelOpts{
		Player:       r.player,
		History:      history,
		Logger:       r.logger,
		PollInterval: r.config.Overlay.PollInterval(),
		VolumeStep:   r.config.Overlay.VolumeStep,
	})

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("overlay error: %w", err)
	}

	return nil
}
