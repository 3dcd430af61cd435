package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/overtone/internal/formatter"
	"github.com/desertthunder/overtone/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists recorded plays in the requested format.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	format := cmd.String("format")
	outputFile := cmd.String("output")

	history, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := history.Recent(limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return r.writePlain("No plays recorded yet. Run 'overtone overlay' to start recording.\n")
	}

	var data []byte
	switch format {
	case "text":
		data = formatter.HistoryToText(entries)
	case "csv":
		if data, err = formatter.HistoryToCSV(entries); err != nil {
			return err
		}
	case "markdown", "md":
		data = formatter.HistoryToMarkdown(entries, "Play History")
	case "json":
		return r.writeJSON(entries, true)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write history file: %w", err)
		}
		return r.writePlain("✓ History written to %s (%d plays)\n", outputFile, len(entries))
	}

	return r.writePlain("%s", data)
}
