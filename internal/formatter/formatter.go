// package formatter provides functions to export play history to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/desertthunder/overtone/internal/repositories"
)

// HistoryToCSV converts play history to CSV format with columns: Played At, Title, Artist, Album, Track ID
func HistoryToCSV(entries []repositories.Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Played At", "Title", "Artist", "Album", "Track ID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range entries {
		record := []string{
			entry.PlayedAt.Format(time.RFC3339),
			entry.Title,
			entry.Artist,
			entry.Album,
			entry.TrackID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToMarkdown converts play history to a Markdown table.
func HistoryToMarkdown(entries []repositories.Entry, title string) []byte {
	var buf bytes.Buffer

	if title != "" {
		buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	}

	buf.WriteString("| Played At | Title | Artist | Album |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, entry := range entries {
		buf.WriteString(fmt.Sprintf(
			"| %s | %s | %s | %s |\n",
			entry.PlayedAt.Format("2006-01-02 15:04"),
			entry.Title,
			entry.Artist,
			entry.Album,
		))
	}

	return buf.Bytes()
}

// HistoryToText converts play history to a plain text listing.
func HistoryToText(entries []repositories.Entry) []byte {
	var buf bytes.Buffer

	for i, entry := range entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, entry.Artist, entry.Title))
		if entry.Album != "" {
			buf.WriteString(fmt.Sprintf("   Album: %s\n", entry.Album))
		}
		buf.WriteString(fmt.Sprintf("   Played: %s\n", entry.PlayedAt.Format("2006-01-02 15:04")))
	}

	return buf.Bytes()
}

// Duration renders a millisecond track position as m:ss.
func Duration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
