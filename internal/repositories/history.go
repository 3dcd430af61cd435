package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// Entry is one recorded play.
type Entry struct {
	ID       int64
	TrackID  string
	Title    string
	Artist   string
	Album    string
	PlayedAt time.Time
}

// HistoryRepository records and lists played tracks.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a repository over the given database.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// EnsureSchema creates the plays table and its index if they do not exist.
func (r *HistoryRepository) EnsureSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS plays (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT,
			album TEXT,
			played_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_plays_played_at ON plays(played_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Record inserts a play unless it repeats the most recently recorded track,
// so a poller observing the same track many times stores it once. Reports
// whether a row was inserted.
func (r *HistoryRepository) Record(entry Entry) (bool, error) {
	var lastTrackID string
	err := r.db.QueryRow(`SELECT track_id FROM plays ORDER BY played_at DESC, id DESC LIMIT 1`).Scan(&lastTrackID)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to read last play: %w", err)
	}
	if lastTrackID == entry.TrackID {
		return false, nil
	}

	playedAt := entry.PlayedAt
	if playedAt.IsZero() {
		playedAt = time.Now()
	}

	_, err = r.db.Exec(
		`INSERT INTO plays (track_id, title, artist, album, played_at) VALUES (?, ?, ?, ?, ?)`,
		entry.TrackID, entry.Title, entry.Artist, entry.Album, playedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record play: %w", err)
	}
	return true, nil
}

// Recent returns the most recent plays, newest first.
func (r *HistoryRepository) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(
		`SELECT id, track_id, title, artist, album, played_at FROM plays ORDER BY played_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TrackID, &e.Title, &e.Artist, &e.Album, &e.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return entries, nil
}
