package repositories

import (
	"testing"
	"time"

	"github.com/desertthunder/overtone/internal/shared"
)

func newTestRepo(t *testing.T) *HistoryRepository {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewHistoryRepository(db)
	if err := repo.EnsureSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return repo
}

func TestHistoryRepository(t *testing.T) {
	t.Run("Record", func(t *testing.T) {
		t.Run("Inserts New Play", func(t *testing.T) {
			repo := newTestRepo(t)

			inserted, err := repo.Record(Entry{TrackID: "t1", Title: "Song", Artist: "Artist"})
			if err != nil {
				t.Fatalf("failed to record play: %v", err)
			}
			if !inserted {
				t.Error("expected first play to be inserted")
			}
		})

		t.Run("Collapses Consecutive Repeats", func(t *testing.T) {
			repo := newTestRepo(t)

			if _, err := repo.Record(Entry{TrackID: "t1", Title: "Song"}); err != nil {
				t.Fatalf("failed to record play: %v", err)
			}

			inserted, err := repo.Record(Entry{TrackID: "t1", Title: "Song"})
			if err != nil {
				t.Fatalf("failed to record repeat: %v", err)
			}
			if inserted {
				t.Error("expected repeated track not to be inserted")
			}

			entries, err := repo.Recent(10)
			if err != nil {
				t.Fatalf("failed to list plays: %v", err)
			}
			if len(entries) != 1 {
				t.Errorf("expected 1 play, got %d", len(entries))
			}
		})

		t.Run("Records Track After Interleave", func(t *testing.T) {
			repo := newTestRepo(t)

			base := time.Now().Add(-time.Hour)
			for i, id := range []string{"t1", "t2", "t1"} {
				inserted, err := repo.Record(Entry{TrackID: id, Title: id, PlayedAt: base.Add(time.Duration(i) * time.Minute)})
				if err != nil {
					t.Fatalf("failed to record play: %v", err)
				}
				if !inserted {
					t.Errorf("expected play %d (%s) to be inserted", i, id)
				}
			}

			entries, err := repo.Recent(10)
			if err != nil {
				t.Fatalf("failed to list plays: %v", err)
			}
			if len(entries) != 3 {
				t.Errorf("expected 3 plays, got %d", len(entries))
			}
		})

		t.Run("Defaults PlayedAt", func(t *testing.T) {
			repo := newTestRepo(t)

			if _, err := repo.Record(Entry{TrackID: "t1", Title: "Song"}); err != nil {
				t.Fatalf("failed to record play: %v", err)
			}

			entries, err := repo.Recent(1)
			if err != nil {
				t.Fatalf("failed to list plays: %v", err)
			}
			if entries[0].PlayedAt.IsZero() {
				t.Error("expected played_at to default to now")
			}
		})
	})

	t.Run("Recent", func(t *testing.T) {
		t.Run("Newest First", func(t *testing.T) {
			repo := newTestRepo(t)

			base := time.Now().Add(-time.Hour)
			for i, id := range []string{"t1", "t2", "t3"} {
				if _, err := repo.Record(Entry{TrackID: id, Title: id, PlayedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
					t.Fatalf("failed to record play: %v", err)
				}
			}

			entries, err := repo.Recent(10)
			if err != nil {
				t.Fatalf("failed to list plays: %v", err)
			}

			if len(entries) != 3 {
				t.Fatalf("expected 3 plays, got %d", len(entries))
			}
			if entries[0].TrackID != "t3" || entries[2].TrackID != "t1" {
				t.Errorf("expected newest-first ordering, got %s..%s", entries[0].TrackID, entries[2].TrackID)
			}
		})

		t.Run("Respects Limit", func(t *testing.T) {
			repo := newTestRepo(t)

			base := time.Now().Add(-time.Hour)
			for i := 0; i < 5; i++ {
				entry := Entry{TrackID: string(rune('a' + i)), Title: "x", PlayedAt: base.Add(time.Duration(i) * time.Minute)}
				if _, err := repo.Record(entry); err != nil {
					t.Fatalf("failed to record play: %v", err)
				}
			}

			entries, err := repo.Recent(2)
			if err != nil {
				t.Fatalf("failed to list plays: %v", err)
			}
			if len(entries) != 2 {
				t.Errorf("expected 2 plays, got %d", len(entries))
			}
		})

		t.Run("Empty History", func(t *testing.T) {
			repo := newTestRepo(t)

			entries, err := repo.Recent(10)
			if err != nil {
				t.Fatalf("failed to list plays: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("expected no plays, got %d", len(entries))
			}
		})
	})
}
