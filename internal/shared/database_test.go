package shared

import (
	"path/filepath"
	"testing"
)

func TestNewDatabase(t *testing.T) {
	t.Run("In Memory", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to open in-memory database: %v", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			t.Errorf("expected live connection: %v", err)
		}
	})

	t.Run("File Backed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")

		db, err := NewDatabase(path)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		ConfigureDatabase(db, 5, 2)

		if _, err := db.Exec("CREATE TABLE t (id INTEGER)"); err != nil {
			t.Errorf("expected writable database: %v", err)
		}
	})
}
