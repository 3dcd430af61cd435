package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists TokenState snapshots between runs.
type Store interface {
	// Load reads the persisted state. A missing or unreadable record yields
	// the zero TokenState, never an error.
	Load() TokenState

	// Save overwrites the persisted record with the given snapshot.
	Save(TokenState) error
}

// FileStore persists the token triple as a JSON file. Writes go to a
// temporary file in the same directory followed by a rename, so a crash
// mid-write cannot leave a partially written record that a later Load would
// accept.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore persisting to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted token record. Corruption is swallowed: any record
// that cannot be read or parsed is treated as absent.
func (s *FileStore) Load() TokenState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return TokenState{}
	}

	var state TokenState
	if err := json.Unmarshal(data, &state); err != nil {
		return TokenState{}
	}

	return state
}

// Save atomically replaces the persisted record with the given snapshot.
func (s *FileStore) Save(state TokenState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal token state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to set token file mode: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}
