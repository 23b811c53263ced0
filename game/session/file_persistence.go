package session

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/wricardo/startie/game/service"
	"github.com/wricardo/startie/game/storage"
)

// FilePersistence implements SessionPersistence with one JSON file per session
type FilePersistence struct {
	fs          afero.Fs
	sessionsDir string
	levels      service.LevelManager
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(fs afero.Fs, sessionsDir string, levels service.LevelManager) (*FilePersistence, error) {
	// Create sessions directory if it doesn't exist
	if err := fs.MkdirAll(sessionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		fs:          fs,
		sessionsDir: sessionsDir,
		levels:      levels,
	}, nil
}

// Save persists a session to a JSON file
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	if err := storage.WriteJSON(fp.fs, fp.getFilePath(session.ID), session.Record()); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load retrieves a session from a JSON file
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	if !fp.Exists(id) {
		return nil, ErrSessionNotFound
	}

	var rec service.SessionRecord
	if err := storage.ReadJSON(fp.fs, fp.getFilePath(id), &rec); err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	level, err := fp.levels.LoadLevel(rec.LevelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load level '%s': %w", rec.LevelID, err)
	}

	return service.RestoreSession(rec, level), nil
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}

	if err := fp.fs.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := afero.ReadDir(fp.fs, fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	exists, err := afero.Exists(fp.fs, fp.getFilePath(id))
	return err == nil && exists
}

// getFilePath returns the file path for a session ID
func (fp *FilePersistence) getFilePath(id string) string {
	return path.Join(fp.sessionsDir, strings.ToLower(id)+".json")
}
