package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/wricardo/startie/game/storage"
)

// FileStore keeps one JSON file per level
type FileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file-backed store rooted at dir
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

func (f *FileStore) path(levelID string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_leaderboard.json", filepath.Base(levelID)))
}

func (f *FileStore) load(levelID string) ([]Entry, error) {
	var entries []Entry
	if err := storage.ReadJSON(f.fs, f.path(levelID), &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}

// Save implements Store
func (f *FileStore) Save(ctx context.Context, entry Entry) (int, error) {
	entry = prepare(entry)

	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load(entry.LevelID)
	if err != nil {
		return 0, err
	}
	entries = rank(append(entries, entry))

	if err := storage.WriteJSON(f.fs, f.path(entry.LevelID), entries); err != nil {
		return 0, fmt.Errorf("failed to save leaderboard: %w", err)
	}

	position := positionOf(entries, entry.ID)
	log.Debug("score saved", "level", entry.LevelID, "score", entry.Score, "rank", position)
	return position, nil
}

// Top implements Store
func (f *FileStore) Top(ctx context.Context, levelID string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load(levelID)
}

// Best implements Store
func (f *FileStore) Best(ctx context.Context, levelID string) (*Entry, error) {
	entries, err := f.Top(ctx, levelID)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	best := entries[0]
	return &best, nil
}

// Close implements Store
func (f *FileStore) Close() error {
	return nil
}
