package config

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/inconshreveable/log15/v3"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/startie/game/engine"
	"github.com/wricardo/startie/game/storage"
)

var (
	ErrLevelNotFound = errors.New("level not found")
	ErrInvalidLevel  = errors.New("invalid level")
	ErrReadOnly      = errors.New("level directory not configured")
)

var log = log15.New("module", "config")

//go:embed levels/*.json levels/*.yaml
var builtinFiles embed.FS

// levelExtensions are tried in order when a level ID carries no extension
var levelExtensions = []string{".json", ".yaml", ".yml"}

// Manager handles level loading and caching. Levels in the configured
// directory shadow the built-in set by ID.
type Manager struct {
	dir     afero.Fs
	builtin afero.Fs
	levels  map[string]*engine.Level
	mu      sync.RWMutex
}

// NewManager creates a level manager. An empty dir serves only the built-in
// levels; a non-empty dir must exist on fsys.
func NewManager(fsys afero.Fs, dir string) (*Manager, error) {
	sub, err := fs.Sub(builtinFiles, "levels")
	if err != nil {
		return nil, fmt.Errorf("failed to open built-in levels: %w", err)
	}

	m := &Manager{
		builtin: afero.FromIOFS{FS: sub},
		levels:  make(map[string]*engine.Level),
	}

	if dir != "" {
		exists, err := afero.DirExists(fsys, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to stat level directory: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("level directory does not exist: %s", dir)
		}
		m.dir = afero.NewBasePathFs(fsys, dir)
	}

	return m, nil
}

// LoadLevel loads a level by ID
func (m *Manager) LoadLevel(id string) (*engine.Level, error) {
	id = levelID(id)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, ErrLevelNotFound
	}

	m.mu.RLock()
	if level, exists := m.levels[id]; exists {
		m.mu.RUnlock()
		return level, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if level, exists := m.levels[id]; exists {
		return level, nil
	}

	level, err := m.readLevel(id)
	if err != nil {
		return nil, err
	}

	m.levels[id] = level
	return level, nil
}

// readLevel looks the ID up in the level directory, then the built-in set
func (m *Manager) readLevel(id string) (*engine.Level, error) {
	for _, source := range m.sources() {
		for _, ext := range levelExtensions {
			name := id + ext
			data, err := afero.ReadFile(source, name)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("failed to read level file: %w", err)
			}
			return DecodeLevel(name, data)
		}
	}
	return nil, ErrLevelNotFound
}

func (m *Manager) sources() []afero.Fs {
	if m.dir == nil {
		return []afero.Fs{m.builtin}
	}
	return []afero.Fs{m.dir, m.builtin}
}

// DecodeLevel parses a JSON or YAML level file, picked by the name's
// extension, and checks its shape.
func DecodeLevel(name string, data []byte) (*engine.Level, error) {
	var level engine.Level

	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &level); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidLevel, name, err)
		}
	default:
		if err := json.Unmarshal(data, &level); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidLevel, name, err)
		}
	}

	if level.ID == "" {
		level.ID = levelID(path.Base(name))
	}
	if err := level.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLevel, name, err)
	}
	return &level, nil
}

// ListLevels returns every loadable level sorted by level number
func (m *Manager) ListLevels() ([]*engine.Level, error) {
	ids := make(map[string]bool)
	for _, source := range m.sources() {
		entries, err := afero.ReadDir(source, ".")
		if err != nil {
			return nil, fmt.Errorf("failed to read level directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isLevelFile(entry.Name()) {
				continue
			}
			ids[levelID(entry.Name())] = true
		}
	}

	levels := make([]*engine.Level, 0, len(ids))
	for id := range ids {
		level, err := m.LoadLevel(id)
		if err != nil {
			// Skip invalid levels
			log.Warn("skipping level", "id", id, "err", err)
			continue
		}
		levels = append(levels, level)
	}

	sort.Slice(levels, func(i, j int) bool {
		if levels[i].Number != levels[j].Number {
			return levels[i].Number < levels[j].Number
		}
		return levels[i].ID < levels[j].ID
	})
	return levels, nil
}

// GetDefault returns the lowest numbered level
func (m *Manager) GetDefault() (*engine.Level, error) {
	levels, err := m.ListLevels()
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, ErrLevelNotFound
	}
	return levels[0], nil
}

// SaveLevel writes a level to the level directory as JSON
func (m *Manager) SaveLevel(id string, level *engine.Level) error {
	if m.dir == nil {
		return ErrReadOnly
	}
	id = levelID(id)
	level.ID = id

	if err := level.Normalize(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}

	if err := storage.WriteJSON(m.dir, id+".json", level); err != nil {
		return err
	}

	m.mu.Lock()
	m.levels[id] = level
	m.mu.Unlock()

	log.Info("level saved", "id", id)
	return nil
}

// RefreshCache drops every cached level
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = make(map[string]*engine.Level)
}

// Count returns the number of cached levels
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.levels)
}

func isLevelFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, candidate := range levelExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// levelID strips a known level file extension
func levelID(name string) string {
	if isLevelFile(name) {
		return strings.TrimSuffix(name, path.Ext(name))
	}
	return name
}
