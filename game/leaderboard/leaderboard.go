package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
)

// MaxEntries is how many scores each level keeps
const MaxEntries = 10

var ErrUnsupportedDSN = errors.New("unsupported leaderboard DSN")

var log = log15.New("module", "leaderboard")

// Entry is one recorded winning run
type Entry struct {
	ID        string    `json:"id"`
	LevelID   string    `json:"level_id"`
	Player    string    `json:"player,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Score     int       `json:"score"`
	Commands  int       `json:"commands"`
	Program   string    `json:"program,omitempty"`
	Date      time.Time `json:"date"`
}

// NewEntry stamps a fresh entry with a sortable ID and the current time
func NewEntry(levelID string, score, commands int) Entry {
	return Entry{
		ID:       ulid.Make().String(),
		LevelID:  levelID,
		Score:    score,
		Commands: commands,
		Date:     time.Now().UTC(),
	}
}

// Store keeps the top scores per level
type Store interface {
	// Save records an entry and returns its 1-based rank, or 0 when it did
	// not make the top MaxEntries.
	Save(ctx context.Context, entry Entry) (int, error)
	// Top returns the level's entries, best first
	Top(ctx context.Context, levelID string) ([]Entry, error)
	// Best returns the level's highest score, or nil when there is none
	Best(ctx context.Context, levelID string) (*Entry, error)
	Close() error
}

// Open picks a store by DSN scheme:
//
//	""                    in-memory file store
//	file://DIR            JSON files under DIR on fs
//	sqlite3://PATH        SQLite database (PATH may be :memory:)
//	postgres://...        PostgreSQL
func Open(dsn string, fs afero.Fs) (Store, error) {
	switch {
	case dsn == "":
		return NewFileStore(afero.NewMemMapFs(), "leaderboard"), nil
	case strings.HasPrefix(dsn, "file://"):
		return NewFileStore(fs, strings.TrimPrefix(dsn, "file://")), nil
	case strings.HasPrefix(dsn, "sqlite3://"):
		return OpenSQL(DialectSQLite, strings.TrimPrefix(dsn, "sqlite3://"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenSQL(DialectPostgres, dsn)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, dsn)
}

// rank sorts best first, oldest first among equal scores, and trims to MaxEntries
func rank(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return entries
}

// positionOf returns the 1-based index of id, or 0
func positionOf(entries []Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i + 1
		}
	}
	return 0
}

func prepare(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	return entry
}
