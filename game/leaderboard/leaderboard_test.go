package leaderboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories lets every behaviour test run against both backends
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"file": func() Store {
			return NewFileStore(afero.NewMemMapFs(), "leaderboard")
		},
		"sqlite": func() Store {
			store, err := OpenSQL(DialectSQLite, ":memory:")
			require.NoError(t, err)
			return store
		},
	}
}

func entryAt(levelID string, score int, at time.Time) Entry {
	e := NewEntry(levelID, score, (1000-score)/50)
	e.Date = at
	return e
}

func TestStoreOrderingAndRank(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

			rank, err := store.Save(ctx, entryAt("level1", 800, base))
			require.NoError(t, err)
			assert.Equal(t, 1, rank)

			rank, err = store.Save(ctx, entryAt("level1", 900, base.Add(time.Minute)))
			require.NoError(t, err)
			assert.Equal(t, 1, rank)

			// Ties rank behind the older entry
			rank, err = store.Save(ctx, entryAt("level1", 800, base.Add(2*time.Minute)))
			require.NoError(t, err)
			assert.Equal(t, 3, rank)

			entries, err := store.Top(ctx, "level1")
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, []int{900, 800, 800}, []int{entries[0].Score, entries[1].Score, entries[2].Score})
			assert.True(t, entries[1].Date.Before(entries[2].Date))

			best, err := store.Best(ctx, "level1")
			require.NoError(t, err)
			require.NotNil(t, best)
			assert.Equal(t, 900, best.Score)

			other, err := store.Top(ctx, "level2")
			require.NoError(t, err)
			assert.Empty(t, other)

			none, err := store.Best(ctx, "level2")
			require.NoError(t, err)
			assert.Nil(t, none)
		})
	}
}

func TestStoreKeepsTopTen(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 12; i++ {
				_, err := store.Save(ctx, entryAt("level5", 100+i*50, base.Add(time.Duration(i)*time.Second)))
				require.NoError(t, err)
			}

			entries, err := store.Top(ctx, "level5")
			require.NoError(t, err)
			require.Len(t, entries, MaxEntries)
			assert.Equal(t, 650, entries[0].Score)
			assert.Equal(t, 200, entries[MaxEntries-1].Score)

			rank, err := store.Save(ctx, entryAt("level5", 100, base.Add(time.Hour)))
			require.NoError(t, err)
			assert.Zero(t, rank, "a score below the cut is not ranked")
		})
	}
}

func TestStoreRoundTripsFields(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			entry := NewEntry("level4", 750, 5)
			entry.Player = "ada"
			entry.SessionID = "ab12"
			entry.Program = "move(3)\njump()"

			_, err := store.Save(ctx, entry)
			require.NoError(t, err)

			best, err := store.Best(ctx, "level4")
			require.NoError(t, err)
			require.NotNil(t, best)
			assert.Equal(t, entry.ID, best.ID)
			assert.Equal(t, "ada", best.Player)
			assert.Equal(t, "ab12", best.SessionID)
			assert.Equal(t, "move(3)\njump()", best.Program)
			assert.Equal(t, 5, best.Commands)
			assert.WithinDuration(t, entry.Date, best.Date, time.Second)
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileStore(fs, "data/leaderboard")

	_, err := store.Save(context.Background(), Entry{LevelID: "level1", Score: 800, Commands: 4})
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "data/leaderboard/level1_leaderboard.json")
	require.NoError(t, err)
	assert.True(t, exists)

	// A second store over the same files sees the entry
	reopened := NewFileStore(fs, "data/leaderboard")
	entries, err := reopened.Top(context.Background(), "level1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID, "Save assigns an ID")
	assert.False(t, entries[0].Date.IsZero(), "Save assigns a date")
}

func TestFileStoreCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "lb/level1_leaderboard.json", []byte("{"), 0o644))

	store := NewFileStore(fs, "lb")
	_, err := store.Top(context.Background(), "level1")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		dsn     string
		wantErr bool
		check   func(t *testing.T, s Store)
	}{
		{dsn: "", check: func(t *testing.T, s Store) { assert.IsType(t, &FileStore{}, s) }},
		{dsn: "file://scores", check: func(t *testing.T, s Store) { assert.Equal(t, "scores", s.(*FileStore).dir) }},
		{dsn: "sqlite3://:memory:", check: func(t *testing.T, s Store) { assert.IsType(t, &SQLStore{}, s) }},
		{dsn: "redis://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("dsn %q", tt.dsn), func(t *testing.T) {
			store, err := Open(tt.dsn, afero.NewMemMapFs())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedDSN)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			tt.check(t, store)
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))

	lite := &SQLStore{dialect: DialectSQLite}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}
