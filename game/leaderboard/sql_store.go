package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Dialect selects the SQL driver and placeholder style
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// SQLStore keeps scores in a single leaderboard table
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL connects, pings and creates the schema when missing
func OpenSQL(dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLStore{db: db, dialect: dialect}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewSQLStore wraps an open database. The schema is created when missing.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	store := &SQLStore{db: db, dialect: dialect}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLStore) initSchema() error {
	timestamp := "TIMESTAMP"
	if s.dialect == DialectPostgres {
		timestamp = "TIMESTAMP WITH TIME ZONE"
	}

	schema := `
	CREATE TABLE IF NOT EXISTS leaderboard (
		id TEXT PRIMARY KEY,
		level_id TEXT NOT NULL,
		player TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL,
		commands INTEGER NOT NULL,
		program TEXT NOT NULL DEFAULT '',
		created_at ` + timestamp + ` NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leaderboard_level ON leaderboard (level_id, score DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// rebind rewrites ? placeholders to $n for postgres
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save implements Store
func (s *SQLStore) Save(ctx context.Context, entry Entry) (int, error) {
	entry = prepare(entry)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	insert := s.rebind(`
		INSERT INTO leaderboard (id, level_id, player, session_id, score, commands, program, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if _, err := tx.ExecContext(ctx, insert,
		entry.ID, entry.LevelID, entry.Player, entry.SessionID,
		entry.Score, entry.Commands, entry.Program, entry.Date.UTC(),
	); err != nil {
		return 0, fmt.Errorf("save score failed: %w", err)
	}

	prune := s.rebind(fmt.Sprintf(`
		DELETE FROM leaderboard WHERE level_id = ? AND id NOT IN (
			SELECT id FROM leaderboard WHERE level_id = ?
			ORDER BY score DESC, created_at ASC, id ASC LIMIT %d
		)
	`, MaxEntries))
	if _, err := tx.ExecContext(ctx, prune, entry.LevelID, entry.LevelID); err != nil {
		return 0, fmt.Errorf("prune leaderboard failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit failed: %w", err)
	}

	entries, err := s.Top(ctx, entry.LevelID)
	if err != nil {
		return 0, err
	}
	return positionOf(entries, entry.ID), nil
}

// Top implements Store
func (s *SQLStore) Top(ctx context.Context, levelID string) ([]Entry, error) {
	query := s.rebind(fmt.Sprintf(`
		SELECT id, level_id, player, session_id, score, commands, program, created_at
		FROM leaderboard WHERE level_id = ?
		ORDER BY score DESC, created_at ASC, id ASC LIMIT %d
	`, MaxEntries))

	rows, err := s.db.QueryContext(ctx, query, levelID)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard failed: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.LevelID, &e.Player, &e.SessionID,
			&e.Score, &e.Commands, &e.Program, &e.Date); err != nil {
			return nil, fmt.Errorf("scan leaderboard row failed: %w", err)
		}
		e.Date = e.Date.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Best implements Store
func (s *SQLStore) Best(ctx context.Context, levelID string) (*Entry, error) {
	entries, err := s.Top(ctx, levelID)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	best := entries[0]
	return &best, nil
}

// Close implements Store
func (s *SQLStore) Close() error {
	return s.db.Close()
}
