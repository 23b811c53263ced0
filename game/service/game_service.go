package service

import (
	"context"

	"github.com/wricardo/startie/game/engine"
	"github.com/wricardo/startie/game/leaderboard"
)

// GameService defines all game-related operations
type GameService interface {
	// Levels
	ListLevels(ctx context.Context) ([]*LevelInfo, error)
	GetLevel(ctx context.Context, levelID string) (*engine.Level, error)

	// Session Management
	CreateSession(ctx context.Context, levelID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Programs
	Parse(ctx context.Context, program string) (*ParseResult, error)
	Run(ctx context.Context, sessionID string, req RunRequest) (*RunResult, error)

	// Game State
	GetState(ctx context.Context, sessionID string) (*engine.State, error)
	GetRunHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Scores and help
	Leaderboard(ctx context.Context, levelID string) ([]leaderboard.Entry, error)
	Hint(ctx context.Context, sessionID string) (*HintResult, error)

	// Close stops live runs and waits for them to finish
	Close() error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, level *engine.Level) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, level *engine.Level) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// LevelManager handles level loading
type LevelManager interface {
	LoadLevel(id string) (*engine.Level, error)
	ListLevels() ([]*engine.Level, error)
	GetDefault() (*engine.Level, error)
}

// Broadcaster pushes live run frames and events to a session's subscribers
type Broadcaster interface {
	BroadcastState(sessionID string, state *engine.State)
	BroadcastEvent(sessionID string, event string, data interface{})
}
