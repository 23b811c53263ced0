package service

import (
	"time"

	"github.com/wricardo/startie/game/engine"
)

// LevelInfo summarizes a level for listings
type LevelInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Number       int    `json:"level_number"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AllowJump    bool   `json:"allow_jump"`
	HasLaptop    bool   `json:"has_laptop"`
	ElevatedGoal bool   `json:"elevated_goal"`
	BestScore    int    `json:"best_score,omitempty"`
}

// SessionInfo provides information about a play session
type SessionInfo struct {
	ID             string        `json:"id"`
	LevelID        string        `json:"level_id"`
	CreatedAt      time.Time     `json:"created_at"`
	LastAccessedAt time.Time     `json:"last_accessed_at"`
	State          *engine.State `json:"state"`
	Level          *engine.Level `json:"level"`
	BestScore      int           `json:"best_score"`
	Runs           int           `json:"runs"`
	Running        bool          `json:"running"`
}

// ParseResult is the outcome of parsing a program without running it
type ParseResult struct {
	Valid     bool               `json:"valid"`
	Actions   []engine.Action    `json:"actions,omitempty"`
	Formatted string             `json:"formatted,omitempty"`
	Commands  int                `json:"commands"`
	Score     int                `json:"score,omitempty"`
	Error     *engine.ParseError `json:"error,omitempty"`
}

// RunRequest asks for a program to be executed on a session
type RunRequest struct {
	Program string `json:"program"`
	// Live paces the run in real time and streams every frame to the
	// session's subscribers; the call returns as soon as the run starts.
	Live   bool   `json:"live,omitempty"`
	Player string `json:"player,omitempty"`
}

// RunResult contains the result of running a program
type RunResult struct {
	RunID      string             `json:"run_id"`
	SessionID  string             `json:"session_id"`
	LevelID    string             `json:"level_id"`
	Program    string             `json:"program"`
	Actions    int                `json:"actions"`
	ParseError *engine.ParseError `json:"parse_error,omitempty"`
	Outcome    *engine.Outcome    `json:"outcome,omitempty"`
	State      *engine.State      `json:"state"`
	Success    bool               `json:"success"`
	Commands   int                `json:"commands"`
	Score      int                `json:"score"`
	Frames     int                `json:"frames"`
	DurationMS int64              `json:"duration_ms"`
	Events     []GameEvent        `json:"events,omitempty"`
	NewBest    bool               `json:"new_best,omitempty"`
	Rank       int                `json:"rank,omitempty"`
	Live       bool               `json:"live,omitempty"`
	Message    string             `json:"message"`
}

// GameEvent represents something that happened during a run
type GameEvent struct {
	Type      string           `json:"type"` // "step", "laptop", "sound", "fall", "respawn", "aborted", "finished"
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Position  *engine.Position `json:"position,omitempty"`
	AtMS      int64            `json:"at_ms"`
}

// RunRecord is one entry of a session's run history
type RunRecord struct {
	ID         string             `json:"id"`
	Program    string             `json:"program"`
	ParseError *engine.ParseError `json:"parse_error,omitempty"`
	Outcome    *engine.Outcome    `json:"outcome,omitempty"`
	Success    bool               `json:"success"`
	Commands   int                `json:"commands"`
	Score      int                `json:"score"`
	Final      engine.Position    `json:"final"`
	Frames     int                `json:"frames"`
	Live       bool               `json:"live,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// HistoryOptions configures run history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated run history
type HistoryResponse struct {
	Runs        []RunRecord `json:"runs"`
	TotalRuns   int         `json:"total_runs"`
	Page        int         `json:"page"`
	PageSize    int         `json:"page_size"`
	TotalPages  int         `json:"total_pages"`
	HasNext     bool        `json:"has_next"`
	HasPrevious bool        `json:"has_previous"`
}

// HintResult carries the shortest known solution for a session's level
type HintResult struct {
	LevelID   string `json:"level_id"`
	Solvable  bool   `json:"solvable"`
	Program   string `json:"program,omitempty"`
	FirstStep string `json:"first_step,omitempty"`
	Commands  int    `json:"commands"`
	Score     int    `json:"score"`
}

// levelInfo builds the listing view of a level
func levelInfo(level *engine.Level) *LevelInfo {
	_, goalHeight, _ := level.GoalPosition()
	return &LevelInfo{
		ID:           level.ID,
		Name:         level.Name,
		Description:  level.Description,
		Number:       level.Number,
		Width:        level.Width,
		Height:       level.Height,
		AllowJump:    level.AllowJump,
		HasLaptop:    level.Laptop != nil,
		ElevatedGoal: goalHeight > 0,
	}
}
