package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/startie/game/engine"
)

// MaxHistory caps the run history kept per session
const MaxHistory = 200

// Session represents an active play session. Each session owns one engine
// and the virtual scheduler that drives it.
type Session struct {
	ID             string
	Level          *engine.Level
	Engine         *engine.Engine
	Scheduler      *engine.VirtualScheduler
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// runMu serializes access to Engine and Scheduler
	runMu sync.Mutex
	cues  *cueRelay

	// mu guards everything below and LastAccessedAt
	mu         sync.Mutex
	history    []RunRecord
	bestScore  int
	lastState  *engine.State
	liveCancel context.CancelFunc
	liveDone   chan struct{}
}

// SessionRecord is the durable part of a session
type SessionRecord struct {
	ID             string        `json:"id"`
	LevelID        string        `json:"level_id"`
	CreatedAt      time.Time     `json:"created_at"`
	LastAccessedAt time.Time     `json:"last_accessed_at"`
	BestScore      int           `json:"best_score"`
	History        []RunRecord   `json:"history"`
	LastState      *engine.State `json:"last_state,omitempty"`
}

// NewSession creates a session with a fresh engine on level
func NewSession(id string, level *engine.Level) *Session {
	relay := &cueRelay{}
	opts := engine.DefaultOptions()
	opts.Cues = relay

	sched := engine.NewVirtualScheduler()
	eng := engine.NewEngine(level, sched, opts)
	now := time.Now()

	return &Session{
		ID:             id,
		Level:          level,
		Engine:         eng,
		Scheduler:      sched,
		CreatedAt:      now,
		LastAccessedAt: now,
		cues:           relay,
		history:        []RunRecord{},
		lastState:      eng.State().Clone(),
	}
}

// RestoreSession rebuilds a session from its record
func RestoreSession(rec SessionRecord, level *engine.Level) *Session {
	s := NewSession(rec.ID, level)
	s.CreatedAt = rec.CreatedAt
	s.LastAccessedAt = rec.LastAccessedAt
	s.bestScore = rec.BestScore
	if rec.History != nil {
		s.history = rec.History
	}
	if rec.LastState != nil {
		s.lastState = rec.LastState
	}
	return s
}

// Record snapshots the durable fields
func (s *Session) Record() SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]RunRecord, len(s.history))
	copy(history, s.history)
	return SessionRecord{
		ID:             s.ID,
		LevelID:        s.Level.ID,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		BestScore:      s.bestScore,
		History:        history,
		LastState:      s.lastState.Clone(),
	}
}

// Touch marks the session as accessed now
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastAccessedAt = time.Now()
	s.mu.Unlock()
}

// LastAccess returns when the session was last used
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastAccessedAt
}

// State returns a copy of the most recently drawn state
func (s *Session) State() *engine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastState.Clone()
}

// BestScore returns the session's best winning score
func (s *Session) BestScore() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestScore
}

// History returns a copy of the run history, oldest first
func (s *Session) History() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]RunRecord, len(s.history))
	copy(history, s.history)
	return history
}

// Running reports whether a live run is in flight
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveDone != nil
}

func (s *Session) setState(state *engine.State) {
	s.mu.Lock()
	s.lastState = state
	s.mu.Unlock()
}

// addRun appends a record and reports whether it set a new best score
func (s *Session) addRun(rec RunRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, rec)
	if len(s.history) > MaxHistory {
		s.history = s.history[len(s.history)-MaxHistory:]
	}
	s.LastAccessedAt = time.Now()

	if rec.Success && rec.Score > s.bestScore {
		s.bestScore = rec.Score
		return true
	}
	return false
}

// stopLive cancels an in-flight live run and waits for it to return
func (s *Session) stopLive() {
	s.swapLive(nil, nil)
}

// swapLive installs cancel and done as the live run in one step, then stops
// the run it displaced and waits for it to wind down.
func (s *Session) swapLive(cancel context.CancelFunc, done chan struct{}) {
	s.mu.Lock()
	prevCancel, prevDone := s.liveCancel, s.liveDone
	s.liveCancel, s.liveDone = cancel, done
	s.mu.Unlock()

	if prevCancel == nil {
		return
	}
	prevCancel()
	<-prevDone
}

// cueRelay forwards engine cues to whatever sink the current run installed.
// It is only touched while runMu is held.
type cueRelay struct {
	sink func(sound string)
}

func (c *cueRelay) emit(sound string) {
	if c.sink != nil {
		c.sink(sound)
	}
}

func (c *cueRelay) PlayJump() { c.emit("jump") }
func (c *cueRelay) PlaySpin() { c.emit("spin") }
func (c *cueRelay) PlayFall() { c.emit("fall") }
