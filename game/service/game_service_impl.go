package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15/v3"
	"github.com/spf13/afero"

	"github.com/wricardo/startie/game/config"
	"github.com/wricardo/startie/game/engine"
	"github.com/wricardo/startie/game/leaderboard"
	"github.com/wricardo/startie/game/solver"
)

var log = log15.New("module", "service")

// ErrRunStalled is returned when a headless run never settles
var ErrRunStalled = errors.New("run did not finish")

// maxRunSteps bounds a headless run; loops are capped by the engine long before
const maxRunSteps = 5_000_000

// maxProgramActions caps how many actions a submitted program may expand to
const maxProgramActions = 10_000

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions    SessionManager
	levels      LevelManager
	scores      leaderboard.Store
	broadcaster Broadcaster

	hints   map[string]*HintResult
	hintsMu sync.RWMutex

	// live tracks background runs so Close can wait for them
	live sync.WaitGroup
	mu   sync.RWMutex
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithLeaderboard sets the store winning runs are recorded in
func WithLeaderboard(store leaderboard.Store) Option {
	return func(s *gameServiceImpl) { s.scores = store }
}

// WithBroadcaster sets where live run frames are pushed
func WithBroadcaster(b Broadcaster) Option {
	return func(s *gameServiceImpl) { s.broadcaster = b }
}

// NewGameService creates a new game service instance. Without a leaderboard
// option scores are kept in memory.
func NewGameService(sessions SessionManager, levels LevelManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		levels:   levels,
		hints:    make(map[string]*HintResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scores == nil {
		s.scores = leaderboard.NewFileStore(afero.NewMemMapFs(), "leaderboard")
	}
	return s
}

// ListLevels returns every playable level with its best recorded score
func (s *gameServiceImpl) ListLevels(ctx context.Context) ([]*LevelInfo, error) {
	levels, err := s.levels.ListLevels()
	if err != nil {
		return nil, err
	}

	infos := make([]*LevelInfo, 0, len(levels))
	for _, level := range levels {
		info := levelInfo(level)
		if best, err := s.scores.Best(ctx, level.ID); err == nil && best != nil {
			info.BestScore = best.Score
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetLevel loads a level by ID
func (s *gameServiceImpl) GetLevel(ctx context.Context, levelID string) (*engine.Level, error) {
	level, err := s.levels.LoadLevel(levelID)
	if err != nil {
		return nil, s.levelError(levelID, err)
	}
	return level, nil
}

// levelError adds the available level IDs to a not-found error
func (s *gameServiceImpl) levelError(levelID string, err error) error {
	if !errors.Is(err, config.ErrLevelNotFound) {
		return fmt.Errorf("failed to load level '%s': %w", levelID, err)
	}

	levels, listErr := s.levels.ListLevels()
	if listErr != nil || len(levels) == 0 {
		return fmt.Errorf("level '%s': %w", levelID, err)
	}
	ids := make([]string, 0, len(levels))
	for _, level := range levels {
		ids = append(ids, level.ID)
	}
	return fmt.Errorf("level '%s': %w. Available levels: %s", levelID, err, strings.Join(ids, ", "))
}

// CreateSession creates a new play session on levelID, or on the first level
// when levelID is empty
func (s *gameServiceImpl) CreateSession(ctx context.Context, levelID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		level *engine.Level
		err   error
	)
	if levelID == "" {
		level, err = s.levels.GetDefault()
		if err != nil {
			return nil, fmt.Errorf("failed to load default level: %w", err)
		}
	} else {
		level, err = s.levels.LoadLevel(levelID)
		if err != nil {
			return nil, s.levelError(levelID, err)
		}
	}

	sess, err := s.sessions.Create("", level)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info("session created", "session", sess.ID, "level", level.ID)
	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	sess.Touch()
	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	infos := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sessionInfo(sess))
	}
	return infos, nil
}

// DeleteSession stops any live run and removes the session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, err := s.sessions.Get(sessionID); err == nil {
		sess.stopLive()
	}
	return s.sessions.Delete(sessionID)
}

// Parse checks a program without running it
func (s *gameServiceImpl) Parse(ctx context.Context, program string) (*ParseResult, error) {
	actions, err := engine.ParseLimit(program, maxProgramActions)
	if err != nil {
		var perr *engine.ParseError
		if errors.As(err, &perr) {
			return &ParseResult{Valid: false, Error: perr}, nil
		}
		return nil, err
	}

	commands := engine.CountCommands(actions)
	return &ParseResult{
		Valid:     true,
		Actions:   actions,
		Formatted: engine.Format(actions),
		Commands:  commands,
		Score:     engine.CalculateScore(commands),
	}, nil
}

// Run parses and executes a program on a session. A headless run returns
// once the engine has finished; a live run returns as soon as it starts and
// streams its frames through the broadcaster.
func (s *gameServiceImpl) Run(ctx context.Context, sessionID string, req RunRequest) (*RunResult, error) {
	s.mu.RLock()
	sess, err := s.sessions.Get(sessionID)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	sess.Touch()

	result := &RunResult{
		RunID:     uuid.NewString(),
		SessionID: sess.ID,
		LevelID:   sess.Level.ID,
		Program:   req.Program,
		Live:      req.Live,
	}

	actions, err := engine.ParseLimit(req.Program, maxProgramActions)
	if err != nil {
		var perr *engine.ParseError
		if !errors.As(err, &perr) {
			return nil, err
		}
		result.ParseError = perr
		result.State = sess.State()
		result.Message = perr.Message
		sess.addRun(RunRecord{
			ID:         result.RunID,
			Program:    req.Program,
			ParseError: perr,
			Final:      result.State.Position(),
			Timestamp:  time.Now(),
		})
		s.persist(sess)
		return result, nil
	}
	result.Actions = len(actions)
	result.Commands = engine.CountCommands(actions)

	if req.Live {
		return s.startLive(sess, actions, req, result), nil
	}

	// A new program always replaces the one in flight
	sess.stopLive()

	sess.runMu.Lock()
	defer sess.runMu.Unlock()

	r := newRunner(sess, nil, nil)
	r.start(actions)
	settled := sess.Scheduler.RunUntilIdle(maxRunSteps)
	sess.cues.sink = nil
	if !settled {
		log.Error("run did not settle", "session", sess.ID, "steps", sess.Scheduler.Steps())
		return nil, ErrRunStalled
	}

	s.finishRun(ctx, sess, r, result, req)
	return result, nil
}

// startLive runs actions against the wall clock in the background
func (s *gameServiceImpl) startLive(sess *Session, actions []engine.Action, req RunRequest, result *RunResult) *RunResult {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sess.swapLive(cancel, done)
	sess.runMu.Lock()

	r := newRunner(sess,
		func(state *engine.State) {
			sess.setState(state)
			if s.broadcaster != nil {
				s.broadcaster.BroadcastState(sess.ID, state)
			}
		},
		func(ev GameEvent) {
			if s.broadcaster != nil {
				s.broadcaster.BroadcastEvent(sess.ID, ev.Type, ev)
			}
		},
	)
	r.start(actions)

	started := *result
	started.State = sess.Engine.State().Clone()
	started.Message = "Run started"

	s.live.Add(1)
	go func() {
		defer s.live.Done()

		err := sess.Scheduler.RunRealtime(ctx)
		sess.cues.sink = nil
		if err != nil {
			log.Debug("live run stopped", "session", sess.ID, "err", err)
		}

		final := *result
		s.finishRun(context.Background(), sess, r, &final, req)
		sess.runMu.Unlock()

		sess.mu.Lock()
		if sess.liveDone == done {
			sess.liveCancel = nil
			sess.liveDone = nil
		}
		sess.mu.Unlock()
		cancel()
		close(done)

		if s.broadcaster != nil {
			s.broadcaster.BroadcastEvent(sess.ID, "run_complete", &final)
		}
	}()

	return &started
}

// finishRun scores a finished run and records it
func (s *gameServiceImpl) finishRun(ctx context.Context, sess *Session, r *runner, result *RunResult, req RunRequest) {
	result.Frames = r.frames
	result.Events = r.events
	result.DurationMS = (sess.Scheduler.Now() - r.startedAt).Milliseconds()

	if r.outcome == nil {
		// Interrupted before the engine finished
		result.State = sess.Engine.State().Clone()
		result.Message = "Run interrupted"
	} else {
		result.Outcome = r.outcome
		result.State = r.final
		result.Success = r.outcome.Kind == engine.OutcomeCompleted && engine.CheckWinCondition(r.final, sess.Level)
		if result.Success {
			result.Score = engine.CalculateScore(result.Commands)
		}
		result.Message = runMessage(result)
	}
	sess.setState(result.State)

	result.NewBest = sess.addRun(RunRecord{
		ID:        result.RunID,
		Program:   result.Program,
		Outcome:   result.Outcome,
		Success:   result.Success,
		Commands:  result.Commands,
		Score:     result.Score,
		Final:     result.State.Position(),
		Frames:    result.Frames,
		Live:      result.Live,
		Timestamp: time.Now(),
	})

	if result.Success {
		entry := leaderboard.NewEntry(sess.Level.ID, result.Score, result.Commands)
		entry.Player = req.Player
		entry.SessionID = sess.ID
		entry.Program = strings.TrimSpace(result.Program)
		rank, err := s.scores.Save(ctx, entry)
		if err != nil {
			log.Warn("failed to record score", "session", sess.ID, "level", sess.Level.ID, "err", err)
		}
		result.Rank = rank
	}

	log.Info("run finished", "session", sess.ID, "level", sess.Level.ID,
		"success", result.Success, "score", result.Score, "frames", result.Frames)
	s.persist(sess)
}

func runMessage(result *RunResult) string {
	out := result.Outcome
	switch {
	case result.Success:
		return fmt.Sprintf("Level complete! Score: %d (%d commands)", result.Score, result.Commands)
	case out.Kind == engine.OutcomeFell:
		return fmt.Sprintf("Fell at (%d,%d). Back to the start.", out.FailedAt.X, out.FailedAt.Y)
	case out.Reason == engine.ReasonJumpNotAllowed:
		return "Jumping is not allowed on this level"
	case out.Reason == engine.ReasonLoopWithoutLaptop:
		return "while(hacking) needs the laptop"
	case out.Reason == engine.ReasonLoopLimit:
		return "while(hacking) ran too many times"
	default:
		return "Program finished without reaching the goal"
	}
}

func (s *gameServiceImpl) persist(sess *Session) {
	if err := s.sessions.Save(sess.ID); err != nil {
		log.Warn("failed to save session", "session", sess.ID, "err", err)
	}
}

// GetState returns the most recently drawn state
func (s *gameServiceImpl) GetState(ctx context.Context, sessionID string) (*engine.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	sess.Touch()
	return sess.State(), nil
}

// GetRunHistory returns paginated run history
func (s *gameServiceImpl) GetRunHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	history := sess.History()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var runs []RunRecord
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			runs = append(runs, history[i])
		}
	} else if start < total {
		runs = history[start:end]
	}

	if runs == nil {
		runs = []RunRecord{}
	}

	return &HistoryResponse{
		Runs:        runs,
		TotalRuns:   total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// Leaderboard returns the top scores for a level
func (s *gameServiceImpl) Leaderboard(ctx context.Context, levelID string) ([]leaderboard.Entry, error) {
	if _, err := s.levels.LoadLevel(levelID); err != nil {
		return nil, s.levelError(levelID, err)
	}
	return s.scores.Top(ctx, levelID)
}

// Hint returns the shortest known program for the session's level
func (s *gameServiceImpl) Hint(ctx context.Context, sessionID string) (*HintResult, error) {
	s.mu.RLock()
	sess, err := s.sessions.Get(sessionID)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	level := sess.Level

	s.hintsMu.RLock()
	if hint, ok := s.hints[level.ID]; ok {
		s.hintsMu.RUnlock()
		return hint, nil
	}
	s.hintsMu.RUnlock()

	s.hintsMu.Lock()
	defer s.hintsMu.Unlock()

	// Double-check after acquiring write lock
	if hint, ok := s.hints[level.ID]; ok {
		return hint, nil
	}

	hint := &HintResult{LevelID: level.ID}
	sol, err := solver.Solve(level)
	switch {
	case errors.Is(err, solver.ErrUnsolvable):
	case err != nil:
		return nil, err
	default:
		hint.Solvable = true
		hint.Program = sol.Program
		hint.Commands = sol.Commands
		hint.Score = sol.Score
		if len(sol.Actions) > 0 {
			hint.FirstStep = strings.SplitN(engine.Format(sol.Actions[:1]), "\n", 2)[0]
		}
	}

	s.hints[level.ID] = hint
	return hint, nil
}

// Close stops every live run and waits for them to finish
func (s *gameServiceImpl) Close() error {
	for _, sess := range s.sessions.List() {
		sess.stopLive()
	}
	s.live.Wait()
	return s.scores.Close()
}

// sessionInfo builds the API view of a session
func sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		LevelID:        sess.Level.ID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccess(),
		State:          sess.State(),
		Level:          sess.Level,
		BestScore:      sess.BestScore(),
		Runs:           len(sess.History()),
		Running:        sess.Running(),
	}
}
