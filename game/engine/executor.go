package engine

import (
	"math"
	"time"
)

// Phase is the coarse lifecycle of a run
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRunning    Phase = "running"
	PhaseSucceeding Phase = "succeeding"
	PhaseFalling    Phase = "falling"
	PhaseRespawning Phase = "respawning"
)

// OutcomeKind says how a run ended
type OutcomeKind string

const (
	// OutcomeCompleted means every action ran; the goal may or may not be reached
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeFell means a move or jump landed on an invalid cell and the
	// character respawned at the start
	OutcomeFell OutcomeKind = "fell"
	// OutcomeAborted means a terminal failure ended the run with no animation
	OutcomeAborted OutcomeKind = "aborted"
)

// Reasons attached to aborted runs
const (
	ReasonJumpNotAllowed    = "jump_not_allowed"
	ReasonLoopWithoutLaptop = "loop_without_laptop"
	ReasonLoopLimit         = "loop_limit"
)

// Outcome describes the end of a run
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Reason     string      `json:"reason,omitempty"`
	FailedAt   *Position   `json:"failed_at,omitempty"`
	Executed   int         `json:"executed"`
	LoopPasses int         `json:"loop_passes,omitempty"`
}

// DrawFunc renders a state. It must not retain or mutate s.
type DrawFunc func(s *State)

// FinishFunc receives the final state of a run
type FinishFunc func(s *State, out Outcome)

type animKind string

const (
	animMove animKind = "move"
	animJump animKind = "jump"
	animSpin animKind = "spin"
	animFall animKind = "fall"
)

// then is what the driver does once an animation has settled
type then int

const (
	thenContinue then = iota
	thenStep
	thenFall
	thenGhost
)

type vec3 struct {
	x, y, z float64
}

// animation is a queued presentation descriptor. The logical change it shows
// has already been committed to the state.
type animation struct {
	kind     animKind
	from, to vec3
	duration time.Duration
	then     then
	start    time.Duration
	started  bool
}

// Engine executes action lists against one level. All methods must be called
// from the goroutine that drives the Scheduler.
type Engine struct {
	level *Level
	sched Scheduler
	opts  Options
	state *State
	phase Phase

	animations []*animation
	current    *animation
	settling   *animation

	frameHandle  Handle
	settleHandle Handle
	ghostHandle  Handle

	draw     DrawFunc
	onFinish FinishFunc
	finished bool

	executed   int
	loopPasses int
	fallAt     Position
}

// NewEngine creates an engine with its state placed on the level start
func NewEngine(level *Level, sched Scheduler, opts Options) *Engine {
	e := &Engine{
		level: level,
		sched: sched,
		opts:  opts.withDefaults(),
		state: &State{},
		phase: PhaseIdle,
	}
	e.state.resetTo(level)
	return e
}

// Level returns the level the engine runs against
func (e *Engine) Level() *Level {
	return e.level
}

// State returns the live state. Callers outside the scheduler goroutine
// should Clone it.
func (e *Engine) State() *State {
	return e.state
}

// Phase returns the current lifecycle phase
func (e *Engine) Phase() Phase {
	return e.phase
}

// Options returns the effective options
func (e *Engine) Options() Options {
	return e.opts
}

// Execute starts a run. Any run in flight is interrupted and its finish
// callback never fires.
func (e *Engine) Execute(actions []Action, draw DrawFunc, onFinish FinishFunc) {
	e.cancel()

	if draw == nil {
		draw = func(*State) {}
	}
	e.draw = draw
	e.onFinish = onFinish
	e.finished = false
	e.executed = 0
	e.loopPasses = 0

	e.state.resetTo(e.level)
	e.state.Failed = false
	e.state.StepCount = len(actions)
	e.state.Queue = append([]Action(nil), actions...)
	e.phase = PhaseRunning

	e.draw(e.state)
	e.advance()
}

// cancel stops every scheduled callback and drops queued animations
func (e *Engine) cancel() {
	e.sched.Cancel(e.frameHandle)
	e.sched.Cancel(e.settleHandle)
	e.sched.Cancel(e.ghostHandle)
	e.frameHandle = 0
	e.settleHandle = 0
	e.ghostHandle = 0
	e.animations = nil
	e.current = nil
	e.settling = nil
}

// advance pops queued actions until one needs an animation or the run ends
func (e *Engine) advance() {
	for {
		if len(e.state.Queue) == 0 {
			e.complete()
			return
		}

		action := e.state.Queue[0]
		e.state.Queue = e.state.Queue[1:]

		switch action.Type {
		case ActionMove:
			e.executed++
			e.commitStep(animMove, PlanMove(e.level, e.state), e.opts.MoveDuration)
			return

		case ActionJump:
			e.executed++
			if !e.level.AllowJump {
				e.abort(ReasonJumpNotAllowed)
				return
			}
			e.commitStep(animJump, PlanJump(e.level, e.state), e.opts.JumpDuration)
			e.opts.Cues.PlayJump()
			return

		case ActionSpin:
			e.executed++
			e.state.Facing = RotateFacing(e.state.Facing, action.Direction)
			e.markLast()
			e.draw(e.state)
			e.opts.Cues.PlaySpin()
			e.enqueue(&animation{kind: animSpin, duration: e.opts.SpinDuration, then: thenContinue})
			return

		case ActionWhile:
			e.executed++
			if !e.state.HasLaptop {
				e.abort(ReasonLoopWithoutLaptop)
				return
			}
			if !e.recheckLoop(action) {
				return
			}

		case actionLoopCheck:
			if !e.recheckLoop(action) {
				return
			}
		}
	}
}

// recheckLoop evaluates the hacking guard and splices another body copy when
// it holds. It returns false when the run was aborted.
func (e *Engine) recheckLoop(loop Action) bool {
	if !loopGuard(e.level, e.state) {
		return true
	}

	e.loopPasses++
	if e.loopPasses > e.opts.MaxLoopIterations {
		e.abort(ReasonLoopLimit)
		return false
	}

	spliced := make([]Action, 0, len(loop.Body)+1+len(e.state.Queue))
	spliced = append(spliced, loop.Body...)
	spliced = append(spliced, Action{Type: actionLoopCheck, Condition: loop.Condition, Body: loop.Body})
	spliced = append(spliced, e.state.Queue...)
	e.state.Queue = spliced
	return true
}

// commitStep applies a move or jump transition before its animation is queued
func (e *Engine) commitStep(kind animKind, tr Transition, duration time.Duration) {
	from := vec3{float64(tr.From.X), float64(tr.From.Y), float64(e.state.Z)}
	to := vec3{float64(tr.To.X), float64(tr.To.Y), float64(tr.Z)}

	e.state.X = tr.To.X
	e.state.Y = tr.To.Y
	e.state.Z = tr.Z
	e.markLast()
	e.draw(e.state)

	next := thenStep
	if tr.WillFail {
		next = thenFall
	}
	e.enqueue(&animation{kind: kind, from: from, to: to, duration: duration, then: next})
}

// markLast flags the final action's animation as the success tail
func (e *Engine) markLast() {
	if len(e.state.Queue) == 0 {
		e.phase = PhaseSucceeding
	}
}

// enqueue adds an animation and makes sure the frame loop is running
func (e *Engine) enqueue(a *animation) {
	e.animations = append(e.animations, a)
	if e.frameHandle == 0 {
		e.frameHandle = e.sched.RequestFrame(e.frame)
	}
}

// frame advances the head animation, redraws and reschedules while work remains
func (e *Engine) frame(now time.Duration) {
	e.frameHandle = 0
	e.update(now)
	e.draw(e.state)
	if e.current != nil || len(e.animations) > 0 {
		e.frameHandle = e.sched.RequestFrame(e.frame)
	}
}

func (e *Engine) update(now time.Duration) {
	if e.current == nil {
		if len(e.animations) == 0 {
			return
		}
		e.current = e.animations[0]
		e.animations = e.animations[1:]
	}

	a := e.current
	if !a.started {
		a.start = now
		a.started = true
	}

	progress := 1.0
	if a.duration > 0 {
		progress = math.Min(float64(now-a.start)/float64(a.duration), 1)
	}

	switch a.kind {
	case animMove:
		e.state.AnimX = ptr(lerp(a.from.x, a.to.x, progress))
		e.state.AnimY = ptr(lerp(a.from.y, a.to.y, progress))
	case animJump:
		e.state.AnimX = ptr(lerp(a.from.x, a.to.x, progress))
		e.state.AnimY = ptr(lerp(a.from.y, a.to.y, progress))
		arc := e.opts.JumpArc * 4 * progress * (1 - progress)
		e.state.AnimZ = ptr(lerp(a.from.z, a.to.z, progress) + arc)
	case animSpin:
		e.state.AnimRotation = ptr(360 * progress)
	case animFall:
		e.state.AnimZ = ptr(lerp(a.from.z, a.to.z, progress))
		e.state.AnimAlpha = ptr(1 - 0.7*progress)
	}

	if progress < 1 {
		return
	}

	e.current = nil
	e.settling = a
	e.settleHandle = e.sched.After(e.opts.SettleDelay, e.settle)
}

// settle runs once the final frame of an animation has been drawn
func (e *Engine) settle() {
	e.settleHandle = 0
	a := e.settling
	e.settling = nil
	if a == nil {
		return
	}
	e.state.clearAnimation()

	switch a.then {
	case thenStep:
		if e.level.IsLaptopTile(e.state.X, e.state.Y) && !e.state.HasLaptop {
			e.state.HasLaptop = true
			e.draw(e.state)
		}
		e.advance()
	case thenFall:
		e.beginFall()
	case thenGhost:
		e.beginGhost()
	default:
		e.advance()
	}
}

func (e *Engine) beginFall() {
	e.phase = PhaseFalling
	e.state.Failed = true
	e.fallAt = e.state.Position()
	e.draw(e.state)
	e.opts.Cues.PlayFall()

	z := float64(e.state.Z)
	e.enqueue(&animation{
		kind:     animFall,
		from:     vec3{float64(e.state.X), float64(e.state.Y), z},
		to:       vec3{float64(e.state.X), float64(e.state.Y), z - e.opts.FallDepth},
		duration: e.opts.FallDuration,
		then:     thenGhost,
	})
}

func (e *Engine) beginGhost() {
	e.phase = PhaseRespawning
	e.state.GhostVisible = true
	e.state.GhostY = ptr(e.opts.Projection.TileTopY(e.fallAt.X, e.fallAt.Y))
	e.state.GhostAlpha = ptr(1)
	e.draw(e.state)
	e.ghostHandle = e.sched.After(e.opts.GhostTick, e.ghostStep)
}

func (e *Engine) ghostStep() {
	e.ghostHandle = 0
	y := *e.state.GhostY - e.opts.GhostRise
	if y <= e.opts.GhostTop {
		e.respawn()
		return
	}

	alpha := 1.0
	if remaining := y - e.opts.GhostTop; remaining < e.opts.GhostFade {
		alpha = remaining / e.opts.GhostFade
	}
	e.state.GhostY = ptr(y)
	e.state.GhostAlpha = ptr(alpha)
	e.draw(e.state)
	e.ghostHandle = e.sched.After(e.opts.GhostTick, e.ghostStep)
}

// respawn discards the program and puts the character back on the start
func (e *Engine) respawn() {
	failedAt := e.fallAt
	e.state.resetTo(e.level)
	e.state.Failed = true
	e.phase = PhaseIdle
	e.draw(e.state)
	e.finish(Outcome{Kind: OutcomeFell, FailedAt: &failedAt})
}

// complete ends a run whose queue drained normally
func (e *Engine) complete() {
	if e.current != nil || len(e.animations) > 0 || e.settling != nil {
		return
	}
	e.phase = PhaseIdle
	e.draw(e.state)
	e.finish(Outcome{Kind: OutcomeCompleted})
}

// abort ends the run on the spot without any animation
func (e *Engine) abort(reason string) {
	e.state.Failed = true
	e.state.Queue = nil
	e.phase = PhaseIdle
	e.draw(e.state)
	e.finish(Outcome{Kind: OutcomeAborted, Reason: reason})
}

func (e *Engine) finish(out Outcome) {
	if e.finished {
		return
	}
	e.finished = true
	out.Executed = e.executed
	out.LoopPasses = e.loopPasses
	if e.onFinish != nil {
		e.onFinish(e.state, out)
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
