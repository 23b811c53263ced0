package service

import (
	"fmt"
	"time"

	"github.com/wricardo/startie/game/engine"
)

// runner collects what one engine run draws and emits. It lives for exactly
// one Execute call and is only touched while the session's runMu is held.
type runner struct {
	sess      *Session
	startedAt time.Duration

	frames    int
	events    []GameEvent
	lastPos   engine.Position
	hadLaptop bool
	failed    bool

	final   *engine.State
	outcome *engine.Outcome

	onDraw  func(*engine.State)
	onEvent func(GameEvent)
}

func newRunner(sess *Session, onDraw func(*engine.State), onEvent func(GameEvent)) *runner {
	return &runner{sess: sess, onDraw: onDraw, onEvent: onEvent}
}

// start installs the cue sink and hands actions to the engine
func (r *runner) start(actions []engine.Action) {
	r.sess.cues.sink = func(sound string) {
		r.emit("sound", sound, nil)
	}
	r.startedAt = r.sess.Scheduler.Now()
	r.sess.Engine.Execute(actions, r.draw, r.finish)
}

func (r *runner) draw(state *engine.State) {
	r.frames++
	pos := state.Position()

	// The pickup gets a draw of its own at the laptop tile
	if state.HasLaptop && !r.hadLaptop {
		at := r.sess.Level.Laptop
		r.emit("laptop", "Picked up the laptop", at)
	}
	r.hadLaptop = state.HasLaptop

	switch {
	case r.frames == 1:
		r.lastPos = pos
	case pos != r.lastPos:
		r.lastPos = pos
		r.emit("step", fmt.Sprintf("Moved to (%d,%d) facing %s", pos.X, pos.Y, state.Facing), &pos)
	}

	// An abort also marks the state failed but never enters the falling phase
	if state.Failed && !r.failed && r.sess.Engine.Phase() == engine.PhaseFalling {
		r.emit("fall", fmt.Sprintf("Lost footing at (%d,%d)", pos.X, pos.Y), &pos)
	}
	r.failed = state.Failed

	if r.onDraw != nil {
		r.onDraw(state.Clone())
	}
}

func (r *runner) finish(state *engine.State, out engine.Outcome) {
	r.final = state.Clone()
	r.outcome = &out

	pos := state.Position()
	switch out.Kind {
	case engine.OutcomeCompleted:
		r.emit("finished", "Program finished", &pos)
	case engine.OutcomeFell:
		r.emit("respawn", "Respawned at the start", &pos)
	case engine.OutcomeAborted:
		r.emit("aborted", "Program aborted: "+out.Reason, &pos)
	}
}

func (r *runner) emit(kind, message string, pos *engine.Position) {
	ev := GameEvent{
		Type:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Position:  pos,
		AtMS:      (r.sess.Scheduler.Now() - r.startedAt).Milliseconds(),
	}
	r.events = append(r.events, ev)
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}
