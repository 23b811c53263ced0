package solver

import (
	"github.com/wricardo/startie/game/engine"
)

// Simulate runs actions headless on a fresh engine and returns the final
// state with the run's outcome.
func Simulate(level *engine.Level, actions []engine.Action) (*engine.State, engine.Outcome) {
	sched := engine.NewVirtualScheduler()
	eng := engine.NewEngine(level, sched, engine.DefaultOptions())

	var (
		final   *engine.State
		outcome engine.Outcome
	)
	eng.Execute(actions, nil, func(s *engine.State, out engine.Outcome) {
		final = s.Clone()
		outcome = out
	})
	sched.RunUntilIdle(simulationSteps)

	if final == nil {
		final = eng.State().Clone()
	}
	return final, outcome
}

// Wins reports whether actions complete level
func Wins(level *engine.Level, actions []engine.Action) bool {
	final, out := Simulate(level, actions)
	return out.Kind == engine.OutcomeCompleted && engine.CheckWinCondition(final, level)
}
