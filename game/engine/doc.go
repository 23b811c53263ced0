// Package engine provides the core game logic for Startie.
//
// The engine package implements the puzzle mechanics including:
//   - Parsing the command language (move, jump, spin, while(hacking))
//   - Grid queries over a static level description
//   - Logic-first execution of actions with queued animations
//   - The fall and respawn sequence after stepping onto an invalid tile
//   - Win condition, command counting and scoring
//
// Core Types:
//
// Level is the immutable grid description. Action is the parsed program step.
// State holds the discrete position, facing and inventory of the character plus
// presentation-only animation fields. Engine drives a run against a Scheduler,
// the host-provided frame and timer primitive.
//
// Usage:
//
//	actions, err := engine.Parse("move(2)\nspin(l)\njump")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sched := engine.NewVirtualScheduler()
//	eng := engine.NewEngine(level, sched, engine.DefaultOptions())
//	eng.Execute(actions, func(s *engine.State) {
//		// redraw
//	}, func(s *engine.State, out engine.Outcome) {
//		fmt.Println(engine.CheckWinCondition(s, level))
//	})
//	sched.RunUntilIdle(0)
//
// Game Rules:
//
// The character walks over floor tiles and must land jumps to reach lifted
// tiles. Holes and void tiles make the character fall, which discards the rest
// of the program and respawns it at the start. Levels with a laptop require
// picking it up before the goal counts, and the while(hacking) loop only runs
// while the laptop is carried and the goal has not been reached.
package engine
