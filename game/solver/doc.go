// Package solver searches a level for its shortest winning program.
//
// The search is breadth first over (position, height, facing, laptop) using
// the same transition planners the engine commits with, so every program it
// returns replays identically on a live engine. Simulate and Wins run a
// program headless on the virtual scheduler.
package solver
