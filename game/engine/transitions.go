package engine

// Transition is the logical result of a move or jump, decided before any
// animation plays. The character always ends up at To, even when WillFail.
type Transition struct {
	From     Position `json:"from"`
	To       Position `json:"to"`
	Z        int      `json:"z"`
	WillFail bool     `json:"will_fail"`
}

// PlanMove computes a single forward step. Lifted tiles cannot be walked onto.
func PlanMove(level *Level, s *State) Transition {
	target := s.NextTile()
	willFail := !level.IsValidPosition(target.X, target.Y) ||
		level.IsHole(target.X, target.Y) ||
		level.IsLiftedTile(target.X, target.Y)
	return Transition{From: s.Position(), To: target, Z: 0, WillFail: willFail}
}

// PlanJump computes a jump. A lifted tile directly ahead is the landing spot
// at its height; otherwise the jump clears one cell and lands at ground level.
func PlanJump(level *Level, s *State) Transition {
	dx, dy := s.Facing.Delta()
	ahead := Position{X: s.X + dx, Y: s.Y + dy}

	target := Position{X: s.X + 2*dx, Y: s.Y + 2*dy}
	landing := 0
	if level.IsLiftedTile(ahead.X, ahead.Y) {
		target = ahead
		landing = level.TileHeight(ahead.X, ahead.Y)
	}

	// An elevated landing may have nothing beneath it.
	willFail := (landing == 0 && !level.IsValidPosition(target.X, target.Y)) ||
		level.IsHole(target.X, target.Y)

	return Transition{From: s.Position(), To: target, Z: landing, WillFail: willFail}
}

// loopGuard is the condition the hacking loop re-checks before every pass
func loopGuard(level *Level, s *State) bool {
	return s.HasLaptop && !level.IsGoal(s.X, s.Y)
}
