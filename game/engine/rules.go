package engine

// CheckWinCondition reports whether s stands on the goal at the goal's height,
// holding the laptop when the level has one.
func CheckWinCondition(s *State, level *Level) bool {
	goal, height, ok := level.GoalPosition()
	if !ok {
		return false
	}
	if s.X != goal.X || s.Y != goal.Y || s.Z != height {
		return false
	}
	if level.Laptop != nil && !s.HasLaptop {
		return false
	}
	return true
}

// CountCommands counts program lines for scoring. A loop counts its body
// once and not its own header, so it contributes len(body)-1.
func CountCommands(actions []Action) int {
	count := 0
	for _, a := range actions {
		if a.Type == ActionWhile {
			count += CountCommands(a.Body) - 1
			continue
		}
		count++
	}
	return count
}

// CalculateScore turns a command count into points, never below 100
func CalculateScore(commands int) int {
	score := 1000 - 50*commands
	if score < 100 {
		return 100
	}
	return score
}
