package engine

import (
	"testing"
)

func createTestLevel(t *testing.T, layout []string) *Level {
	t.Helper()
	level := &Level{
		ID:     "test",
		Name:   "Test Level",
		Width:  len(layout[0]),
		Height: len(layout),
		Layout: layout,
	}
	if err := level.Normalize(); err != nil {
		t.Fatalf("Failed to normalize test level: %v", err)
	}
	return level
}

func TestParseLayout(t *testing.T) {
	tiles, err := ParseLayout([]string{".SGO", "#L3."})
	if err != nil {
		t.Fatalf("ParseLayout failed: %v", err)
	}

	expected := [][]Tile{
		{{Type: Floor}, {Type: Start}, {Type: Goal}, {Type: Hole}},
		{{Type: Void}, {Type: Lifted, Height: 1}, {Type: Floor, Height: 3}, {Type: Floor}},
	}
	for y := range expected {
		for x := range expected[y] {
			if tiles[y][x] != expected[y][x] {
				t.Errorf("tile (%d,%d): expected %+v, got %+v", x, y, expected[y][x], tiles[y][x])
			}
		}
	}

	if _, err := ParseLayout([]string{"..X"}); err == nil {
		t.Error("Expected error for invalid layout character")
	}
}

func TestNormalizeChecksShape(t *testing.T) {
	tests := []struct {
		name  string
		level Level
	}{
		{"zero size", Level{Width: 0, Height: 0, Layout: []string{}}},
		{"row count", Level{Width: 2, Height: 3, Layout: []string{"S.", ".G"}}},
		{"column count", Level{Width: 3, Height: 2, Layout: []string{"S..", ".G"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.level.Normalize(); err == nil {
				t.Error("Expected shape error")
			}
		})
	}
}

func TestGridQueries(t *testing.T) {
	level := createTestLevel(t, []string{
		"S.O#",
		".L2G",
	})

	tests := []struct {
		name     string
		x, y     int
		inBounds bool
		hole     bool
		goal     bool
		lifted   bool
		height   int
		valid    bool
	}{
		{"start", 0, 0, true, false, false, false, 0, true},
		{"floor", 1, 0, true, false, false, false, 0, true},
		{"hole", 2, 0, true, true, false, false, 0, false},
		{"void", 3, 0, true, false, false, false, 0, false},
		{"lifted default height", 1, 1, true, false, false, true, 1, true},
		{"raised floor", 2, 1, true, false, false, true, 2, true},
		{"goal", 3, 1, true, false, true, false, 0, true},
		{"left of grid", -1, 0, false, false, false, false, 0, false},
		{"below grid", 0, 2, false, false, false, false, 0, false},
		{"far away", 1000, -1000, false, false, false, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := level.InBounds(tt.x, tt.y); got != tt.inBounds {
				t.Errorf("InBounds = %v, expected %v", got, tt.inBounds)
			}
			if got := level.IsHole(tt.x, tt.y); got != tt.hole {
				t.Errorf("IsHole = %v, expected %v", got, tt.hole)
			}
			if got := level.IsGoal(tt.x, tt.y); got != tt.goal {
				t.Errorf("IsGoal = %v, expected %v", got, tt.goal)
			}
			if got := level.IsLiftedTile(tt.x, tt.y); got != tt.lifted {
				t.Errorf("IsLiftedTile = %v, expected %v", got, tt.lifted)
			}
			if got := level.TileHeight(tt.x, tt.y); got != tt.height {
				t.Errorf("TileHeight = %d, expected %d", got, tt.height)
			}
			if got := level.IsValidPosition(tt.x, tt.y); got != tt.valid {
				t.Errorf("IsValidPosition = %v, expected %v", got, tt.valid)
			}
		})
	}
}

func TestElevatedGoalOverride(t *testing.T) {
	level := createTestLevel(t, []string{"S...#"})
	level.Goal = &GoalSpec{X: 4, Y: 0, Height: 1}

	if !level.IsGoal(4, 0) {
		t.Error("Expected override coordinate to be the goal")
	}
	if !level.IsLiftedTile(4, 0) {
		t.Error("Expected elevated goal to count as lifted")
	}
	if h := level.TileHeight(4, 0); h != 1 {
		t.Errorf("Expected goal height 1, got %d", h)
	}
	if level.IsValidPosition(4, 0) {
		t.Error("Expected the void beneath the goal to stay invalid ground")
	}

	pos, height, ok := level.GoalPosition()
	if !ok || pos != (Position{X: 4, Y: 0}) || height != 1 {
		t.Errorf("GoalPosition = %v %d %v", pos, height, ok)
	}
}

func TestStartAndLaptop(t *testing.T) {
	level := createTestLevel(t, []string{
		"....",
		"..S.",
	})
	if got := level.StartPosition(); got != (Position{X: 2, Y: 1}) {
		t.Errorf("Expected start tile at (2,1), got %v", got)
	}

	level.Start = &Position{X: 0, Y: 0}
	if got := level.StartPosition(); got != (Position{X: 0, Y: 0}) {
		t.Errorf("Expected declared start to win, got %v", got)
	}

	if level.IsLaptopTile(1, 1) {
		t.Error("No laptop declared, expected false")
	}
	level.Laptop = &Position{X: 1, Y: 1}
	if !level.IsLaptopTile(1, 1) || level.IsLaptopTile(1, 0) {
		t.Error("IsLaptopTile mismatch")
	}

	if n := level.CountTiles(Floor); n != 7 {
		t.Errorf("Expected 7 floor tiles, got %d", n)
	}
}

func TestRotateFacing(t *testing.T) {
	all := []Facing{SE, NE, NW, SW}

	expectedLeft := map[Facing]Facing{SE: NE, NE: NW, NW: SW, SW: SE}
	for from, to := range expectedLeft {
		if got := RotateFacing(from, Left); got != to {
			t.Errorf("left from %s: expected %s, got %s", from, to, got)
		}
	}

	for _, dir := range []SpinDirection{Left, Right} {
		seen := map[Facing]bool{}
		for _, f := range all {
			seen[RotateFacing(f, dir)] = true

			rotated := f
			for i := 0; i < 4; i++ {
				rotated = RotateFacing(rotated, dir)
			}
			if rotated != f {
				t.Errorf("four %s spins from %s ended at %s", dir, f, rotated)
			}
		}
		if len(seen) != 4 {
			t.Errorf("%s rotation is not a bijection: %v", dir, seen)
		}
	}

	for _, f := range all {
		if got := RotateFacing(RotateFacing(f, Left), Right); got != f {
			t.Errorf("left then right from %s gave %s", f, got)
		}
		if got := RotateFacing(RotateFacing(f, Right), Left); got != f {
			t.Errorf("right then left from %s gave %s", f, got)
		}
	}
}

func TestStateClone(t *testing.T) {
	s := &State{X: 1, Y: 2, Facing: NE, Queue: []Action{MoveAction()}, AnimX: ptr(1.5)}
	c := s.Clone()

	c.Queue[0] = JumpAction()
	*c.AnimX = 9
	if s.Queue[0].Type != ActionMove {
		t.Error("Clone shares the queue")
	}
	if *s.AnimX != 1.5 {
		t.Error("Clone shares animation fields")
	}
	if !s.Animating() {
		t.Error("Expected state with AnimX to be animating")
	}
}
