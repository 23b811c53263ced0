package engine

import "fmt"

// TileAt returns the tile at x,y. Out-of-range coordinates read as void.
func (l *Level) TileAt(x, y int) Tile {
	if !l.InBounds(x, y) || y >= len(l.Tiles) || x >= len(l.Tiles[y]) {
		return Tile{Type: Void}
	}
	tile := l.Tiles[y][x]
	if tile.Type == "" {
		return Tile{Type: Void}
	}
	return tile
}

// InBounds reports whether x,y lies inside the level dimensions
func (l *Level) InBounds(x, y int) bool {
	return x >= 0 && x < l.Width && y >= 0 && y < l.Height
}

// IsHole reports whether x,y is a hole tile
func (l *Level) IsHole(x, y int) bool {
	return l.TileAt(x, y).Type == Hole
}

// IsGoal reports whether x,y is the goal, either by tile type or by the goal
// override. Height is not considered.
func (l *Level) IsGoal(x, y int) bool {
	if l.Goal != nil && l.Goal.X == x && l.Goal.Y == y {
		return true
	}
	return l.TileAt(x, y).Type == Goal
}

// elevatedGoalAt reports whether the goal override sits above ground at x,y
func (l *Level) elevatedGoalAt(x, y int) bool {
	return l.Goal != nil && l.Goal.X == x && l.Goal.Y == y && l.Goal.Height > 0
}

// IsLiftedTile reports whether x,y can only be reached by landing a jump on it
func (l *Level) IsLiftedTile(x, y int) bool {
	if l.elevatedGoalAt(x, y) {
		return true
	}
	tile := l.TileAt(x, y)
	return tile.Type == Lifted || tile.Height > 0
}

// TileHeight returns the standing height at x,y: 0 for ground tiles, the
// declared height for lifted tiles (1 when undeclared).
func (l *Level) TileHeight(x, y int) int {
	if l.elevatedGoalAt(x, y) {
		return l.Goal.Height
	}
	tile := l.TileAt(x, y)
	if tile.Type == Lifted || tile.Height > 0 {
		if tile.Height > 0 {
			return tile.Height
		}
		return 1
	}
	return 0
}

// IsValidPosition reports whether x,y is in bounds and neither void nor a hole
func (l *Level) IsValidPosition(x, y int) bool {
	if !l.InBounds(x, y) {
		return false
	}
	t := l.TileAt(x, y).Type
	return t != Void && t != Hole
}

// IsLaptopTile reports whether x,y is the laptop pickup
func (l *Level) IsLaptopTile(x, y int) bool {
	return l.Laptop != nil && l.Laptop.X == x && l.Laptop.Y == y
}

// StartPosition returns the declared start, falling back to the first start tile
func (l *Level) StartPosition() Position {
	if l.Start != nil {
		return *l.Start
	}
	for y, row := range l.Tiles {
		for x, tile := range row {
			if tile.Type == Start {
				return Position{X: x, Y: y}
			}
		}
	}
	return Position{}
}

// GoalPosition returns the goal coordinate and its declared height. The
// override wins over a goal tile; a goal tile has no declared height.
func (l *Level) GoalPosition() (Position, int, bool) {
	if l.Goal != nil {
		return Position{X: l.Goal.X, Y: l.Goal.Y}, l.Goal.Height, true
	}
	for y, row := range l.Tiles {
		for x, tile := range row {
			if tile.Type == Goal {
				return Position{X: x, Y: y}, 0, true
			}
		}
	}
	return Position{}, 0, false
}

// CountTiles counts the tiles of the given type
func (l *Level) CountTiles(tileType TileType) int {
	count := 0
	for _, row := range l.Tiles {
		for _, tile := range row {
			if tile.Type == tileType {
				count++
			}
		}
	}
	return count
}

// ParseLayout converts compact layout rows into tiles.
//
// Legend:
//
//	.  floor        S  start        G  goal
//	O  hole         #  void         L  lifted (height 1)
//	1-9  floor raised to that height
func ParseLayout(layout []string) ([][]Tile, error) {
	tiles := make([][]Tile, len(layout))
	for y, row := range layout {
		tiles[y] = make([]Tile, 0, len(row))
		for x, char := range row {
			var tile Tile
			switch {
			case char == '.':
				tile = Tile{Type: Floor}
			case char == 'S':
				tile = Tile{Type: Start}
			case char == 'G':
				tile = Tile{Type: Goal}
			case char == 'O':
				tile = Tile{Type: Hole}
			case char == '#':
				tile = Tile{Type: Void}
			case char == 'L':
				tile = Tile{Type: Lifted, Height: 1}
			case char >= '1' && char <= '9':
				tile = Tile{Type: Floor, Height: int(char - '0')}
			default:
				return nil, fmt.Errorf("invalid layout character '%c' at row %d, col %d", char, y+1, x+1)
			}
			tiles[y] = append(tiles[y], tile)
		}
	}
	return tiles, nil
}

// Normalize fills Tiles from Layout when needed and checks that the grid
// matches the declared dimensions. It does not judge the level's geometry.
func (l *Level) Normalize() error {
	if len(l.Tiles) == 0 && len(l.Layout) > 0 {
		tiles, err := ParseLayout(l.Layout)
		if err != nil {
			return err
		}
		l.Tiles = tiles
	}
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("width and height must be positive, got %dx%d", l.Width, l.Height)
	}
	if len(l.Tiles) != l.Height {
		return fmt.Errorf("tiles must have %d rows to match height, got %d", l.Height, len(l.Tiles))
	}
	for i, row := range l.Tiles {
		if len(row) != l.Width {
			return fmt.Errorf("row %d must have %d tiles to match width, got %d", i+1, l.Width, len(row))
		}
	}
	return nil
}
