package engine

import "strings"

// Glyph returns the arrow drawn for the character on a text board
func (f Facing) Glyph() byte {
	switch f {
	case SE:
		return '>'
	case NE:
		return '^'
	case NW:
		return '<'
	case SW:
		return 'v'
	}
	return '@'
}

// tileGlyph is the layout character for a tile, so a rendered board reads
// back through ParseLayout
func tileGlyph(tile Tile) byte {
	switch tile.Type {
	case Start:
		return 'S'
	case Goal:
		return 'G'
	case Hole:
		return 'O'
	case Void:
		return '#'
	case Lifted:
		if tile.Height > 1 && tile.Height <= 9 {
			return byte('0' + tile.Height)
		}
		return 'L'
	}
	if tile.Height > 0 && tile.Height <= 9 {
		return byte('0' + tile.Height)
	}
	return '.'
}

// RenderBoard draws the level as text, one row per line, using the layout
// legend. A goal override shows as G, the laptop as K until picked up, and
// the character as an arrow for its facing when state is not nil.
func RenderBoard(level *Level, state *State) string {
	goal, _, hasGoal := level.GoalPosition()

	var b strings.Builder
	for y := 0; y < level.Height; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < level.Width; x++ {
			glyph := tileGlyph(level.TileAt(x, y))
			switch {
			case state != nil && state.X == x && state.Y == y:
				glyph = state.Facing.Glyph()
			case level.IsLaptopTile(x, y) && (state == nil || !state.HasLaptop):
				glyph = 'K'
			case hasGoal && goal.X == x && goal.Y == y:
				glyph = 'G'
			}
			b.WriteByte(glyph)
		}
	}
	return b.String()
}
