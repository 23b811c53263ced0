package engine

// facingOrder is the cycle a left spin walks; a right spin walks it backwards
var facingOrder = []Facing{SE, NE, NW, SW}

// Delta returns the unit grid step for the facing
func (f Facing) Delta() (dx, dy int) {
	switch f {
	case SE:
		return 1, 0
	case NE:
		return 0, -1
	case NW:
		return -1, 0
	case SW:
		return 0, 1
	}
	return 0, 0
}

// Sprite maps the facing to its sprite variant name
func (f Facing) Sprite() string {
	switch f {
	case NE:
		return "ru"
	case NW:
		return "lu"
	case SW:
		return "ld"
	}
	return "rd"
}

// RotateFacing turns f one quarter. Left walks SE, NE, NW, SW; right reverses it.
func RotateFacing(f Facing, dir SpinDirection) Facing {
	idx := 0
	for i, candidate := range facingOrder {
		if candidate == f {
			idx = i
			break
		}
	}
	n := len(facingOrder)
	if dir == Left {
		return facingOrder[(idx+1)%n]
	}
	return facingOrder[(idx-1+n)%n]
}

// State is the runtime record of one engine. The discrete fields drive the
// logic; the pointer fields are written for the renderer only and are nil
// whenever no animation is in flight.
type State struct {
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Z         int      `json:"z"`
	Facing    Facing   `json:"facing"`
	HasLaptop bool     `json:"has_laptop"`
	Failed    bool     `json:"failed"`
	StepCount int      `json:"step_count"`
	Queue     []Action `json:"queue,omitempty"`

	AnimX        *float64 `json:"anim_x,omitempty"`
	AnimY        *float64 `json:"anim_y,omitempty"`
	AnimZ        *float64 `json:"anim_z,omitempty"`
	AnimRotation *float64 `json:"anim_rotation,omitempty"`
	AnimAlpha    *float64 `json:"anim_alpha,omitempty"`

	GhostVisible bool     `json:"ghost_visible"`
	GhostY       *float64 `json:"ghost_y,omitempty"`
	GhostAlpha   *float64 `json:"ghost_alpha,omitempty"`
}

// Position returns the discrete grid position
func (s *State) Position() Position {
	return Position{X: s.X, Y: s.Y}
}

// NextTile returns the cell directly ahead of the character
func (s *State) NextTile() Position {
	dx, dy := s.Facing.Delta()
	return Position{X: s.X + dx, Y: s.Y + dy}
}

// Clone returns a deep copy safe to hand to another goroutine
func (s *State) Clone() *State {
	c := *s
	if s.Queue != nil {
		c.Queue = make([]Action, len(s.Queue))
		copy(c.Queue, s.Queue)
	}
	c.AnimX = clonePtr(s.AnimX)
	c.AnimY = clonePtr(s.AnimY)
	c.AnimZ = clonePtr(s.AnimZ)
	c.AnimRotation = clonePtr(s.AnimRotation)
	c.AnimAlpha = clonePtr(s.AnimAlpha)
	c.GhostY = clonePtr(s.GhostY)
	c.GhostAlpha = clonePtr(s.GhostAlpha)
	return &c
}

// Animating reports whether any presentation field is set
func (s *State) Animating() bool {
	return s.AnimX != nil || s.AnimY != nil || s.AnimZ != nil ||
		s.AnimRotation != nil || s.AnimAlpha != nil || s.GhostVisible
}

// clearAnimation drops the interpolated fields
func (s *State) clearAnimation() {
	s.AnimX = nil
	s.AnimY = nil
	s.AnimZ = nil
	s.AnimRotation = nil
	s.AnimAlpha = nil
}

// clearGhost hides the respawn ghost
func (s *State) clearGhost() {
	s.GhostVisible = false
	s.GhostY = nil
	s.GhostAlpha = nil
}

// resetTo places the character on the level start with empty inventory
func (s *State) resetTo(level *Level) {
	start := level.StartPosition()
	s.X = start.X
	s.Y = start.Y
	s.Z = level.TileHeight(start.X, start.Y)
	s.Facing = SE
	s.HasLaptop = false
	s.Queue = nil
	s.clearAnimation()
	s.clearGhost()
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func ptr(v float64) *float64 {
	return &v
}
