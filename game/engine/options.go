package engine

import "time"

// Cues receives fire-and-forget audio triggers at the moment an action commits
type Cues interface {
	PlayJump()
	PlaySpin()
	PlayFall()
}

// NopCues ignores every cue
type NopCues struct{}

func (NopCues) PlayJump() {}
func (NopCues) PlaySpin() {}
func (NopCues) PlayFall() {}

// Projection maps grid coordinates to isometric screen coordinates. It is
// passed explicitly to whoever needs screen positions.
type Projection struct {
	TileWidth  float64 `json:"tile_width"`
	TileHeight float64 `json:"tile_height"`
	OffsetX    float64 `json:"offset_x"`
	OffsetY    float64 `json:"offset_y"`
}

// DefaultProjection matches the stock 70x35 isometric tiles
func DefaultProjection() Projection {
	return Projection{TileWidth: 70, TileHeight: 35, OffsetX: 300, OffsetY: 120}
}

// GridToScreen projects a (possibly interpolated) grid coordinate
func (p Projection) GridToScreen(x, y float64) (float64, float64) {
	sx := p.OffsetX + (x-y)*(p.TileWidth/2)
	sy := p.OffsetY + (x+y)*(p.TileHeight/2)
	return sx, sy
}

// TileTopY returns the screen Y of the top corner of tile x,y
func (p Projection) TileTopY(x, y int) float64 {
	_, sy := p.GridToScreen(float64(x), float64(y))
	return sy - p.TileHeight/2
}

// Options tunes animation timing and collaborators of an Engine
type Options struct {
	MoveDuration time.Duration
	JumpDuration time.Duration
	SpinDuration time.Duration
	FallDuration time.Duration

	// SettleDelay keeps the final frame of an animation on screen before the
	// next action starts.
	SettleDelay time.Duration

	GhostTick time.Duration
	GhostRise float64
	GhostTop  float64
	GhostFade float64

	JumpArc   float64
	FallDepth float64

	// MaxLoopIterations ends a hacking loop that never reaches the goal
	MaxLoopIterations int

	Projection Projection
	Cues       Cues
}

// DefaultOptions returns the stock timings
func DefaultOptions() Options {
	return Options{
		MoveDuration:      400 * time.Millisecond,
		JumpDuration:      600 * time.Millisecond,
		SpinDuration:      200 * time.Millisecond,
		FallDuration:      400 * time.Millisecond,
		SettleDelay:       16 * time.Millisecond,
		GhostTick:         16 * time.Millisecond,
		GhostRise:         6,
		GhostTop:          -300,
		GhostFade:         90,
		JumpArc:           1,
		FallDepth:         2,
		MaxLoopIterations: 1000,
		Projection:        DefaultProjection(),
		Cues:              NopCues{},
	}
}

// withDefaults fills unset fields from DefaultOptions
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MoveDuration <= 0 {
		o.MoveDuration = d.MoveDuration
	}
	if o.JumpDuration <= 0 {
		o.JumpDuration = d.JumpDuration
	}
	if o.SpinDuration <= 0 {
		o.SpinDuration = d.SpinDuration
	}
	if o.FallDuration <= 0 {
		o.FallDuration = d.FallDuration
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = d.SettleDelay
	}
	if o.GhostTick <= 0 {
		o.GhostTick = d.GhostTick
	}
	if o.GhostRise <= 0 {
		o.GhostRise = d.GhostRise
	}
	if o.GhostTop == 0 {
		o.GhostTop = d.GhostTop
	}
	if o.GhostFade <= 0 {
		o.GhostFade = d.GhostFade
	}
	if o.JumpArc <= 0 {
		o.JumpArc = d.JumpArc
	}
	if o.FallDepth <= 0 {
		o.FallDepth = d.FallDepth
	}
	if o.MaxLoopIterations <= 0 {
		o.MaxLoopIterations = d.MaxLoopIterations
	}
	if o.Projection == (Projection{}) {
		o.Projection = d.Projection
	}
	if o.Cues == nil {
		o.Cues = d.Cues
	}
	return o
}
