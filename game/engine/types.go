package engine

// TileType represents the different kinds of grid tiles
type TileType string

const (
	Floor  TileType = "floor"
	Start  TileType = "start"
	Goal   TileType = "goal"
	Hole   TileType = "hole"
	Void   TileType = "void"
	Lifted TileType = "lifted"
)

// Facing is one of the four isometric step directions
type Facing string

const (
	SE Facing = "SE"
	NE Facing = "NE"
	NW Facing = "NW"
	SW Facing = "SW"
)

// SpinDirection selects which way a spin rotates the facing
type SpinDirection string

const (
	Left  SpinDirection = "left"
	Right SpinDirection = "right"
)

// ActionType tags the Action variant
type ActionType string

const (
	ActionMove  ActionType = "move"
	ActionJump  ActionType = "jump"
	ActionSpin  ActionType = "spin"
	ActionWhile ActionType = "while"

	// actionLoopCheck is the re-check marker spliced after every loop body copy.
	actionLoopCheck ActionType = "loop-check"
)

// ConditionHacking is the only loop condition the language knows
const ConditionHacking = "hacking"

// Tile represents a single grid tile
type Tile struct {
	Type   TileType `json:"type" yaml:"type"`
	Height int      `json:"height,omitempty" yaml:"height,omitempty"`
}

// Position represents x,y grid coordinates
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// GoalSpec is a separately declared goal, optionally elevated
type GoalSpec struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Height int `json:"height,omitempty" yaml:"height,omitempty"`
}

// Level is the static grid description a program runs against
type Level struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Number      int       `json:"level_number" yaml:"level_number"`
	Width       int       `json:"width" yaml:"width"`
	Height      int       `json:"height" yaml:"height"`
	Start       *Position `json:"start,omitempty" yaml:"start,omitempty"`
	Goal        *GoalSpec `json:"goal,omitempty" yaml:"goal,omitempty"`
	Laptop      *Position `json:"laptop,omitempty" yaml:"laptop,omitempty"`
	AllowJump   bool      `json:"allow_jump" yaml:"allow_jump"`
	Tiles       [][]Tile  `json:"tiles,omitempty" yaml:"tiles,omitempty"`

	// Layout is a compact alternative to Tiles, one string per row. See ParseLayout.
	Layout []string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// Action is a single parsed program step. Only the fields of its Type are set.
type Action struct {
	Type      ActionType    `json:"type"`
	Direction SpinDirection `json:"direction,omitempty"`
	Condition string        `json:"condition,omitempty"`
	Body      []Action      `json:"body,omitempty"`
}

// MoveAction returns a single forward step
func MoveAction() Action { return Action{Type: ActionMove} }

// JumpAction returns a single jump
func JumpAction() Action { return Action{Type: ActionJump} }

// SpinAction returns a spin in the given direction
func SpinAction(dir SpinDirection) Action {
	return Action{Type: ActionSpin, Direction: dir}
}

// WhileAction returns a conditional loop around body
func WhileAction(condition string, body []Action) Action {
	return Action{Type: ActionWhile, Condition: condition, Body: body}
}
