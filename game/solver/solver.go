package solver

import (
	"errors"

	"github.com/wricardo/startie/game/engine"
)

// ErrUnsolvable is returned when no program reaches the goal
var ErrUnsolvable = errors.New("no solution found")

// simulationSteps bounds one headless run
const simulationSteps = 1_000_000

// Solution is a winning program with its score
type Solution struct {
	Actions  []engine.Action `json:"actions"`
	Program  string          `json:"program"`
	Commands int             `json:"commands"`
	Score    int             `json:"score"`
	Explored int             `json:"explored"`
}

// node is the part of the state that decides what a program can do next
type node struct {
	x, y, z int
	facing  engine.Facing
	laptop  bool
}

type edge struct {
	from   node
	action engine.Action
}

// Solve finds the shortest winning program for level. Straight-line programs
// are searched breadth first over every reachable state; on laptop levels a
// hacking loop appended to any path that holds the laptop is also tried,
// since a one-line loop body scores as zero commands.
func Solve(level *engine.Level) (*Solution, error) {
	start := level.StartPosition()
	root := node{x: start.X, y: start.Y, z: level.TileHeight(start.X, start.Y), facing: engine.SE}

	parents := map[node]*edge{root: nil}
	order := []node{root}
	var goal *node

	for i := 0; i < len(order); i++ {
		n := order[i]
		if engine.CheckWinCondition(n.state(), level) {
			goal = &order[i]
			break
		}
		for _, next := range successors(level, n) {
			if _, seen := parents[next.to]; seen {
				continue
			}
			parents[next.to] = &edge{from: n, action: next.action}
			order = append(order, next.to)
		}
	}

	var best []engine.Action
	if goal != nil {
		best = pathTo(parents, *goal)
	}

	if level.Laptop != nil {
		for _, n := range order {
			if !n.laptop {
				continue
			}
			prefix := pathTo(parents, n)
			if best != nil && len(prefix) >= engine.CountCommands(best) {
				// BFS order means every later prefix is at least as long
				break
			}
			for _, body := range loopBodies(level) {
				candidate := append(append([]engine.Action(nil), prefix...), engine.WhileAction(engine.ConditionHacking, body))
				if Wins(level, candidate) {
					best = candidate
					break
				}
			}
		}
	}

	if best == nil {
		return nil, ErrUnsolvable
	}

	commands := engine.CountCommands(best)
	return &Solution{
		Actions:  best,
		Program:  engine.Format(best),
		Commands: commands,
		Score:    engine.CalculateScore(commands),
		Explored: len(order),
	}, nil
}

type step struct {
	to     node
	action engine.Action
}

// successors lists every action that leaves n without falling
func successors(level *engine.Level, n node) []step {
	s := n.state()
	var out []step

	if tr := engine.PlanMove(level, s); !tr.WillFail {
		out = append(out, step{to: n.landOn(level, tr), action: engine.MoveAction()})
	}
	if level.AllowJump {
		if tr := engine.PlanJump(level, s); !tr.WillFail {
			out = append(out, step{to: n.landOn(level, tr), action: engine.JumpAction()})
		}
	}
	for _, dir := range []engine.SpinDirection{engine.Left, engine.Right} {
		turned := n
		turned.facing = engine.RotateFacing(n.facing, dir)
		out = append(out, step{to: turned, action: engine.SpinAction(dir)})
	}
	return out
}

func (n node) landOn(level *engine.Level, tr engine.Transition) node {
	next := node{x: tr.To.X, y: tr.To.Y, z: tr.Z, facing: n.facing, laptop: n.laptop}
	if level.IsLaptopTile(next.x, next.y) {
		next.laptop = true
	}
	return next
}

func (n node) state() *engine.State {
	return &engine.State{X: n.x, Y: n.y, Z: n.z, Facing: n.facing, HasLaptop: n.laptop}
}

func pathTo(parents map[node]*edge, n node) []engine.Action {
	var path []engine.Action
	for e := parents[n]; e != nil; e = parents[e.from] {
		path = append(path, e.action)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if path == nil {
		path = []engine.Action{}
	}
	return path
}

func loopBodies(level *engine.Level) [][]engine.Action {
	bodies := [][]engine.Action{{engine.MoveAction()}}
	if level.AllowJump {
		bodies = append(bodies, []engine.Action{engine.JumpAction()})
	}
	return bodies
}
