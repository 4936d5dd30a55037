package grid

import (
	"fmt"

	"golang.org/x/exp/rand"
)

type Cell struct {
	X, Y int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

var directions = []Direction{Up, Right, Down, Left}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

func (d Direction) delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Right:
		return 1, 0
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	}
	panic(fmt.Sprintf("unknown direction %d", d))
}

// veer turns d by a quarter clockwise (right) or counterclockwise.
func (d Direction) veer(right bool) Direction {
	if right {
		return (d + 1) % 4
	}
	return (d + 3) % 4
}

// Slip probabilities of a move attempt.
const (
	Success   = 0.8
	VeerLeft  = 0.05
	VeerRight = 0.05
	// The remaining 0.1 keeps the agent in place.
)

// Costs of a step.
const (
	StepCost  = 1.0
	WaterCost = 10.0
)

// World is a grid where every move may slip. Entering a watery cell is
// expensive, walls and borders block, and the goal is terminal.
type World struct {
	Width, Height int
	Start, Goal   Cell
	watery        map[Cell]bool
	walls         map[Cell]bool
}

func NewWorld(width, height int, start, goal Cell, watery, walls []Cell) (*World, error) {
	w := &World{
		Width:  width,
		Height: height,
		Start:  start,
		Goal:   goal,
		watery: make(map[Cell]bool, len(watery)),
		walls:  make(map[Cell]bool, len(walls)),
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid: invalid size %dx%d", width, height)
	}
	for _, c := range walls {
		w.walls[c] = true
	}
	for _, c := range watery {
		w.watery[c] = true
	}
	if !w.Valid(start) {
		return nil, fmt.Errorf("grid: start %v is not a free cell", start)
	}
	if !w.Valid(goal) {
		return nil, fmt.Errorf("grid: goal %v is not a free cell", goal)
	}
	return w, nil
}

// Valid reports whether c is inside the grid and not a wall.
func (w *World) Valid(c Cell) bool {
	return c.X >= 0 && c.X < w.Width && c.Y >= 0 && c.Y < w.Height && !w.walls[c]
}

func (w *World) IsWatery(c Cell) bool {
	return w.watery[c]
}

func (w *World) Actions(Cell) []Direction {
	return directions
}

func (w *World) IsTerminal(c Cell) bool {
	return c == w.Goal
}

func (w *World) Next(c Cell, d Direction, rng *rand.Rand) Cell {
	return w.next(c, d, Success, rng)
}

// next samples a move attempt that succeeds with probability success and
// splits the slack between veering and staying like the default dynamics.
func (w *World) next(c Cell, d Direction, success float64, rng *rand.Rand) Cell {
	if w.IsTerminal(c) {
		return c
	}
	slack := (1 - success) / (1 - Success)
	p := rng.Float64()
	switch {
	case p < success:
		return w.move(c, d)
	case p < success+VeerLeft*slack:
		return w.move(c, d.veer(false))
	case p < success+(VeerLeft+VeerRight)*slack:
		return w.move(c, d.veer(true))
	default:
		return c
	}
}

func (w *World) move(c Cell, d Direction) Cell {
	dx, dy := d.delta()
	next := Cell{X: c.X + dx, Y: c.Y + dy}
	if !w.Valid(next) {
		return c
	}
	return next
}

func (w *World) Cost(c Cell, _ Direction, next Cell) float64 {
	if w.IsTerminal(c) {
		return 0
	}
	if w.IsWatery(next) {
		return WaterCost
	}
	return StepCost
}

// Distance is the Manhattan distance from c to the goal, an optimistic
// estimate of the remaining cost.
func (w *World) Distance(c Cell) float64 {
	return float64(abs(c.X-w.Goal.X) + abs(c.Y-w.Goal.Y))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
