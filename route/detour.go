package route

import (
	"github.com/paulmach/orb"
)

// DefaultStaircaseSteps is the subdivision count of the last-resort detour
const DefaultStaircaseSteps = 4

// waypointStrategy proposes intermediate waypoints between a and b
type waypointStrategy struct {
	name string
	plan func(a, b orb.Point) []orb.Point
}

// corridorStrategies are tried in order; the first wall-clear candidate wins
var corridorStrategies = []waypointStrategy{
	{"horizontal-vertical", func(a, b orb.Point) []orb.Point {
		return []orb.Point{{b[0], a[1]}}
	}},
	{"vertical-horizontal", func(a, b orb.Point) []orb.Point {
		return []orb.Point{{a[0], b[1]}}
	}},
	{"split-horizontal", func(a, b orb.Point) []orb.Point {
		mx := (a[0] + b[0]) / 2
		return []orb.Point{{mx, a[1]}, {mx, b[1]}}
	}},
	{"split-vertical", func(a, b orb.Point) []orb.Point {
		my := (a[1] + b[1]) / 2
		return []orb.Point{{a[0], my}, {b[0], my}}
	}},
}

// Detourer synthesizes corridor detours around walls
type Detourer struct {
	Walls  []Wall
	Buffer float64
	Steps  int
}

// Connect returns the points that lead from a to b, excluding a and ending
// with b. The direct leg is used when clear. The bool is false when only
// the best-effort staircase could be produced and it still crosses a wall.
func (d Detourer) Connect(a, b orb.Point) ([]orb.Point, bool) {
	if Clear(a, b, d.Walls, d.Buffer) {
		return []orb.Point{b}, true
	}
	return d.Detour(a, b)
}

// Detour tries the corridor strategies and then the staircase pattern
func (d Detourer) Detour(a, b orb.Point) ([]orb.Point, bool) {
	if pts, ok := tryStrategies(corridorStrategies, a, b, d.Walls, d.Buffer); ok {
		return pts, true
	}
	return d.staircase(a, b)
}

func tryStrategies(strategies []waypointStrategy, a, b orb.Point, walls []Wall, buffer float64) ([]orb.Point, bool) {
	for _, s := range strategies {
		mid := s.plan(a, b)
		candidate := make([]orb.Point, 0, len(mid)+2)
		candidate = append(candidate, a)
		candidate = append(candidate, mid...)
		candidate = append(candidate, b)
		if PolylineClear(candidate, walls, buffer) {
			return candidate[1:], true
		}
	}
	return nil, false
}

// staircase walks toward b in fixed steps, moving horizontally then
// vertically at each step. Corners whose legs are blocked are skipped.
func (d Detourer) staircase(a, b orb.Point) ([]orb.Point, bool) {
	steps := d.Steps
	if steps <= 0 {
		steps = DefaultStaircaseSteps
	}
	var out []orb.Point
	cur := a
	clear := true
	for i := 1; i <= steps; i++ {
		f := float64(i) / float64(steps)
		target := orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
		if i == steps {
			target = b
		}
		corner := orb.Point{target[0], cur[1]}
		if Clear(cur, corner, d.Walls, d.Buffer) && Clear(corner, target, d.Walls, d.Buffer) {
			out = append(out, corner, target)
		} else {
			if !Clear(cur, target, d.Walls, d.Buffer) {
				clear = false
			}
			out = append(out, target)
		}
		cur = target
	}
	return out, clear
}
