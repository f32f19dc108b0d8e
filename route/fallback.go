package route

import (
	"github.com/paulmach/orb"
)

// bendStrategies are the single-bend waypoints tried by basic avoidance
var bendStrategies = []waypointStrategy{
	{"goal-x", func(a, b orb.Point) []orb.Point { return []orb.Point{{b[0], a[1]}} }},
	{"start-x", func(a, b orb.Point) []orb.Point { return []orb.Point{{a[0], b[1]}} }},
	{"mid-x-start", func(a, b orb.Point) []orb.Point { return []orb.Point{{(a[0] + b[0]) / 2, a[1]}} }},
	{"mid-x-goal", func(a, b orb.Point) []orb.Point { return []orb.Point{{(a[0] + b[0]) / 2, b[1]}} }},
	{"mid-y-start", func(a, b orb.Point) []orb.Point { return []orb.Point{{a[0], (a[1] + b[1]) / 2}} }},
	{"mid-y-goal", func(a, b orb.Point) []orb.Point { return []orb.Point{{b[0], (a[1] + b[1]) / 2}} }},
}

// BasicAvoidance routes a to b with at most one bend. When no bend is
// wall-clear the direct segment is returned and clear is false.
func BasicAvoidance(a, b orb.Point, walls []Wall, buffer float64) (pts []orb.Point, clear bool) {
	if Clear(a, b, walls, buffer) {
		return []orb.Point{a, b}, true
	}
	if rest, ok := tryStrategies(bendStrategies, a, b, walls, buffer); ok {
		return append([]orb.Point{a}, rest...), true
	}
	return []orb.Point{a, b}, false
}

// avoidWithNodes snaps start and goal to nearby walkway or door nodes
// within snap, connects through the graph where possible and stitches the
// remaining legs with basic avoidance.
func avoidWithNodes(g *Graph, a, b orb.Point, snap, buffer float64) ([]orb.Point, bool) {
	walls := g.Walls()
	sNode, sOK := g.Nearest(a, snap, WalkwayOrDoor)
	gNode, gOK := g.Nearest(b, snap, WalkwayOrDoor)

	var via []orb.Point
	switch {
	case sOK && gOK:
		via = append(via, sNode.Position)
		if sNode.ID != gNode.ID {
			if ids, _, found := g.AStar(sNode.ID, gNode.ID, buffer); found {
				for _, id := range ids[1:] {
					n, _ := g.Node(id)
					via = append(via, n.Position)
				}
			} else {
				via = append(via, gNode.Position)
			}
		}
	case sOK:
		via = append(via, sNode.Position)
	case gOK:
		via = append(via, gNode.Position)
	}

	out := []orb.Point{a}
	clear := true
	cur := a
	for _, p := range append(via, b) {
		leg, ok := BasicAvoidance(cur, p, walls, buffer)
		if !ok {
			clear = false
		}
		out = append(out, leg[1:]...)
		cur = p
	}
	return out, clear
}
