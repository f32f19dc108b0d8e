package route

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Graph is the routable view of one floor snapshot. Adjacency is made
// symmetric from the declared connections and never contains self loops.
type Graph struct {
	Floor int
	nodes map[string]NavNode
	order []string
	adj   map[string][]string
	walls []Wall
}

// NewGraph indexes a floor plan. The plan is not retained or mutated.
func NewGraph(fp *FloorPlan) *Graph {
	g := &Graph{
		nodes: make(map[string]NavNode),
		adj:   make(map[string][]string),
	}
	if fp == nil {
		return g
	}
	g.Floor = fp.Floor
	g.walls = append([]Wall(nil), fp.Walls...)

	for _, n := range fp.Nodes {
		if _, dup := g.nodes[n.ID]; dup {
			continue
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}

	seen := make(map[[2]string]bool)
	link := func(a, b string) {
		if seen[[2]string{a, b}] {
			return
		}
		seen[[2]string{a, b}] = true
		g.adj[a] = append(g.adj[a], b)
	}
	for _, id := range g.order {
		for _, c := range g.nodes[id].Connections {
			if c == id {
				continue
			}
			if _, ok := g.nodes[c]; !ok {
				continue
			}
			link(id, c)
			link(c, id)
		}
	}
	for id := range g.adj {
		sort.Strings(g.adj[id])
	}
	return g
}

// Len is the number of nodes on the floor
func (g *Graph) Len() int { return len(g.order) }

// Walls returns the floor's walls
func (g *Graph) Walls() []Wall { return g.walls }

// Node looks up a node by id
func (g *Graph) Node(id string) (NavNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Neighbors returns the symmetric adjacency of id, sorted
func (g *Graph) Neighbors(id string) []string {
	return g.adj[id]
}

// Nodes returns nodes in declaration order
func (g *Graph) Nodes() []NavNode {
	out := make([]NavNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeFilter selects candidate nodes for snapping
type NodeFilter func(NavNode) bool

// Routable accepts walkable non-obstacle nodes
func Routable(n NavNode) bool { return n.Traversable() }

// WalkwayOrDoor accepts traversable walkway and door nodes
func WalkwayOrDoor(n NavNode) bool {
	return n.Traversable() && (n.Type == NodeWalkway || n.Type == NodeDoor)
}

// TransitionNode accepts traversable elevator and stairs nodes
func TransitionNode(n NavNode) bool {
	return n.Traversable() && n.Type.IsTransition()
}

// Nearest returns the closest node accepted by filter within maxDist of p.
// A maxDist <= 0 disables the radius limit. Ties keep declaration order.
func (g *Graph) Nearest(p orb.Point, maxDist float64, filter NodeFilter) (NavNode, bool) {
	best := math.Inf(1)
	var found NavNode
	ok := false
	for _, id := range g.order {
		n := g.nodes[id]
		if filter != nil && !filter(n) {
			continue
		}
		d := Distance(p, n.Position)
		if maxDist > 0 && d > maxDist {
			continue
		}
		if d < best {
			best = d
			found = n
			ok = true
		}
	}
	return found, ok
}

// FindAt returns a node accepted by filter at p, within tol on each axis
func (g *Graph) FindAt(p orb.Point, tol float64, filter NodeFilter) (NavNode, bool) {
	for _, id := range g.order {
		n := g.nodes[id]
		if filter != nil && !filter(n) {
			continue
		}
		if samePoint(n.Position, p, tol) {
			return n, true
		}
	}
	return NavNode{}, false
}

// EdgeClear reports whether the straight segment between two nodes avoids
// every wall on the floor
func (g *Graph) EdgeClear(a, b NavNode, buffer float64) bool {
	return Clear(a.Position, b.Position, g.walls, buffer)
}
