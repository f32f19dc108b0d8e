package route

import (
	"github.com/paulmach/orb"
)

// Default snap radii for the primary attempt and the fallback
const (
	DefaultPrimarySnapDistance  = 100.0
	DefaultFallbackSnapDistance = 30.0
)

// PlannerConfig tunes single-floor planning and floor transitions
type PlannerConfig struct {
	PrimarySnapDistance  float64 `yaml:"primarySnapDistance"`
	FallbackSnapDistance float64 `yaml:"fallbackSnapDistance"`
	WallBuffer           float64 `yaml:"wallBuffer"`
	StaircaseSteps       int     `yaml:"staircaseSteps"`
	// TransitionTolerance is the per-axis slack when matching a transition
	// node on the destination floor. Zero requires exact coordinates.
	TransitionTolerance float64 `yaml:"transitionTolerance"`
}

// DefaultPlannerConfig returns the stock tuning
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		PrimarySnapDistance:  DefaultPrimarySnapDistance,
		FallbackSnapDistance: DefaultFallbackSnapDistance,
		WallBuffer:           DefaultWallBuffer,
		StaircaseSteps:       DefaultStaircaseSteps,
	}
}

func (c PlannerConfig) withDefaults() PlannerConfig {
	d := DefaultPlannerConfig()
	if c.PrimarySnapDistance <= 0 {
		c.PrimarySnapDistance = d.PrimarySnapDistance
	}
	if c.FallbackSnapDistance <= 0 {
		c.FallbackSnapDistance = d.FallbackSnapDistance
	}
	if c.WallBuffer <= 0 {
		c.WallBuffer = d.WallBuffer
	}
	if c.StaircaseSteps <= 0 {
		c.StaircaseSteps = d.StaircaseSteps
	}
	if c.TransitionTolerance < 0 {
		c.TransitionTolerance = 0
	}
	return c
}

// Strategy names reported in FloorRoute
const (
	StrategyGraph          = "graph"
	StrategyNodeAvoidance  = "node-avoidance"
	StrategyBasicAvoidance = "basic-avoidance"
)

// FloorRoute is a single-floor plan
type FloorRoute struct {
	Points   []orb.Point
	Degraded bool
	Strategy string
}

// planStrategy is one tier of the single-floor fallback chain
type planStrategy struct {
	name string
	plan func(g *Graph, a, b orb.Point) ([]orb.Point, bool, bool)
}

// Planner plans routes on one floor. It holds no per-call state and is safe
// for concurrent use.
type Planner struct {
	cfg        PlannerConfig
	strategies []planStrategy
}

// NewPlanner creates a planner; zero fields in cfg take defaults
func NewPlanner(cfg PlannerConfig) *Planner {
	p := &Planner{cfg: cfg.withDefaults()}
	p.strategies = []planStrategy{
		{StrategyGraph, p.graphRoute},
		{StrategyNodeAvoidance, p.nodeAvoidance},
		{StrategyBasicAvoidance, p.basicAvoidance},
	}
	return p
}

// Config returns the effective configuration
func (p *Planner) Config() PlannerConfig { return p.cfg }

// PlanFloor routes start to goal over a floor snapshot. It always returns
// at least start and goal; Degraded marks a route that may cross a wall.
func (p *Planner) PlanFloor(start, goal orb.Point, fp *FloorPlan) FloorRoute {
	g := NewGraph(fp)
	for _, s := range p.strategies {
		pts, clear, ok := s.plan(g, start, goal)
		if !ok {
			continue
		}
		pts = Dedupe(pts)
		if len(pts) < 2 {
			pts = []orb.Point{start, goal}
		}
		return FloorRoute{Points: pts, Degraded: !clear, Strategy: s.name}
	}
	// basicAvoidance never declines
	return FloorRoute{Points: []orb.Point{start, goal}, Degraded: true, Strategy: StrategyBasicAvoidance}
}

// graphRoute snaps both ends to routable nodes and runs A*. Every node on
// the path is visited; blocked legs get corridor detours.
func (p *Planner) graphRoute(g *Graph, a, b orb.Point) ([]orb.Point, bool, bool) {
	if g.Len() == 0 {
		return nil, false, false
	}
	sNode, ok := g.Nearest(a, p.cfg.PrimarySnapDistance, Routable)
	if !ok {
		return nil, false, false
	}
	gNode, ok := g.Nearest(b, p.cfg.PrimarySnapDistance, Routable)
	if !ok {
		return nil, false, false
	}
	ids, _, found := g.AStar(sNode.ID, gNode.ID, p.cfg.WallBuffer)
	if !found {
		return nil, false, false
	}

	d := Detourer{Walls: g.Walls(), Buffer: p.cfg.WallBuffer, Steps: p.cfg.StaircaseSteps}
	out := []orb.Point{a}
	clear := true
	cur := a
	for _, id := range ids {
		n, _ := g.Node(id)
		leg, ok := d.Connect(cur, n.Position)
		if !ok {
			clear = false
		}
		out = append(out, leg...)
		cur = n.Position
	}
	leg, ok := d.Connect(cur, b)
	if !ok {
		clear = false
	}
	out = append(out, leg...)
	return out, clear, true
}

func (p *Planner) nodeAvoidance(g *Graph, a, b orb.Point) ([]orb.Point, bool, bool) {
	if g.Len() == 0 {
		return nil, false, false
	}
	pts, clear := avoidWithNodes(g, a, b, p.cfg.FallbackSnapDistance, p.cfg.WallBuffer)
	return pts, clear, true
}

func (p *Planner) basicAvoidance(g *Graph, a, b orb.Point) ([]orb.Point, bool, bool) {
	pts, clear := BasicAvoidance(a, b, g.Walls(), p.cfg.WallBuffer)
	return pts, clear, true
}
