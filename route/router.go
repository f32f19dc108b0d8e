package route

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

var (
	// ErrFloorPlanNotFound is returned when a requested floor snapshot is absent
	ErrFloorPlanNotFound = errors.New("floor plan not found")
	// ErrNoTransition is returned when the start floor has no walkable elevator or stairs
	ErrNoTransition = errors.New("no transition found")
	// ErrNoMatchingTransition is returned when the destination floor has no
	// walkable node at the chosen transition's coordinates
	ErrNoMatchingTransition = errors.New("no matching transition on destination floor")
)

// FloorSource supplies floor snapshots to the router
type FloorSource interface {
	FloorPlan(floor int) (*FloorPlan, bool)
}

// Floors is an in-memory FloorSource
type Floors map[int]*FloorPlan

// FloorPlan implements FloorSource
func (f Floors) FloorPlan(floor int) (*FloorPlan, bool) {
	fp, ok := f[floor]
	return fp, ok
}

// Router chains single-floor plans through elevator and stairs nodes
type Router struct {
	planner *Planner
}

// NewRouter creates a router around a planner
func NewRouter(planner *Planner) *Router {
	if planner == nil {
		planner = NewPlanner(DefaultPlannerConfig())
	}
	return &Router{planner: planner}
}

// Planner returns the single-floor planner
func (r *Router) Planner() *Planner { return r.planner }

// FindPath routes start to goal. A floor present with no nodes is planned
// with the fallbacks; a floor absent from floors is ErrFloorPlanNotFound.
func (r *Router) FindPath(start, goal Location, floors FloorSource) (*NavigationPath, error) {
	startPlan, ok := floors.FloorPlan(start.Floor)
	if !ok {
		return nil, fmt.Errorf("floor %d: %w", start.Floor, ErrFloorPlanNotFound)
	}

	path := &NavigationPath{ID: "route_" + uuid.NewString()}

	if start.Floor == goal.Floor {
		fr := r.planner.PlanFloor(start.Point, goal.Point, startPlan)
		path.appendMoves(fr, start.Floor)
		return path, nil
	}

	goalPlan, ok := floors.FloorPlan(goal.Floor)
	if !ok {
		return nil, fmt.Errorf("floor %d: %w", goal.Floor, ErrFloorPlanNotFound)
	}

	startGraph := NewGraph(startPlan)
	transition, ok := startGraph.Nearest(start.Point, 0, TransitionNode)
	if !ok {
		return nil, fmt.Errorf("floor %d: %w", start.Floor, ErrNoTransition)
	}

	tol := r.planner.Config().TransitionTolerance
	goalGraph := NewGraph(goalPlan)
	arrival, ok := goalGraph.FindAt(transition.Position, tol, TransitionNode)
	if !ok {
		arrival, ok = goalGraph.FindAt(transition.Position, tol, Routable)
	}
	if !ok {
		return nil, fmt.Errorf("floor %d at %v via %s: %w",
			goal.Floor, transition.Position, transition.ID, ErrNoMatchingTransition)
	}

	first := r.planner.PlanFloor(start.Point, transition.Position, startPlan)
	path.appendMoves(first, start.Floor)

	path.Steps = append(path.Steps, FloorChange(start.Floor, goal.Floor, transitionMode(transition), transition.ID))

	second := r.planner.PlanFloor(arrival.Position, goal.Point, goalPlan)
	path.appendMoves(second, goal.Floor)
	return path, nil
}

func (np *NavigationPath) appendMoves(fr FloorRoute, floor int) {
	for _, p := range fr.Points {
		np.Steps = append(np.Steps, Move(p, floor))
	}
	if fr.Degraded {
		np.Degraded = true
	}
}

func transitionMode(n NavNode) TransitionMode {
	if n.Type == NodeElevator {
		return ViaElevator
	}
	return ViaStairs
}

// At builds a Location
func At(x, y float64, floor int) Location {
	return Location{Point: orb.Point{x, y}, Floor: floor}
}
