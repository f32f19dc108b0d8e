package route

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// NodeType classifies a navigation node
type NodeType string

const (
	NodeWalkway  NodeType = "walkway"
	NodeDoor     NodeType = "door"
	NodeElevator NodeType = "elevator"
	NodeStairs   NodeType = "stairs"
	NodeObstacle NodeType = "obstacle"
)

// IsTransition reports whether the node type connects floors
func (t NodeType) IsTransition() bool {
	return t == NodeElevator || t == NodeStairs
}

// NavNode is a routable point on a floor. Connections are logical and
// undirected: A listing B makes A and B adjacent.
type NavNode struct {
	ID          string    `yaml:"id" json:"id"`
	Position    orb.Point `yaml:"position" json:"position"`
	Connections []string  `yaml:"connections,omitempty" json:"connections,omitempty"`
	Walkable    bool      `yaml:"walkable" json:"walkable"`
	Type        NodeType  `yaml:"type" json:"type"`
}

// Traversable reports whether the planner may route through the node
func (n NavNode) Traversable() bool {
	return n.Walkable && n.Type != NodeObstacle
}

// Wall is a floor-scoped obstacle segment. Thickness is cosmetic and is not
// used by intersection tests.
type Wall struct {
	ID        string    `yaml:"id" json:"id"`
	Start     orb.Point `yaml:"start" json:"start"`
	End       orb.Point `yaml:"end" json:"end"`
	Thickness float64   `yaml:"thickness,omitempty" json:"thickness,omitempty"`
	Type      string    `yaml:"type,omitempty" json:"type,omitempty"`
}

// FloorPlan is the read-only node/wall snapshot of one floor
type FloorPlan struct {
	Floor int       `yaml:"floor" json:"floor"`
	Name  string    `yaml:"name,omitempty" json:"name,omitempty"`
	Nodes []NavNode `yaml:"nodes" json:"nodes"`
	Walls []Wall    `yaml:"walls" json:"walls"`
}

// Clone returns a deep copy so planners can hold a snapshot safely
func (fp *FloorPlan) Clone() *FloorPlan {
	if fp == nil {
		return nil
	}
	out := &FloorPlan{Floor: fp.Floor, Name: fp.Name}
	out.Nodes = make([]NavNode, len(fp.Nodes))
	for i, n := range fp.Nodes {
		n.Connections = append([]string(nil), n.Connections...)
		out.Nodes[i] = n
	}
	out.Walls = append([]Wall(nil), fp.Walls...)
	return out
}

// Location is a point on a specific floor
type Location struct {
	Point orb.Point `json:"point"`
	Floor int       `json:"floor"`
}

// StepKind tags NavigationPath steps
type StepKind string

const (
	StepMove        StepKind = "move"
	StepTurn        StepKind = "turn"
	StepFloorChange StepKind = "floor_change"
)

// TransitionMode is how a floor change is made
type TransitionMode string

const (
	ViaElevator TransitionMode = "elevator"
	ViaStairs   TransitionMode = "stairs"
)

// Step is one element of a NavigationPath. Only the fields for its Kind are
// set: Move uses Point and Floor, Turn uses Direction and Angle, FloorChange
// uses From, To, Via and NodeID.
type Step struct {
	Kind      StepKind       `json:"kind"`
	Point     orb.Point      `json:"point"`
	Floor     int            `json:"floor"`
	Direction string         `json:"direction,omitempty"`
	Angle     float64        `json:"angle,omitempty"`
	From      int            `json:"from"`
	To        int            `json:"to"`
	Via       TransitionMode `json:"via,omitempty"`
	NodeID    string         `json:"nodeId,omitempty"`
}

// Move builds a Move step
func Move(p orb.Point, floor int) Step {
	return Step{Kind: StepMove, Point: p, Floor: floor}
}

// Turn builds a Turn step. The planner does not emit these; they are kept
// for narration layers.
func Turn(direction string, angle float64) Step {
	return Step{Kind: StepTurn, Direction: direction, Angle: angle}
}

// FloorChange builds a FloorChange step
func FloorChange(from, to int, via TransitionMode, nodeID string) Step {
	return Step{Kind: StepFloorChange, From: from, To: to, Via: via, NodeID: nodeID, Floor: from}
}

// MarshalJSON writes only the fields that belong to the step's kind, so a
// floor change carries no point and floor 0 endpoints are kept.
func (s Step) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StepMove:
		return json.Marshal(struct {
			Kind  StepKind  `json:"kind"`
			Point orb.Point `json:"point"`
			Floor int       `json:"floor"`
		}{s.Kind, s.Point, s.Floor})
	case StepTurn:
		return json.Marshal(struct {
			Kind      StepKind `json:"kind"`
			Direction string   `json:"direction"`
			Angle     float64  `json:"angle"`
		}{s.Kind, s.Direction, s.Angle})
	case StepFloorChange:
		return json.Marshal(struct {
			Kind   StepKind       `json:"kind"`
			Floor  int            `json:"floor"`
			From   int            `json:"from"`
			To     int            `json:"to"`
			Via    TransitionMode `json:"via"`
			NodeID string         `json:"nodeId,omitempty"`
		}{s.Kind, s.Floor, s.From, s.To, s.Via, s.NodeID})
	default:
		type plain Step
		return json.Marshal(plain(s))
	}
}

// NavigationPath is an ordered route. Degraded is set when a fallback could
// not fully avoid walls; the route is still usable as a best effort but is
// not guaranteed clear.
type NavigationPath struct {
	ID       string `json:"id"`
	Steps    []Step `json:"steps"`
	Degraded bool   `json:"degraded"`
}

// TotalDistance is the sum of Euclidean distances between consecutive Move steps
func (np *NavigationPath) TotalDistance() float64 {
	total := 0.0
	var prev *orb.Point
	for i := range np.Steps {
		s := np.Steps[i]
		if s.Kind != StepMove {
			continue
		}
		if prev != nil {
			total += planar.Distance(*prev, s.Point)
		}
		p := s.Point
		prev = &p
	}
	return total
}

// Points returns the Move coordinates in order
func (np *NavigationPath) Points() []orb.Point {
	var pts []orb.Point
	for _, s := range np.Steps {
		if s.Kind == StepMove {
			pts = append(pts, s.Point)
		}
	}
	return pts
}

// FloorPoints returns the Move coordinates on one floor
func (np *NavigationPath) FloorPoints(floor int) []orb.Point {
	var pts []orb.Point
	for _, s := range np.Steps {
		if s.Kind == StepMove && s.Floor == floor {
			pts = append(pts, s.Point)
		}
	}
	return pts
}
