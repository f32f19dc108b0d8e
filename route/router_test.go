package route

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoFloors() Floors {
	return Floors{
		1: {Floor: 1, Nodes: []NavNode{
			walkway("h1", 0, 0, "e1", "s1"),
			node("e1", 10, 0, NodeElevator),
			node("s1", 50, 0, NodeStairs),
		}},
		2: {Floor: 2, Nodes: []NavNode{
			node("e2", 10, 0, NodeElevator, "w2"),
			walkway("w2", 10, 20),
		}},
	}
}

func TestRouter_SameFloor(t *testing.T) {
	r := NewRouter(nil)
	path, err := r.FindPath(At(0, 0, 1), At(50, 50, 1), Floors{1: abcPlan()})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path.ID, "route_"))
	assert.False(t, path.Degraded)
	assertPoints(t, []orb.Point{{0, 0}, {50, 0}, {50, 50}}, path.Points())
	assert.Equal(t, 100.0, path.TotalDistance())
	for _, s := range path.Steps {
		assert.Equal(t, StepMove, s.Kind)
		assert.Equal(t, 1, s.Floor)
	}
}

func TestRouter_FloorPlanNotFound(t *testing.T) {
	r := NewRouter(nil)

	_, err := r.FindPath(At(0, 0, 3), At(1, 1, 3), twoFloors())
	assert.True(t, errors.Is(err, ErrFloorPlanNotFound))

	_, err = r.FindPath(At(0, 0, 1), At(1, 1, 9), twoFloors())
	assert.True(t, errors.Is(err, ErrFloorPlanNotFound))
	assert.Contains(t, err.Error(), "floor 9")
}

func TestRouter_EmptyFloorIsNotAnError(t *testing.T) {
	r := NewRouter(nil)
	path, err := r.FindPath(At(0, 0, 0), At(5, 5, 0), Floors{0: {Floor: 0}})
	require.NoError(t, err)
	assertPoints(t, []orb.Point{{0, 0}, {5, 5}}, path.Points())
}

func TestRouter_MultiFloor(t *testing.T) {
	r := NewRouter(nil)
	path, err := r.FindPath(At(0, 0, 1), At(10, 20, 2), twoFloors())
	require.NoError(t, err)

	require.Len(t, path.Steps, 5)
	assert.Equal(t, Move(orb.Point{0, 0}, 1), path.Steps[0])
	assert.Equal(t, Move(orb.Point{10, 0}, 1), path.Steps[1])
	assert.Equal(t, FloorChange(1, 2, ViaElevator, "e1"), path.Steps[2])
	assert.Equal(t, Move(orb.Point{10, 0}, 2), path.Steps[3])
	assert.Equal(t, Move(orb.Point{10, 20}, 2), path.Steps[4])
	assert.Equal(t, 30.0, path.TotalDistance())
}

func TestRouter_StairsMode(t *testing.T) {
	floors := Floors{
		1: {Floor: 1, Nodes: []NavNode{node("s1", 5, 5, NodeStairs)}},
		0: {Floor: 0, Nodes: []NavNode{node("s0", 5, 5, NodeStairs)}},
	}
	path, err := NewRouter(nil).FindPath(At(0, 0, 1), At(8, 8, 0), floors)
	require.NoError(t, err)

	var change *Step
	for i := range path.Steps {
		if path.Steps[i].Kind == StepFloorChange {
			change = &path.Steps[i]
		}
	}
	require.NotNil(t, change)
	assert.Equal(t, ViaStairs, change.Via)
	assert.Equal(t, 1, change.From)
	assert.Equal(t, 0, change.To)
}

func TestRouter_NoTransition(t *testing.T) {
	floors := twoFloors()
	floors[1] = &FloorPlan{Floor: 1, Nodes: []NavNode{
		walkway("h1", 0, 0),
		{ID: "e1", Position: orb.Point{10, 0}, Type: NodeElevator, Walkable: false},
	}}

	_, err := NewRouter(nil).FindPath(At(0, 0, 1), At(10, 20, 2), floors)
	assert.True(t, errors.Is(err, ErrNoTransition))
}

func TestRouter_NoMatchingTransition(t *testing.T) {
	floors := twoFloors()
	floors[2].Nodes[0].Position = orb.Point{10.2, 0}

	_, err := NewRouter(nil).FindPath(At(0, 0, 1), At(10, 20, 2), floors)
	assert.True(t, errors.Is(err, ErrNoMatchingTransition))

	tolerant := NewRouter(NewPlanner(PlannerConfig{TransitionTolerance: 0.5}))
	path, err := tolerant.FindPath(At(0, 0, 1), At(10, 20, 2), floors)
	require.NoError(t, err)
	assert.Contains(t, path.FloorPoints(2), orb.Point{10.2, 0})
}

func TestRouter_DegradedPropagates(t *testing.T) {
	goal := orb.Point{10, 10}
	floors := Floors{0: {Floor: 0, Walls: boxWalls(goal, 1)}}

	path, err := NewRouter(nil).FindPath(At(0, 0, 0), Location{Point: goal}, floors)
	require.NoError(t, err)
	assert.True(t, path.Degraded)
	assert.NotEmpty(t, path.Steps)
}

func TestNavigationPath_TotalDistanceIgnoresNonMoves(t *testing.T) {
	np := &NavigationPath{Steps: []Step{
		Move(orb.Point{0, 0}, 0),
		Turn("left", 90),
		Move(orb.Point{3, 4}, 0),
		FloorChange(0, 1, ViaStairs, "s"),
		Move(orb.Point{3, 4}, 1),
	}}
	assert.Equal(t, 5.0, np.TotalDistance())
	assert.Len(t, np.Points(), 3)
}
