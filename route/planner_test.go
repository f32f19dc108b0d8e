package route

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func assertPoints(t *testing.T, want, got []orb.Point) {
	t.Helper()
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

// boxWalls encloses the square centered at c with half-size r
func boxWalls(c orb.Point, r float64) []Wall {
	x0, y0, x1, y1 := c[0]-r, c[1]-r, c[0]+r, c[1]+r
	return []Wall{
		{ID: "s", Start: orb.Point{x0, y0}, End: orb.Point{x1, y0}},
		{ID: "e", Start: orb.Point{x1, y0}, End: orb.Point{x1, y1}},
		{ID: "n", Start: orb.Point{x1, y1}, End: orb.Point{x0, y1}},
		{ID: "w", Start: orb.Point{x0, y1}, End: orb.Point{x0, y0}},
	}
}

// ---------------------------------------------------------------------------
// Corridor detours
// ---------------------------------------------------------------------------

func TestDetourer_Connect(t *testing.T) {
	diagonalWall := []Wall{{Start: orb.Point{3, 7}, End: orb.Point{7, 3}}}

	t.Run("direct when clear", func(t *testing.T) {
		d := Detourer{Buffer: DefaultWallBuffer}
		pts, ok := d.Connect(orb.Point{0, 0}, orb.Point{10, 10})
		require.True(t, ok)
		assertPoints(t, []orb.Point{{10, 10}}, pts)
	})

	t.Run("horizontal then vertical first", func(t *testing.T) {
		d := Detourer{Walls: diagonalWall, Buffer: DefaultWallBuffer}
		pts, ok := d.Connect(orb.Point{0, 0}, orb.Point{10, 10})
		require.True(t, ok)
		assertPoints(t, []orb.Point{{10, 0}, {10, 10}}, pts)
	})

	t.Run("vertical then horizontal when first L is blocked", func(t *testing.T) {
		walls := append([]Wall{{Start: orb.Point{8, -2}, End: orb.Point{8, 2}}}, diagonalWall...)
		d := Detourer{Walls: walls, Buffer: DefaultWallBuffer}
		pts, ok := d.Connect(orb.Point{0, 0}, orb.Point{10, 10})
		require.True(t, ok)
		assertPoints(t, []orb.Point{{0, 10}, {10, 10}}, pts)
	})

	t.Run("midpoint split when both Ls are blocked", func(t *testing.T) {
		walls := []Wall{
			{Start: orb.Point{8, -2}, End: orb.Point{8, 2}},
			{Start: orb.Point{-2, 8}, End: orb.Point{2, 8}},
			{Start: orb.Point{1, 3}, End: orb.Point{3, 1}},
		}
		d := Detourer{Walls: walls, Buffer: DefaultWallBuffer}
		pts, ok := d.Connect(orb.Point{0, 0}, orb.Point{10, 10})
		require.True(t, ok)
		assertPoints(t, []orb.Point{{5, 0}, {5, 10}, {10, 10}}, pts)
	})
}

func TestDetourer_StaircasePattern(t *testing.T) {
	d := Detourer{Steps: 4}
	pts, ok := d.staircase(orb.Point{0, 0}, orb.Point{8, 4})
	require.True(t, ok)
	assertPoints(t, []orb.Point{
		{2, 0}, {2, 1},
		{4, 1}, {4, 2},
		{6, 2}, {6, 3},
		{8, 3}, {8, 4},
	}, pts)
}

func TestDetourer_StaircaseBestEffort(t *testing.T) {
	goal := orb.Point{10, 10}
	d := Detourer{Walls: boxWalls(goal, 1), Buffer: DefaultWallBuffer, Steps: 4}

	pts, ok := d.Detour(orb.Point{0, 0}, goal)
	assert.False(t, ok)
	require.NotEmpty(t, pts)
	assert.Equal(t, goal, pts[len(pts)-1])
}

// ---------------------------------------------------------------------------
// Basic avoidance
// ---------------------------------------------------------------------------

func TestBasicAvoidance(t *testing.T) {
	start, goal := orb.Point{0, 0}, orb.Point{10, 10}

	t.Run("direct", func(t *testing.T) {
		pts, ok := BasicAvoidance(start, goal, nil, DefaultWallBuffer)
		assert.True(t, ok)
		assertPoints(t, []orb.Point{start, goal}, pts)
	})

	t.Run("single bend", func(t *testing.T) {
		walls := []Wall{{Start: orb.Point{3, 7}, End: orb.Point{7, 3}}}
		pts, ok := BasicAvoidance(start, goal, walls, DefaultWallBuffer)
		assert.True(t, ok)
		assertPoints(t, []orb.Point{start, {10, 0}, goal}, pts)
	})

	t.Run("direct as last resort", func(t *testing.T) {
		pts, ok := BasicAvoidance(start, goal, boxWalls(goal, 1), DefaultWallBuffer)
		assert.False(t, ok)
		assertPoints(t, []orb.Point{start, goal}, pts)
	})
}

// ---------------------------------------------------------------------------
// PlanFloor
// ---------------------------------------------------------------------------

func abcPlan() *FloorPlan {
	return &FloorPlan{Floor: 1, Nodes: []NavNode{
		walkway("A", 0, 0, "B"),
		walkway("B", 50, 0, "C"),
		walkway("C", 50, 50),
	}}
}

func TestPlanFloor_NoShortcut(t *testing.T) {
	p := NewPlanner(DefaultPlannerConfig())
	fr := p.PlanFloor(orb.Point{0, 0}, orb.Point{50, 50}, abcPlan())

	assert.Equal(t, StrategyGraph, fr.Strategy)
	assert.False(t, fr.Degraded)
	assertPoints(t, []orb.Point{{0, 0}, {50, 0}, {50, 50}}, fr.Points)
}

func TestPlanFloor_OffGraphEndpoints(t *testing.T) {
	p := NewPlanner(DefaultPlannerConfig())
	fr := p.PlanFloor(orb.Point{-3, 2}, orb.Point{52, 47}, abcPlan())

	assert.Equal(t, StrategyGraph, fr.Strategy)
	assertPoints(t, []orb.Point{{-3, 2}, {0, 0}, {50, 0}, {50, 50}, {52, 47}}, fr.Points)
}

func TestPlanFloor_GoalNearLastNodeSurvives(t *testing.T) {
	plan := &FloorPlan{Floor: 0, Nodes: []NavNode{
		walkway("A", 0, 0, "B"),
		walkway("B", 50, 0),
	}}
	p := NewPlanner(DefaultPlannerConfig())
	fr := p.PlanFloor(orb.Point{0, 0}, orb.Point{50.3, 0.2}, plan)

	assert.Equal(t, StrategyGraph, fr.Strategy)
	assertPoints(t, []orb.Point{{0, 0}, {50, 0}, {50.3, 0.2}}, fr.Points)
}

func TestPlanFloor_DetourOnBlockedLeg(t *testing.T) {
	plan := abcPlan()
	// blocks the diagonal from the raw start to node A only
	plan.Walls = []Wall{{Start: orb.Point{-9, -3}, End: orb.Point{-3, -9}}}

	p := NewPlanner(DefaultPlannerConfig())
	fr := p.PlanFloor(orb.Point{-10, -10}, orb.Point{50, 50}, plan)

	require.Equal(t, StrategyGraph, fr.Strategy)
	assert.False(t, fr.Degraded)
	assert.Equal(t, orb.Point{-10, -10}, fr.Points[0])
	assert.Equal(t, orb.Point{50, 50}, fr.Points[len(fr.Points)-1])
	assert.True(t, PolylineClear(fr.Points, plan.Walls, DefaultWallBuffer))
	assert.Contains(t, fr.Points, orb.Point{0, 0})
	assert.Contains(t, fr.Points, orb.Point{50, 0})
}

func TestPlanFloor_ZeroNodesFallsBackToBasic(t *testing.T) {
	p := NewPlanner(DefaultPlannerConfig())
	start, goal := orb.Point{0, 0}, orb.Point{10, 10}

	t.Run("clear floor", func(t *testing.T) {
		fr := p.PlanFloor(start, goal, &FloorPlan{})
		assert.Equal(t, StrategyBasicAvoidance, fr.Strategy)
		assertPoints(t, []orb.Point{start, goal}, fr.Points)
	})

	t.Run("nil floor", func(t *testing.T) {
		fr := p.PlanFloor(start, goal, nil)
		assertPoints(t, []orb.Point{start, goal}, fr.Points)
	})

	t.Run("walled goal is degraded but non-empty", func(t *testing.T) {
		fr := p.PlanFloor(start, goal, &FloorPlan{Walls: boxWalls(goal, 1)})
		assert.True(t, fr.Degraded)
		require.GreaterOrEqual(t, len(fr.Points), 2)
		assert.Equal(t, start, fr.Points[0])
		assert.Equal(t, goal, fr.Points[len(fr.Points)-1])
	})

	t.Run("same cell keeps start and goal", func(t *testing.T) {
		fr := p.PlanFloor(orb.Point{1, 1}, orb.Point{1.2, 1.1}, &FloorPlan{})
		assert.Len(t, fr.Points, 2)
	})
}

func TestPlanFloor_NodeAvoidanceWhenAStarFails(t *testing.T) {
	plan := &FloorPlan{
		Nodes: []NavNode{
			walkway("A", 0, 0, "B"),
			walkway("B", 50, 0),
		},
		Walls: []Wall{{Start: orb.Point{25, -10}, End: orb.Point{25, 10}}},
	}
	p := NewPlanner(DefaultPlannerConfig())
	fr := p.PlanFloor(orb.Point{0, 0}, orb.Point{50, 0}, plan)

	assert.Equal(t, StrategyNodeAvoidance, fr.Strategy)
	assert.True(t, fr.Degraded)
	assert.Equal(t, orb.Point{0, 0}, fr.Points[0])
	assert.Equal(t, orb.Point{50, 0}, fr.Points[len(fr.Points)-1])
}

func TestPlanFloor_NodeAvoidanceBendsAroundWall(t *testing.T) {
	plan := &FloorPlan{
		Nodes: []NavNode{
			walkway("A", 0, 0),
			walkway("B", 50, 50),
		},
		Walls: []Wall{{Start: orb.Point{20, 30}, End: orb.Point{30, 20}}},
	}
	p := NewPlanner(DefaultPlannerConfig())
	fr := p.PlanFloor(orb.Point{0, 0}, orb.Point{50, 50}, plan)

	assert.Equal(t, StrategyNodeAvoidance, fr.Strategy)
	assert.False(t, fr.Degraded)
	assertPoints(t, []orb.Point{{0, 0}, {50, 0}, {50, 50}}, fr.Points)
}

func TestPlanFloor_SnapRadius(t *testing.T) {
	p := NewPlanner(PlannerConfig{PrimarySnapDistance: 5, FallbackSnapDistance: 2})
	fr := p.PlanFloor(orb.Point{100, 100}, orb.Point{120, 100}, abcPlan())

	assert.Equal(t, StrategyNodeAvoidance, fr.Strategy)
	assertPoints(t, []orb.Point{{100, 100}, {120, 100}}, fr.Points)
}

func TestNewPlanner_Defaults(t *testing.T) {
	cfg := NewPlanner(PlannerConfig{}).Config()
	assert.Equal(t, DefaultPrimarySnapDistance, cfg.PrimarySnapDistance)
	assert.Equal(t, DefaultFallbackSnapDistance, cfg.FallbackSnapDistance)
	assert.Equal(t, DefaultWallBuffer, cfg.WallBuffer)
	assert.Equal(t, DefaultStaircaseSteps, cfg.StaircaseSteps)
	assert.Zero(t, cfg.TransitionTolerance)
}
