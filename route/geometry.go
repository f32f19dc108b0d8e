package route

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultWallBuffer widens the intersection parameter range so segments
// grazing a wall endpoint still count as blocked.
const DefaultWallBuffer = 0.1

const parallelEpsilon = 1e-10

// SegmentIntersectsWall reports whether segment a-b crosses the wall. Both
// intersection parameters must fall in [-buffer, 1+buffer]. Parallel or
// collinear segments never intersect.
func SegmentIntersectsWall(a, b orb.Point, w Wall, buffer float64) bool {
	x1, y1 := a[0], a[1]
	x2, y2 := b[0], b[1]
	x3, y3 := w.Start[0], w.Start[1]
	x4, y4 := w.End[0], w.End[1]

	den := (x1-x2)*(y3-y4) - (y1-y2)*(x3-x4)
	if math.Abs(den) < parallelEpsilon {
		return false
	}

	t := ((x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)) / den
	u := -((x1-x2)*(y1-y3) - (y1-y2)*(x1-x3)) / den

	lo, hi := -buffer, 1+buffer
	return t >= lo && t <= hi && u >= lo && u <= hi
}

// Clear reports whether the straight segment a-b crosses none of the walls
func Clear(a, b orb.Point, walls []Wall, buffer float64) bool {
	for _, w := range walls {
		if SegmentIntersectsWall(a, b, w, buffer) {
			return false
		}
	}
	return true
}

// PolylineClear reports whether every leg of pts is wall-clear
func PolylineClear(pts []orb.Point, walls []Wall, buffer float64) bool {
	for i := 1; i < len(pts); i++ {
		if !Clear(pts[i-1], pts[i], walls, buffer) {
			return false
		}
	}
	return true
}

// Manhattan is |dx|+|dy|, the A* edge cost and heuristic
func Manhattan(a, b orb.Point) float64 {
	return math.Abs(a[0]-b[0]) + math.Abs(a[1]-b[1])
}

// Distance is the Euclidean distance between two points
func Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// Dedupe drops consecutive points that round to the same integer cell.
// The first point of each run is kept and the last input point always ends
// the result.
func Dedupe(pts []orb.Point) []orb.Point {
	if len(pts) == 0 {
		return pts
	}
	out := make([]orb.Point, 0, len(pts))
	out = append(out, pts[0])
	last := cell(pts[0])
	for _, p := range pts[1:] {
		c := cell(p)
		if c == last {
			continue
		}
		out = append(out, p)
		last = c
	}
	// the final point is the raw goal and always ends the sequence
	if end := pts[len(pts)-1]; !out[len(out)-1].Equal(end) {
		out = append(out, end)
	}
	return out
}

func cell(p orb.Point) [2]int64 {
	return [2]int64{int64(math.Round(p[0])), int64(math.Round(p[1]))}
}

// samePoint compares coordinates within tol; tol 0 means exact equality
func samePoint(a, b orb.Point, tol float64) bool {
	if tol <= 0 {
		return a.Equal(b)
	}
	return math.Abs(a[0]-b[0]) <= tol && math.Abs(a[1]-b[1]) <= tol
}
