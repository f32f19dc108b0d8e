package route

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFeatures_MultiFloor(t *testing.T) {
	path, err := NewRouter(nil).FindPath(At(0, 0, 1), At(10, 20, 2), twoFloors())
	require.NoError(t, err)

	fc := PathFeatures(path)
	require.Len(t, fc.Features, 3)

	first := fc.Features[0]
	assert.Equal(t, "route", first.Properties["kind"])
	assert.Equal(t, 1, first.Properties["floor"])
	assert.Equal(t, orb.LineString{{0, 0}, {10, 0}}, first.Geometry)

	change := fc.Features[1]
	assert.Equal(t, "floor_change", change.Properties["kind"])
	assert.Equal(t, "elevator", change.Properties["via"])
	assert.Equal(t, orb.Point{10, 0}, change.Geometry)

	last := fc.Features[2]
	assert.Equal(t, 2, last.Properties["floor"])
	assert.Equal(t, 1, last.Properties["segment"])

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"FeatureCollection"`)
	assert.Contains(t, string(data), `"LineString"`)
}

func TestPathFeatures_Nil(t *testing.T) {
	assert.Empty(t, PathFeatures(nil).Features)
}

func TestFloorFeatures(t *testing.T) {
	fp := abcPlan()
	fp.Walls = []Wall{{ID: "w1", Start: orb.Point{10, 10}, End: orb.Point{20, 10}, Type: "glass"}}

	fc := FloorFeatures(fp)
	require.Len(t, fc.Features, 4)
	assert.Equal(t, "wall", fc.Features[0].Properties["kind"])
	assert.Equal(t, "glass", fc.Features[0].Properties["wallType"])
	assert.Equal(t, "w1", fc.Features[0].ID)
	assert.Equal(t, "node", fc.Features[1].Properties["kind"])
	assert.Equal(t, "A", fc.Features[1].ID)
}

func TestBounds(t *testing.T) {
	b := Bounds(abcPlan(), orb.Point{-5, 60})
	assert.Equal(t, orb.Point{-5, 0}, b.Min)
	assert.Equal(t, orb.Point{50, 60}, b.Max)
}
