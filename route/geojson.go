package route

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// PathFeatures exports a route as GeoJSON: one LineString per contiguous
// floor segment and one Point per floor change.
func PathFeatures(np *NavigationPath) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if np == nil {
		return fc
	}

	var line orb.LineString
	floor := 0
	haveFloor := false
	segment := 0
	flush := func() {
		if len(line) == 0 {
			return
		}
		f := geojson.NewFeature(line)
		f.Properties["kind"] = "route"
		f.Properties["routeId"] = np.ID
		f.Properties["floor"] = floor
		f.Properties["segment"] = segment
		f.Properties["degraded"] = np.Degraded
		fc.Append(f)
		segment++
		line = nil
	}

	var last orb.Point
	for _, s := range np.Steps {
		switch s.Kind {
		case StepMove:
			if haveFloor && s.Floor != floor {
				flush()
			}
			floor = s.Floor
			haveFloor = true
			line = append(line, s.Point)
			last = s.Point
		case StepFloorChange:
			flush()
			f := geojson.NewFeature(last)
			f.Properties["kind"] = "floor_change"
			f.Properties["routeId"] = np.ID
			f.Properties["from"] = s.From
			f.Properties["to"] = s.To
			f.Properties["via"] = string(s.Via)
			f.Properties["nodeId"] = s.NodeID
			fc.Append(f)
		}
	}
	flush()
	return fc
}

// FloorFeatures exports a floor's walls as LineStrings and nodes as Points
func FloorFeatures(fp *FloorPlan) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if fp == nil {
		return fc
	}
	for _, w := range fp.Walls {
		f := geojson.NewFeature(orb.LineString{w.Start, w.End})
		f.ID = w.ID
		f.Properties["kind"] = "wall"
		f.Properties["floor"] = fp.Floor
		if w.Type != "" {
			f.Properties["wallType"] = w.Type
		}
		if w.Thickness > 0 {
			f.Properties["thickness"] = w.Thickness
		}
		fc.Append(f)
	}
	for _, n := range fp.Nodes {
		f := geojson.NewFeature(n.Position)
		f.ID = n.ID
		f.Properties["kind"] = "node"
		f.Properties["floor"] = fp.Floor
		f.Properties["nodeType"] = string(n.Type)
		f.Properties["walkable"] = n.Walkable
		fc.Append(f)
	}
	return fc
}

// Bounds is the bounding box of a floor's nodes and walls, extended by the
// given extra points
func Bounds(fp *FloorPlan, extra ...orb.Point) orb.Bound {
	var b orb.Bound
	first := true
	add := func(p orb.Point) {
		if first {
			b = p.Bound()
			first = false
			return
		}
		b = b.Extend(p)
	}
	if fp != nil {
		for _, n := range fp.Nodes {
			add(n.Position)
		}
		for _, w := range fp.Walls {
			add(w.Start)
			add(w.End)
		}
	}
	for _, p := range extra {
		add(p)
	}
	return b
}
