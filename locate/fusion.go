package locate

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// MinFusionSources is the number of usable measurements required for a fix.
	MinFusionSources = 3
	// WeightEpsilon keeps 1/(d+ε) finite for zero-range readings.
	WeightEpsilon = 0.1
	// MinAccuracy and MaxAccuracy bound the reported uncertainty radius.
	MinAccuracy = 0.3
	MaxAccuracy = 12.0
	// CrossModalImprovement divides the better accuracy when BLE and WiFi agree.
	CrossModalImprovement = 1.5
)

// Usable filters measurements to those with a valid positive range
func Usable(ms []Measurement) []Measurement {
	out := make([]Measurement, 0, len(ms))
	for _, m := range ms {
		if m.usable() {
			out = append(out, m)
		}
	}
	return out
}

// Weight returns the fusion weight confidence / (distance + ε)
func Weight(m Measurement) float64 {
	return m.Source.Confidence / (m.Distance + WeightEpsilon)
}

// Fuse computes the weighted centroid of the usable measurements. It returns
// ok=false when fewer than MinFusionSources are usable. The floor comes from
// the first usable measurement; all inputs are assumed to share it. The
// result depends only on ms, so identical inputs give identical output.
func Fuse(ms []Measurement) (Position, []Measurement, bool) {
	used := Usable(ms)
	if len(used) < MinFusionSources {
		return Position{}, nil, false
	}

	var sumW, sumX, sumY float64
	var latest time.Time
	for _, m := range used {
		w := Weight(m)
		sumW += w
		sumX += w * m.Source.Position.X
		sumY += w * m.Source.Position.Y
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}
	if sumW <= 0 {
		return Position{}, nil, false
	}

	return Position{
		X:         sumX / sumW,
		Y:         sumY / sumW,
		Floor:     used[0].Source.Floor,
		Accuracy:  EstimateAccuracy(used),
		Timestamp: latest,
	}, used, true
}

// EstimateAccuracy derives an uncertainty radius from the measurement set.
// More close anchors with strong, steady signal shrink the radius; public
// devices, high variance, weak signal and few sources grow it.
func EstimateAccuracy(used []Measurement) float64 {
	if len(used) == 0 {
		return MaxAccuracy
	}

	dists := make([]float64, len(used))
	rssis := make([]float64, len(used))
	anchors := 0
	for i, m := range used {
		dists[i] = m.Distance
		rssis[i] = float64(m.RSSI)
		if m.Source.Class == ClassAnchor {
			anchors++
		}
	}

	avgDist := stat.Mean(dists, nil)
	avgRSSI := stat.Mean(rssis, nil)
	variance := 0.0
	if len(rssis) > 1 {
		variance = stat.Variance(rssis, nil)
	}

	var anchorFactor float64
	switch {
	case anchors >= 4:
		anchorFactor = 0.8
	case anchors == 3:
		anchorFactor = 1.0
	case anchors == 2:
		anchorFactor = 1.3
	case anchors == 1:
		anchorFactor = 1.6
	default:
		anchorFactor = 2.2
	}

	var signalFactor float64
	switch {
	case avgRSSI >= -60:
		signalFactor = 0.8
	case avgRSSI >= -75:
		signalFactor = 1.0
	case avgRSSI >= -85:
		signalFactor = 1.25
	default:
		signalFactor = 1.5
	}

	varianceFactor := 1 + math.Min(math.Sqrt(variance)/10, 1)
	publicShare := float64(len(used)-anchors) / float64(len(used))
	countFactor := 1.0
	if len(used) == MinFusionSources {
		countFactor = 1.2
	}

	acc := 0.5 * avgDist * anchorFactor * signalFactor * varianceFactor * (1 + publicShare) * countFactor
	return clamp(acc, MinAccuracy, MaxAccuracy)
}

// FuseCrossModal merges a BLE and a WiFi fix. With both present the
// coordinates are averaged, the floor comes from BLE, and the accuracy is the
// better of the two divided by CrossModalImprovement. A single fix passes
// through unchanged.
func FuseCrossModal(ble, wifi *Position) (Position, bool) {
	switch {
	case ble == nil && wifi == nil:
		return Position{}, false
	case wifi == nil:
		return *ble, true
	case ble == nil:
		return *wifi, true
	}

	ts := ble.Timestamp
	if wifi.Timestamp.After(ts) {
		ts = wifi.Timestamp
	}
	return Position{
		X:         (ble.X + wifi.X) / 2,
		Y:         (ble.Y + wifi.Y) / 2,
		Floor:     ble.Floor,
		Accuracy:  math.Min(ble.Accuracy, wifi.Accuracy) / CrossModalImprovement,
		Timestamp: ts,
	}, true
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
