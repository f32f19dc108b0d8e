package locate

import "math"

// EstimateDistance converts a signal strength to a range using the
// log-distance path-loss model:
//
//	d = 10 ^ ((txPower - rssi) / (10 * n))
//
// txPower is the expected RSSI at one unit of distance. A reading of exactly
// zero is invalid and reported as ok=false. No clamping is applied, so callers
// must treat very large ranges as low confidence.
func EstimateDistance(rssi int, txPower, pathLossExponent float64) (float64, bool) {
	if rssi == 0 || pathLossExponent <= 0 {
		return 0, false
	}
	exp := (txPower - float64(rssi)) / (10.0 * pathLossExponent)
	return math.Pow(10, exp), true
}

// RSSIForDistance is the inverse of EstimateDistance
func RSSIForDistance(distance, txPower, pathLossExponent float64) float64 {
	if distance <= 0 {
		return txPower
	}
	return txPower - 10.0*pathLossExponent*math.Log10(distance)
}
