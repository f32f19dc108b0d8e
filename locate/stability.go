package locate

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultMaxReadings bounds the per-device reading history.
	DefaultMaxReadings = 10
	// DefaultReadingMaxAge drops readings older than this relative to the newest one.
	DefaultReadingMaxAge = 30 * time.Second
	// MinStableReadings is the floor below which a device is never eligible.
	MinStableReadings = 3
	// ForcedStableReadings makes a device eligible regardless of variance.
	ForcedStableReadings = 6
	// DefaultVarianceThreshold is the RSSI variance (dBm^2) under which a device is stable.
	DefaultVarianceThreshold = 16.0
)

type stabilityReading struct {
	rssi int
	at   time.Time
}

// DeviceStability holds the recent signal history of one public device
type DeviceStability struct {
	ID       string
	LastSeen time.Time
	readings []stabilityReading
}

// add appends a reading and trims the history to maxReadings entries no older
// than maxAge relative to the newest reading.
func (d *DeviceStability) add(rssi int, at time.Time, maxReadings int, maxAge time.Duration) {
	d.readings = append(d.readings, stabilityReading{rssi: rssi, at: at})
	if at.After(d.LastSeen) {
		d.LastSeen = at
	}

	cutoff := d.LastSeen.Add(-maxAge)
	kept := d.readings[:0]
	for _, r := range d.readings {
		if !r.at.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	if len(kept) > maxReadings {
		kept = kept[len(kept)-maxReadings:]
	}
	d.readings = kept
}

// Count returns the number of readings currently held
func (d *DeviceStability) Count() int {
	return len(d.readings)
}

// Readings returns a copy of the RSSI history, oldest first
func (d *DeviceStability) Readings() []int {
	out := make([]int, len(d.readings))
	for i, r := range d.readings {
		out[i] = r.rssi
	}
	return out
}

// Variance returns the sample variance of the held RSSI values, or 0 with
// fewer than two readings.
func (d *DeviceStability) Variance() float64 {
	if len(d.readings) < 2 {
		return 0
	}
	return stat.Variance(toFloats(d.Readings()), nil)
}

// Stable reports whether the device may be used as a positioning source.
func (d *DeviceStability) Stable(varianceThreshold float64) bool {
	n := d.Count()
	if n < MinStableReadings {
		return false
	}
	return n >= ForcedStableReadings || d.Variance() < varianceThreshold
}

// StabilityTracker tracks DeviceStability for every unknown identifier seen.
// It is not safe for concurrent use; the Engine serializes access.
type StabilityTracker struct {
	devices     map[string]*DeviceStability
	maxReadings int
	maxAge      time.Duration
	threshold   float64
}

// NewStabilityTracker creates a tracker. Zero values select the defaults.
func NewStabilityTracker(maxReadings int, maxAge time.Duration, varianceThreshold float64) *StabilityTracker {
	if maxReadings <= 0 {
		maxReadings = DefaultMaxReadings
	}
	if maxAge <= 0 {
		maxAge = DefaultReadingMaxAge
	}
	if varianceThreshold <= 0 {
		varianceThreshold = DefaultVarianceThreshold
	}
	return &StabilityTracker{
		devices:     make(map[string]*DeviceStability),
		maxReadings: maxReadings,
		maxAge:      maxAge,
		threshold:   varianceThreshold,
	}
}

// Observe records a reading and reports whether the device is now stable
func (t *StabilityTracker) Observe(id string, rssi int, at time.Time) (*DeviceStability, bool) {
	d, ok := t.devices[id]
	if !ok {
		d = &DeviceStability{ID: id}
		t.devices[id] = d
	}
	d.add(rssi, at, t.maxReadings, t.maxAge)
	return d, d.Stable(t.threshold)
}

// Get returns the tracked state for id
func (t *StabilityTracker) Get(id string) (*DeviceStability, bool) {
	d, ok := t.devices[id]
	return d, ok
}

// Evict forgets devices not seen within maxAge of now and returns how many
// were removed.
func (t *StabilityTracker) Evict(now time.Time) int {
	cutoff := now.Add(-t.maxAge)
	removed := 0
	for id, d := range t.devices {
		if d.LastSeen.Before(cutoff) {
			delete(t.devices, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked devices
func (t *StabilityTracker) Len() int {
	return len(t.devices)
}

func toFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
