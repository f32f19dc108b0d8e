package locate

import (
	"hash/fnv"
	"log"
	"math"
	"time"
)

// ClassifierConfig holds defaults applied to sources that do not declare
// their own radio parameters.
type ClassifierConfig struct {
	Floor             int
	TxPower           float64
	PathLossExponent  float64
	Bounds            Bounds
	VarianceThreshold float64
	MaxReadings       int
	ReadingMaxAge     time.Duration
}

// DefaultClassifierConfig returns typical BLE beacon parameters
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		TxPower:           -59,
		PathLossExponent:  2.0,
		Bounds:            Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100},
		VarianceThreshold: DefaultVarianceThreshold,
		MaxReadings:       DefaultMaxReadings,
		ReadingMaxAge:     DefaultReadingMaxAge,
	}
}

type anchorState struct {
	cfg     AnchorConfig
	address string
}

// Classifier resolves observations to anchors, known access points, or
// public devices. Anchor address bindings and public device positions are
// fixed for the lifetime of the Classifier.
type Classifier struct {
	cfg          ClassifierConfig
	anchors      []*anchorState
	byID         map[string]*anchorState
	byAddress    map[string]*anchorState
	byBeacon     map[string]*anchorState
	accessPoints map[string]AccessPointConfig
	stability    *StabilityTracker
	public       map[string]RadioSource
}

// NewClassifier builds a classifier for the given anchors and access points
func NewClassifier(cfg ClassifierConfig, anchors []AnchorConfig, aps []AccessPointConfig) *Classifier {
	if cfg.PathLossExponent <= 0 {
		cfg.PathLossExponent = 2.0
	}
	if cfg.TxPower == 0 {
		cfg.TxPower = -59
	}
	if cfg.Bounds.Empty() {
		cfg.Bounds = DefaultClassifierConfig().Bounds
	}

	c := &Classifier{
		cfg:          cfg,
		byID:         make(map[string]*anchorState),
		byAddress:    make(map[string]*anchorState),
		byBeacon:     make(map[string]*anchorState),
		accessPoints: make(map[string]AccessPointConfig),
		stability:    NewStabilityTracker(cfg.MaxReadings, cfg.ReadingMaxAge, cfg.VarianceThreshold),
		public:       make(map[string]RadioSource),
	}

	for _, a := range anchors {
		st := &anchorState{cfg: a, address: NormalizeAddress(a.Address)}
		c.anchors = append(c.anchors, st)
		c.byID[a.ID] = st
		if st.address != "" {
			c.byAddress[st.address] = st
		}
		if a.BeaconID != "" {
			c.byBeacon[a.BeaconID] = st
		}
	}
	for _, ap := range aps {
		c.accessPoints[NormalizeAddress(ap.BSSID)] = ap
	}
	return c
}

// Classify resolves an observation to a positioning source. refs are the
// live BLE measurements, used to project newly stable public devices from the
// strongest anchor. ok is false when the observation must not be used:
// unknown access points, and public devices that are not yet stable.
func (c *Classifier) Classify(obs Observation, refs []Measurement) (RadioSource, bool) {
	if obs.Modality == ModalityWiFi {
		ap, ok := c.accessPoints[obs.ID]
		if !ok {
			return RadioSource{}, false
		}
		return c.accessPointSource(ap), true
	}

	if a, ok := c.resolveAnchor(obs); ok {
		return c.anchorSource(a), true
	}

	_, stable := c.stability.Observe(obs.ID, obs.RSSI, obs.Timestamp)
	if !stable {
		return RadioSource{}, false
	}
	if src, ok := c.public[obs.ID]; ok {
		return src, true
	}

	src := c.placePublicDevice(obs, refs)
	c.public[obs.ID] = src
	return src, true
}

// resolveAnchor matches by bound address, then by stable anchor id, then by
// broadcast identifier for anchors that have no address yet. A broadcast
// match binds the address for the rest of the session.
func (c *Classifier) resolveAnchor(obs Observation) (*anchorState, bool) {
	if a, ok := c.byAddress[obs.ID]; ok {
		return a, true
	}
	if a, ok := c.byID[obs.ID]; ok {
		return a, true
	}
	if obs.Secondary == "" {
		return nil, false
	}
	if a, ok := c.byID[obs.Secondary]; ok && a.address == "" {
		c.bind(a, obs.ID)
		return a, true
	}
	if a, ok := c.byBeacon[obs.Secondary]; ok && a.address == "" {
		c.bind(a, obs.ID)
		return a, true
	}
	return nil, false
}

func (c *Classifier) bind(a *anchorState, address string) {
	if address == "" {
		return
	}
	a.address = address
	c.byAddress[address] = a
	log.Printf("[CLASSIFIER] bound anchor %s to address %s", a.cfg.ID, address)
}

// AnchorAddress returns the device address currently bound to an anchor
func (c *Classifier) AnchorAddress(anchorID string) (string, bool) {
	a, ok := c.byID[anchorID]
	if !ok || a.address == "" {
		return "", false
	}
	return a.address, true
}

// Stability exposes the tracked history of a public device
func (c *Classifier) Stability(id string) (*DeviceStability, bool) {
	return c.stability.Get(id)
}

// Evict drops stability history for devices not heard from recently. Public
// device positions are kept for the session.
func (c *Classifier) Evict(now time.Time) int {
	return c.stability.Evict(now)
}

func (c *Classifier) anchorSource(a *anchorState) RadioSource {
	return RadioSource{
		ID:               a.cfg.ID,
		Class:            ClassAnchor,
		Modality:         ModalityBLE,
		Position:         Point{X: a.cfg.X, Y: a.cfg.Y},
		Floor:            a.cfg.Floor,
		TxPower:          orDefault(a.cfg.TxPower, c.cfg.TxPower),
		PathLossExponent: orDefault(a.cfg.PathLossExponent, c.cfg.PathLossExponent),
		Confidence:       AnchorConfidence,
	}
}

func (c *Classifier) accessPointSource(ap AccessPointConfig) RadioSource {
	return RadioSource{
		ID:               NormalizeAddress(ap.BSSID),
		Class:            ClassAnchor,
		Modality:         ModalityWiFi,
		Position:         Point{X: ap.X, Y: ap.Y},
		Floor:            ap.Floor,
		TxPower:          orDefault(ap.TxPower, -40),
		PathLossExponent: orDefault(ap.PathLossExponent, 3.0),
		Confidence:       AnchorConfidence,
	}
}

// placePublicDevice assigns the one-time estimated position of a public
// device. The bearing and fallback position are derived from the identifier
// hash and carry no physical meaning; they only keep the estimate stable.
func (c *Classifier) placePublicDevice(obs Observation, refs []Measurement) RadioSource {
	src := RadioSource{
		ID:               obs.ID,
		Class:            ClassPublic,
		Modality:         ModalityBLE,
		Floor:            c.cfg.Floor,
		TxPower:          c.cfg.TxPower,
		PathLossExponent: c.cfg.PathLossExponent,
		Confidence:       PublicConfidence,
	}

	ref, haveRef := strongestAnchor(refs)
	dist, okDist := EstimateDistance(obs.RSSI, c.cfg.TxPower, c.cfg.PathLossExponent)
	if haveRef && okDist {
		bearing := HashBearing(obs.ID)
		src.Position = Point{
			X: ref.Source.Position.X + dist*math.Cos(bearing),
			Y: ref.Source.Position.Y + dist*math.Sin(bearing),
		}
		src.Floor = ref.Source.Floor
	} else {
		src.Position = HashPosition(obs.ID, c.cfg.Bounds)
	}

	log.Printf("[CLASSIFIER] public device %s placed at (%.2f, %.2f)", obs.ID, src.Position.X, src.Position.Y)
	return src
}

func strongestAnchor(refs []Measurement) (Measurement, bool) {
	var best Measurement
	found := false
	for _, m := range refs {
		if m.Source.Class != ClassAnchor {
			continue
		}
		if !found || m.RSSI > best.RSSI || (m.RSSI == best.RSSI && m.Source.ID < best.Source.ID) {
			best = m
			found = true
		}
	}
	return best, found
}

func hashID(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

// HashBearing maps an identifier to a deterministic angle in [0, 2π)
func HashBearing(id string) float64 {
	return float64(hashID(id)%36000) / 36000.0 * 2 * math.Pi
}

// HashPosition maps an identifier to a deterministic point inside b
func HashPosition(id string, b Bounds) Point {
	h := hashID(id)
	fx := float64(h&0xffffffff) / float64(1<<32)
	fy := float64(h>>32) / float64(1<<32)
	return Point{
		X: b.MinX + fx*(b.MaxX-b.MinX),
		Y: b.MinY + fy*(b.MaxY-b.MinY),
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
