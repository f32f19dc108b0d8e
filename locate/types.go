package locate

import "time"

// Modality identifies the radio technology a measurement came from
type Modality string

const (
	ModalityBLE  Modality = "ble"
	ModalityWiFi Modality = "wifi"
)

// SourceClass separates surveyed anchors from heuristically placed devices
type SourceClass string

const (
	ClassAnchor SourceClass = "anchor"
	ClassPublic SourceClass = "public"
)

const (
	// AnchorConfidence is the weight multiplier for surveyed anchors.
	AnchorConfidence = 1.0
	// PublicConfidence is the weight multiplier for stable public devices.
	PublicConfidence = 0.3
)

// Position is an immutable 2D estimate on a floor. Accuracy is the radius of
// uncertainty in the same unit as X/Y.
type Position struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Floor     int       `json:"floor"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Point is a bare coordinate used for declared and estimated source positions
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// RadioSource is an anchor or a public device usable as a positioning reference.
type RadioSource struct {
	ID               string      `json:"id"`
	Class            SourceClass `json:"class"`
	Modality         Modality    `json:"modality"`
	Position         Point       `json:"position"`
	Floor            int         `json:"floor"`
	TxPower          float64     `json:"txPower"`
	PathLossExponent float64     `json:"pathLossExponent"`
	Confidence       float64     `json:"confidence"`
}

// Measurement is one live reading held in the sliding window. Distance is
// zero when the reading could not be converted.
type Measurement struct {
	Source    RadioSource `json:"source"`
	RSSI      int         `json:"rssi"`
	Timestamp time.Time   `json:"timestamp"`
	Distance  float64     `json:"distance"`
	HasRange  bool        `json:"hasRange"`
}

// usable reports whether the measurement can contribute to a fused position
func (m Measurement) usable() bool {
	return m.HasRange && m.Distance > 0
}

// Status is the positioning state exposed to the application
type Status string

const (
	StatusIdle                Status = "idle"
	StatusScanning            Status = "scanning"
	StatusPositioned          Status = "positioned"
	StatusInsufficientSignals Status = "insufficient_signals"
	StatusError               Status = "error"
)

// AnchorConfig declares a surveyed BLE beacon. Address may be empty until the
// beacon is first correlated through its BeaconID.
type AnchorConfig struct {
	ID               string  `yaml:"id" json:"id"`
	BeaconID         string  `yaml:"beaconId,omitempty" json:"beaconId,omitempty"`
	Address          string  `yaml:"address,omitempty" json:"address,omitempty"`
	X                float64 `yaml:"x" json:"x"`
	Y                float64 `yaml:"y" json:"y"`
	Floor            int     `yaml:"floor" json:"floor"`
	TxPower          float64 `yaml:"txPower,omitempty" json:"txPower,omitempty"`
	PathLossExponent float64 `yaml:"pathLossExponent,omitempty" json:"pathLossExponent,omitempty"`
}

// AccessPointConfig declares a WiFi access point at a known position
type AccessPointConfig struct {
	BSSID            string  `yaml:"bssid" json:"bssid"`
	SSID             string  `yaml:"ssid,omitempty" json:"ssid,omitempty"`
	X                float64 `yaml:"x" json:"x"`
	Y                float64 `yaml:"y" json:"y"`
	Floor            int     `yaml:"floor" json:"floor"`
	TxPower          float64 `yaml:"txPower,omitempty" json:"txPower,omitempty"`
	PathLossExponent float64 `yaml:"pathLossExponent,omitempty" json:"pathLossExponent,omitempty"`
}

// Bounds is the floor coordinate range used to scale hash pseudo-positions
type Bounds struct {
	MinX float64 `yaml:"minX" json:"minX"`
	MinY float64 `yaml:"minY" json:"minY"`
	MaxX float64 `yaml:"maxX" json:"maxX"`
	MaxY float64 `yaml:"maxY" json:"maxY"`
}

// Empty reports whether the bounds span no area
func (b Bounds) Empty() bool {
	return b.MaxX <= b.MinX || b.MaxY <= b.MinY
}
