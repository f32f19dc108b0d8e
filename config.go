package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kwv/wayfind/locate"
	"github.com/kwv/wayfind/route"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration loaded from config.yaml
type Config struct {
	MQTT         locate.MQTTConfig          `yaml:"mqtt"`
	Positioning  PositioningConfig          `yaml:"positioning"`
	Anchors      []locate.AnchorConfig      `yaml:"anchors"`
	AccessPoints []locate.AccessPointConfig `yaml:"accessPoints"`
	Floors       FloorsConfig               `yaml:"floors"`
	Routing      route.PlannerConfig        `yaml:"routing"`
}

// PositioningConfig tunes the fusion engine and device classifier
type PositioningConfig struct {
	Floor                      int           `yaml:"floor"`
	WindowSeconds              float64       `yaml:"windowSeconds"`
	WiFiScanInterval           time.Duration `yaml:"wifiScanInterval"`
	DefaultTxPower             float64       `yaml:"defaultTxPower"`
	DefaultPathLossExponent    float64       `yaml:"defaultPathLossExponent"`
	Bounds                     locate.Bounds `yaml:"bounds"`
	StabilityVarianceThreshold float64       `yaml:"stabilityVarianceThreshold"`
}

// FloorsConfig locates floor plan data. Dir holds YAML snapshots, URL an
// optional HTTP provider that takes precedence, Cache a JSON snapshot used
// when neither is reachable.
type FloorsConfig struct {
	Dir             string        `yaml:"dir"`
	URL             string        `yaml:"url"`
	Cache           string        `yaml:"cache"`
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// LoadConfig loads and validates the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	defaults := locate.DefaultClassifierConfig()
	p := &c.Positioning
	if p.WindowSeconds == 0 {
		p.WindowSeconds = locate.DefaultWindow.Seconds()
	}
	if p.WiFiScanInterval <= 0 {
		p.WiFiScanInterval = locate.DefaultWiFiScanInterval
	}
	if p.DefaultTxPower == 0 {
		p.DefaultTxPower = defaults.TxPower
	}
	if p.DefaultPathLossExponent == 0 {
		p.DefaultPathLossExponent = defaults.PathLossExponent
	}
	if p.Bounds.Empty() {
		p.Bounds = defaults.Bounds
	}
	if p.StabilityVarianceThreshold == 0 {
		p.StabilityVarianceThreshold = defaults.VarianceThreshold
	}

	r := &c.Routing
	d := route.DefaultPlannerConfig()
	if r.PrimarySnapDistance == 0 {
		r.PrimarySnapDistance = d.PrimarySnapDistance
	}
	if r.FallbackSnapDistance == 0 {
		r.FallbackSnapDistance = d.FallbackSnapDistance
	}
	if r.WallBuffer == 0 {
		r.WallBuffer = d.WallBuffer
	}
	if r.StaircaseSteps == 0 {
		r.StaircaseSteps = d.StaircaseSteps
	}
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.Positioning.WindowSeconds <= 0 {
		return fmt.Errorf("positioning.windowSeconds must be positive")
	}
	if c.Positioning.DefaultPathLossExponent <= 0 {
		return fmt.Errorf("positioning.defaultPathLossExponent must be positive")
	}

	seen := make(map[string]bool, len(c.Anchors))
	for i, a := range c.Anchors {
		if a.ID == "" {
			return fmt.Errorf("anchors[%d].id is required", i)
		}
		if a.BeaconID == "" && a.Address == "" {
			return fmt.Errorf("anchors[%d] (%s) needs a beaconId or an address", i, a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("anchors[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
	}

	for i, ap := range c.AccessPoints {
		if ap.BSSID == "" {
			return fmt.Errorf("accessPoints[%d].bssid is required", i)
		}
	}

	if c.Routing.TransitionTolerance < 0 {
		return fmt.Errorf("routing.transitionTolerance must not be negative")
	}
	return nil
}

// EngineConfig converts the positioning section into engine settings
func (c *Config) EngineConfig() locate.EngineConfig {
	cfg := locate.DefaultEngineConfig()
	p := c.Positioning
	cfg.Window = time.Duration(p.WindowSeconds * float64(time.Second))
	cfg.Classifier.Floor = p.Floor
	cfg.Classifier.TxPower = p.DefaultTxPower
	cfg.Classifier.PathLossExponent = p.DefaultPathLossExponent
	cfg.Classifier.Bounds = p.Bounds
	cfg.Classifier.VarianceThreshold = p.StabilityVarianceThreshold
	return cfg
}
