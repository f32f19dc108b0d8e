package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kwv/wayfind/locate"
	"github.com/kwv/wayfind/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func validConfigYAML() string {
	return `mqtt:
  broker: tcp://localhost:1883
  publishPrefix: wayfind-test
  clientId: wayfind-test
positioning:
  floor: 1
  windowSeconds: 8
  wifiScanInterval: 15s
  bounds: {minX: 0, minY: 0, maxX: 60, maxY: 40}
anchors:
  - id: lobby-west
    beaconId: f7826da6-0001-0001
    x: 0
    y: 0
  - id: lobby-east
    address: "AA:BB:CC:00:00:02"
    x: 60
    y: 0
    txPower: -62
accessPoints:
  - bssid: "00:11:22:33:44:55"
    x: 30
    y: 20
floors:
  dir: floors
routing:
  transitionTolerance: 0.5
`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// ---------------------------------------------------------------------------
// LoadConfig
// ---------------------------------------------------------------------------

func TestLoadConfig_NotExists(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "anchors: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config YAML")
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigYAML()))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, 1, cfg.Positioning.Floor)
	assert.Equal(t, 15*time.Second, cfg.Positioning.WiFiScanInterval)
	require.Len(t, cfg.Anchors, 2)
	assert.Equal(t, "f7826da6-0001-0001", cfg.Anchors[0].BeaconID)
	assert.Equal(t, -62.0, cfg.Anchors[1].TxPower)
	require.Len(t, cfg.AccessPoints, 1)
	assert.Equal(t, "floors", cfg.Floors.Dir)
	assert.Equal(t, 0.5, cfg.Routing.TransitionTolerance)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "anchors: []\n"))
	require.NoError(t, err)

	assert.Equal(t, locate.DefaultWindow.Seconds(), cfg.Positioning.WindowSeconds)
	assert.Equal(t, locate.DefaultWiFiScanInterval, cfg.Positioning.WiFiScanInterval)
	assert.Equal(t, -59.0, cfg.Positioning.DefaultTxPower)
	assert.Equal(t, 2.0, cfg.Positioning.DefaultPathLossExponent)
	assert.Equal(t, locate.DefaultVarianceThreshold, cfg.Positioning.StabilityVarianceThreshold)
	assert.False(t, cfg.Positioning.Bounds.Empty())
	assert.Equal(t, route.DefaultPlannerConfig(), cfg.Routing)
	assert.Empty(t, cfg.MQTT.Broker, "MQTT is optional")
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		errorMsg string
	}{
		{
			name: "anchor missing id",
			yaml: `anchors:
  - beaconId: b1
`,
			errorMsg: "anchors[0].id is required",
		},
		{
			name: "anchor without identifier",
			yaml: `anchors:
  - id: a1
    x: 1
`,
			errorMsg: "needs a beaconId or an address",
		},
		{
			name: "duplicate anchor",
			yaml: `anchors:
  - id: a1
    beaconId: b1
  - id: a1
    beaconId: b2
`,
			errorMsg: "duplicate id",
		},
		{
			name: "access point missing bssid",
			yaml: `accessPoints:
  - x: 1
    y: 2
`,
			errorMsg: "accessPoints[0].bssid is required",
		},
		{
			name: "negative window",
			yaml: `positioning:
  windowSeconds: -1
`,
			errorMsg: "windowSeconds must be positive",
		},
		{
			name: "negative transition tolerance",
			yaml: `routing:
  transitionTolerance: -2
`,
			errorMsg: "transitionTolerance must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigYAML()))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// ---------------------------------------------------------------------------
// EngineConfig
// ---------------------------------------------------------------------------

func TestConfig_EngineConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigYAML()))
	require.NoError(t, err)

	ec := cfg.EngineConfig()
	assert.Equal(t, 8*time.Second, ec.Window)
	assert.Equal(t, 1, ec.Classifier.Floor)
	assert.Equal(t, -59.0, ec.Classifier.TxPower)
	assert.Equal(t, locate.Bounds{MinX: 0, MinY: 0, MaxX: 60, MaxY: 40}, ec.Classifier.Bounds)
	assert.Equal(t, locate.DefaultQueueSize, ec.QueueSize)
}
