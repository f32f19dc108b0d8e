package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kwv/wayfind/locate"
	"github.com/kwv/wayfind/route"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

const groundFloorYAML = `floor: 1
name: Ground
nodes:
  - id: door1
    position: [0, 0]
    walkable: true
    type: door
    connections: [hall1]
  - id: hall1
    position: [20, 0]
    walkable: true
    connections: [lift1]
  - id: lift1
    position: [20, 20]
    walkable: true
    type: elevator
walls:
  - start: [10, 5]
    end: [10, 30]
`

const upperFloorYAML = `floor: 2
name: Offices
nodes:
  - id: lift2
    position: [20, 20]
    walkable: true
    type: elevator
    connections: [office]
  - id: office
    position: [40, 20]
    walkable: true
walls: []
`

const siteConfigYAML = `anchors:
  - id: a1
    beaconId: beacon-1
    x: 0
    y: 0
floors:
  dir: floors
`

// writeSite lays out config.yaml and a floors directory in a temp dir
func writeSite(t *testing.T, config string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	floorsDir := filepath.Join(dir, "floors")
	require.NoError(t, os.MkdirAll(floorsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(floorsDir, "1-ground.yaml"), []byte(groundFloorYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(floorsDir, "2-offices.yaml"), []byte(upperFloorYAML), 0644))

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))
	return configPath, floorsDir
}

func newTestApp(t *testing.T, configPath, floorsDir string) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp()
	app.out = &out
	app.ApplyOptions(AppOptions{ConfigFile: configPath, FloorsDir: floorsDir})
	return app, &out
}

// ---------------------------------------------------------------------------
// options and parsing
// ---------------------------------------------------------------------------

func TestNewApp(t *testing.T) {
	app := NewApp()
	assert.NotNil(t, app.Floors)
	assert.NotNil(t, app.Router)
	assert.Nil(t, app.Engine)
}

func TestApplyOptions(t *testing.T) {
	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile:   "site.yaml",
		FloorsDir:    "/data/floors",
		HTTPPort:     9000,
		RenderOutput: "out.png",
	})
	assert.Equal(t, "site.yaml", app.ConfigFile)
	assert.Equal(t, "/data/floors", app.FloorsDir)
	assert.Equal(t, 9000, app.HTTPPort)
	assert.Equal(t, "out.png", app.RenderOutput)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    route.Location
		wantErr bool
	}{
		{in: "1.5,2,3", want: route.At(1.5, 2, 3)},
		{in: " -4 , 0.25 , -1 ", want: route.At(-4, 0.25, -1)},
		{in: "1,2", wantErr: true},
		{in: "a,2,3", wantErr: true},
		{in: "1,b,3", wantErr: true},
		{in: "1,2,1.5", wantErr: true},
		{in: "NaN,2,1", wantErr: true},
		{in: "1,Inf,1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLocation(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRouteSpec(t *testing.T) {
	from, to, err := parseRouteSpec("0,0,1:40,20,2")
	require.NoError(t, err)
	assert.Equal(t, route.At(0, 0, 1), from)
	assert.Equal(t, route.At(40, 20, 2), to)

	_, _, err = parseRouteSpec("0,0,1")
	assert.Error(t, err)
	_, _, err = parseRouteSpec("0,0,1:x,0,1")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// config and floors
// ---------------------------------------------------------------------------

func TestLoadConfig_FloorsDirOverride(t *testing.T) {
	configPath, floorsDir := writeSite(t, siteConfigYAML)
	app, _ := newTestApp(t, configPath, floorsDir)

	require.NoError(t, app.loadConfig())
	assert.Equal(t, floorsDir, app.Config.Floors.Dir)
	assert.Equal(t, route.DefaultPlannerConfig(), app.Router.Planner().Config())
}

func TestLoadConfig_Missing(t *testing.T) {
	app, _ := newTestApp(t, filepath.Join(t.TempDir(), "missing.yaml"), "")
	err := app.loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadFloors_FromDir(t *testing.T) {
	configPath, floorsDir := writeSite(t, siteConfigYAML)
	app, _ := newTestApp(t, configPath, floorsDir)
	require.NoError(t, app.loadConfig())

	require.NoError(t, app.loadFloors(context.Background()))
	assert.Equal(t, []int{1, 2}, app.Floors.FloorNumbers())
}

func TestLoadFloors_NoneAvailable(t *testing.T) {
	configPath, _ := writeSite(t, "anchors: []\n")
	app, _ := newTestApp(t, configPath, t.TempDir())
	require.NoError(t, app.loadConfig())

	err := app.loadFloors(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no floor plans available")
}

func TestLoadFloors_ProviderReplacesDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"floors":[{"floor":7,"nodes":[{"id":"n","position":[1,1],"walkable":true}],"walls":[]}]}`))
	}))
	defer srv.Close()

	configPath, floorsDir := writeSite(t, siteConfigYAML+"  url: "+srv.URL+"\n")
	app, _ := newTestApp(t, configPath, floorsDir)
	require.NoError(t, app.loadConfig())

	require.NoError(t, app.loadFloors(context.Background()))
	assert.Equal(t, []int{7}, app.Floors.FloorNumbers())
	assert.Equal(t, uint64(2), app.Floors.Version())
}

func TestLoadFloors_ProviderFailureKeepsDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	configPath, floorsDir := writeSite(t, siteConfigYAML+"  url: "+srv.URL+"\n")
	app, _ := newTestApp(t, configPath, floorsDir)
	require.NoError(t, app.loadConfig())

	require.NoError(t, app.loadFloors(context.Background()))
	assert.Equal(t, []int{1, 2}, app.Floors.FloorNumbers())
}

func TestLoadFloors_CacheSurvivesRestart(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "floors-cache.json")
	configPath, floorsDir := writeSite(t, siteConfigYAML+"  cache: "+cache+"\n")

	app, _ := newTestApp(t, configPath, floorsDir)
	require.NoError(t, app.loadConfig())
	require.NoError(t, app.loadFloors(context.Background()))

	// second start with an empty floors dir still has the cached floors
	restarted, _ := newTestApp(t, configPath, t.TempDir())
	require.NoError(t, restarted.loadConfig())
	require.NoError(t, restarted.loadFloors(context.Background()))
	assert.Equal(t, []int{1, 2}, restarted.Floors.FloorNumbers())
}

// ---------------------------------------------------------------------------
// RunRoute
// ---------------------------------------------------------------------------

func TestRunRoute_MultiFloor(t *testing.T) {
	configPath, floorsDir := writeSite(t, siteConfigYAML)
	app, out := newTestApp(t, configPath, floorsDir)

	require.NoError(t, app.RunRoute("0,0,1:40,20,2"))

	var resp routeResponse
	require.NoError(t, json.NewDecoder(out).Decode(&resp))
	assert.True(t, strings.HasPrefix(resp.ID, "route_"))
	assert.Greater(t, resp.Distance, 0.0)

	var change *route.Step
	for i := range resp.Steps {
		if resp.Steps[i].Kind == route.StepFloorChange {
			change = &resp.Steps[i]
		}
	}
	require.NotNil(t, change, "expected a floor change step")
	assert.Equal(t, route.ViaElevator, change.Via)
	assert.Equal(t, "lift1", change.NodeID)
	assert.Equal(t, 1, change.From)
	assert.Equal(t, 2, change.To)

	last := resp.Steps[len(resp.Steps)-1]
	assert.Equal(t, route.StepMove, last.Kind)
	assert.Equal(t, orb.Point{40, 20}, last.Point)
	assert.Equal(t, 2, last.Floor)
}

func TestRunRoute_Render(t *testing.T) {
	for _, ext := range []string{".svg", ".png"} {
		t.Run(ext, func(t *testing.T) {
			configPath, floorsDir := writeSite(t, siteConfigYAML)
			app, out := newTestApp(t, configPath, floorsDir)
			app.RenderOutput = filepath.Join(t.TempDir(), "route"+ext)

			require.NoError(t, app.RunRoute("0,0,1:20,20,1"))
			assert.Contains(t, out.String(), "Created: "+app.RenderOutput)

			info, err := os.Stat(app.RenderOutput)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestRunRoute_Errors(t *testing.T) {
	configPath, floorsDir := writeSite(t, siteConfigYAML)

	t.Run("bad route argument", func(t *testing.T) {
		app, _ := newTestApp(t, configPath, floorsDir)
		assert.Error(t, app.RunRoute("nonsense"))
	})

	t.Run("unknown floor", func(t *testing.T) {
		app, _ := newTestApp(t, configPath, floorsDir)
		err := app.RunRoute("0,0,9:1,1,9")
		require.Error(t, err)
		assert.ErrorIs(t, err, route.ErrFloorPlanNotFound)
	})

	t.Run("bad render extension", func(t *testing.T) {
		app, _ := newTestApp(t, configPath, floorsDir)
		app.RenderOutput = filepath.Join(t.TempDir(), "route.gif")
		err := app.RunRoute("0,0,1:20,20,1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extension must be .svg or .png")
	})
}

// ---------------------------------------------------------------------------
// positioning
// ---------------------------------------------------------------------------

func TestStartPositioning_NoBroker(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	configPath, floorsDir := writeSite(t, siteConfigYAML)
	app, _ := newTestApp(t, configPath, floorsDir)
	require.NoError(t, app.loadConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.startPositioning(ctx))

	assert.Nil(t, app.Source)
	assert.Nil(t, app.Publisher)
	require.NotNil(t, app.Engine)
	require.NotNil(t, app.Session)
	assert.True(t, app.Session.Active())
	assert.Equal(t, locate.StatusScanning, app.Engine.Status())

	app.stopPositioning()
	assert.False(t, app.Session.Active())
	assert.Equal(t, uint64(0), app.Engine.Dropped())
	assert.False(t, app.Engine.Submit(locate.Observation{ID: "a1"}), "closed engine accepts nothing")
}
