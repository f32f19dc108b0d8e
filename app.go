package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/wayfind/locate"
	"github.com/kwv/wayfind/route"
)

// App encapsulates the application state and dependencies
type App struct {
	Config    *Config
	Engine    *locate.Engine
	Session   *locate.Session
	Source    *locate.MQTTSource
	Publisher *locate.Publisher
	Floors    *route.FloorStore
	Router    *route.Router

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	FloorsDir    string
	HTTPPort     int
	RenderOutput string

	out io.Writer
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Floors: route.NewFloorStore(),
		Router: route.NewRouter(nil),
		out:    os.Stdout,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.FloorsDir = opts.FloorsDir
	a.HTTPPort = opts.HTTPPort
	a.RenderOutput = opts.RenderOutput
}

func (a *App) loadConfig() error {
	config, err := LoadConfig(a.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.FloorsDir != "" {
		config.Floors.Dir = a.FloorsDir
	}
	a.Config = config
	a.Router = route.NewRouter(route.NewPlanner(config.Routing))
	log.Printf("Loaded config from %s", a.ConfigFile)
	return nil
}

// loadFloors fills the floor store from the cache, then the YAML directory,
// then the data provider. A provider failure keeps whatever was loaded
// before it.
func (a *App) loadFloors(ctx context.Context) error {
	fc := a.Config.Floors
	a.Floors = route.NewFloorStoreWithCache(fc.Cache)

	if fc.Dir != "" {
		floors, err := route.LoadFloorPlans(fc.Dir)
		if err != nil {
			return fmt.Errorf("loading floor plans: %w", err)
		}
		if len(floors) > 0 {
			a.Floors.Replace(floors)
		}
		log.Printf("[ROUTE] Loaded %d floor(s) from %s", len(floors), fc.Dir)
	}

	if fc.URL != "" {
		if err := a.refreshFloors(ctx); err != nil {
			log.Printf("[ROUTE] Warning: %v", err)
		}
	}

	if len(a.Floors.FloorNumbers()) == 0 {
		return fmt.Errorf("no floor plans available (set floors.dir, floors.url or floors.cache)")
	}
	return nil
}

func (a *App) refreshFloors(ctx context.Context) error {
	floors, err := route.FetchFloorPlans(ctx, a.Config.Floors.URL)
	if err != nil {
		return err
	}
	a.Floors.Replace(floors)
	log.Printf("[ROUTE] Fetched %d floor(s) from %s (version %d)", len(floors), a.Config.Floors.URL, a.Floors.Version())
	return nil
}

func (a *App) floorRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.refreshFloors(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[ROUTE] Warning: floor refresh failed: %v", err)
			}
		}
	}
}

// RunRoute plans one route and prints it as JSON. With RenderOutput set the
// start floor is drawn with the route to an SVG or PNG file.
func (a *App) RunRoute(spec string) error {
	from, to, err := parseRouteSpec(spec)
	if err != nil {
		return err
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.loadFloors(context.Background()); err != nil {
		return err
	}

	floors, version := a.Floors.Snapshot()
	path, err := a.Router.FindPath(from, to, floors)
	if err != nil {
		return fmt.Errorf("planning route: %w", err)
	}
	log.Printf("[ROUTE] %s: %d steps, distance %.1f, degraded=%v (floors v%d)",
		path.ID, len(path.Steps), path.TotalDistance(), path.Degraded, version)

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newRouteResponse(path)); err != nil {
		return fmt.Errorf("encoding route: %w", err)
	}

	if a.RenderOutput != "" {
		r := route.NewRenderer(floors[from.Floor])
		r.Path = path
		if err := renderFile(r, a.RenderOutput); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Created: %s\n", a.RenderOutput)
	}
	return nil
}

// renderFile writes an .svg or .png depending on the output extension
func renderFile(r *route.Renderer, output string) error {
	ext := strings.ToLower(filepath.Ext(output))
	if ext != ".svg" && ext != ".png" {
		return fmt.Errorf("render output %s: extension must be .svg or .png", output)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file %s: %w", output, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Warning: error closing output file %s: %v", output, err)
		}
	}()

	if ext == ".svg" {
		err = r.RenderToSVG(f)
	} else {
		err = r.RenderToPNG(f)
	}
	if err != nil {
		return fmt.Errorf("rendering %s: %w", output, err)
	}
	return nil
}

// startPositioning builds the engine, connects the MQTT scan source and
// publisher when a broker is configured, and starts a scanning session.
func (a *App) startPositioning(ctx context.Context) error {
	cfg := a.Config
	a.Engine = locate.NewEngine(cfg.EngineConfig(), cfg.Anchors, cfg.AccessPoints)

	src, err := locate.InitMQTT(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("initializing MQTT: %w", err)
	}
	a.Source = src

	var ble locate.BLESource
	var wifi locate.WiFiScanner
	if src != nil {
		ble, wifi = src, src
		a.Publisher = locate.NewPublisher(src.Client(), cfg.MQTT.PublishPrefix)
		go a.Publisher.Forward(a.Engine, ctx.Done())
		fmt.Fprintln(a.out, "MQTT position publisher initialized")
	} else {
		log.Println("[SESSION] Warning: no MQTT broker, positioning has no radio sources")
	}

	a.Session = locate.NewSession(a.Engine, ble, wifi, cfg.Positioning.WiFiScanInterval)
	if err := a.Session.Start(ctx); err != nil {
		// reported through the engine status; the HTTP surface stays up
		log.Printf("[SESSION] Warning: %v", err)
	}
	return nil
}

func (a *App) stopPositioning() {
	if a.Session != nil {
		a.Session.Stop()
	}
	if a.Engine != nil {
		a.Engine.Close()
	}
	if a.Source != nil {
		a.Source.Disconnect()
	}
}

// RunService starts positioning, MQTT publishing and the HTTP API, and
// blocks until interrupted.
func (a *App) RunService() error {
	fmt.Fprintln(a.out, "Starting wayfind service...")

	if err := a.loadConfig(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.loadFloors(ctx); err != nil {
		log.Printf("[ROUTE] Warning: %v; routing unavailable until floors load", err)
	}
	if a.Config.Floors.URL != "" && a.Config.Floors.RefreshInterval > 0 {
		go a.floorRefreshLoop(ctx, a.Config.Floors.RefreshInterval)
	}

	if err := a.startPositioning(ctx); err != nil {
		return err
	}
	defer a.stopPositioning()

	addr := fmt.Sprintf("0.0.0.0:%d", a.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           newHTTPServer(a.Engine, a.Floors, a.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[HTTP] Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HTTP] Server error: %v", err)
			cancel()
		}
	}()

	a.printServiceInfo()
	<-ctx.Done()

	fmt.Fprintln(a.out, "\nShutting down service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[HTTP] Shutdown error: %v", err)
	}
	fmt.Fprintln(a.out, "Service stopped")
	return nil
}

func (a *App) printServiceInfo() {
	fmt.Fprintln(a.out, "\nService Running")
	fmt.Fprintln(a.out, "===============")

	if a.Source != nil {
		fmt.Fprintln(a.out, "\nMQTT:")
		ble := a.Config.MQTT.BLETopic
		if ble == "" {
			ble = locate.DefaultBLETopic
		}
		wifi := a.Config.MQTT.WiFiTopic
		if wifi == "" {
			wifi = locate.DefaultWiFiTopic
		}
		fmt.Fprintf(a.out, "  BLE advertisements: %s\n", ble)
		fmt.Fprintf(a.out, "  WiFi scans:         %s\n", wifi)
		prefix := a.Config.MQTT.PublishPrefix
		if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
			prefix = env
		}
		if prefix == "" {
			prefix = "wayfind"
		}
		fmt.Fprintf(a.out, "  Publishing to: %s/position, %s/status\n", prefix, prefix)
	}

	fmt.Fprintf(a.out, "\nHTTP endpoints (port %d):\n", a.HTTPPort)
	fmt.Fprintln(a.out, "  GET /health          - Health check")
	fmt.Fprintln(a.out, "  GET /position        - Latest fused position")
	fmt.Fprintln(a.out, "  GET /status          - Positioning status")
	fmt.Fprintln(a.out, "  GET /measurements    - Live and contributing measurements")
	fmt.Fprintln(a.out, "  GET /route           - Route from=x,y,floor (default: current) to=x,y,floor")
	fmt.Fprintln(a.out, "  GET /route.geojson   - Route as GeoJSON")
	fmt.Fprintln(a.out, "  GET /floor.geojson   - Floor walls and nodes as GeoJSON")
	fmt.Fprintln(a.out, "  GET /floor.svg       - Floor drawing with optional route")
	fmt.Fprintln(a.out, "  GET /floor.png       - Floor drawing with optional route")
	fmt.Fprintln(a.out, "  GET /ws              - Position and status stream")
	fmt.Fprintln(a.out, "\nPress Ctrl+C to stop")
}

// parseLocation parses "x,y,floor"
func parseLocation(s string) (route.Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return route.Location{}, fmt.Errorf("location %q: want x,y,floor", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return route.Location{}, fmt.Errorf("location %q: bad x: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return route.Location{}, fmt.Errorf("location %q: bad y: %w", s, err)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return route.Location{}, fmt.Errorf("location %q: coordinates must be finite", s)
	}
	floor, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return route.Location{}, fmt.Errorf("location %q: bad floor: %w", s, err)
	}
	return route.At(x, y, floor), nil
}

// parseRouteSpec parses "x,y,floor:x,y,floor"
func parseRouteSpec(spec string) (route.Location, route.Location, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 2 {
		return route.Location{}, route.Location{}, fmt.Errorf("route %q: want x,y,floor:x,y,floor", spec)
	}
	from, err := parseLocation(parts[0])
	if err != nil {
		return route.Location{}, route.Location{}, err
	}
	to, err := parseLocation(parts[1])
	if err != nil {
		return route.Location{}, route.Location{}, err
	}
	return from, to, nil
}
