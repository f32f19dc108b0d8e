package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile   string
	FloorsDir    string
	HTTPPort     int
	Serve        bool
	Route        string
	RenderOutput string
}

// Runner is the application surface driven by the command line
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunRoute(spec string) error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("wayfind", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.FloorsDir, "floors", "", "Directory of floor plan YAML files (overrides floors.dir)")
	fs.IntVar(&opts.HTTPPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.Serve, "serve", false, "Run the positioning service (MQTT ingestion + HTTP API)")
	fs.StringVar(&opts.Route, "route", "", "Plan one route and print it as JSON: x,y,floor:x,y,floor")
	fs.StringVar(&opts.RenderOutput, "render", "", "With -route, draw the start floor and route to an .svg or .png file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "wayfind version: %s\n", Version)
	app.ApplyOptions(opts)

	if opts.Route != "" {
		return app.RunRoute(opts.Route)
	}
	if opts.RenderOutput != "" {
		return fmt.Errorf("-render requires -route")
	}
	if opts.Serve {
		return app.RunService()
	}

	fmt.Fprintln(out, "Use -serve to run the positioning service (MQTT + HTTP)")
	fmt.Fprintln(out, "Use -route=x,y,floor:x,y,floor to plan a route")
	fmt.Fprintln(out, "Use -route=... -render=route.svg to draw it")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - MQTT, anchors, access points, floors and routing")
	return nil
}
