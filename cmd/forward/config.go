package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
)

// config is the run configuration: VDYP_* environment variables, then
// command-line flags over them.
type config struct {
	Mode          string
	ControlFile   string
	PolygonFile   string
	OutputFile    string
	Workers       int
	StopOnFailure bool
	LogLevel      string
	LogFormat     string
	MetricsAddr   string
}

func parseConfig(args []string, getenv func(string) string, stderr io.Writer) (config, error) {
	workers := 0
	if v := getenv("VDYP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return config{}, fmt.Errorf("VDYP_WORKERS: %w", err)
		}
		workers = n
	}
	or := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := config{}
	fs := flag.NewFlagSet("forward", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Mode, "mode", "project", "Mode: check or project")
	fs.StringVar(&cfg.ControlFile, "control", getenv("VDYP_CONTROL_FILE"), "YAML control map")
	fs.StringVar(&cfg.PolygonFile, "polygons", getenv("VDYP_POLYGON_FILE"), "HJSON polygon input")
	fs.StringVar(&cfg.OutputFile, "output", getenv("VDYP_OUTPUT_FILE"), "JSON-lines output (default stdout)")
	fs.IntVar(&cfg.Workers, "workers", workers, "Concurrent polygons (0 = GOMAXPROCS)")
	fs.BoolVar(&cfg.StopOnFailure, "stop-on-failure", false, "Stop at the first failed polygon")
	fs.StringVar(&cfg.LogLevel, "log-level", or("VDYP_LOG_LEVEL", "info"), "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", or("VDYP_LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("VDYP_METRICS_ADDR"), "Serve Prometheus metrics on this address")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if cfg.Mode != "check" && cfg.Mode != "project" {
		return config{}, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.ControlFile == "" {
		return config{}, fmt.Errorf("no control file: set VDYP_CONTROL_FILE or -control")
	}
	if cfg.Mode == "project" && cfg.PolygonFile == "" {
		return config{}, fmt.Errorf("no polygon file: set VDYP_POLYGON_FILE or -polygons")
	}

	// Paths taken from the environment are relative to the control file.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	base := filepath.Dir(cfg.ControlFile)
	resolve := func(path string, flagName string) string {
		if path == "" || set[flagName] || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(base, path)
	}
	cfg.PolygonFile = resolve(cfg.PolygonFile, "polygons")
	cfg.OutputFile = resolve(cfg.OutputFile, "output")
	return cfg, nil
}
