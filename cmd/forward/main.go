package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/logging"
	"vdyp_forward/pkg/core/metrics"
	"vdyp_forward/pkg/core/pipeline"
)

func main() {
	// A missing .env is normal; the environment may already be set.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "[forward] loaded .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "[forward] FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	cfg, err := parseConfig(args, getenv, stderr)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger.SetOutput(stderr)

	// 1. Control map
	m, err := control.LoadFile(cfg.ControlFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "[forward] control map %s loaded\n", cfg.ControlFile)

	if cfg.Mode == "check" {
		printTables(stdout, m.Summary())
		return nil
	}

	// 2. Metrics
	collector := metrics.NewCollector("")
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, collector, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// 3. Polygons
	polygons, err := pipeline.ReadPolygonsFile(cfg.PolygonFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "[forward] %d polygons read from %s\n", len(polygons), cfg.PolygonFile)

	out := stdout
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}

	// 4. Run
	runner := pipeline.NewRunner(m, logger, pipeline.Config{
		Workers:       cfg.Workers,
		StopOnFailure: cfg.StopOnFailure,
		Observer:      collector,
	})
	summary, err := runner.Run(ctx, polygons, out)
	if summary != nil {
		fmt.Fprintf(stderr, "[forward] run %s: %d projected, %d failed, %d years grown in %v\n",
			summary.RunID, summary.Processed, summary.Failed, summary.YearsGrown, summary.Elapsed.Round(time.Millisecond))
		if summary.Processed > 0 {
			fmt.Fprintf(stderr, "[forward] final basal area: total %.2f, mean %.2f, max %.2f m2/ha\n",
				summary.TotalFinalBasalArea, summary.MeanFinalBasalArea, summary.MaxFinalBasalArea)
		}
		for _, f := range summary.FailedPolygons {
			fmt.Fprintf(stderr, "[forward]   failed %s at %s: %s\n", f.Polygon, f.Step, f.Error)
		}
	}
	return err
}

func serveMetrics(addr string, c *metrics.Collector, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return srv
}

func printTables(w io.Writer, summary map[string]int) {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "Control map OK")
	for _, name := range names {
		fmt.Fprintf(w, "  %-30s %6d\n", name, summary[name])
	}
}
