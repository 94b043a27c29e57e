// Package pipeline runs the forward engine over a batch of polygons and
// writes one output record per polygon.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/forward"
	"vdyp_forward/pkg/core/logging"
	"vdyp_forward/pkg/models"
)

// Config tunes a Runner.
type Config struct {
	// Workers is the number of polygons processed concurrently; 0 uses
	// GOMAXPROCS.
	Workers int
	// StopOnFailure ends the run at the first failed polygon instead of
	// recording it and carrying on.
	StopOnFailure bool
	// Observer receives engine telemetry. Nil records nothing.
	Observer forward.Observer
}

// Runner manages the flow of a batch: read polygons -> project each on a
// worker -> write records in input order -> summarise.
type Runner struct {
	engine *forward.Engine
	log    *logrus.Entry
	cfg    Config
	runID  uuid.UUID
}

// NewRunner creates a runner with a fresh run id. Every log entry of the run,
// the engine's included, carries the id.
func NewRunner(m *control.Map, logger logrus.FieldLogger, cfg Config) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	id := uuid.New()
	log := logger.WithField("run", id.String())

	engine := forward.NewEngine(m, log)
	engine.SetObserver(cfg.Observer)
	return &Runner{engine: engine, log: log, cfg: cfg, runID: id}
}

// RunID identifies this runner's output.
func (r *Runner) RunID() string { return r.runID.String() }

// outcome is the processed form of one polygon: exactly one of result and
// failure is set.
type outcome struct {
	result  *PolygonResult
	failure *PolygonFailure
	err     error
}

func (o outcome) record(runID string) Record {
	if o.failure != nil {
		return Record{RunID: runID, Status: StatusFailed, Polygon: o.failure.Polygon, Failure: o.failure}
	}
	return Record{RunID: runID, Status: StatusProjected, Polygon: o.result.Polygon, Result: o.result}
}

// Run projects every polygon and writes a record per polygon to w in input
// order. Polygon failures are written as failure records; the returned error
// is reserved for write failures, cancellation and, with StopOnFailure, the
// first failed polygon.
func (r *Runner) Run(ctx context.Context, polygons []*models.Polygon, w io.Writer) (*Summary, error) {
	start := time.Now()
	r.log.WithFields(logrus.Fields{
		"polygons": len(polygons),
		"workers":  r.cfg.Workers,
	}).Info("starting run")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Fan out. Each polygon owns a one-slot channel so the writer can
	// consume outcomes in input order while workers finish in any order.
	slots := make([]chan outcome, len(polygons))
	for i := range slots {
		slots[i] = make(chan outcome, 1)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	done := make(chan error, 1)
	go func() {
		for i, polygon := range polygons {
			g.Go(func() error {
				o := r.project(gctx, polygon)
				slots[i] <- o
				if o.failure != nil && r.cfg.StopOnFailure {
					return o.err
				}
				return nil
			})
		}
		done <- g.Wait()
	}()

	// 2. Write in order, stopping at the first write error or interruption.
	out := newRecordWriter(w)
	summary := newSummary(r.RunID())
	var runErr error
	for _, slot := range slots {
		o := <-slot
		if o.failure != nil && errors.Is(o.err, context.Canceled) {
			break
		}
		if err := out.write(o.record(r.RunID())); err != nil {
			runErr = fmt.Errorf("writing output: %w", err)
			cancel()
			break
		}
		summary.add(o)
	}

	// 3. Drain the workers.
	if err := <-done; runErr == nil {
		runErr = err
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	summary.finish(time.Since(start))

	entry := r.log.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"elapsed":   summary.Elapsed.String(),
	})
	if runErr != nil {
		entry.WithError(runErr).Error("run stopped")
		return summary, runErr
	}
	entry.Info("run complete")
	return summary, nil
}

// project runs one polygon, collecting a snapshot per year.
func (r *Runner) project(ctx context.Context, polygon *models.Polygon) outcome {
	var years []YearOutput
	_, err := r.engine.Process(ctx, polygon, forward.StepAll, func(s forward.YearSnapshot) {
		years = append(years, yearOutput(s))
	})
	if err != nil {
		f := &PolygonFailure{Polygon: polygon.ID, Error: err.Error()}
		var se *forward.StepError
		if errors.As(err, &se) {
			f.Step = se.Step.String()
		}
		return outcome{failure: f, err: err}
	}

	target, err := r.engine.TargetYear(polygon)
	if err != nil {
		return outcome{failure: &PolygonFailure{Polygon: polygon.ID, Error: err.Error()}, err: err}
	}
	return outcome{result: &PolygonResult{Polygon: polygon.ID, TargetYear: target, Years: years}}
}
