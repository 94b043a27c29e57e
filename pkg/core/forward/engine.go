// Package forward projects the primary layer of a polygon forward in time,
// one year per iteration, through a fixed sequence of execution steps.
package forward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"vdyp_forward/pkg/core/bank"
	"vdyp_forward/pkg/core/compat"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/logging"
	"vdyp_forward/pkg/core/metrics"
	"vdyp_forward/pkg/models"
)

// MinimumPolygonYear is the earliest inventory year accepted.
const MinimumPolygonYear = 1900

// Observer receives projection telemetry. *metrics.Collector implements it.
type Observer interface {
	RecordPolygon(outcome string, d time.Duration)
	RecordYearGrown()
	RecordStepError(step string)
	RecordDQLimitApplied()
}

// YearObserver receives the layer at the polygon year and at the end of
// every grown year.
type YearObserver func(YearSnapshot)

// Engine runs the forward algorithm. It holds only read-only control data
// and may be shared by concurrent workers; every call owns its own bank.
type Engine struct {
	m        *control.Map
	log      logrus.FieldLogger
	observer Observer
}

// NewEngine creates an engine over a validated control map. A nil logger
// discards output.
func NewEngine(m *control.Map, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{m: m, log: logger, observer: metrics.NoOpCollector{}}
}

// SetObserver installs a telemetry observer.
func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		o = metrics.NoOpCollector{}
	}
	e.observer = o
}

// ProcessPolygon grows the polygon's primary layer to its target year.
func (e *Engine) ProcessPolygon(ctx context.Context, polygon *models.Polygon) (*State, error) {
	return e.Process(ctx, polygon, StepAll, nil)
}

// ProcessPolygonTo runs every step up to and including last.
func (e *Engine) ProcessPolygonTo(ctx context.Context, polygon *models.Polygon, last ExecutionStep) (*State, error) {
	return e.Process(ctx, polygon, last, nil)
}

// ProcessPolygonBefore runs every step strictly before stop.
func (e *Engine) ProcessPolygonBefore(ctx context.Context, polygon *models.Polygon, stop ExecutionStep) (*State, error) {
	return e.Process(ctx, polygon, stop.Predecessor(), nil)
}

// TargetYear resolves the year a polygon is grown to from control
// variable 1: -1 takes the polygon's own target year, values up to 400 are
// a number of years to grow, and anything larger is an absolute year.
func (e *Engine) TargetYear(polygon *models.Polygon) (int, error) {
	v := e.m.Controls.Value(control.GrowTarget1)
	switch {
	case v == -1:
		if polygon.TargetYear == nil {
			return 0, processingErrorf("polygon %s has no target year and control variable 1 is -1", polygon.ID)
		}
		return *polygon.TargetYear, nil
	case v <= 400:
		return polygon.ID.Year + v, nil
	}
	return v, nil
}

// processor carries one polygon through the steps.
type processor struct {
	m        *control.Map
	log      *logrus.Entry
	observer Observer
	s        *State
}

// Process runs the steps up to and including last, handing each year's
// snapshot to onYear when it is not nil. Failures are wrapped in a
// *StepError naming the step.
func (e *Engine) Process(ctx context.Context, polygon *models.Polygon, last ExecutionStep,
	onYear YearObserver) (*State, error) {
	start := time.Now()
	log := logging.ForPolygon(e.log, polygon.ID)

	s, err := e.process(ctx, polygon, last, onYear, log)
	if err != nil {
		var se *StepError
		if errors.As(err, &se) {
			e.observer.RecordStepError(se.Step.String())
		}
		e.observer.RecordPolygon(metrics.OutcomeFailed, time.Since(start))
		log.WithError(err).Error("polygon failed")
		return s, fmt.Errorf("polygon %s: %w", polygon.ID, err)
	}
	e.observer.RecordPolygon(metrics.OutcomeProjected, time.Since(start))
	return s, nil
}

func (e *Engine) process(ctx context.Context, polygon *models.Polygon, last ExecutionStep,
	onYear YearObserver, log *logrus.Entry) (*State, error) {
	log.Info("starting processing of the primary layer")

	if polygon.ID.Year < MinimumPolygonYear {
		return nil, &StepError{StepNone, processingErrorf("polygon %s year %d is before %d",
			polygon.ID.Name, polygon.ID.Year, MinimumPolygonYear)}
	}
	layer := polygon.PrimaryLayer()
	if layer == nil {
		return nil, &StepError{StepNone, processingErrorf("polygon %s has no primary layer", polygon.ID)}
	}
	bec, err := e.m.BecZone(polygon.BecZone)
	if err != nil {
		return nil, &StepError{StepNone, err}
	}
	targetYear, err := e.TargetYear(polygon)
	if err != nil {
		return nil, &StepError{StepNone, err}
	}

	p := &processor{
		m:        e.m,
		log:      log,
		observer: e.observer,
		s: &State{
			Polygon: polygon,
			Bank:    bank.New(layer, bec, bank.AboveMinimumBasalArea),
			Year:    polygon.ID.Year,
		},
	}

	prelim := []struct {
		step ExecutionStep
		run  func() error
	}{
		{StepCheckForWork, p.checkForWork},
		{StepCalculateMissingSiteCurves, p.calculateMissingSiteCurves},
		{StepCalculateCoverages, func() error { calculateCoverages(p.s.Bank); return nil }},
		{StepDeterminePolygonRankings, p.determinePolygonRankings},
		{StepEstimateMissingSiteIndices, p.estimateMissingSiteIndices},
		{StepEstimateMissingYearsToBreastHeightValues, func() error { p.estimateMissingYearsToBreastHeightValues(); return nil }},
		{StepCalculateDominantHeightAgeSiteIndex, p.calculateDominantHeightAgeSiteIndex},
		{StepSetCompatibilityVariables, p.setCompatibilityVariables},
	}
	for _, st := range prelim {
		if last.Lt(st.step) {
			return p.s, nil
		}
		if err := ctx.Err(); err != nil {
			return p.s, err
		}
		log.WithField("step", st.step).Debug("running step")
		if err := st.run(); err != nil {
			return p.s, &StepError{st.step, err}
		}
		p.s.LastStep = st.step
	}

	if last.Lt(StepGrow1LayerDHDelta) {
		return p.s, nil
	}
	return p.s, p.growToTarget(ctx, targetYear, last, onYear)
}

func (p *processor) setCompatibilityVariables() error {
	groups, err := compat.ResolveEquationGroups(p.m, p.s.Bank)
	if err != nil {
		return err
	}
	p.s.EquationGroups = groups

	calculator := compat.NewCalculator(p.m, p.s.Bank, groups, p.s.Rankings.PrimaryIndex, p.s.Primary.YearsAtBreastHeight)
	cv, err := calculator.Calculate()
	if err != nil {
		return err
	}
	p.s.CompatVars = cv
	return nil
}

// growToTarget grows one year at a time until the target year. When last
// names a single grow step, only the first year is grown, up to that step.
func (p *processor) growToTarget(ctx context.Context, targetYear int, last ExecutionStep, onYear YearObserver) error {
	var veteranBA *float32
	if vet := p.s.Polygon.VeteranLayer(); vet != nil && vet.Utilization != nil {
		ba := vet.Utilization.BasalArea[models.UCAll]
		veteranBA = &ba
	}

	partial := last.Lt(StepGrow)
	if onYear != nil && !partial {
		onYear(p.s.snapshot())
	}

	recalcBeforeOutput := p.m.Debug.Value(control.SpeciesDynamics1) != 1 && p.s.Bank.NSpecies > 1
	recalcAfterOutput := !recalcBeforeOutput && p.m.Controls.Value(control.UpdateDuringGrowth6) >= 1

	for year := p.s.Year + 1; year <= targetYear; year++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.log.WithField("year", year).Info("growing primary layer")

		if step, err := p.grow(veteranBA, last); err != nil {
			return &StepError{step, err}
		}
		if partial {
			p.s.LastStep = last
			return nil
		}
		p.s.Year = year
		p.s.LastStep = StepGrow13SpeciesUCSmall
		p.observer.RecordYearGrown()

		if recalcBeforeOutput {
			if err := p.refreshContext(); err != nil {
				return &StepError{StepGrow, err}
			}
		}
		if onYear != nil {
			onYear(p.s.snapshot())
		}
		if recalcAfterOutput {
			if err := p.refreshContext(); err != nil {
				return &StepError{StepGrow, err}
			}
		}
	}
	p.s.LastStep = last
	return nil
}

// refreshContext recomputes the coverages and primary species details from
// the grown bank.
func (p *processor) refreshContext() error {
	calculateCoverages(p.s.Bank)
	return p.calculateDominantHeightAgeSiteIndex()
}
