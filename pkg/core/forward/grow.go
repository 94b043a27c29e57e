package forward

import (
	"fmt"

	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/core/growth"
	"vdyp_forward/pkg/models"
)

func (p *processor) grower() *growth.Grower {
	r := p.s.Rankings
	return growth.NewGrower(p.m, p.s.Bank, growth.PrimarySpecies{
		Index:         r.PrimaryIndex,
		GroupNumber:   r.BasalAreaGroup1,
		StratumNumber: r.BasalAreaGroup3,
	})
}

func (p *processor) dominantHeightDelta(dh float32, curve int, si, ytbh float32) (float32, error) {
	return growth.GrowDominantHeight(p.m.SiteCurveAgeMaximums.Get(curve), p.s.Bank.BecZone.Region, dh, curve, si, ytbh)
}

// grow advances the primary layer by one year, stopping after last when it
// names one of the grow steps. It returns the step that failed, if any.
func (p *processor) grow(veteranBA *float32, last ExecutionStep) (ExecutionStep, error) {
	b := p.s.Bank
	psp := p.s.Rankings.PrimaryIndex
	g := p.grower()
	debug := p.m.Debug

	dhStart := p.s.Primary.DominantHeight
	pspCurve := b.SiteCurveNumbers[psp]
	pspYabhStart := p.s.Primary.YearsAtBreastHeight

	// 1. Layer dominant height.
	dhDelta, err := p.dominantHeightDelta(dhStart, pspCurve, p.s.Primary.SiteIndex, p.s.Primary.YearsToBreastHeight)
	if err != nil {
		return StepGrow1LayerDHDelta, err
	}
	if last == StepGrow1LayerDHDelta {
		return StepNone, nil
	}

	// 2. Layer basal area.
	dqStart := b.QuadMeanDiameters[0][models.UCAll]
	baStart := b.BasalAreas[0][models.UCAll]
	tphStart := b.TreesPerHectare[0][models.UCAll]
	lhStart := b.LoreyHeights[0][models.UCAll]

	baDelta, err := g.GrowBasalArea(pspYabhStart, debug, dhStart, baStart, veteranBA, dhDelta)
	if err != nil {
		return StepGrow2LayerBADelta, err
	}
	if last == StepGrow2LayerBADelta {
		return StepNone, nil
	}

	// 3. Layer quadratic mean diameter.
	dqDelta, limited, err := g.GrowQuadMeanDiameter(pspYabhStart, debug, baStart, dhStart, dqStart, veteranBA, veteranBA, dhDelta)
	if err != nil {
		return StepGrow3LayerDQDelta, err
	}
	if limited {
		p.observer.RecordDQLimitApplied()
		if debug.Value(control.DoLimitBAWhenDQLimited9) == 1 {
			dqEnd := dqStart + dqDelta
			baEndMax := baStart * (dqEnd * dqEnd) / (dqStart * dqStart)
			baDelta = fmath.Min(baDelta, baEndMax-baStart)
		}
	}
	baChangeRate := baDelta / baStart
	if last == StepGrow3LayerDQDelta {
		return StepNone, nil
	}

	// 4. Layer results.
	pspLhStart := b.LoreyHeights[psp][models.UCAll]
	pspTphStart := b.TreesPerHectare[psp][models.UCAll]

	dhEnd := dhStart + dhDelta
	dqEnd := dqStart + dqDelta
	baEnd := baStart + baDelta
	tphEnd := calc.TreesPerHectare(baEnd, dqEnd)
	tphMultiplier := tphEnd / tphStart

	b.QuadMeanDiameters[0][models.UCAll] = dqEnd
	b.BasalAreas[0][models.UCAll] = baEnd
	b.TreesPerHectare[0][models.UCAll] = tphEnd
	if last == StepGrow4LayerBAAndDQTPHEst {
		return StepNone, nil
	}

	// 5. Species basal area, DQ and TPH. Debug setting 1 selects the model:
	// 0 full species dynamics, 1 none, 2 partial with fallback to full.
	layerGrowth := growth.LayerGrowth{
		BasalAreaStart:             baStart,
		BasalAreaDelta:             baDelta,
		QuadMeanDiameterStart:      dqStart,
		QuadMeanDiameterDelta:      dqDelta,
		TreesPerHectareStart:       tphStart,
		LoreyHeightStart:           lhStart,
		PrimaryYearsAtBreastHeight: pspYabhStart,
	}
	dynamics := debug.Value(control.SpeciesDynamics1)
	if dynamics < 0 || dynamics > 2 {
		return StepGrow5SpeciesBADQTPH, fmt.Errorf("%w: species dynamics setting %d is not supported",
			control.ErrConfiguration, dynamics)
	}

	// 5A. Partial species dynamics works from Lorey heights pre-estimated from
	// the layer's change in density.
	solved := false
	if dynamics == 2 {
		lhAtStart := make([]float32, b.NSpecies+1)
		for i := range lhAtStart {
			lhAtStart[i] = b.LoreyHeights[i][models.UCAll]
		}
		if err := g.GrowLoreyHeights(dhStart, dhEnd, pspTphStart, pspTphStart*tphMultiplier, pspLhStart); err != nil {
			return StepGrow5ALHEst, err
		}
		var weighted, total float32
		for _, i := range b.Indices() {
			weighted += b.BasalAreas[i][models.UCAll] * b.LoreyHeights[i][models.UCAll]
			total += b.BasalAreas[i][models.UCAll]
		}
		b.LoreyHeights[0][models.UCAll] = weighted / total
		if last == StepGrow5ALHEst {
			return StepNone, nil
		}

		solved, err = g.GrowUsingPartialSpeciesDynamics(layerGrowth, lhAtStart)
		for i, lh := range lhAtStart {
			b.LoreyHeights[i][models.UCAll] = lh
		}
		if err != nil {
			return StepGrow5SpeciesBADQTPH, err
		}
	} else if last == StepGrow5ALHEst {
		return StepNone, nil
	}

	if !solved {
		if dynamics == 1 || b.NSpecies == 1 {
			g.GrowUsingNoSpeciesDynamics(baChangeRate, tphMultiplier)
		} else if err := g.GrowUsingFullSpeciesDynamics(layerGrowth); err != nil {
			return StepGrow5SpeciesBADQTPH, err
		}
	}
	if last == StepGrow5SpeciesBADQTPH {
		return StepNone, nil
	}

	// 6. Layer TPH.
	var tphSum float32
	for _, i := range b.Indices() {
		if b.BasalAreas[i][models.UCAll] > 0 {
			tphSum += b.TreesPerHectare[i][models.UCAll]
		}
	}
	if tphSum < 0 {
		return StepGrow6LayerTPH2, processingErrorf("trees per hectare of polygon %s grew negative (%v)",
			p.s.Polygon.ID, tphSum)
	}
	b.TreesPerHectare[0][models.UCAll] = tphSum
	if last == StepGrow6LayerTPH2 {
		return StepNone, nil
	}

	// 7. Layer DQ.
	b.QuadMeanDiameters[0][models.UCAll] = calc.QuadMeanDiameter(b.BasalAreas[0][models.UCAll], tphSum)
	if last == StepGrow7LayerDQ2 {
		return StepNone, nil
	}

	// 8. Species Lorey heights.
	if err := g.GrowLoreyHeights(dhStart, dhEnd, pspTphStart, b.TreesPerHectare[psp][models.UCAll], pspLhStart); err != nil {
		return StepGrow8SpeciesLH, err
	}
	if last == StepGrow8SpeciesLH {
		return StepNone, nil
	}

	// 9. Species percentages.
	calculateCoverages(b)
	if last == StepGrow9SpeciesPct {
		return StepNone, nil
	}

	// 10. Running values. Other species' dominant heights follow the
	// primary species' site curve.
	p.s.Primary = p.s.Primary.afterGrowth(dhEnd)
	for _, i := range b.Indices() {
		if i == psp {
			b.AgeTotals[i] = p.s.Primary.TotalAge
			b.DominantHeights[i] = dhEnd
			b.SiteIndices[i] = p.s.Primary.SiteIndex
			b.YearsAtBreastHeight[i] = p.s.Primary.YearsAtBreastHeight
			continue
		}
		si, dh, ytbh, yabh := b.SiteIndices[i], b.DominantHeights[i], b.YearsToBreastHeight[i], b.YearsAtBreastHeight[i]
		if fmath.IsNaN(si) || fmath.IsNaN(dh) || fmath.IsNaN(ytbh) || fmath.IsNaN(yabh) {
			b.DominantHeights[i] = fmath.NaN()
			continue
		}
		delta, err := p.dominantHeightDelta(dh, pspCurve, si, ytbh)
		if err != nil {
			return StepGrow10PrimarySpeciesDetails, err
		}
		b.DominantHeights[i] += delta
	}
	if last == StepGrow10PrimarySpeciesDetails {
		return StepNone, nil
	}

	// 11. Compatibility variables.
	if p.s.CompatVars != nil {
		if err := p.s.CompatVars.UpdateAfterGrowth(p.m.CompVarAdjustments); err != nil {
			return StepGrow11CompatibilityVars, err
		}
	}
	if last == StepGrow11CompatibilityVars {
		return StepNone, nil
	}

	// 12. Utilization classes 7.5cm and above.
	if err := p.computeUtilizationComponents(); err != nil {
		return StepGrow12SpeciesUC, err
	}
	if last == StepGrow12SpeciesUC {
		return StepNone, nil
	}

	// 13. Small component.
	if err := p.computeSmallComponents(); err != nil {
		return StepGrow13SpeciesUCSmall, err
	}
	return StepNone, nil
}
