package growth

import (
	"fmt"

	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/estimate"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// LayerGrowth is the layer's state at the start of the year and its growth
// over the year, as produced by the layer-level equations.
type LayerGrowth struct {
	BasalAreaStart        float32
	BasalAreaDelta        float32
	QuadMeanDiameterStart float32
	QuadMeanDiameterDelta float32
	TreesPerHectareStart  float32
	LoreyHeightStart      float32
	// PrimaryYearsAtBreastHeight is the primary species' age at the start of
	// the year.
	PrimaryYearsAtBreastHeight float32
}

// MinimumSpeciesQuadMeanDiameter is the floor on a species' grown DQ.
const MinimumSpeciesQuadMeanDiameter = 7.51

// =============================================================================
// No species dynamics
// =============================================================================

// GrowUsingNoSpeciesDynamics grows every species' basal area at the layer
// rate and scales its trees per hectare by the layer multiplier. Species DQ
// is floored, in which case trees per hectare is recomputed.
func (g *Grower) GrowUsingNoSpeciesDynamics(baChangeRate, tphMultiplier float32) {
	for _, i := range g.b.Indices() {
		baStart := g.b.BasalAreas[i][models.UCAll]
		if baStart <= 0 {
			continue
		}
		baEnd := baStart * (1 + baChangeRate)
		tphEnd := g.b.TreesPerHectare[i][models.UCAll] * tphMultiplier
		dqEnd := calc.QuadMeanDiameter(baEnd, tphEnd)
		if dqEnd < MinimumSpeciesQuadMeanDiameter {
			dqEnd = MinimumSpeciesQuadMeanDiameter
			tphEnd = calc.TreesPerHectare(baEnd, dqEnd)
		}
		g.b.BasalAreas[i][models.UCAll] = baEnd
		g.b.TreesPerHectare[i][models.UCAll] = tphEnd
		g.b.QuadMeanDiameters[i][models.UCAll] = dqEnd
	}
}

// =============================================================================
// Partial species dynamics
// =============================================================================

// partialStage bounds how far a stage may move each species' log DQ ratio.
type partialStage struct {
	// cjMax is the normal maximum change toward zero.
	cjMax        float32
	canCrossZero bool
	// Allowed wrong-way change for the species closest to zero, and for the
	// others.
	wrongWayClosest float32
	wrongWayOther   float32
}

// Stages 5-9 repeat 0-4 with the looser DQ bounds.
var partialStages = [10]partialStage{
	{0.01, false, 0, 0},
	{0.015, true, 0.005, 0},
	{0.03, true, 0.02, 0.01},
	{0.045, true, 0.03, 0.02},
	{0.06, true, 0.045, 0.035},
	{0.01, false, 0, 0},
	{0.015, true, 0.005, 0},
	{0.03, true, 0.02, 0.01},
	{0.045, true, 0.03, 0.02},
	{0.06, true, 0.045, 0.035},
}

// GrowUsingPartialSpeciesDynamics (GRSPpart) grows each species' basal area
// at the layer rate and distributes the layer's trees per hectare among the
// species so that each keeps its DQ relationship to the layer.
//
// lhAtStart holds the Lorey heights by bank slot at the start of the year;
// the bank's Lorey heights must already hold the end-of-year estimates. It
// reports false, leaving the bank untouched, when the layer did not change or
// no stage brackets the layer's trees per hectare.
func (g *Grower) GrowUsingPartialSpeciesDynamics(l LayerGrowth, lhAtStart []float32) (bool, error) {
	b := g.b
	if l.QuadMeanDiameterDelta == 0 || l.BasalAreaDelta == 0 || b.NSpecies == 1 {
		return false, nil
	}

	n := b.NSpecies + 1
	region := g.region()
	indices := b.Indices()

	baNew := make([]float32, n)
	dqNew := make([]float32, n)
	tphNew := make([]float32, n)
	baNew[0] = l.BasalAreaStart + l.BasalAreaDelta
	dqNew[0] = l.QuadMeanDiameterStart + l.QuadMeanDiameterDelta
	tphNew[0] = calc.TreesPerHectare(baNew[0], dqNew[0])
	for _, i := range indices {
		baNew[i] = b.BasalAreas[i][models.UCAll] * baNew[0] / l.BasalAreaStart
	}

	fractions := make(map[string]float32, b.NSpecies)
	for _, i := range indices {
		fractions[b.SpeciesNames[i]] = b.PercentForestedLand[i] / 100
	}

	// DQ estimates for each species at the start and end of the year.
	dqs1 := make([]float32, n)
	dqs2 := make([]float32, n)
	for _, i := range indices {
		genus := b.SpeciesNames[i]
		var err error
		dqs1[i], err = estimate.QuadMeanDiameterForSpecies(g.m, genus, lhAtStart[i], fractions, region,
			l.QuadMeanDiameterStart, l.BasalAreaStart, l.TreesPerHectareStart, lhAtStart[0])
		if err != nil {
			return false, err
		}
		dqs2[i], err = estimate.QuadMeanDiameterForSpecies(g.m, genus, b.LoreyHeights[i][models.UCAll], fractions,
			region, dqNew[0], baNew[0], tphNew[0], b.LoreyHeights[0][models.UCAll])
		if err != nil {
			return false, err
		}
	}

	dqLower := make([]float32, n)
	dqUpper := make([]float32, n)
	tphLower := make([]float32, n)
	tphUpper := make([]float32, n)
	tryDQ := make([]float32, n)
	tryTPH := make([]float32, n)
	rs1 := make([]float32, n)

	var tphLow, tphHigh float32
	exact, solved := false, false

	for stage, params := range partialStages {
		if stage == 0 || stage == 5 {
			if err := g.partialDiameterBounds(l, dqNew[0], stage < 5, dqLower, dqUpper); err != nil {
				return false, err
			}
		}

		// With no adjustment, find the resulting trees per hectare.
		var tphSum float32
		for _, i := range indices {
			if b.BasalAreas[i][models.UCAll] <= 0 {
				continue
			}
			spDQ := b.QuadMeanDiameters[i][models.UCAll]
			tryDQ[i] = 7.5 + (dqs2[i]-7.5)*((spDQ-7.5)/(dqs1[i]-7.5))
			tryDQ[i] = fmath.Clamp(tryDQ[i], dqLower[i], dqUpper[i])
			rs1[i] = fmath.Log((spDQ - 7.5) / (dqs1[i] - 7.5))
			tryTPH[i] = calc.TreesPerHectare(baNew[i], tryDQ[i])
			tphSum += tryTPH[i]
		}
		if tphSum == tphNew[0] {
			exact, solved = true, true
			break
		}

		// The species whose ratio is closest to zero on the wrong side may
		// move the furthest the wrong way.
		biggerD := tphSum > tphNew[0]
		wrongSigned := 0
		amountWrong := float32(50000)
		for _, i := range indices {
			if b.BasalAreas[i][models.UCAll] <= 0 {
				continue
			}
			switch {
			case biggerD && rs1[i] > 0 && rs1[i] < amountWrong:
				wrongSigned, amountWrong = i, rs1[i]
			case !biggerD && rs1[i] < 0 && -rs1[i] < amountWrong:
				wrongSigned, amountWrong = i, -rs1[i]
			}
		}

		tphLow, tphHigh = 0, 0
		for _, i := range indices {
			if b.BasalAreas[i][models.UCAll] <= 0 {
				continue
			}
			wrongWay := params.wrongWayOther
			if i == wrongSigned {
				wrongWay = params.wrongWayClosest
			}

			var cjLow, cjHigh float32
			switch {
			case biggerD && rs1[i] <= 0:
				cjLow, cjHigh = -wrongWay, params.cjMax
				if !params.canCrossZero {
					cjHigh = fmath.Min(cjHigh, -rs1[i])
				}
			case biggerD:
				cjLow, cjHigh = 0, wrongWay
			case rs1[i] <= 0:
				cjLow, cjHigh = -wrongWay, 0
			default:
				cjLow = -params.cjMax
				if !params.canCrossZero {
					cjLow = fmath.Max(-params.cjMax, -rs1[i])
				}
			}

			dqLow := fmath.Clamp(7.5+(dqs2[i]-7.5)*fmath.Exp(rs1[i]+cjLow), dqLower[i], dqUpper[i])
			dqHigh := fmath.Clamp(7.5+(dqs2[i]-7.5)*fmath.Exp(rs1[i]+cjHigh), dqLower[i], dqUpper[i])
			tphUpper[i] = calc.TreesPerHectare(baNew[i], dqLow)
			tphLower[i] = calc.TreesPerHectare(baNew[i], dqHigh)
			tphLow += tphLower[i]
			tphHigh += tphUpper[i]
		}
		if tphNew[0] >= tphLow && tphNew[0] <= tphHigh {
			solved = true
			break
		}
	}
	if !solved {
		return false, nil
	}

	if exact {
		for _, i := range indices {
			if b.BasalAreas[i][models.UCAll] <= 0 {
				tphNew[i], dqNew[i] = 0, b.QuadMeanDiameters[i][models.UCAll]
				continue
			}
			tphNew[i], dqNew[i] = tryTPH[i], tryDQ[i]
		}
	} else {
		if tphLow > tphHigh {
			return false, fmt.Errorf("%w: trees per hectare lower bound %v is above the upper bound %v",
				ErrInvalidStand, tphLow, tphHigh)
		}
		var k float32
		if tphLow != tphHigh {
			k = (tphNew[0] - tphLow) / (tphHigh - tphLow)
		}
		for _, i := range indices {
			if b.BasalAreas[i][models.UCAll] <= 0 {
				baNew[i], tphNew[i], dqNew[i] = 0, 0, b.QuadMeanDiameters[i][models.UCAll]
				continue
			}
			tphNew[i] = tphLower[i] + k*(tphUpper[i]-tphLower[i])
			dqNew[i] = calc.QuadMeanDiameter(baNew[i], tphNew[i])
		}
	}

	for _, i := range indices {
		b.BasalAreas[i][models.UCAll] = baNew[i]
		b.QuadMeanDiameters[i][models.UCAll] = dqNew[i]
		b.TreesPerHectare[i][models.UCAll] = tphNew[i]
	}
	return true, nil
}

// partialDiameterBounds sets each species' DQ bounds for a run of stages.
// The restrictive bounds also hold the species to its DQ/Lorey height limits.
func (g *Grower) partialDiameterBounds(l LayerGrowth, dqEnd float32, restrictive bool, lower, upper []float32) error {
	b := g.b
	for _, i := range b.Indices() {
		lower[i] = MinimumSpeciesQuadMeanDiameter
		upper[i] = 100
		if b.TreesPerHectare[i][models.UCAll] <= 0 {
			continue
		}

		limits, err := estimate.SizeLimits(g.m, b.SpeciesNames[i], g.region())
		if err != nil {
			return err
		}
		spDQ := b.QuadMeanDiameters[i][models.UCAll]

		upper[i] = fmath.Max(fmath.Max(dqEnd, l.QuadMeanDiameterStart), fmath.Max(limits.MaxQuadMeanDiameter, spDQ)) + 10

		// Species DQ may not decline unless the layer's basal area per tree
		// changes by less than 1%.
		netChange := dqEnd / l.QuadMeanDiameterStart
		rateDQ2 := netChange*netChange - 1
		if rateDQ2 > 0.01 {
			lower[i] = spDQ
		} else if dq2Min := spDQ * spDQ * (1 + rateDQ2 - 0.01); dq2Min > 0 {
			lower[i] = fmath.Max(lower[i], fmath.Min(fmath.Sqrt(dq2Min), spDQ))
		}

		if !restrictive {
			continue
		}
		lh := b.LoreyHeights[i][models.UCAll]
		trialMax := fmath.Max(spDQ, limits.MaxQuadMeanDiameter)
		if spDQ < 1.001*limits.MaxDQLoreyHeightRatio*lh {
			trialMax = fmath.Min(trialMax, limits.MaxDQLoreyHeightRatio*lh)
		}
		upper[i] = fmath.Min(upper[i], trialMax)

		if spDQMin := limits.MinDQLoreyHeightRatio * lh; spDQ > 0.999*spDQMin {
			lower[i] = fmath.Max(lower[i], spDQMin)
		}
	}
	return nil
}

// =============================================================================
// Full species dynamics
// =============================================================================

const (
	fullDynamicsMaxPasses = 15
	speciesDQBase         = 7.45
)

// GrowUsingFullSpeciesDynamics grows each species' basal area and DQ with its
// own share models (EMP148-EMP151), then reconciles the species with the
// layer totals: basal areas are shifted by a common fraction of their start
// values, and DQs by a common offset chosen so that the layer DQ comes out
// at its grown value.
func (g *Grower) GrowUsingFullSpeciesDynamics(l LayerGrowth) error {
	b := g.b
	n := b.NSpecies + 1
	psp := g.primary.Index
	indices := b.Indices()
	pspLhStart := b.LoreyHeights[psp][models.UCAll]

	// Basal area.
	baDelta := make([]float32, n)
	var sumBADelta float32
	for _, i := range indices {
		var err error
		spBA := b.BasalAreas[i][models.UCAll]
		if i == psp {
			baDelta[i], err = g.primarySpeciesBasalAreaDelta(l, spBA, pspLhStart)
		} else {
			baDelta[i], err = g.nonPrimarySpeciesBasalAreaDelta(b.SpeciesNames[i], l, pspLhStart, spBA,
				b.QuadMeanDiameters[i][models.UCAll], b.LoreyHeights[i][models.UCAll])
		}
		if err != nil {
			return err
		}
		sumBADelta += baDelta[i]
	}

	baEnd := make([]float32, n)
	skip := make([]bool, n)
	baBase := l.BasalAreaStart
	for pass := 0; ; pass++ {
		f := (l.BasalAreaDelta - sumBADelta) / baBase
		skipped := 0
		sumBADelta = 0
		for _, i := range indices {
			if skip[i] {
				continue
			}
			spBA := b.BasalAreas[i][models.UCAll]
			baEnd[i] = spBA + baDelta[i] + f*spBA
			if baEnd[i] < 0 {
				baEnd[i] = 0
				skip[i] = true
				skipped++
				sumBADelta -= spBA
				baBase -= spBA
			} else {
				sumBADelta += baEnd[i] - spBA
			}
		}
		if skipped == 0 {
			break
		}
		if pass >= 5 || baBase <= 0 {
			return fmt.Errorf("%w: species basal areas did not converge on the layer growth %v", ErrInvalidStand,
				l.BasalAreaDelta)
		}
	}

	// Quadratic mean diameter. The per-species deltas and limits do not
	// depend on the offset, so they are computed once.
	dqDelta := make([]float32, n)
	dqMin := make([]float32, n)
	dqMax := make([]float32, n)
	for _, i := range indices {
		spDQ := b.QuadMeanDiameters[i][models.UCAll]
		spLH := b.LoreyHeights[i][models.UCAll]
		c, err := g.speciesDQGrowthCoefficients(i)
		if err != nil {
			return err
		}
		dqDelta[i] = speciesQuadMeanDiameterDelta(c, l, spDQ, spLH)

		limits, err := estimate.SizeLimits(g.m, b.SpeciesNames[i], g.region())
		if err != nil {
			return err
		}
		dqMax[i] = fmath.Min(limits.MaxQuadMeanDiameter, limits.MaxDQLoreyHeightRatio*spLH)
		dqMin[i] = fmath.Max(7.6, limits.MinDQLoreyHeightRatio*spLH)
	}

	dqWant := calc.QuadMeanDiameter(l.BasalAreaStart, l.TreesPerHectareStart) + l.QuadMeanDiameterDelta
	dqEnd := make([]float32, n)
	tphEnd := make([]float32, n)
	var f float32
	bestScore, bestF := float32(1000), float32(0)
	for pass := 0; ; {
		skipped := 0
		var baSkipped float32
		for _, i := range indices {
			spDQ := b.QuadMeanDiameters[i][models.UCAll]
			delta := dqDelta[i] + f
			if spDQ+delta > dqMax[i] {
				delta = fmath.Min(0, dqMax[i]-spDQ)
				skipped++
				baSkipped += b.BasalAreas[i][models.UCAll]
			}
			if spDQ+delta < dqMin[i] {
				delta = dqMin[i] - spDQ
				skipped++
				baSkipped += b.BasalAreas[i][models.UCAll]
			}
			dqEnd[i] = spDQ + delta
		}

		var tph float32
		for _, i := range indices {
			tphEnd[i] = 0
			if baEnd[i] > 0 {
				tphEnd[i] = calc.TreesPerHectare(baEnd[i], dqEnd[i])
			}
			tph += tphEnd[i]
		}
		if pass == fullDynamicsMaxPasses || (skipped == b.NSpecies && pass > 2) {
			break
		}

		miss := dqWant - calc.QuadMeanDiameter(l.BasalAreaStart+l.BasalAreaDelta, tph)
		score := fmath.Abs(miss)
		if score < bestScore {
			bestScore, bestF = score, f
		}
		if score < 0.001 {
			break
		}

		// Species pinned at a limit do not respond to the offset, so the
		// rest must move further.
		baSkipped = fmath.Min(baSkipped, 0.7*l.BasalAreaStart)
		f += miss * l.BasalAreaStart / (l.BasalAreaStart - baSkipped)

		pass++
		if pass == fullDynamicsMaxPasses {
			f = bestF
		}
	}

	for _, i := range indices {
		b.BasalAreas[i][models.UCAll] = baEnd[i]
		b.TreesPerHectare[i][models.UCAll] = tphEnd[i]
		if baEnd[i] > 0 {
			b.QuadMeanDiameters[i][models.UCAll] = calc.QuadMeanDiameter(baEnd[i], tphEnd[i])
		}
	}
	return nil
}

// primarySpeciesBasalAreaDelta (EMP148) is the primary species' basal area
// growth from the change in its share of the layer. A species holding all
// but 0.1% of the layer takes the whole layer growth.
func (g *Grower) primarySpeciesBasalAreaDelta(l LayerGrowth, pspBA, pspLH float32) (float32, error) {
	share := pspBA / l.BasalAreaStart
	if share > 0.999 {
		return l.BasalAreaDelta, nil
	}

	stratum := g.primary.StratumNumber
	sm, err := g.m.PrimarySpeciesBasalAreaGrowth.Get(stratum)
	if err != nil {
		return 0, err
	}
	a0, a1, a2 := sm.Coefficients.At(0), sm.Coefficients.At(1), sm.Coefficients.At(2)

	logShareStart := fmath.Log(share / (1 - share))
	var logShareDelta float32
	switch sm.Model {
	case 3:
		logShareDelta = a0 + a1*l.LoreyHeightStart
	case 8:
		logShareDelta = a0 + a1*l.PrimaryYearsAtBreastHeight + a2*pspLH/l.LoreyHeightStart
	case 9:
		logShareDelta = a0 + a1*logShareStart + a2*l.BasalAreaStart
	default:
		return 0, fmt.Errorf("%w: primary species basal area model %d for stratum %d is not supported",
			control.ErrConfiguration, sm.Model, stratum)
	}

	x := fmath.Exp(logShareStart + logShareDelta)
	return x/(1+x)*(l.BasalAreaStart+l.BasalAreaDelta) - pspBA, nil
}

// nonPrimarySpeciesBasalAreaDelta (EMP149) is a secondary species' basal area
// growth from the change in its share of the layer.
func (g *Grower) nonPrimarySpeciesBasalAreaDelta(genus string, l LayerGrowth, pspLH, spBA, spDQ, spLH float32) (float32, error) {
	if spBA <= 0 || spBA >= l.BasalAreaStart {
		return 0, fmt.Errorf("%w: species %s basal area %v must be positive and below the layer's %v",
			ErrInvalidStand, genus, spBA, l.BasalAreaStart)
	}
	c, err := control.NonPrimarySpeciesCoefficients(g.m.NonPrimarySpeciesBasalAreaGrowth, genus, g.primary.StratumNumber)
	if err != nil {
		return 0, err
	}

	share := spBA / l.BasalAreaStart
	logShareEnd := fmath.Log(share/(1-share)) + c.At(0) + c.At(1)*fmath.Log(spDQ) + c.At(2)*spLH/pspLH
	x := fmath.Exp(logShareEnd)
	return x/(1+x)*(l.BasalAreaStart+l.BasalAreaDelta) - spBA, nil
}

// speciesDQGrowthCoefficients selects EMP150 for the primary species and
// EMP151 for the others.
func (g *Grower) speciesDQGrowthCoefficients(i int) (control.Coefficients, error) {
	if i == g.primary.Index {
		return g.m.PrimarySpeciesDQGrowth.Get(g.primary.StratumNumber)
	}
	return control.NonPrimarySpeciesCoefficients(g.m.NonPrimarySpeciesDQGrowth, g.b.SpeciesNames[i], g.primary.StratumNumber)
}

// speciesQuadMeanDiameterDelta grows the species' DQ ratio to the layer
// (both measured above 7.45cm) and applies it to the layer's grown DQ.
func speciesQuadMeanDiameterDelta(c control.Coefficients, l LayerGrowth, spDQ, spLH float32) float32 {
	rateStart := (spDQ - speciesDQBase) / (l.QuadMeanDiameterStart - speciesDQBase)
	logRateDelta := c.At(0) + c.At(1)*fmath.Log(spDQ) + c.At(2)*spLH/l.LoreyHeightStart
	rateEnd := fmath.Exp(fmath.Log(rateStart) + logRateDelta)

	dqEnd := rateEnd*(l.QuadMeanDiameterStart+l.QuadMeanDiameterDelta-speciesDQBase) + speciesDQBase
	dqEnd = fmath.Max(dqEnd, MinimumSpeciesQuadMeanDiameter)
	return dqEnd - spDQ
}
