package growth

import (
	"fmt"

	"vdyp_forward/pkg/core/bank"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// PrimarySpecies identifies the primary species of the layer being grown and
// the equation groups derived from it.
type PrimarySpecies struct {
	// Index is the bank slot of the primary species.
	Index int
	// GroupNumber keys the BA/DQ upper bounds.
	GroupNumber int
	// StratumNumber keys the empirical DQ growth coefficients.
	StratumNumber int
}

// Grower runs the layer-level growth equations against one bank.
type Grower struct {
	m       *control.Map
	b       *bank.Bank
	primary PrimarySpecies
}

// NewGrower binds the growth equations to a bank and its primary species.
func NewGrower(m *control.Map, b *bank.Bank, primary PrimarySpecies) *Grower {
	return &Grower{m: m, b: b, primary: primary}
}

func (g *Grower) region() models.Region { return g.b.BecZone.Region }

func (g *Grower) primaryGenus() string { return g.b.SpeciesNames[g.primary.Index] }

// proportions returns each species' share of the layer basal area.
func (g *Grower) proportions() []float32 {
	p := make([]float32, g.b.NSpecies+1)
	total := g.b.BasalAreas[0][models.UCAll]
	for _, i := range g.b.Indices() {
		p[i] = g.b.BasalAreas[i][models.UCAll] / total
	}
	return p
}

// weighted averages coefficients 0..n-1 of a per-genus table over the
// species, weighting by basal-area proportion.
func (g *Grower) weighted(table *control.MatrixMap2[string, string, control.Coefficients], bec string,
	n int, proportions []float32) (control.Coefficients, error) {
	out := make(control.Coefficients, n)
	for _, i := range g.b.Indices() {
		c, err := table.Get(bec, g.b.SpeciesNames[i])
		if err != nil {
			return nil, err
		}
		for k := 0; k < n; k++ {
			out[k] += c.At(k) * proportions[i]
		}
	}
	return out, nil
}

// upperBound returns the basal area (which = UpperBoundBasalArea) or DQ
// ceiling of the primary species.
func (g *Grower) upperBound(debug control.DebugSettings, which int) (float32, error) {
	if debug.Value(control.PerSpeciesAndRegionMaxBreastHeight4) > 0 {
		return g.m.UpperBoundsCoefficients.Get(g.region(), g.primaryGenus(), which)
	}
	ub, err := g.m.UpperBounds.Get(g.primary.GroupNumber)
	if err != nil {
		return 0, err
	}
	if which == control.UpperBoundBasalArea {
		return ub.BasalArea, nil
	}
	return ub.QuadMeanDiameter, nil
}

// =============================================================================
// Basal area
// =============================================================================

// GrowBasalArea (EMP111A) returns the growth in layer basal area over one
// year.
func (g *Grower) GrowBasalArea(yabh float32, debug control.DebugSettings, dh, ba float32,
	veteranBA *float32, dhDelta float32) (float32, error) {
	proportions := g.proportions()

	yieldCoe, err := g.weighted(g.m.BasalAreaYield, g.b.BecZone.Alias, 7, proportions)
	if err != nil {
		return 0, err
	}
	if yieldCoe[5] > 0 {
		yieldCoe[5] = 0
	}

	upper, err := g.upperBound(debug, control.UpperBoundBasalArea)
	if err != nil {
		return 0, err
	}

	cv2 := g.m.Controls.Value(control.CompatVarOutput2)
	yieldStart, err := BasalAreaYield(yieldCoe, cv2, dh, yabh, veteranBA, true, upper)
	if err != nil {
		return 0, err
	}
	yieldEnd, err := BasalAreaYield(yieldCoe, cv2, dh+dhDelta, yabh+1, veteranBA, true, upper)
	if err != nil {
		return 0, err
	}

	fiat, err := g.m.BasalAreaGrowthFiat.Get(g.region())
	if err != nil {
		return 0, err
	}

	growth := yieldEnd - yieldStart
	growth -= fiat.CalculateCoefficient(yabh) * (ba - yieldStart)

	// A stand that started far ahead of the yield curve keeps going, slowly.
	if yabh < 40 && ba > 5*yieldStart {
		growth = fmath.Min(yieldStart/yabh, fmath.Min(0.5, growth))
	}

	if model := debug.Value(control.BasalAreaGrowthModel3); model >= 1 {
		fiatGrowth := growth
		empirical, err := g.basalAreaGrowthEmpirical(proportions, ba, yabh, dh, yieldStart, yieldEnd)
		if err != nil {
			return 0, err
		}
		growth = empirical
		if model == 2 {
			c := mixedProportion(fiat, yabh)
			growth = c*empirical + (1-c)*fiatGrowth
		}
	}

	limit := fmath.Max(upper/EmpiricalOccupancy, ba)
	if ba+growth > limit {
		growth = fmath.Max(limit-ba, 0)
	}
	if growth < 0 && ba+growth < 1 {
		growth = 1 - ba
	}
	return growth, nil
}

// basalAreaGrowthEmpirical (EMP121). Coefficients other than 4 and 5 come
// from the first genus of the genus table; 4 and 5 are averaged over the
// layer's species.
func (g *Grower) basalAreaGrowthEmpirical(proportions []float32, ba, yabh, dh, yieldStart, yieldEnd float32) (float32, error) {
	yabh = fmath.Clamp(yabh, 1, 999)
	bec := g.b.BecZone.Alias

	first, err := g.m.BasalAreaGrowthEmpirical.Get(bec, models.Genera[1])
	if err != nil {
		return 0, err
	}
	b0, b1, b2, b3 := first.At(0), first.At(1), first.At(2), first.At(3)
	b6, b7 := first.At(6), first.At(7)

	var b4, b5 float32
	for _, i := range g.b.Indices() {
		c, err := g.m.BasalAreaGrowthEmpirical.Get(bec, g.b.SpeciesNames[i])
		if err != nil {
			return 0, err
		}
		b4 += proportions[i] * c.At(4)
		b5 += proportions[i] * c.At(5)
	}
	b4 = fmath.Max(b4, 0)
	b5 = fmath.Min(b5, 0)

	var term1 float32
	if dh > b0 {
		term1 = 1 - fmath.Exp(b1*(dh-b0))
	}
	term2 := b2 * fmath.Pow(dh/20, b3) * logistic(-0.05*(yabh-350))
	term3 := b4 * fmath.Exp(b5*yabh)

	var term4 float32
	if yieldDelta := yieldEnd - yieldStart; yieldDelta > 0 {
		term4 = b6 * fmath.Pow(yieldDelta, b7)
	}

	delta := term1*(term2+term3) + term4
	if delta < 0 && ba+delta < 1 {
		delta = 1 - ba
	}
	return delta, nil
}

func logistic(x float32) float32 {
	e := fmath.Exp(x)
	return e / (1 + e)
}

// =============================================================================
// Quadratic mean diameter
// =============================================================================

// MinimumQuadMeanDiameter is the floor on the layer's grown DQ.
const MinimumQuadMeanDiameter = 7.6

// GrowQuadMeanDiameter (EMP117A) returns the growth in layer DQ over one
// year, and whether the DQ ceiling limited it. It must run after the basal
// area growth of the same year.
func (g *Grower) GrowQuadMeanDiameter(yabh float32, debug control.DebugSettings, ba, dh, dq float32,
	veteranBAStart, veteranBAEnd *float32, dhDelta float32) (growth float32, limitApplied bool, err error) {
	proportions := g.proportions()

	yieldCoe, err := g.weighted(g.m.QuadMeanDiameterYield, g.b.BecZone.DecayAlias(), 6, proportions)
	if err != nil {
		return 0, false, err
	}

	upper, err := g.upperBound(debug, control.UpperBoundQuadMeanDiameter)
	if err != nil {
		return 0, false, err
	}
	limit := fmath.Max(upper, dq)

	yieldStart, err := QuadMeanDiameterYield(yieldCoe, dh, yabh, limit)
	if err != nil {
		return 0, false, err
	}
	yieldEnd, err := QuadMeanDiameterYield(yieldCoe, dh+dhDelta, yabh+1, limit)
	if err != nil {
		return 0, false, err
	}

	fiat, err := g.m.QuadMeanDiameterGrowthFiat.Get(g.region())
	if err != nil {
		return 0, false, err
	}

	model := debug.Value(control.DQGrowthModel6)
	var fiatGrowth, empiricalGrowth float32
	if model != 1 {
		fiatGrowth = yieldEnd - yieldStart - fiat.CalculateCoefficient(yabh)*(dq-yieldStart)
	}
	if model != 0 {
		empiricalGrowth, err = g.quadMeanDiameterGrowthEmpirical(yabh, dh, ba, dq, dhDelta, yieldStart, yieldEnd)
		if err != nil {
			return 0, false, err
		}
	}

	switch model {
	case 0:
		growth = fiatGrowth
	case 1:
		growth = empiricalGrowth
	case 2:
		c := mixedProportion(fiat, yabh)
		growth = c*empiricalGrowth + (1-c)*fiatGrowth
	default:
		return 0, false, fmt.Errorf("%w: DQ growth model %d is not supported", control.ErrConfiguration, model)
	}

	if dq+growth < MinimumQuadMeanDiameter {
		growth = MinimumQuadMeanDiameter - dq
	}
	if dq+growth > limit-0.001 {
		return fmath.Max(limit-dq, 0), true, nil
	}
	return growth, false, nil
}

// quadMeanDiameterGrowthEmpirical (EMP122), bounded by the stratum's limits
// as a function of dq - 7.5.
func (g *Grower) quadMeanDiameterGrowthEmpirical(yabh, dh, ba, dq, dhDelta, yieldStart, yieldEnd float32) (float32, error) {
	stratum := g.primary.StratumNumber
	c, err := g.m.QuadMeanDiameterGrowthEmpirical.Get(stratum)
	if err != nil {
		return 0, err
	}
	limits, err := g.m.QuadMeanDiameterGrowthLimits.Get(stratum)
	if err != nil {
		return 0, err
	}

	yabh = fmath.Max(yabh, 1)
	delta := fmath.Exp(c.At(0)+c.At(2)*fmath.Log(yabh)+c.At(3)*dq+c.At(4)*dh+c.At(5)*ba+c.At(6)*dhDelta) +
		c.At(1)*(yieldEnd-yieldStart)
	delta = fmath.Max(delta, 0)

	x := dq - 7.5
	xsq := x * x
	lo := fmath.Max(limits.At(0)+limits.At(1)*x+limits.At(2)*xsq/100, limits.At(6))
	hi := fmath.Min(limits.At(3)+limits.At(4)*x+limits.At(5)*xsq/100, limits.At(7))
	hi = fmath.Max(hi, lo)

	return fmath.Clamp(delta, lo, hi), nil
}
