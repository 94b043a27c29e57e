package estimate

import (
	"fmt"

	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// dqSplitConstant is PI40K * 7.5², the basal area of one tree at the 7.5cm
// utilization limit.
const dqSplitConstant = 0.00441786467

// SizeLimits (EMP061) returns a species' Lorey height and DQ limits.
func SizeLimits(m *control.Map, genus string, region models.Region) (control.ComponentSizeLimits, error) {
	return m.ComponentSizeLimits.Get(genus, region)
}

// QuadMeanDiameterForSpecies (EMP060) estimates one species' DQ by splitting
// the stand into that species and the rest. fractions holds each genus'
// share of the stand basal area; genera that are absent may be omitted.
func QuadMeanDiameterForSpecies(m *control.Map, genus string, lh float32, fractions map[string]float32,
	region models.Region, standDQ, standBA, standTPH, standLH float32) (float32, error) {
	minDQ := fmath.Min(7.6, standDQ)

	fraction := fractions[genus]
	if fraction >= 1 || standDQ < minDQ {
		return standDQ, nil
	}
	fractionOther := 1 - fraction

	// The first genus supplies the DQ term and the base of the others; the
	// remaining species enter in proportion to their share of the rest.
	first, err := m.QuadMeanDiameterBySpecies.Get(models.Genera[1])
	if err != nil {
		return 0, err
	}
	a0, a1, a2 := first.At(0), first.At(1), first.At(2)
	for _, alias := range models.Genera[2:] {
		if alias == genus {
			c, err := m.QuadMeanDiameterBySpecies.Get(alias)
			if err != nil {
				return 0, err
			}
			a0 += c.At(0)
			a1 += c.At(1)
			continue
		}
		if f := fractions[alias]; f > 0 {
			c, err := m.QuadMeanDiameterBySpecies.Get(alias)
			if err != nil {
				return 0, err
			}
			mult := -f / fractionOther
			a0 += mult * c.At(0)
			a1 -= mult * c.At(1)
		}
	}

	lh1 := fmath.Max(4, lh)
	lh2 := (standLH - lh*fraction) / fractionOther
	lhRatio := fmath.Clamp((lh1-3)/(lh2-3), 0.05, 20)

	r := fmath.Exp(a0 + a1*fmath.Log(lhRatio) + a2*fmath.Log(standDQ))

	ba1 := fraction * standBA
	ba2 := standBA - ba1

	var tph1 float32
	if fmath.Abs(r-1) < 0.0005 {
		tph1 = fraction * standTPH
	} else {
		aa := (r - 1) * dqSplitConstant
		bb := dqSplitConstant*(1-r)*standTPH + ba1 + ba2*r
		cc := -ba1 * standTPH
		term := bb*bb - 4*aa*cc
		if term <= 0 {
			return 0, fmt.Errorf("%w: trees per hectare term %v for species %s is not positive", ErrOutOfRange, term, genus)
		}
		tph1 = (-bb + fmath.Sqrt(term)) / (2 * aa)
		if tph1 <= 0 || tph1 > standTPH {
			return 0, fmt.Errorf("%w: trees per hectare %v for species %s is outside (0, %v]", ErrOutOfRange, tph1, genus, standTPH)
		}
	}

	limits, err := SizeLimits(m, genus, region)
	if err != nil {
		return 0, err
	}
	return clampSpeciesQuadMeanDiameter(limits, standTPH, minDQ, lh, ba1, ba2, tph1), nil
}

// clampSpeciesQuadMeanDiameter keeps the rest of the stand above minDQ and the
// species within its size limits, moving trees between the two components.
// The species may end above its maximum when the rest would fall below minDQ.
func clampSpeciesQuadMeanDiameter(limits control.ComponentSizeLimits, standTPH, minDQ, lh, ba1, ba2, tph1 float32) float32 {
	dq1 := calc.QuadMeanDiameter(ba1, tph1)
	tph2 := standTPH - tph1
	dq2 := calc.QuadMeanDiameter(ba2, tph2)

	if dq2 < minDQ {
		dq2 = minDQ
		tph2 = calc.TreesPerHectare(ba2, dq2)
		tph1 = standTPH - tph2
		dq1 = calc.QuadMeanDiameter(ba1, tph1)
	}

	dqMin := fmath.Max(minDQ, limits.MinDQLoreyHeightRatio*lh)
	dqMax := fmath.Max(7.6, fmath.Min(limits.MaxQuadMeanDiameter, limits.MaxDQLoreyHeightRatio*lh))
	if dq1 < dqMin {
		return dqMin
	}
	if dq1 > dqMax {
		dq1 = dqMax
		tph1 = calc.TreesPerHectare(ba1, dq1)
		tph2 = standTPH - tph1
		dq2 = float32(1000)
		if tph2 > 0 && ba2 > 0 {
			dq2 = calc.QuadMeanDiameter(ba2, tph2)
		}
		if dq2 < minDQ {
			tph2 = calc.TreesPerHectare(ba2, minDQ)
			tph1 = standTPH - tph2
			dq1 = calc.QuadMeanDiameter(ba1, tph1)
		}
	}
	return dq1
}
