package growth

import (
	"fmt"
	"math"

	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/estimate"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/core/sitetool"
	"vdyp_forward/pkg/models"
)

// GrowDominantHeight (HDGROW) returns the one-year growth in dominant height
// along a site curve. Past the curve's maximum age the growth decays toward
// zero when the curve defines an extension (T1 > 0), and stops otherwise.
func GrowDominantHeight(ageMax control.SiteCurveAgeMaximum, region models.Region, dh float32,
	curve int, si, ytbh float32) (float32, error) {
	if curve == models.MissingInteger {
		return 0, fmt.Errorf("%w: no site curve number supplied", ErrInvalidStand)
	}
	if dh <= 1.3 {
		return 0, fmt.Errorf("%w: dominant height %v must be above 1.3", ErrInvalidStand, dh)
	}

	si64, dh64, ytbh64 := float64(si), float64(dh), float64(ytbh)
	height := func(age float64) (float64, error) {
		h, err := sitetool.AgeAndSiteIndexToHeight(curve, age, sitetool.AgeBreast, si64, ytbh64)
		if err != nil {
			return 0, fmt.Errorf("height at age %v on curve %d: %w", age, curve, err)
		}
		return h, nil
	}

	ageStart, err := sitetool.HeightAndSiteIndexToAge(curve, dh64, sitetool.AgeBreast, si64, ytbh64)
	if err != nil {
		return 0, fmt.Errorf("age at height %v on curve %d: %w", dh, curve, err)
	}
	if ageStart <= 0 {
		if dh64 > si64 {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: breast height age %v must be positive", ErrInvalidStand, ageStart)
	}
	ageEnd := ageStart + 1

	var bhAgeLimit float32
	if limit := ageMax.AgeMaximum(region); limit > 0 {
		bhAgeLimit = limit - ytbh
	}

	if ageStart <= float64(bhAgeLimit) || ageMax.T1 <= 0 {
		yearPart := 1.0
		if ageMax.T1 <= 0 && bhAgeLimit > 0 && ageEnd > float64(bhAgeLimit) {
			if ageStart > float64(bhAgeLimit) {
				return 0, nil
			}
			yearPart = float64(float32(float64(bhAgeLimit) - ageStart + 0.01))
			ageEnd = ageStart + yearPart
		}

		// Re-evaluate the start height: the age search tolerates errors that
		// can be half a year at high ages.
		current, err := height(ageStart)
		if err != nil {
			return 0, err
		}
		next, err := height(ageEnd)
		if err != nil {
			return 0, err
		}
		if next < 0 {
			return 0, fmt.Errorf("%w: negative height %v at age %v", ErrInvalidStand, next, ageEnd)
		}
		if next < current && yearPart == 1 {
			if math.Abs(current-next) < 0.01 {
				return 0, nil
			}
			return 0, fmt.Errorf("%w: new dominant height %v is below the current %v", ErrInvalidStand, next, current)
		}
		return float32(next - current), nil
	}

	// Extension of the curve past the age limit:
	//   Y = y - rate/a * (1 - exp(a*t)), t = age - limit
	current, err := height(float64(bhAgeLimit))
	if err != nil {
		return 0, err
	}
	next, err := height(float64(bhAgeLimit) + 1)
	if err != nil {
		return 0, err
	}
	rate := fmath.Max(float32(next-current), 0.0005)
	a := fmath.Log(0.5) / ageMax.T1
	y := float32(current)

	var t float32
	if dh > y {
		term := 1 + (dh-y)*a/rate
		if term <= 1e-7 {
			return 0, nil
		}
		t = fmath.Log(term) / a
	}
	if t > ageMax.T2 {
		return 0, nil
	}
	return rate / a * (fmath.Exp(a*(t+1)) - fmath.Exp(a*t)), nil
}

// =============================================================================
// Lorey heights and per-species updates
// =============================================================================

// GrowLoreyHeights (GRSPHL) re-estimates every species' Lorey height at the
// end of the year, preserving each species' ratio to its equation estimate.
func (g *Grower) GrowLoreyHeights(dhStart, dhEnd, pspTphStart, pspTphEnd, pspLhStart float32) error {
	region := g.region()
	psp := g.primary.Index
	pspGenus := g.primaryGenus()
	adjust := g.m.CompVarAdjustments

	lhStartEstimate, err := estimate.PrimaryLoreyHeight(g.m, pspGenus, region, dhStart, pspTphStart)
	if err != nil {
		return err
	}
	lhEndEstimate, err := estimate.PrimaryLoreyHeight(g.m, pspGenus, region, dhEnd, pspTphEnd)
	if err != nil {
		return err
	}

	primaryF := (pspLhStart - 1.3) / (lhStartEstimate - 1.3)
	primaryF = 1 + (primaryF-1)*adjust.Param(control.LoreyHeightPrimaryParam)
	pspLhEnd := 1.3 + (lhEndEstimate-1.3)*primaryF

	strategy := g.m.Debug.Value(control.LoreyHeightChangeStrategy8)
	if strategy != 2 || dhStart != dhEnd {
		g.b.LoreyHeights[psp][models.UCAll] = pspLhEnd
	} else {
		pspLhEnd = g.b.LoreyHeights[psp][models.UCAll]
	}

	otherAdjust := adjust.Param(control.LoreyHeightOtherParam)
	for _, i := range g.b.Indices() {
		if i == psp || g.b.BasalAreas[i][models.UCAll] <= 0 {
			continue
		}
		if dhEnd == dhStart && strategy >= 1 {
			continue
		}
		genus := g.b.SpeciesNames[i]
		est1, err := estimate.NonPrimaryLoreyHeight(g.m, genus, pspGenus, region, dhStart, pspLhStart)
		if err != nil {
			return err
		}
		est2, err := estimate.NonPrimaryLoreyHeight(g.m, genus, pspGenus, region, dhEnd, pspLhEnd)
		if err != nil {
			return err
		}
		otherF := (g.b.LoreyHeights[i][models.UCAll] - 1.3) / (est1 - 1.3)
		otherF = 1 + (otherF-1)*otherAdjust
		g.b.LoreyHeights[i][models.UCAll] = 1.3 + (est2-1.3)*otherF
	}
	return nil
}
