package estimate

import (
	"fmt"

	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// heightMultiplier relates Lorey height to dominant height at a stand density.
func heightMultiplier(m *control.Map, genus string, region models.Region, tph float32) (float32, error) {
	c, err := m.HL1Coefficients.Get(genus, region)
	if err != nil {
		return 0, err
	}
	a0, a1, a2 := c.At(0), c.At(1), c.At(2)
	return a0 - a1 + a1*fmath.Exp(a2*(tph-100)), nil
}

// PrimaryLoreyHeight (EMP050) estimates the primary species' Lorey height
// from its dominant height and trees per hectare.
func PrimaryLoreyHeight(m *control.Map, genus string, region models.Region, dh, tph float32) (float32, error) {
	hMult, err := heightMultiplier(m, genus, region, tph)
	if err != nil {
		return 0, err
	}
	return 1.3 + (dh-1.3)*hMult, nil
}

// DominantHeightFromLoreyHeight inverts PrimaryLoreyHeight.
func DominantHeightFromLoreyHeight(m *control.Map, genus string, region models.Region, lh, tph float32) (float32, error) {
	hMult, err := heightMultiplier(m, genus, region, tph)
	if err != nil {
		return 0, err
	}
	return 1.3 + (lh-1.3)/hMult, nil
}

// NonPrimaryLoreyHeight (EMP053) estimates a secondary species' Lorey height
// from the primary species' dominant and Lorey heights.
func NonPrimaryLoreyHeight(m *control.Map, genus, primaryGenus string, region models.Region,
	dh, primaryLH float32) (float32, error) {
	c, err := m.NonPrimaryHLCoefficientTable.Get(genus, primaryGenus, region)
	if err != nil {
		return 0, err
	}
	switch c.Equation {
	case 1:
		return 1.3 + c.A0*fmath.Pow(dh-1.3, c.A1), nil
	case 2:
		return 1.3 + c.A0*fmath.Pow(primaryLH-1.3, c.A1), nil
	}
	return 0, fmt.Errorf("%w: Lorey height equation %d for (%s, %s) is not recognized",
		control.ErrConfiguration, c.Equation, genus, primaryGenus)
}
