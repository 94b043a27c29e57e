// Package compat computes the compatibility variables of a layer: per-species
// corrections that make the utilization-class equations reproduce the
// measured values they were started from.
package compat

import (
	"fmt"

	"vdyp_forward/pkg/core/bank"
	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/estimate"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// Thresholds below which a base value is too small to calibrate against.
const (
	VolumeBaseMinimum    = 0.1
	BasalAreaBaseMinimum = 0.01
)

// defaultBandDiameters stand in for band diameters missing from the bank.
var defaultBandDiameters = models.UtilizationVector{0, 0, 10, 15, 20, 25}

// =============================================================================
// Equation groups
// =============================================================================

// EquationGroups holds each species' volume, decay and breakage equation
// group, indexed like the bank. Slot 0 is models.MissingInteger.
type EquationGroups struct {
	Volume   []int
	Decay    []int
	Breakage []int
}

// ResolveEquationGroups looks up the equation groups of every species of b.
// A species with no group is a configuration error.
func ResolveEquationGroups(m *control.Map, b *bank.Bank) (EquationGroups, error) {
	n := b.NSpecies + 1
	g := EquationGroups{Volume: make([]int, n), Decay: make([]int, n), Breakage: make([]int, n)}
	g.Volume[0], g.Decay[0], g.Breakage[0] = models.MissingInteger, models.MissingInteger, models.MissingInteger

	bec := b.BecZone.Alias
	for _, i := range b.Indices() {
		genus := b.SpeciesNames[i]
		var err error
		if g.Volume[i], err = m.VolumeEquationGroup(genus, bec); err != nil {
			return g, fmt.Errorf("volume equation group of %s: %w", genus, err)
		}
		if g.Decay[i], err = m.DecayEquationGroup(genus, bec); err != nil {
			return g, fmt.Errorf("decay equation group of %s: %w", genus, err)
		}
		if g.Breakage[i], err = m.BreakageEquationGroup(genus, bec); err != nil {
			return g, fmt.Errorf("breakage equation group of %s: %w", genus, err)
		}
	}
	return g, nil
}

// =============================================================================
// Variables
// =============================================================================

// VolumeVariables holds one value per utilization class and volume variable.
type VolumeVariables [models.NumUtilizationClasses][4]float32

// SmallVariables holds one value per small-component variable.
type SmallVariables [4]float32

// Variables are the compatibility variables of every species of a layer,
// indexed like the bank. Only the band entries of the per-class vectors are
// meaningful.
type Variables struct {
	Volume           []VolumeVariables
	BasalArea        []models.UtilizationVector
	QuadMeanDiameter []models.UtilizationVector
	Small            []SmallVariables
}

func newVariables(n int) *Variables {
	return &Variables{
		Volume:           make([]VolumeVariables, n),
		BasalArea:        make([]models.UtilizationVector, n),
		QuadMeanDiameter: make([]models.UtilizationVector, n),
		Small:            make([]SmallVariables, n),
	}
}

func (v *Variables) VolumeValue(i int, uc models.UtilizationClass, vv models.VolumeVariable) float32 {
	return v.Volume[i][uc][vv]
}

func (v *Variables) SmallValue(i int, ucv models.UtilizationClassVariable) float32 {
	return v.Small[i][ucv]
}

// UpdateAfterGrowth scales every variable by its configured adjustment.
func (v *Variables) UpdateAfterGrowth(a control.CompVarAdjustments) error {
	for i := 1; i < len(v.Small); i++ {
		for _, ucv := range models.UtilizationClassVariables {
			v.Small[i][ucv] *= a.SmallValue(ucv)
		}
		for _, uc := range models.UtilizationBands {
			baAdjust, err := a.BandValue(uc, models.BasalAreaVariable)
			if err != nil {
				return err
			}
			dqAdjust, err := a.BandValue(uc, models.QuadMeanDiameterVariable)
			if err != nil {
				return err
			}
			v.BasalArea[i][uc] *= baAdjust
			v.QuadMeanDiameter[i][uc] *= dqAdjust

			for _, vv := range models.VolumeVariables {
				adjust, err := a.VolumeValue(uc, vv)
				if err != nil {
					return err
				}
				v.Volume[i][uc][vv] *= adjust
			}
		}
	}
	return nil
}

// =============================================================================
// Calculation (CVSET1)
// =============================================================================

// Calculator derives compatibility variables from a bank. It never modifies
// the bank.
type Calculator struct {
	m      *control.Map
	b      *bank.Bank
	groups EquationGroups

	// PrimaryIndex is the bank slot of the primary species.
	PrimaryIndex int
	// PrimaryYearsAtBreastHeight drives the net decay equations.
	PrimaryYearsAtBreastHeight float32
}

func NewCalculator(m *control.Map, b *bank.Bank, groups EquationGroups, primaryIndex int, primaryYabh float32) *Calculator {
	return &Calculator{m: m, b: b, groups: groups, PrimaryIndex: primaryIndex, PrimaryYearsAtBreastHeight: primaryYabh}
}

// Calculate computes the variables of every species.
func (c *Calculator) Calculate() (*Variables, error) {
	v := newVariables(c.b.NSpecies + 1)
	for _, i := range c.b.Indices() {
		genus := c.b.SpeciesNames[i]
		if err := c.volumeVariables(i, &v.Volume[i]); err != nil {
			return nil, fmt.Errorf("volume compatibility variables of %s: %w", genus, err)
		}
		if err := c.basalAreaAndDiameterVariables(i, &v.BasalArea[i], &v.QuadMeanDiameter[i]); err != nil {
			return nil, fmt.Errorf("BA/DQ compatibility variables of %s: %w", genus, err)
		}
		small, err := c.smallVariables(i)
		if err != nil {
			return nil, fmt.Errorf("small compatibility variables of %s: %w", genus, err)
		}
		v.Small[i] = small
	}
	return v, nil
}

func (c *Calculator) volumeVariables(i int, out *VolumeVariables) error {
	b := c.b
	controls := c.m.Controls
	region := b.BecZone.Region
	genus := b.SpeciesNames[i]
	lh := b.LoreyHeights[i][models.UCAll]
	noAdjust := &models.UtilizationVector{}

	var ba, ws, cu, cuNetDecay, cuNDW, dq models.UtilizationVector
	for _, uc := range models.AllButSmall {
		ba[uc] = b.BasalAreas[i][uc]
		ws[uc] = b.WholeStemVolumes[i][uc]
		cu[uc] = b.CloseUtilizationVolumes[i][uc]
		cuNetDecay[uc] = b.CUVolumesMinusDecay[i][uc]
		cuNDW[uc] = b.CUVolumesMinusDecayAndWastage[i][uc]
		dq[uc] = b.QuadMeanDiameters[i][uc]
		if uc != models.UCAll && dq[uc] <= 0 {
			dq[uc] = defaultBandDiameters[uc]
		}
	}

	for _, uc := range models.UtilizationBands {
		// 1. Net of decay and waste, against net of decay
		base := b.CUVolumesMinusDecay[i][uc]
		if controls.AllowCalculation(base, VolumeBaseMinimum, control.Above) {
			err := estimate.NetDecayAndWasteVolume(c.m, region, uc, noAdjust, genus, lh, &dq, &cu, &cuNetDecay, &cuNDW)
			if err != nil {
				return err
			}
			out[uc][models.CloseUtilizationVolumeLessDecayLessWastage] =
				logitDifference(b.CUVolumesMinusDecayAndWastage[i][uc], base, cuNDW[uc])
		}

		// 2. Net of decay, against close utilization
		base = b.CloseUtilizationVolumes[i][uc]
		if controls.AllowCalculation(base, VolumeBaseMinimum, control.Above) {
			err := estimate.NetDecayVolume(c.m, genus, region, uc, noAdjust, c.groups.Decay[i],
				c.PrimaryYearsAtBreastHeight, &dq, &cu, &cuNetDecay)
			if err != nil {
				return err
			}
			out[uc][models.CloseUtilizationVolumeLessDecay] =
				logitDifference(b.CUVolumesMinusDecay[i][uc], base, cuNetDecay[uc])
		}

		// 3. Close utilization, against whole stem
		base = b.WholeStemVolumes[i][uc]
		if controls.AllowCalculation(base, VolumeBaseMinimum, control.Above) {
			err := estimate.CloseUtilizationVolume(c.m, uc, noAdjust, c.groups.Volume[i], lh, &dq, &ws, &cu)
			if err != nil {
				return err
			}
			out[uc][models.CloseUtilizationVolume] =
				logitDifference(b.CloseUtilizationVolumes[i][uc], base, cu[uc])
		}
	}

	// 4. Whole stem, against basal area
	perTree, err := estimate.WholeStemVolumePerTree(c.m, c.groups.Volume[i], lh, b.QuadMeanDiameters[i][models.UCAll])
	if err != nil {
		return err
	}
	ws[models.UCAll] = b.TreesPerHectare[i][models.UCAll] * perTree
	if err := estimate.WholeStemVolume(c.m, models.UCAll, 0, c.groups.Volume[i], lh, &dq, &ba, &ws); err != nil {
		return err
	}
	for _, uc := range models.UtilizationBands {
		if controls.AllowCalculation(ba[uc], BasalAreaBaseMinimum, control.Above) {
			out[uc][models.WholeStemVolume] = logRatioDifference(b.WholeStemVolumes[i][uc], ba[uc], ws[uc])
		}
	}
	return nil
}

func (c *Calculator) basalAreaAndDiameterVariables(i int, baOut, dqOut *models.UtilizationVector) error {
	b := c.b
	genus := b.SpeciesNames[i]

	var ba, tph, dq models.UtilizationVector
	ba[models.UCAll] = b.BasalAreas[i][models.UCAll]
	tph[models.UCAll] = b.TreesPerHectare[i][models.UCAll]
	dq[models.UCAll] = b.QuadMeanDiameters[i][models.UCAll]

	if err := estimate.QuadMeanDiameterByUtilization(c.m, b.BecZone, &dq, genus); err != nil {
		return err
	}
	if err := estimate.BasalAreaByUtilization(c.m, b.BecZone, &dq, &ba, genus); err != nil {
		return err
	}
	for _, uc := range models.UtilizationBands {
		tph[uc] = calc.TreesPerHectare(ba[uc], dq[uc])
	}
	if err := calc.ReconcileComponents(&ba, &tph, &dq); err != nil {
		return err
	}

	for _, uc := range models.UtilizationBands {
		baOut[uc] = b.BasalAreas[i][uc] - ba[uc]

		bankDq := b.QuadMeanDiameters[i][uc]
		switch {
		case c.m.Controls.AllowCalculationIf(func() bool { return bankDq < BasalAreaBaseMinimum }):
			dqOut[uc] = 0
		case bankDq > 0 && dq[uc] > 0:
			dqOut[uc] = bankDq - dq[uc]
		default:
			dqOut[uc] = 0
		}
	}
	return nil
}

func (c *Calculator) smallVariables(i int) (SmallVariables, error) {
	var out SmallVariables
	b := c.b
	m := c.m
	genus := b.SpeciesNames[i]
	lhAll := b.LoreyHeights[i][models.UCAll]
	primaryYabh := b.YearsAtBreastHeight[c.PrimaryIndex]

	y, err := estimate.SmallComponents(m, genus, b.BecZone.Region, lhAll, b.BasalAreas[i][models.UCAll],
		b.QuadMeanDiameters[i][models.UCAll], primaryYabh, 0)
	if err != nil {
		return out, err
	}

	baSmall := b.BasalAreas[i][models.UCSmall]
	out[models.BasalAreaVariable] = baSmall - y.BasalArea

	if m.Controls.AllowCalculation(baSmall, BasalAreaBaseMinimum, control.Above) {
		out[models.QuadMeanDiameterVariable] = b.QuadMeanDiameters[i][models.UCSmall] - y.QuadMeanDiameter
	}

	if lhSmall := b.LoreyHeights[i][models.UCSmall]; lhSmall > 1.3 && y.LoreyHeight > 1.3 && baSmall > 0 {
		out[models.LoreyHeightVariable] = fmath.Log((lhSmall - 1.3) / (y.LoreyHeight - 1.3))
	}

	wsSmall := b.WholeStemVolumes[i][models.UCSmall]
	if wsSmall > 0 && y.MeanVolume > 0 && m.Controls.AllowCalculation(baSmall, BasalAreaBaseMinimum, control.AtLeast) {
		tphSmall := b.TreesPerHectare[i][models.UCSmall]
		out[models.WholeStemVolumeVariable] = fmath.Log(wsSmall / tphSmall / y.MeanVolume)
	}
	return out, nil
}

// logit maps a volume ratio to its logit, saturating at ±7.
func logit(ratio float32) float32 {
	switch {
	case ratio <= 0:
		return -7
	case ratio >= 1:
		return 7
	}
	return fmath.Clamp(fmath.Log(ratio/(1-ratio)), -7, 7)
}

// logitDifference compares the measured and estimated fractions of a base
// volume.
func logitDifference(actual, base, estimated float32) float32 {
	return logit(actual/base) - logit(estimated/base)
}

func logRatio(ratio float32) float32 {
	if ratio <= 0 {
		return -2
	}
	return fmath.Log(ratio)
}

// logRatioDifference compares measured and estimated volume per unit basal
// area.
func logRatioDifference(actual, ba, estimated float32) float32 {
	return logRatio(actual/ba) - logRatio(estimated/ba)
}
