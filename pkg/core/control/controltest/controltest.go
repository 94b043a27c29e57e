// Package controltest builds small, fully populated control maps for tests.
// The coefficients are synthetic: chosen so that every equation stays in its
// valid range for ordinary stands, not fitted to any inventory.
package controltest

import (
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/models"
)

const (
	CoastalBec  = "CWH"
	InteriorBec = "IDF"
)

// Genera carried by the fixture. AC is present only because the empirical
// basal-area model always reads the first genus' coefficients.
var Genera = []string{"AC", "C", "F", "H", "PL"}

var equationGroups = map[string]int{"AC": 1, "C": 10, "F": 1, "H": 12, "PL": 28}

var regions = []models.Region{models.Coastal, models.Interior}

// Map returns a control map covering CoastalBec and InteriorBec for Genera.
func Map() *control.Map {
	m := control.NewMap()

	m.BecZones[CoastalBec] = models.BecZone{Alias: CoastalBec, Name: "Coastal Western Hemlock", Region: models.Coastal}
	m.BecZones[InteriorBec] = models.BecZone{Alias: InteriorBec, Name: "Interior Douglas-fir", Region: models.Interior}

	for _, r := range regions {
		m.SiteCurves.Put("C", r, 16)
		m.SiteCurves.Put("H", r, 16)
		m.SiteCurves.Put("PL", r, 45)
		m.SiteCurves.Put("AC", r, 16)
	}
	m.SiteCurves.Put("F", models.Coastal, 16)
	m.SiteCurves.Put("F", models.Interior, 17)
	m.SiteCurveAgeMaximums.Put(45, control.NewSiteCurveAgeMaximum(200, 200, 20, 50))

	for _, bec := range []string{CoastalBec, InteriorBec} {
		for _, g := range Genera {
			group := equationGroups[g]
			m.DefaultEquationGroups.Put(g, bec, group)
			m.VolumeEquationGroups.Put(g, bec, group)
			m.DecayEquationGroups.Put(g, bec, group)
			m.BreakageEquationGroups.Put(g, bec, group)

			m.BasalAreaYield.Put(bec, g, control.Coefficients{2.0, 0.3, 12.0, 0.6, 0.05, -0.005, 0})
			m.QuadMeanDiameterYield.Put(bec, g, control.Coefficients{7.6, 0.5, 0.1, 0.9, 0.02, 0})
			m.BasalAreaGrowthEmpirical.Put(bec, g, control.Coefficients{12.0, -0.05, 0.8, 1.0, 0.1, -0.01, 0.3, 1.0})

			for uc := 1; uc <= 3; uc++ {
				a0 := []float32{-4, -3, -4}[uc-1]
				a1 := []float32{3, 0.2, 0.2}[uc-1]
				m.BasalAreaByUC.Put(uc, g, bec, control.Coefficients{a0, a1})
			}
			m.QuadMeanDiameterByUC.Put(1, g, bec, control.Coefficients{4.5, -2, 1, 0})
			m.QuadMeanDiameterByUC.Put(2, g, bec, control.Coefficients{-1, 0.3, 1, 0})
			m.QuadMeanDiameterByUC.Put(3, g, bec, control.Coefficients{-1, 0.3, 1, 0})
			m.QuadMeanDiameterByUC.Put(4, g, bec, control.Coefficients{10, 0.1, -1, 1})
		}
	}
	m.EquationModifierGroups.Put(12, 13, 14)

	for _, g := range Genera {
		for _, r := range regions {
			m.HL1Coefficients.Put(g, r, control.Coefficients{0.86, 0.1, -0.002})
			m.UpperBoundsCoefficients.Put(r, g, control.UpperBoundBasalArea, 85)
			m.UpperBoundsCoefficients.Put(r, g, control.UpperBoundQuadMeanDiameter, 50)
		}
		m.NetDecayWaste.Put(g, control.Coefficients{-3, 0, -10, 0, 0, 0})
		m.SmallProbability.Put(g, control.Coefficients{-1, 0.5, -0.01, -0.02})
		m.SmallBasalArea.Put(g, control.Coefficients{0.5, 0, 0.01, -0.02})
		m.SmallQuadMeanDiameter.Put(g, control.Coefficients{0, -0.01})
		m.SmallLoreyHeight.Put(g, control.Coefficients{0.3, 0.5})
		m.SmallWholeStemVolume.Put(g, control.Coefficients{-10, 2, 1, 0})
	}
	for _, g := range Genera {
		for _, r := range regions {
			m.ComponentSizeLimits.Put(g, r, control.ComponentSizeLimits{
				MaxLoreyHeight: 60, MaxQuadMeanDiameter: 80, MinDQLoreyHeightRatio: 0.3, MaxDQLoreyHeightRatio: 3,
			})
		}
		m.QuadMeanDiameterBySpecies.Put(g, control.Coefficients{0, 0.2, 0})
		m.NonPrimarySpeciesBasalAreaGrowth.Put(g, 0, control.Coefficients{-0.02, 0, 0})
		m.NonPrimarySpeciesDQGrowth.Put(g, 0, control.Coefficients{-0.01, 0, 0})
	}
	m.NonPrimaryHLCoefficientTable.Put("C", "H", models.Coastal, control.NonPrimaryHLCoefficients{A0: 1.0, A1: 0.95, Equation: 1})

	for stratum := 1; stratum <= 30; stratum++ {
		m.QuadMeanDiameterGrowthEmpirical.Put(stratum, control.Coefficients{-1.0, 0.3, -0.3, 0, 0.01, -0.005, 0.1})
		m.QuadMeanDiameterGrowthLimits.Put(stratum, control.Coefficients{0, 0, 0, 0.5, 0, 0, 0, 1.0})
		m.PrimarySpeciesBasalAreaGrowth.Put(stratum, control.SpeciesGrowthModel{Model: 9, Coefficients: control.Coefficients{0.02, 0, 0}})
		m.PrimarySpeciesDQGrowth.Put(stratum, control.Coefficients{0.01, 0, 0})
	}

	for _, group := range []int{1, 10, 12, 14, 28} {
		m.UpperBounds.Put(group, control.UpperBound{BasalArea: 80, QuadMeanDiameter: 45})
	}

	for _, group := range []int{1, 10, 11, 12, 28} {
		m.TotalStandWholeStemVolume.Put(group, control.Coefficients{-10, 2, 1, 0, 0, 0, 0, 0, 0})
		for _, uc := range models.UtilizationBands {
			m.WholeStemByUC.Put(uc.Index(), group, control.Coefficients{-1.1, 1.0, 0, 0})
			m.CloseUtilizationByUC.Put(uc.Index(), group, control.Coefficients{-1, 0.2, 0})
			m.NetDecayByUC.Put(uc.Index(), group, control.Coefficients{4, 0, -0.2})
		}
	}

	baFiat, _ := control.NewGrowthFiatDetails(models.Coastal, []float32{1, 0.08, 100, 0.04, 200, 0.01, 0, 0, 40, 120, 1.5})
	m.BasalAreaGrowthFiat.Put(models.Coastal, baFiat)
	baFiat, _ = control.NewGrowthFiatDetails(models.Interior, []float32{1, 0.06, 150, 0.02, 0, 0, 0, 0, 40, 120, 1.5})
	m.BasalAreaGrowthFiat.Put(models.Interior, baFiat)
	dqFiat, _ := control.NewGrowthFiatDetails(models.Coastal, []float32{1, 0.02, 200, 0.01, 0, 0, 0, 0, 40, 120, 1.5})
	m.QuadMeanDiameterGrowthFiat.Put(models.Coastal, dqFiat)
	dqFiat, _ = control.NewGrowthFiatDetails(models.Interior, []float32{1, 0.02, 200, 0.01, 0, 0, 0, 0, 40, 120, 1.5})
	m.QuadMeanDiameterGrowthFiat.Put(models.Interior, dqFiat)

	m.Debug, _ = control.NewDebugSettings([]int{1, 0, 1, 0, 0, 2})
	m.Controls, _ = control.NewControlVariables([]int{3, 0, 2, 0, 1, 1})

	return m
}

// WithDebug returns m with one debug setting replaced.
func WithDebug(m *control.Map, v control.DebugVariable, value int) *control.Map {
	out := *m
	out.Debug = m.Debug.With(v, value)
	return &out
}

// WithControl returns m with one control variable replaced.
func WithControl(m *control.Map, v control.ControlVariable, value int) *control.Map {
	out := *m
	out.Controls = m.Controls.With(v, value)
	return &out
}
