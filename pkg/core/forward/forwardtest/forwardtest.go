// Package forwardtest builds self-consistent polygons over the controltest
// control map.
package forwardtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/control/controltest"
	"vdyp_forward/pkg/core/estimate"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

const (
	PolygonName = "01002 S000001 00"
	PolygonYear = 2000
)

// Utilization derives every utilization class of a species from its ALL
// values with the estimators themselves.
func Utilization(t testing.TB, m *control.Map, bec models.BecZone, genus string,
	ba, tph, lh, yabh float32) *models.UtilizationValues {
	t.Helper()
	u := &models.UtilizationValues{LoreyHeightAll: lh}
	u.BasalArea[models.UCAll] = ba
	u.TreesPerHectare[models.UCAll] = tph
	u.QuadMeanDiameter[models.UCAll] = calc.QuadMeanDiameter(ba, tph)

	vg, err := m.VolumeEquationGroup(genus, bec.Alias)
	require.NoError(t, err)
	dg, err := m.DecayEquationGroup(genus, bec.Alias)
	require.NoError(t, err)

	require.NoError(t, estimate.QuadMeanDiameterByUtilization(m, bec, &u.QuadMeanDiameter, genus))
	require.NoError(t, estimate.BasalAreaByUtilization(m, bec, &u.QuadMeanDiameter, &u.BasalArea, genus))
	for _, uc := range models.UtilizationBands {
		u.TreesPerHectare[uc] = calc.TreesPerHectare(u.BasalArea[uc], u.QuadMeanDiameter[uc])
	}
	require.NoError(t, calc.ReconcileComponents(&u.BasalArea, &u.TreesPerHectare, &u.QuadMeanDiameter))

	perTree, err := estimate.WholeStemVolumePerTree(m, vg, lh, u.QuadMeanDiameter[models.UCAll])
	require.NoError(t, err)
	u.WholeStemVolume[models.UCAll] = tph * perTree
	require.NoError(t, estimate.WholeStemVolume(m, models.UCAll, 0, vg, lh, &u.QuadMeanDiameter, &u.BasalArea,
		&u.WholeStemVolume))
	none := &models.UtilizationVector{}
	require.NoError(t, estimate.CloseUtilizationVolume(m, models.UCAll, none, vg, lh, &u.QuadMeanDiameter,
		&u.WholeStemVolume, &u.CloseUtilizationVolume))
	require.NoError(t, estimate.NetDecayVolume(m, genus, bec.Region, models.UCAll, none, dg, yabh,
		&u.QuadMeanDiameter, &u.CloseUtilizationVolume, &u.CUVolumeLessDecay))
	require.NoError(t, estimate.NetDecayAndWasteVolume(m, bec.Region, models.UCAll, none, genus, lh,
		&u.QuadMeanDiameter, &u.CloseUtilizationVolume, &u.CUVolumeLessDecay, &u.CUVolumeLessDecayAndWastage))
	return u
}

// Polygon is a coastal Douglas-fir stand with a hemlock component, grown
// from PolygonYear. The hemlock has no site index and no years to breast
// height.
func Polygon(t testing.TB, m *control.Map) *models.Polygon {
	t.Helper()
	bec, err := m.BecZone(controltest.CoastalBec)
	require.NoError(t, err)

	species := []models.Species{
		{
			Genus: "H", GenusIndex: 8, PercentGenus: 25,
			Sp64Distribution: []models.Sp64Share{{Alias: "H", Percentage: 100}},
			SiteIndex:        fmath.NaN(), DominantHeight: 22, AgeTotal: 55, YearsAtBreastHeight: 45,
			YearsToBreastHeight: fmath.NaN(), SiteCurveNumber: models.MissingInteger,
			Utilization: Utilization(t, m, bec, "H", 10, 300, 20, 45),
		},
		{
			Genus: "F", GenusIndex: 7, PercentGenus: 75,
			Sp64Distribution: []models.Sp64Share{{Alias: "F", Percentage: 100}},
			SiteIndex:        30, DominantHeight: 26, AgeTotal: 60, YearsAtBreastHeight: 52,
			YearsToBreastHeight: 8, SiteCurveNumber: models.MissingInteger,
			Utilization: Utilization(t, m, bec, "F", 30, 600, 25, 52),
		},
	}
	return &models.Polygon{
		ID:               models.PolygonIdentifier{Name: PolygonName, Year: PolygonYear},
		BecZone:          controltest.CoastalBec,
		PercentAvailable: 90,
		Layers: map[models.LayerType]*models.Layer{
			models.LayerPrimary: {Type: models.LayerPrimary, Species: species, Utilization: calc.SumSpecies(species)},
		},
	}
}
