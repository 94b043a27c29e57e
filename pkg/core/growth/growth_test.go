package growth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdyp_forward/pkg/core/bank"
	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/control/controltest"
	"vdyp_forward/pkg/core/estimate"
	"vdyp_forward/pkg/core/sitetool"
	"vdyp_forward/pkg/models"
)

func utilization(ba, tph, lh float32) *models.UtilizationValues {
	u := &models.UtilizationValues{LoreyHeightAll: lh}
	u.BasalArea[models.UCAll] = ba
	u.TreesPerHectare[models.UCAll] = tph
	u.QuadMeanDiameter[models.UCAll] = calc.QuadMeanDiameter(ba, tph)
	return u
}

// testBank is a coastal Douglas-fir stand with a hemlock component.
func testBank(t *testing.T, m *control.Map) *bank.Bank {
	t.Helper()
	layer := &models.Layer{
		Type:        models.LayerPrimary,
		Utilization: utilization(40, 900, 24),
		Species: []models.Species{
			{Genus: "H", GenusIndex: 8, PercentGenus: 25, SiteIndex: 28, DominantHeight: 22, SiteCurveNumber: 16,
				Utilization: utilization(10, 300, 20)},
			{Genus: "F", GenusIndex: 7, PercentGenus: 75, SiteIndex: 30, DominantHeight: 26, SiteCurveNumber: 16,
				Utilization: utilization(30, 600, 25)},
		},
	}
	bec, err := m.BecZone(controltest.CoastalBec)
	require.NoError(t, err)
	b := bank.New(layer, bec, bank.AboveMinimumBasalArea)
	require.Equal(t, 2, b.NSpecies)
	return b
}

func testGrower(t *testing.T, m *control.Map) (*Grower, *bank.Bank) {
	b := testBank(t, m)
	return NewGrower(m, b, PrimarySpecies{Index: 1, GroupNumber: 1, StratumNumber: 1}), b
}

// ----------------------------------------------------------------------------
// Yields
// ----------------------------------------------------------------------------

func TestBasalAreaYield_BelowHeightThresholdIsZero(t *testing.T) {
	c := control.Coefficients{2.0, 0.3, 12.0, 0.6, 0.05, -0.005, 0}
	y, err := BasalAreaYield(c, 0, 10, 30, nil, true, 80)
	require.NoError(t, err)
	assert.Equal(t, float32(0), y)
}

func TestBasalAreaYield_FullOccupancyScalesUp(t *testing.T) {
	c := control.Coefficients{2.0, 0.3, 12.0, 0.6, 0.05, -0.005, 0}
	empirical, err := BasalAreaYield(c, 0, 30, 80, nil, false, 80)
	require.NoError(t, err)
	full, err := BasalAreaYield(c, 0, 30, 80, nil, true, 80)
	require.NoError(t, err)
	assert.Greater(t, empirical, float32(0))
	assert.InDelta(t, empirical/EmpiricalOccupancy, full, 1e-4)
}

func TestBasalAreaYield_RejectsNonPositiveAge(t *testing.T) {
	_, err := BasalAreaYield(control.Coefficients{1, 1, 1, 1, 1, 0, 0}, 0, 30, 0, nil, true, 80)
	assert.True(t, errors.Is(err, ErrInvalidStand))
}

func TestQuadMeanDiameterYield_Bounds(t *testing.T) {
	c := control.Coefficients{7.6, 0.5, 0.1, 0.9, 0.02, 0}

	y, err := QuadMeanDiameterYield(c, 4, 50, 45)
	require.NoError(t, err)
	assert.Equal(t, float32(7.6), y)

	y, err = QuadMeanDiameterYield(c, 200, 50, 45)
	require.NoError(t, err)
	assert.Equal(t, float32(45), y)
}

// ----------------------------------------------------------------------------
// Basal area growth
// ----------------------------------------------------------------------------

func TestGrowBasalArea_Deterministic(t *testing.T) {
	m := controltest.Map()
	g, _ := testGrower(t, m)

	first, err := g.GrowBasalArea(54, m.Debug, 35.2999992, 45.3864441, nil, 0.173380271)
	require.NoError(t, err)
	second, err := g.GrowBasalArea(54, m.Debug, 35.2999992, 45.3864441, nil, 0.173380271)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGrowBasalArea_YoungShortStandDoesNotGrow(t *testing.T) {
	m := controltest.Map()
	g, _ := testGrower(t, m)

	growth, err := g.GrowBasalArea(30, m.Debug, 10, 200, nil, 0.173380271)
	require.NoError(t, err)
	assert.Equal(t, float32(0), growth)
}

func TestGrowBasalArea_LimitedByUpperBound(t *testing.T) {
	m := controltest.Map()
	g, _ := testGrower(t, m)

	// 100 is above the group's 80/0.85 ceiling, so no further growth is allowed.
	growth, err := g.GrowBasalArea(80, m.Debug, 30, 100, nil, 0.2)
	require.NoError(t, err)
	assert.Equal(t, float32(0), growth)
}

func TestGrowBasalArea_MixedModelBlendsFiatAndEmpirical(t *testing.T) {
	m := controltest.Map()
	g, _ := testGrower(t, m)
	const yabh, dh, ba, dhDelta = 80, 30, 30, 0.2

	fiat, err := g.GrowBasalArea(yabh, m.Debug.With(control.BasalAreaGrowthModel3, 0), dh, ba, nil, dhDelta)
	require.NoError(t, err)
	empirical, err := g.GrowBasalArea(yabh, m.Debug.With(control.BasalAreaGrowthModel3, 1), dh, ba, nil, dhDelta)
	require.NoError(t, err)
	mixed, err := g.GrowBasalArea(yabh, m.Debug.With(control.BasalAreaGrowthModel3, 2), dh, ba, nil, dhDelta)
	require.NoError(t, err)

	details, err := m.BasalAreaGrowthFiat.Get(models.Coastal)
	require.NoError(t, err)
	c := mixedProportion(details, yabh)
	assert.InDelta(t, c*empirical+(1-c)*fiat, mixed, 1e-5)
	assert.NotEqual(t, fiat, empirical)
}

func TestGrowBasalArea_PerSpeciesUpperBound(t *testing.T) {
	m := controltest.Map()
	g, _ := testGrower(t, m)

	// The per-species coefficient (85) replaces the group bound (80), which
	// would have allowed no growth at all.
	debug := m.Debug.With(control.PerSpeciesAndRegionMaxBreastHeight4, 1)
	growth, err := g.GrowBasalArea(80, debug, 30, 99.9, nil, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, growth, 1e-3)

	growth, err = g.GrowBasalArea(80, m.Debug, 30, 99.9, nil, 0.2)
	require.NoError(t, err)
	assert.Equal(t, float32(0), growth)
}

// ----------------------------------------------------------------------------
// DQ growth
// ----------------------------------------------------------------------------

func TestGrowQuadMeanDiameter_ModelSwitch(t *testing.T) {
	const yabh, dh, ba, dq, dhDelta = 54, 35.2999992, 45.3864441, 30.9988747, 0.173380271

	m := controltest.Map()
	g, _ := testGrower(t, m)

	results := map[int]float32{}
	for _, model := range []int{0, 1, 2} {
		debug := m.Debug.With(control.DQGrowthModel6, model)
		growth, limited, err := g.GrowQuadMeanDiameter(yabh, debug, ba, dh, dq, nil, nil, dhDelta)
		require.NoError(t, err, "model %d", model)
		assert.False(t, limited)
		results[model] = growth

		again, _, err := g.GrowQuadMeanDiameter(yabh, debug, ba, dh, dq, nil, nil, dhDelta)
		require.NoError(t, err)
		assert.Equal(t, growth, again)
	}
	assert.NotEqual(t, results[0], results[1], "fiat and empirical models agree")

	details, err := controltest.Map().QuadMeanDiameterGrowthFiat.Get(models.Coastal)
	require.NoError(t, err)
	c := mixedProportion(details, yabh)
	assert.InDelta(t, c*results[1]+(1-c)*results[0], results[2], 1e-5)
}

func TestGrowQuadMeanDiameter_UnknownModel(t *testing.T) {
	m := controltest.Map()
	g, _ := testGrower(t, m)
	_, _, err := g.GrowQuadMeanDiameter(54, m.Debug.With(control.DQGrowthModel6, 7), 45, 35, 31, nil, nil, 0.17)
	assert.True(t, errors.Is(err, control.ErrConfiguration))
}

func TestGrowQuadMeanDiameter_Floor(t *testing.T) {
	m := controltest.Map()
	g, _ := testGrower(t, m)

	growth, limited, err := g.GrowQuadMeanDiameter(54, m.Debug, 45.3864441, 35.2999992, 3.0, nil, nil, 0.173380271)
	require.NoError(t, err)
	assert.InDelta(t, 4.6, growth, 1e-5)
	assert.False(t, limited)
}

func TestGrowQuadMeanDiameter_Ceiling(t *testing.T) {
	m := controltest.Map()
	g, _ := testGrower(t, m)

	growth, limited, err := g.GrowQuadMeanDiameter(54, m.Debug, 45.3864441, 35.2999992, 50.0, nil, nil, 0.173380271)
	require.NoError(t, err)
	assert.Equal(t, float32(0), growth)
	assert.True(t, limited)
}

// ----------------------------------------------------------------------------
// Dominant height
// ----------------------------------------------------------------------------

func TestGrowDominantHeight_FollowsCurve(t *testing.T) {
	ytbh, err := sitetool.YearsToBreastHeight(sitetool.FdcBruce, 30)
	require.NoError(t, err)
	ageMax := control.NewSiteCurveAgeMaximum(140, 140, 0, 0)

	growth, err := GrowDominantHeight(ageMax, models.Coastal, 20, sitetool.FdcBruce, 30, float32(ytbh))
	require.NoError(t, err)
	assert.Greater(t, growth, float32(0))

	age, err := sitetool.HeightAndSiteIndexToAge(sitetool.FdcBruce, 20, sitetool.AgeBreast, 30, ytbh)
	require.NoError(t, err)
	next, err := sitetool.AgeAndSiteIndexToHeight(sitetool.FdcBruce, age+1, sitetool.AgeBreast, 30, ytbh)
	require.NoError(t, err)
	assert.InDelta(t, next-20, float64(growth), 1e-3)
}

func TestGrowDominantHeight_StopsPastAgeLimit(t *testing.T) {
	ageMax := control.NewSiteCurveAgeMaximum(20, 20, 0, 0)
	growth, err := GrowDominantHeight(ageMax, models.Coastal, 30, sitetool.FdcBruce, 30, 8.3)
	require.NoError(t, err)
	assert.Equal(t, float32(0), growth)
}

func TestGrowDominantHeight_PartialYearAtAgeLimit(t *testing.T) {
	const ytbh = float32(8.3)
	age, err := sitetool.HeightAndSiteIndexToAge(sitetool.FdcBruce, 20, sitetool.AgeBreast, 30, float64(ytbh))
	require.NoError(t, err)

	// The age limit falls half way through the year.
	limit := float32(age) + ytbh + 0.5
	growth, err := GrowDominantHeight(control.NewSiteCurveAgeMaximum(limit, limit, 0, 0), models.Coastal, 20,
		sitetool.FdcBruce, 30, ytbh)
	require.NoError(t, err)

	yearPart := float64(float32(float64(limit-ytbh) - age + 0.01))
	current, err := sitetool.AgeAndSiteIndexToHeight(sitetool.FdcBruce, age, sitetool.AgeBreast, 30, float64(ytbh))
	require.NoError(t, err)
	next, err := sitetool.AgeAndSiteIndexToHeight(sitetool.FdcBruce, age+yearPart, sitetool.AgeBreast, 30, float64(ytbh))
	require.NoError(t, err)
	assert.Equal(t, float32(next-current), growth)

	full, err := GrowDominantHeight(control.NewSiteCurveAgeMaximum(140, 140, 0, 0), models.Coastal, 20,
		sitetool.FdcBruce, 30, ytbh)
	require.NoError(t, err)
	assert.Less(t, growth, full)
}

func TestGrowDominantHeight_Extension(t *testing.T) {
	// Past the limit, growth decays but continues until T2.
	within := control.NewSiteCurveAgeMaximum(20, 20, 50, 500)
	growth, err := GrowDominantHeight(within, models.Coastal, 30, sitetool.FdcBruce, 30, 8.3)
	require.NoError(t, err)
	assert.Greater(t, growth, float32(0))

	beyond := control.NewSiteCurveAgeMaximum(20, 20, 50, 0)
	growth, err = GrowDominantHeight(beyond, models.Coastal, 30, sitetool.FdcBruce, 30, 8.3)
	require.NoError(t, err)
	assert.Equal(t, float32(0), growth)
}

func TestGrowDominantHeight_Errors(t *testing.T) {
	ageMax := control.NewSiteCurveAgeMaximum(140, 140, 0, 0)

	_, err := GrowDominantHeight(ageMax, models.Coastal, 20, models.MissingInteger, 30, 8.3)
	assert.True(t, errors.Is(err, ErrInvalidStand))

	_, err = GrowDominantHeight(ageMax, models.Coastal, 1.3, sitetool.FdcBruce, 30, 8.3)
	assert.True(t, errors.Is(err, ErrInvalidStand))

	_, err = GrowDominantHeight(ageMax, models.Coastal, 20, 99, 30, 8.3)
	assert.True(t, errors.Is(err, sitetool.ErrCurve))
}

// ----------------------------------------------------------------------------
// Per-species updates
// ----------------------------------------------------------------------------

func TestGrowUsingNoSpeciesDynamics(t *testing.T) {
	m := controltest.Map()
	g, b := testGrower(t, m)

	g.GrowUsingNoSpeciesDynamics(0.1, 0.98)

	// Slot 1 is F, slot 2 is H.
	assert.InDelta(t, 30*1.1, b.BasalAreas[1][models.UCAll], 1e-4)
	assert.InDelta(t, 600*0.98, b.TreesPerHectare[1][models.UCAll], 1e-3)
	assert.InDelta(t, calc.QuadMeanDiameter(33, 588), b.QuadMeanDiameters[1][models.UCAll], 1e-4)
	assert.InDelta(t, 10*1.1, b.BasalAreas[2][models.UCAll], 1e-4)
}

func TestGrowUsingNoSpeciesDynamics_DiameterFloor(t *testing.T) {
	m := controltest.Map()
	g, b := testGrower(t, m)

	// A hundredfold increase in stems pushes DQ under the floor.
	g.GrowUsingNoSpeciesDynamics(0, 100)

	assert.Equal(t, float32(MinimumSpeciesQuadMeanDiameter), b.QuadMeanDiameters[1][models.UCAll])
	assert.InDelta(t, calc.TreesPerHectare(30, MinimumSpeciesQuadMeanDiameter), b.TreesPerHectare[1][models.UCAll], 1e-2)
}

func TestGrowLoreyHeights_KeepsRatioToEstimate(t *testing.T) {
	m := controltest.Map()
	g, b := testGrower(t, m)

	pspLhStart := b.LoreyHeights[1][models.UCAll]
	require.NoError(t, g.GrowLoreyHeights(26, 26.5, 600, 590, pspLhStart))

	estStart, err := estimate.PrimaryLoreyHeight(m, "F", models.Coastal, 26, 600)
	require.NoError(t, err)
	estEnd, err := estimate.PrimaryLoreyHeight(m, "F", models.Coastal, 26.5, 590)
	require.NoError(t, err)
	want := 1.3 + (estEnd-1.3)*(pspLhStart-1.3)/(estStart-1.3)
	assert.InDelta(t, want, b.LoreyHeights[1][models.UCAll], 1e-4)

	// H has no pairing with F, so it follows the default dominant-height relationship.
	otherF := (float32(20) - 1.3) / (26 - 1.3)
	assert.InDelta(t, 1.3+(26.5-1.3)*otherF, b.LoreyHeights[2][models.UCAll], 1e-4)
}

func TestGrowLoreyHeights_NoHeightChangeStrategy(t *testing.T) {
	m := controltest.WithDebug(controltest.Map(), control.LoreyHeightChangeStrategy8, 2)
	g, b := testGrower(t, m)
	before := append([]bank.LoreyHeights(nil), b.LoreyHeights...)

	require.NoError(t, g.GrowLoreyHeights(26, 26, 600, 590, 25))

	assert.Equal(t, before, b.LoreyHeights)
}
