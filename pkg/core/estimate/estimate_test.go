package estimate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/control/controltest"
	"vdyp_forward/pkg/models"
)

func coastal(t *testing.T, m *control.Map) models.BecZone {
	t.Helper()
	bec, err := m.BecZone(controltest.CoastalBec)
	require.NoError(t, err)
	return bec
}

// ----------------------------------------------------------------------------
// Heights
// ----------------------------------------------------------------------------

func TestPrimaryLoreyHeight_RoundTrip(t *testing.T) {
	m := controltest.Map()

	lh, err := PrimaryLoreyHeight(m, "F", models.Coastal, 26, 600)
	require.NoError(t, err)
	assert.Greater(t, lh, float32(1.3))

	dh, err := DominantHeightFromLoreyHeight(m, "F", models.Coastal, lh, 600)
	require.NoError(t, err)
	assert.InDelta(t, 26, dh, 1e-4)

	_, err = PrimaryLoreyHeight(m, "ZZ", models.Coastal, 26, 600)
	assert.True(t, errors.Is(err, control.ErrConfiguration))
}

func TestNonPrimaryLoreyHeight(t *testing.T) {
	m := controltest.Map()
	m.NonPrimaryHLCoefficientTable.Put("H", "F", models.Coastal,
		control.NonPrimaryHLCoefficients{A0: 1, A1: 1, Equation: 2})
	m.NonPrimaryHLCoefficientTable.Put("C", "F", models.Coastal,
		control.NonPrimaryHLCoefficients{A0: 0.5, A1: 1, Equation: 1})
	m.NonPrimaryHLCoefficientTable.Put("PL", "F", models.Coastal,
		control.NonPrimaryHLCoefficients{A0: 1, A1: 1, Equation: 3})

	lh, err := NonPrimaryLoreyHeight(m, "H", "F", models.Coastal, 26, 23)
	require.NoError(t, err)
	assert.InDelta(t, 23, lh, 1e-5)

	lh, err = NonPrimaryLoreyHeight(m, "C", "F", models.Coastal, 21.3, 23)
	require.NoError(t, err)
	assert.InDelta(t, 11.3, lh, 1e-5)

	_, err = NonPrimaryLoreyHeight(m, "PL", "F", models.Coastal, 26, 23)
	assert.True(t, errors.Is(err, control.ErrConfiguration))
}

// ----------------------------------------------------------------------------
// Small components
// ----------------------------------------------------------------------------

func TestSmallComponents(t *testing.T) {
	m := controltest.Map()

	s, err := SmallComponents(m, "F", models.Coastal, 25, 30, 25, 52, 0)
	require.NoError(t, err)

	assert.Greater(t, s.Probability, float32(0))
	assert.Less(t, s.Probability, float32(1))
	assert.GreaterOrEqual(t, s.QuadMeanDiameter, float32(4))
	assert.LessOrEqual(t, s.QuadMeanDiameter, float32(7.5))
	assert.GreaterOrEqual(t, s.BasalArea, float32(0))
	assert.Greater(t, s.MeanVolume, float32(0))

	cond, err := ConditionalExpectedBasalArea(m, "F", 30, 25)
	require.NoError(t, err)
	assert.InDelta(t, s.Probability*cond, s.BasalArea, 1e-6)
}

func TestSmallComponents_FractionAvailable(t *testing.T) {
	m := controltest.Map()

	s, err := SmallComponents(m, "F", models.Coastal, 25, 30, 25, 52, 0.5)
	require.NoError(t, err)

	cond, err := ConditionalExpectedBasalArea(m, "F", 15, 25)
	require.NoError(t, err)
	assert.InDelta(t, s.Probability*cond/0.5, s.BasalArea, 1e-5)
}

func TestSmallLoreyHeight_EqualDiametersKeepHeight(t *testing.T) {
	m := controltest.Map()
	lh, err := SmallLoreyHeight(m, "H", 20, 12, 12)
	require.NoError(t, err)
	assert.InDelta(t, 20, lh, 1e-5)
}

func TestSmallComponents_UnknownGenus(t *testing.T) {
	_, err := SmallComponents(controltest.Map(), "ZZ", models.Coastal, 25, 30, 25, 52, 0)
	assert.True(t, errors.Is(err, control.ErrConfiguration))
}

// ----------------------------------------------------------------------------
// Utilization classes
// ----------------------------------------------------------------------------

func TestQuadMeanDiameterByUtilization(t *testing.T) {
	m := controltest.Map()
	var dq models.UtilizationVector
	dq[models.UCAll] = 25

	require.NoError(t, QuadMeanDiameterByUtilization(m, coastal(t, m), &dq, "F"))

	assert.LessOrEqual(t, dq[models.UC75To125], float32(25))
	for _, uc := range []models.UtilizationClass{models.UC125To175, models.UC175To225} {
		assert.GreaterOrEqual(t, dq[uc], uc.LowBound(), uc.String())
		assert.LessOrEqual(t, dq[uc], uc.HighBound(), uc.String())
	}
	assert.GreaterOrEqual(t, dq[models.UCOver225], float32(22.5))
	assert.Equal(t, float32(25), dq[models.UCAll])
}

func TestQuadMeanDiameterByUtilization_SmallTotalPinsAll(t *testing.T) {
	m := controltest.Map()
	var dq models.UtilizationVector
	dq[models.UCAll] = 7.2

	require.NoError(t, QuadMeanDiameterByUtilization(m, coastal(t, m), &dq, "F"))
	assert.Equal(t, float32(7.5), dq[models.UCAll])
	assert.Zero(t, dq[models.UC75To125])
}

func TestBasalAreaByUtilization_BandsSumToTotal(t *testing.T) {
	m := controltest.Map()
	bec := coastal(t, m)

	for _, dqAll := range []float32{10, 18, 32} {
		var dq, ba models.UtilizationVector
		dq[models.UCAll] = dqAll
		ba[models.UCAll] = 30
		require.NoError(t, QuadMeanDiameterByUtilization(m, bec, &dq, "F"))
		require.NoError(t, BasalAreaByUtilization(m, bec, &dq, &ba, "F"))

		assert.InDelta(t, 30, ba.BandSum(), 1e-4, "dq %v", dqAll)
		for _, uc := range models.UtilizationBands {
			assert.GreaterOrEqual(t, ba[uc], float32(0), "dq %v %s", dqAll, uc)
		}
	}
}

func TestVolumeChain(t *testing.T) {
	m := controltest.Map()
	bec := coastal(t, m)
	volumeGroup, err := m.VolumeEquationGroup("F", bec.Alias)
	require.NoError(t, err)
	decayGroup, err := m.DecayEquationGroup("F", bec.DecayAlias())
	require.NoError(t, err)

	const lh = float32(25)
	var dq, ba, tph, ws, cu, nd, ndw models.UtilizationVector
	dq[models.UCAll], ba[models.UCAll] = 25, 30
	require.NoError(t, QuadMeanDiameterByUtilization(m, bec, &dq, "F"))
	require.NoError(t, BasalAreaByUtilization(m, bec, &dq, &ba, "F"))
	tph[models.UCAll] = calc.TreesPerHectare(ba[models.UCAll], dq[models.UCAll])

	perTree, err := WholeStemVolumePerTree(m, volumeGroup, lh, dq[models.UCAll])
	require.NoError(t, err)
	ws[models.UCAll] = perTree * tph[models.UCAll]

	require.NoError(t, WholeStemVolume(m, models.UCAll, 0, volumeGroup, lh, &dq, &ba, &ws))
	assert.InDelta(t, ws[models.UCAll], ws.BandSum(), float64(1e-3*ws[models.UCAll]))

	none := &models.UtilizationVector{}
	require.NoError(t, CloseUtilizationVolume(m, models.UCAll, none, volumeGroup, lh, &dq, &ws, &cu))
	require.NoError(t, NetDecayVolume(m, "F", models.Coastal, models.UCAll, none, decayGroup, 52, &dq, &cu, &nd))
	require.NoError(t, NetDecayAndWasteVolume(m, models.Coastal, models.UCAll, nil, "F", lh, &dq, &cu, &nd, &ndw))

	for _, uc := range models.UtilizationBands {
		assert.LessOrEqual(t, cu[uc], ws[uc], "close utilization %s", uc)
		assert.LessOrEqual(t, nd[uc], cu[uc], "net decay %s", uc)
		assert.LessOrEqual(t, ndw[uc], nd[uc], "net decay and waste %s", uc)
		assert.GreaterOrEqual(t, ndw[uc], float32(0), "net decay and waste %s", uc)
	}
	assert.InDelta(t, cu.BandSum(), cu[models.UCAll], 1e-4)
	assert.InDelta(t, nd.BandSum(), nd[models.UCAll], 1e-4)
	assert.InDelta(t, ndw.BandSum(), ndw[models.UCAll], 1e-4)
}

func TestWholeStemVolume_SingleBand(t *testing.T) {
	m := controltest.Map()
	bec := coastal(t, m)
	volumeGroup, err := m.VolumeEquationGroup("F", bec.Alias)
	require.NoError(t, err)

	var dq, ba, ws models.UtilizationVector
	dq[models.UCAll], ba[models.UCAll] = 25, 30
	require.NoError(t, QuadMeanDiameterByUtilization(m, bec, &dq, "F"))
	require.NoError(t, BasalAreaByUtilization(m, bec, &dq, &ba, "F"))

	require.NoError(t, WholeStemVolume(m, models.UC175To225, 0, volumeGroup, 25, &dq, &ba, &ws))
	base := ws[models.UC175To225]
	assert.Greater(t, base, float32(0))
	assert.Zero(t, ws[models.UC75To125], "other bands untouched")

	require.NoError(t, WholeStemVolume(m, models.UC175To225, 0.1, volumeGroup, 25, &dq, &ba, &ws))
	assert.InEpsilon(t, base*1.105171, ws[models.UC175To225], 1e-5)
}

func TestWholeStemVolume_NothingToNormalize(t *testing.T) {
	m := controltest.Map()
	volumeGroup, err := m.VolumeEquationGroup("F", controltest.CoastalBec)
	require.NoError(t, err)

	var dq, ba, ws models.UtilizationVector
	dq[models.UCAll] = 20
	ws[models.UCAll] = 100
	for _, uc := range models.UtilizationBands {
		ba[uc] = -1
	}
	err = WholeStemVolume(m, models.UCAll, 0, volumeGroup, 25, &dq, &ba, &ws)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestSafeExponent(t *testing.T) {
	_, err := safeExponent(89)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	r, err := exponentRatio(0)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), r)
}

// ----------------------------------------------------------------------------
// Species DQ
// ----------------------------------------------------------------------------

func TestQuadMeanDiameterForSpecies(t *testing.T) {
	m := controltest.Map()
	fractions := map[string]float32{"F": 0.75, "H": 0.25}
	standDQ := calc.QuadMeanDiameter(40, 900)

	dqF, err := QuadMeanDiameterForSpecies(m, "F", 25, fractions, models.Coastal, standDQ, 40, 900, 24)
	require.NoError(t, err)
	dqH, err := QuadMeanDiameterForSpecies(m, "H", 20, fractions, models.Coastal, standDQ, 40, 900, 24)
	require.NoError(t, err)

	// The taller species carries the larger trees.
	assert.InDelta(t, 24.13, dqF, 0.01)
	assert.InDelta(t, 22.54, dqH, 0.01)
	assert.Greater(t, dqF, standDQ)
	assert.Less(t, dqH, standDQ)
}

func TestQuadMeanDiameterForSpecies_WholeStand(t *testing.T) {
	dq, err := QuadMeanDiameterForSpecies(controltest.Map(), "F", 25, map[string]float32{"F": 1}, models.Coastal,
		21, 40, 900, 24)
	require.NoError(t, err)
	assert.Equal(t, float32(21), dq)
}

func TestQuadMeanDiameterForSpecies_MissingCoefficients(t *testing.T) {
	_, err := QuadMeanDiameterForSpecies(controltest.Map(), "S", 25, map[string]float32{"S": 0.5, "F": 0.5},
		models.Coastal, 21, 40, 900, 24)
	assert.True(t, errors.Is(err, control.ErrConfiguration))
}

func TestClampSpeciesQuadMeanDiameter(t *testing.T) {
	limits := control.ComponentSizeLimits{MaxLoreyHeight: 60, MaxQuadMeanDiameter: 80, MinDQLoreyHeightRatio: 0.3,
		MaxDQLoreyHeightRatio: 3}

	// Short trees are held to three times their height.
	assert.Equal(t, float32(15), clampSpeciesQuadMeanDiameter(limits, 900, 7.6, 5, 30, 10, 100))
	// Tall trees are held to 0.3 times their height.
	assert.Equal(t, float32(12), clampSpeciesQuadMeanDiameter(limits, 1000, 7.6, 40, 1, 40, 500))
}
