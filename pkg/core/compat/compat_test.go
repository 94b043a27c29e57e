package compat

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
	"vdyp_forward/pkg/models"
)

const primaryYabh = 50

func species(genus string, index int, ba, tph, lh float32) models.Species {
	u := &models.UtilizationValues{LoreyHeightAll: lh}
	u.BasalArea[models.UCAll] = ba
	u.TreesPerHectare[models.UCAll] = tph
	u.QuadMeanDiameter[models.UCAll] = calc.QuadMeanDiameter(ba, tph)
	return models.Species{Genus: genus, GenusIndex: index, YearsAtBreastHeight: primaryYabh, Utilization: u}
}

func newBank(t *testing.T, m *control.Map, sp ...models.Species) *bank.Bank {
	t.Helper()
	bec, err := m.BecZone(controltest.CoastalBec)
	require.NoError(t, err)
	return bank.New(&models.Layer{Type: models.LayerPrimary, Species: sp}, bec, bank.AboveMinimumBasalArea)
}

// consistentBank fills every utilization component of each species from the
// estimators themselves, so every compatibility variable should vanish.
func consistentBank(t *testing.T, m *control.Map) (*bank.Bank, EquationGroups) {
	t.Helper()
	b := newBank(t, m, species("F", 7, 30, 600, 25), species("H", 8, 10, 300, 20))
	groups, err := ResolveEquationGroups(m, b)
	require.NoError(t, err)

	for _, i := range b.Indices() {
		genus := b.SpeciesNames[i]
		lh := b.LoreyHeights[i][models.UCAll]

		ba, tph, dq := b.BasalAreas[i], b.TreesPerHectare[i], b.QuadMeanDiameters[i]
		require.NoError(t, estimate.QuadMeanDiameterByUtilization(m, b.BecZone, &dq, genus))
		require.NoError(t, estimate.BasalAreaByUtilization(m, b.BecZone, &dq, &ba, genus))
		for _, uc := range models.UtilizationBands {
			tph[uc] = calc.TreesPerHectare(ba[uc], dq[uc])
		}
		require.NoError(t, calc.ReconcileComponents(&ba, &tph, &dq))

		var ws, cu, nd, ndw models.UtilizationVector
		perTree, err := estimate.WholeStemVolumePerTree(m, groups.Volume[i], lh, dq[models.UCAll])
		require.NoError(t, err)
		ws[models.UCAll] = tph[models.UCAll] * perTree
		require.NoError(t, estimate.WholeStemVolume(m, models.UCAll, 0, groups.Volume[i], lh, &dq, &ba, &ws))
		none := &models.UtilizationVector{}
		require.NoError(t, estimate.CloseUtilizationVolume(m, models.UCAll, none, groups.Volume[i], lh, &dq, &ws, &cu))
		require.NoError(t, estimate.NetDecayVolume(m, genus, b.BecZone.Region, models.UCAll, none, groups.Decay[i],
			primaryYabh, &dq, &cu, &nd))
		require.NoError(t, estimate.NetDecayAndWasteVolume(m, b.BecZone.Region, models.UCAll, none, genus, lh,
			&dq, &cu, &nd, &ndw))

		small, err := estimate.SmallComponents(m, genus, b.BecZone.Region, lh, ba[models.UCAll], dq[models.UCAll],
			primaryYabh, 0)
		require.NoError(t, err)
		ba[models.UCSmall] = small.BasalArea
		dq[models.UCSmall] = small.QuadMeanDiameter
		tph[models.UCSmall] = calc.TreesPerHectare(small.BasalArea, small.QuadMeanDiameter)
		ws[models.UCSmall] = tph[models.UCSmall] * small.MeanVolume
		b.LoreyHeights[i][models.UCSmall] = small.LoreyHeight

		b.BasalAreas[i], b.TreesPerHectare[i], b.QuadMeanDiameters[i] = ba, tph, dq
		b.WholeStemVolumes[i], b.CloseUtilizationVolumes[i] = ws, cu
		b.CUVolumesMinusDecay[i], b.CUVolumesMinusDecayAndWastage[i] = nd, ndw
	}
	return b, groups
}

// ----------------------------------------------------------------------------
// Equation groups
// ----------------------------------------------------------------------------

func TestResolveEquationGroups(t *testing.T) {
	m := controltest.Map()
	b := newBank(t, m, species("C", 4, 10, 300, 20), species("H", 8, 10, 300, 20))

	g, err := ResolveEquationGroups(m, b)
	require.NoError(t, err)

	assert.Equal(t, []int{models.MissingInteger, 11, 12}, g.Volume)
	assert.Equal(t, []int{models.MissingInteger, 10, 12}, g.Decay)
	assert.Equal(t, []int{models.MissingInteger, 10, 12}, g.Breakage)

	again, err := ResolveEquationGroups(m, b)
	require.NoError(t, err)
	assert.Equal(t, g, again)
}

func TestResolveEquationGroups_UnknownGenusIsFatal(t *testing.T) {
	m := controltest.Map()
	b := newBank(t, m, species("Y", 16, 10, 300, 20))

	_, err := ResolveEquationGroups(m, b)
	assert.True(t, errors.Is(err, control.ErrConfiguration))
}

// ----------------------------------------------------------------------------
// Calculation
// ----------------------------------------------------------------------------

func TestCalculate_ConsistentBankHasNoCorrections(t *testing.T) {
	m := controltest.Map()
	b, groups := consistentBank(t, m)
	before := b.Copy()

	v, err := NewCalculator(m, b, groups, 1, primaryYabh).Calculate()
	require.NoError(t, err)

	for _, i := range b.Indices() {
		for _, uc := range models.UtilizationBands {
			assert.InDelta(t, 0, v.BasalArea[i][uc], 1e-4, "BA %s %s", b.SpeciesNames[i], uc)
			assert.InDelta(t, 0, v.QuadMeanDiameter[i][uc], 1e-4, "DQ %s %s", b.SpeciesNames[i], uc)
			for _, vv := range models.VolumeVariables {
				assert.InDelta(t, 0, v.VolumeValue(i, uc, vv), 1e-4, "%s %s %s", vv, b.SpeciesNames[i], uc)
			}
		}
		for _, ucv := range models.UtilizationClassVariables {
			assert.InDelta(t, 0, v.SmallValue(i, ucv), 1e-4, "small %s %s", ucv, b.SpeciesNames[i])
		}
	}

	assert.Equal(t, before.BasalAreas, b.BasalAreas)
	assert.Equal(t, before.CloseUtilizationVolumes, b.CloseUtilizationVolumes)
}

func TestCalculate_MeasuredVolumeAboveEstimateIsPositive(t *testing.T) {
	m := controltest.Map()
	b, groups := consistentBank(t, m)

	uc := models.UC125To175
	ws := b.WholeStemVolumes[1][uc]
	b.CloseUtilizationVolumes[1][uc] = 0.5*b.CloseUtilizationVolumes[1][uc] + 0.5*ws

	v, err := NewCalculator(m, b, groups, 1, primaryYabh).Calculate()
	require.NoError(t, err)
	assert.Greater(t, v.VolumeValue(1, uc, models.CloseUtilizationVolume), float32(0))
	assert.InDelta(t, 0, v.VolumeValue(2, uc, models.CloseUtilizationVolume), 1e-4)
}

func TestCalculate_SmallBaseVolumeIsNotCalibrated(t *testing.T) {
	m := controltest.Map()
	b, groups := consistentBank(t, m)

	uc := models.UCOver225
	b.WholeStemVolumes[1][uc] = 0.05
	b.CloseUtilizationVolumes[1][uc] = 0.04

	v, err := NewCalculator(m, b, groups, 1, primaryYabh).Calculate()
	require.NoError(t, err)
	assert.Equal(t, float32(0), v.VolumeValue(1, uc, models.CloseUtilizationVolume))
}

func TestCalculate_SmallBasalAreaDifference(t *testing.T) {
	m := controltest.Map()
	b, groups := consistentBank(t, m)
	b.BasalAreas[2][models.UCSmall] += 0.25

	v, err := NewCalculator(m, b, groups, 1, primaryYabh).Calculate()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v.SmallValue(2, models.BasalAreaVariable), 1e-5)
}

// ----------------------------------------------------------------------------
// Helpers and adjustments
// ----------------------------------------------------------------------------

func TestLogitSaturates(t *testing.T) {
	assert.Equal(t, float32(-7), logit(0))
	assert.Equal(t, float32(-7), logit(-1))
	assert.Equal(t, float32(7), logit(1))
	assert.Equal(t, float32(0), logit(0.5))
	assert.Equal(t, float32(7), logit(0.99999994))
}

func TestLogRatioDifferenceFloorsAtMinusTwo(t *testing.T) {
	assert.Equal(t, float32(0), logRatioDifference(0, 10, 0))
	assert.InDelta(t, 2.0+0.6931472, logRatioDifference(20, 10, 0), 1e-6)
}

func TestUpdateAfterGrowth(t *testing.T) {
	a, err := control.NewCompVarAdjustments(map[int]float32{
		control.SmallBA: 0.5,
		6:               2, // BA, band 2
		16:              3, // DQ, band 2
		11 + 10*3 + 1:   0.25,
	})
	require.NoError(t, err)

	v := newVariables(2)
	v.Small[1] = SmallVariables{1, 1, 1, 1}
	for _, uc := range models.UtilizationBands {
		v.BasalArea[1][uc] = 1
		v.QuadMeanDiameter[1][uc] = 1
		for _, vv := range models.VolumeVariables {
			v.Volume[1][uc][vv] = 1
		}
	}

	require.NoError(t, v.UpdateAfterGrowth(a))

	assert.Equal(t, SmallVariables{0.5, 1, 1, 1}, v.Small[1])
	assert.Equal(t, float32(2), v.BasalArea[1][models.UC125To175])
	assert.Equal(t, float32(1), v.BasalArea[1][models.UC75To125])
	assert.Equal(t, float32(3), v.QuadMeanDiameter[1][models.UC125To175])
	assert.Equal(t, float32(0.25), v.Volume[1][models.UCOver225][models.CloseUtilizationVolume])
	assert.Equal(t, float32(1), v.Volume[1][models.UCOver225][models.WholeStemVolume])
	assert.Equal(t, SmallVariables{}, v.Small[0])
}
