package calc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// ----------------------------------------------------------------------------
// Density
// ----------------------------------------------------------------------------

func TestDensityRoundTrip(t *testing.T) {
	tph := TreesPerHectare(30, 25)
	assert.InDelta(t, 611.15, tph, 0.01)
	assert.InDelta(t, 25, QuadMeanDiameter(30, tph), 1e-4)
	assert.InDelta(t, 30, BasalArea(25, tph), 1e-4)
}

func TestDensityDegenerateInputs(t *testing.T) {
	assert.Zero(t, TreesPerHectare(0, 25))
	assert.Zero(t, TreesPerHectare(30, -1))
	assert.Zero(t, TreesPerHectare(fmath.NaN(), 25))
	assert.Zero(t, QuadMeanDiameter(30, 0))
	assert.Zero(t, QuadMeanDiameter(fmath.NaN(), 100))
	assert.Zero(t, QuadMeanDiameter(2e6, 100))
	assert.Zero(t, BasalArea(fmath.NaN(), 100))
}

// ----------------------------------------------------------------------------
// Reconciliation
// ----------------------------------------------------------------------------

func bands(ba, dq [4]float32) (models.UtilizationVector, models.UtilizationVector, models.UtilizationVector) {
	var b, tph, d models.UtilizationVector
	for i, uc := range models.UtilizationBands {
		b[uc], d[uc] = ba[i], dq[i]
		tph[uc] = TreesPerHectare(ba[i], dq[i])
	}
	b[models.UCAll] = b.BandSum()
	tph[models.UCAll] = tph.BandSum()
	d[models.UCAll] = QuadMeanDiameter(b[models.UCAll], tph[models.UCAll])
	return b, tph, d
}

func TestReconcile_ConsistentInputUnchanged(t *testing.T) {
	ba, tph, dq := bands([4]float32{4, 6, 8, 12}, [4]float32{10, 15, 20, 25})
	wantBA, wantTPH, wantDQ := ba, tph, dq

	require.NoError(t, ReconcileComponents(&ba, &tph, &dq))
	assert.Equal(t, wantBA, ba)
	assert.Equal(t, wantTPH, tph)
	assert.Equal(t, wantDQ, dq)
}

func TestReconcile_ScalesDiameters(t *testing.T) {
	ba, tph, dq := bands([4]float32{4, 6, 8, 12}, [4]float32{10, 15, 20, 25})
	tph[models.UCAll] = 1400

	require.NoError(t, ReconcileComponents(&ba, &tph, &dq))

	assert.InEpsilon(t, 1400, tph.BandSum(), 2e-4)
	assert.InEpsilon(t, 30, ba.BandSum(), 2e-4)
	for _, uc := range models.UtilizationBands {
		assert.GreaterOrEqual(t, dq[uc], uc.LowBound(), uc.String())
		assert.LessOrEqual(t, dq[uc], uc.HighBound(), uc.String())
		assert.Less(t, dq[uc], [...]float32{0, 0, 10, 15, 20, 25}[uc], "more trees means smaller trees in %s", uc)
	}
}

func TestReconcile_MovesBasalAreaDownWhenTooFewTrees(t *testing.T) {
	ba, tph, dq := bands([4]float32{5, 5, 5, 5}, [4]float32{10, 15, 20, 25})
	tph[models.UCAll] = 2500

	require.NoError(t, ReconcileComponents(&ba, &tph, &dq))

	assert.InDelta(t, 20, ba.BandSum(), 1e-4)
	assert.InEpsilon(t, 2500, tph.BandSum(), 1e-4)
	assert.Zero(t, ba[models.UCOver225])
	assert.Zero(t, ba[models.UC175To225])
	for _, uc := range models.UtilizationBands {
		assert.Equal(t, uc.LowBound(), dq[uc])
	}
}

func TestReconcile_NoBasalArea(t *testing.T) {
	ba, tph, dq := bands([4]float32{1, 1, 1, 1}, [4]float32{10, 15, 20, 25})
	ba[models.UCAll] = 0

	require.NoError(t, ReconcileComponents(&ba, &tph, &dq))
	assert.Zero(t, ba.BandSum())
	assert.Zero(t, tph.BandSum())
}

func TestReconcile_Errors(t *testing.T) {
	ba, tph, dq := bands([4]float32{4, 6, 8, 12}, [4]float32{10, 15, 20, 25})
	ba[models.UCAll] = 31
	err := ReconcileComponents(&ba, &tph, &dq)
	assert.True(t, errors.Is(err, ErrReconciliation))
	assert.Contains(t, err.Error(), "do not sum")

	ba, tph, dq = bands([4]float32{0.25, 0.25, 0.25, 0.25}, [4]float32{10, 15, 20, 25})
	tph[models.UCAll] = 1000
	err = ReconcileComponents(&ba, &tph, &dq)
	assert.True(t, errors.Is(err, ErrReconciliation))
	assert.Contains(t, err.Error(), "below 7.5")
}

func TestReconcileMode3_PlacesLayerInItsBand(t *testing.T) {
	var ba, tph, dq models.UtilizationVector
	ba[models.UCAll], tph[models.UCAll], dq[models.UCAll] = 10, 650, 14

	reconcileMode3(&ba, &tph, &dq)

	assert.Equal(t, float32(10), ba[models.UC125To175])
	assert.Equal(t, float32(650), tph[models.UC125To175])
	assert.Equal(t, float32(14), dq[models.UC125To175])
	assert.Zero(t, ba[models.UC75To125])
	assert.Equal(t, float32(10), dq[models.UC75To125])
	assert.Equal(t, float32(25), dq[models.UCOver225])
}

// ----------------------------------------------------------------------------
// Layer totals
// ----------------------------------------------------------------------------

func TestSumSpecies(t *testing.T) {
	f := &models.UtilizationValues{LoreyHeightSmall: 6, LoreyHeightAll: 25}
	f.BasalArea = models.UtilizationVector{0.5, 30, 2, 6, 9, 13}
	f.TreesPerHectare = models.UtilizationVector{120, 600, 200, 180, 120, 100}
	f.WholeStemVolume[models.UCAll] = 300

	h := &models.UtilizationValues{LoreyHeightSmall: 4, LoreyHeightAll: 20}
	h.BasalArea = models.UtilizationVector{0.5, 10, 1, 2, 3, 4}
	h.TreesPerHectare = models.UtilizationVector{60, 300, 100, 90, 60, 50}
	h.WholeStemVolume[models.UCAll] = 80

	total := SumSpecies([]models.Species{
		{Genus: "F", Utilization: f},
		{Genus: "H", Utilization: h},
		{Genus: "C"},
	})

	assert.Equal(t, float32(40), total.BasalArea[models.UCAll])
	assert.Equal(t, float32(900), total.TreesPerHectare[models.UCAll])
	assert.Equal(t, float32(380), total.WholeStemVolume[models.UCAll])
	assert.InDelta(t, QuadMeanDiameter(40, 900), total.QuadMeanDiameter[models.UCAll], 1e-6)
	assert.InDelta(t, 23.75, total.LoreyHeightAll, 1e-5)
	assert.InDelta(t, 5, total.LoreyHeightSmall, 1e-5)
}

func TestSumSpecies_Empty(t *testing.T) {
	total := SumSpecies(nil)
	assert.Zero(t, total.BasalArea[models.UCAll])
	assert.Zero(t, total.LoreyHeightAll)
	assert.Zero(t, total.QuadMeanDiameter[models.UCAll])
}
