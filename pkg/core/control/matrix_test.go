package control

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdyp_forward/pkg/models"
)

// ----------------------------------------------------------------------------
// Keyed tables
// ----------------------------------------------------------------------------

func TestTable(t *testing.T) {
	tbl := NewTable[string, int]("upper bounds")
	tbl.Put("F", 3)

	v, err := tbl.Get("F")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = tbl.Get("H")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.EqualError(t, err, "configuration error: upper bounds has no entry for (H)")

	tbl.WithDefault(func(k string) int { return len(k) })
	v, err = tbl.Get("PL")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, ok := tbl.Lookup("PL")
	assert.False(t, ok, "defaults are not stored")
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, "upper bounds", tbl.Name())
}

func TestMatrixMap2(t *testing.T) {
	mm := NewMatrixMap2[string, models.Region, float32]("decay modifiers")
	mm.Put("F", models.Coastal, 0.5)

	v, err := mm.Get("F", models.Coastal)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), v)

	_, err = mm.Get("F", models.Interior)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "decay modifiers has no entry for (F, ")

	mm.WithDefault(func(string, models.Region) float32 { return 0 })
	v, err = mm.Get("F", models.Interior)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestMatrixMap3(t *testing.T) {
	mm := NewMatrixMap3[int, string, string, Coefficients]("BA by utilization class")
	mm.Put(1, "F", "CWH", Coefficients{1, 2})

	v, ok := mm.Lookup(1, "F", "CWH")
	require.True(t, ok)
	assert.Equal(t, float32(2), v.At(1))

	_, err := mm.Get(2, "F", "CWH")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "(2, F, CWH)")
	assert.Equal(t, 1, mm.Len())
}

func TestCoefficients(t *testing.T) {
	c := Coefficients{1, 2, 3}
	assert.Equal(t, float32(3), c.At(2))
	assert.Zero(t, c.At(3))
	assert.Zero(t, c.At(-1))

	cp := c.Copy()
	cp[0] = 10
	assert.Equal(t, float32(1), c[0])
	assert.Equal(t, "[1 2 3]", c.String())
}

// ----------------------------------------------------------------------------
// Growth fiat
// ----------------------------------------------------------------------------

func TestGrowthFiatDetails(t *testing.T) {
	d, err := NewGrowthFiatDetails(models.Coastal, []float32{1, 0.08, 100, 0.04, 200, 0.01, 0, 0, 40, 120, 1.5})
	require.NoError(t, err)

	assert.Equal(t, 3, d.NAges())
	assert.Equal(t, float32(100), d.Age(1))
	assert.Equal(t, float32(0.04), d.Coefficient(1))
	assert.Equal(t, float32(120), d.Mixed(1))

	assert.Equal(t, float32(0.08), d.CalculateCoefficient(0.5))
	assert.InDelta(t, 0.06, d.CalculateCoefficient(50.5), 1e-6)
	assert.InDelta(t, 0.025, d.CalculateCoefficient(150), 1e-6)
	assert.Equal(t, float32(0.01), d.CalculateCoefficient(400))
}

func TestGrowthFiatDetails_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		numbers []float32
	}{
		{"too short", []float32{1, 0.1, 0, 0}},
		{"not increasing", []float32{100, 0.1, 50, 0.2, 0, 0, 0, 0, 1, 1, 1}},
		{"values after terminator", []float32{100, 0.1, 0, 0, 200, 0.2, 0, 0, 1, 1, 1}},
		{"no age ranges", make([]float32, FiatDetailsLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrowthFiatDetails(models.Interior, tt.numbers)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestGrowthFiatDetails_RepeatedAge(t *testing.T) {
	d, err := NewGrowthFiatDetails(models.Interior, []float32{50, 0.1, 50, 0.2, 100, 0.05, 0, 0, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 3, d.NAges())
	assert.Equal(t, float32(0.1), d.CalculateCoefficient(50))
	assert.InDelta(t, 0.125, d.CalculateCoefficient(75), 1e-6)
}

// ----------------------------------------------------------------------------
// Site curve age maximums
// ----------------------------------------------------------------------------

func TestSiteCurveAgeMaximums(t *testing.T) {
	s := NewSiteCurveAgeMaximums()
	assert.Equal(t, float32(DefaultSiteCurveAgeMaximum), s.Get(12).AgeMaximum(models.Coastal))

	s.Put(45, NewSiteCurveAgeMaximum(0, 180, 20, 50))
	assert.Equal(t, float32(1999), s.Get(45).AgeMaximum(models.Coastal))
	assert.Equal(t, float32(180), s.Get(45).AgeMaximum(models.Interior))

	s.Put(DefaultSiteCurveKey, NewSiteCurveAgeMaximum(150, 160, 0, 0))
	assert.Equal(t, float32(160), s.Get(12).AgeMaximum(models.Interior))
	assert.Equal(t, float32(180), s.Get(45).AgeMaximum(models.Interior))
}
