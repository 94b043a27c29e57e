package sitetool_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdyp_forward/pkg/core/sitetool"
)

func TestHeightAtIndexAgeEqualsSiteIndex(t *testing.T) {
	for _, c := range []int{sitetool.FdcBruce, sitetool.FdcCochran, sitetool.PliThrower} {
		for _, si := range []float64{15, 25, 35} {
			h, err := sitetool.AgeAndSiteIndexToHeight(c, 50, sitetool.AgeBreast, si, 5)
			require.NoError(t, err)
			assert.InDelta(t, si, h, 0.05, "curve %s si %v", sitetool.CurveName(c), si)
		}
	}
}

func TestHeightIncreasesWithAge(t *testing.T) {
	for _, c := range []int{sitetool.FdcBruce, sitetool.FdcCochran, sitetool.PliThrower} {
		prev := 0.0
		for age := 1.0; age < 200; age += 5 {
			h, err := sitetool.AgeAndSiteIndexToHeight(c, age, sitetool.AgeBreast, 30, 6)
			require.NoError(t, err)
			assert.Greater(t, h, prev, "curve %s age %v", sitetool.CurveName(c), age)
			prev = h
		}
	}
}

func TestAgeRoundTrip(t *testing.T) {
	for _, c := range []int{sitetool.FdcBruce, sitetool.PliThrower} {
		h, err := sitetool.AgeAndSiteIndexToHeight(c, 73, sitetool.AgeBreast, 28, 7)
		require.NoError(t, err)

		age, err := sitetool.HeightAndSiteIndexToAge(c, h, sitetool.AgeBreast, 28, 7)
		require.NoError(t, err)
		assert.InDelta(t, 73, age, 0.001)
	}
}

func TestSiteIndexRoundTrip(t *testing.T) {
	h, err := sitetool.AgeAndSiteIndexToHeight(sitetool.FdcBruce, 80, sitetool.AgeBreast, 32, 6)
	require.NoError(t, err)

	si, err := sitetool.HeightAndAgeToSiteIndex(sitetool.FdcBruce, h, 80, sitetool.AgeBreast, 6)
	require.NoError(t, err)
	assert.InDelta(t, 32, si, 0.001)
}

func TestHeightBeyondCurveHasNoAnswer(t *testing.T) {
	_, err := sitetool.HeightAndSiteIndexToAge(sitetool.PliThrower, 500, sitetool.AgeBreast, 20, 5)
	assert.True(t, errors.Is(err, sitetool.ErrNoAnswer))
}

func TestUnknownCurve(t *testing.T) {
	_, err := sitetool.AgeAndSiteIndexToHeight(99, 50, sitetool.AgeBreast, 30, 5)
	assert.ErrorIs(t, err, sitetool.ErrCurve)

	_, err = sitetool.YearsToBreastHeight(99, 30)
	assert.ErrorIs(t, err, sitetool.ErrCurve)
}

func TestSiteIndexBelowBreastHeight(t *testing.T) {
	_, err := sitetool.AgeAndSiteIndexToHeight(sitetool.FdcBruce, 50, sitetool.AgeBreast, 1.0, 5)
	assert.ErrorIs(t, err, sitetool.ErrHeightBelowBreastHeight)
}

func TestYearsToBreastHeight(t *testing.T) {
	y, err := sitetool.YearsToBreastHeight(sitetool.FdcBruce, 30)
	require.NoError(t, err)
	assert.InDelta(t, 8.3, y, 1e-9)

	// Very productive sites bottom out at one year.
	y, err = sitetool.YearsToBreastHeight(sitetool.FdcBruce, 80)
	require.NoError(t, err)
	assert.Equal(t, 1.0, y)

	y, err = sitetool.YearsToBreastHeight(sitetool.PliThrower, 20)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, y, 1e-9)
}

func TestConvertSiteIndexBetweenCurves(t *testing.T) {
	si, err := sitetool.ConvertSiteIndexBetweenCurves(sitetool.FdcBruce, 27.5, sitetool.FdcCochran)
	require.NoError(t, err)
	assert.Equal(t, 27.5, si)

	_, err = sitetool.ConvertSiteIndexBetweenCurves(sitetool.FdcBruce, 27.5, sitetool.PliThrower)
	assert.ErrorIs(t, err, sitetool.ErrNoAnswer)

	_, err = sitetool.ConvertSiteIndexBetweenCurves(3, 27.5, sitetool.PliThrower)
	assert.ErrorIs(t, err, sitetool.ErrCurve)
}

func TestSpeciesCurve(t *testing.T) {
	c, err := sitetool.SpeciesCurve("PL", false)
	require.NoError(t, err)
	assert.Equal(t, sitetool.PliThrower, c)

	_, err = sitetool.SpeciesCurve("MB", true)
	assert.ErrorIs(t, err, sitetool.ErrSpecies)
}
