// Package calc provides the deterministic stand arithmetic shared by the
// estimators and the growth engine.
package calc

import (
	"math"

	"vdyp_forward/pkg/core/fmath"
)

// =============================================================================
// BASAL AREA / TREE DENSITY / DIAMETER
// =============================================================================

// PI40K converts diameter squared (cm²) to basal area per tree (m²).
const PI40K = float32(math.Pi / 40000.0)

// TreesPerHectare from basal area (m²/ha) and quadratic mean diameter (cm).
// Non-positive or NaN inputs yield 0.
func TreesPerHectare(basalArea, quadMeanDiameter float32) float32 {
	if basalArea > 0 && quadMeanDiameter > 0 {
		return basalArea / PI40K / (quadMeanDiameter * quadMeanDiameter)
	}
	return 0
}

// QuadMeanDiameter from basal area (m²/ha) and trees per hectare.
func QuadMeanDiameter(basalArea, treesPerHectare float32) float32 {
	if basalArea > 1e6 || fmath.IsNaN(basalArea) || basalArea <= 0 ||
		treesPerHectare > 1e6 || fmath.IsNaN(treesPerHectare) || treesPerHectare <= 0 {
		return 0
	}
	return fmath.Sqrt(basalArea / treesPerHectare / PI40K)
}

// BasalArea from quadratic mean diameter (cm) and trees per hectare.
func BasalArea(quadMeanDiameter, treesPerHectare float32) float32 {
	if fmath.IsNaN(quadMeanDiameter) || fmath.IsNaN(treesPerHectare) {
		return 0
	}
	return quadMeanDiameter * quadMeanDiameter * PI40K * treesPerHectare
}
