// Package fmath provides single-precision wrappers over the math package.
// Every growth and estimation equation is evaluated in float32 so results
// match the legacy yield model bit for bit.
package fmath

import "math"

func Exp(x float32) float32 { return float32(math.Exp(float64(x))) }

func Log(x float32) float32 { return float32(math.Log(float64(x))) }

func Pow(x, y float32) float32 { return float32(math.Pow(float64(x), float64(y))) }

func Sqrt(x float32) float32 { return float32(math.Sqrt(float64(x))) }

func Abs(x float32) float32 { return float32(math.Abs(float64(x))) }

func NaN() float32 { return float32(math.NaN()) }

func IsNaN(x float32) bool { return x != x }

func Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func Max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Ratio returns the logistic of x, saturating to 0 or 1 outside [-limit, limit].
func Ratio(x, limit float32) float32 {
	if x < -limit {
		return 0
	}
	if x > limit {
		return 1
	}
	e := Exp(x)
	return e / (1 + e)
}
