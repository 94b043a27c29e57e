package fmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaN(t *testing.T) {
	assert.True(t, IsNaN(NaN()))
	assert.False(t, IsNaN(0))
	assert.True(t, IsNaN(Sqrt(-1)))
}

func TestMinMaxClamp(t *testing.T) {
	assert.Equal(t, float32(1), Min(1, 2))
	assert.Equal(t, float32(2), Max(1, 2))
	assert.Equal(t, float32(7.5), Clamp(3, 7.5, 10))
	assert.Equal(t, float32(10), Clamp(12, 7.5, 10))
	assert.Equal(t, float32(8), Clamp(8, 7.5, 10))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, float32(0), Ratio(-8, 7))
	assert.Equal(t, float32(1), Ratio(8, 7))
	assert.Equal(t, float32(0.5), Ratio(0, 7))
	assert.InDelta(t, 0.7310586, Ratio(1, 7), 1e-6)
}

func TestWrappers(t *testing.T) {
	assert.InDelta(t, 2.7182817, Exp(1), 1e-6)
	assert.InDelta(t, 0, Log(1), 1e-7)
	assert.Equal(t, float32(8), Pow(2, 3))
	assert.Equal(t, float32(3), Abs(-3))
}
