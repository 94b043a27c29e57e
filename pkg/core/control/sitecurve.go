package control

import (
	"vdyp_forward/pkg/models"
)

const (
	DefaultSiteCurveAgeMaximum = 140.0
	noPracticalAgeLimit        = 1999.0
	DefaultSiteCurveKey        = -1
)

// SiteCurveAgeMaximum caps dominant-height growth along a site curve. T1 and
// T2 shape the extension of the curve past the maximum age.
type SiteCurveAgeMaximum struct {
	Coastal  float32
	Interior float32
	T1       float32
	T2       float32
}

func NewSiteCurveAgeMaximum(coastal, interior, t1, t2 float32) SiteCurveAgeMaximum {
	if coastal <= 0 {
		coastal = noPracticalAgeLimit
	}
	if interior <= 0 {
		interior = noPracticalAgeLimit
	}
	return SiteCurveAgeMaximum{Coastal: coastal, Interior: interior, T1: t1, T2: t2}
}

func (m SiteCurveAgeMaximum) AgeMaximum(r models.Region) float32 {
	if r == models.Interior {
		return m.Interior
	}
	return m.Coastal
}

// SiteCurveAgeMaximums resolves the maximum for a site curve number.
type SiteCurveAgeMaximums struct {
	byCurve  map[int]SiteCurveAgeMaximum
	fallback SiteCurveAgeMaximum
}

func NewSiteCurveAgeMaximums() *SiteCurveAgeMaximums {
	return &SiteCurveAgeMaximums{
		byCurve:  make(map[int]SiteCurveAgeMaximum),
		fallback: SiteCurveAgeMaximum{Coastal: DefaultSiteCurveAgeMaximum, Interior: DefaultSiteCurveAgeMaximum},
	}
}

// Put records the maximum for a curve; DefaultSiteCurveKey replaces the fallback.
func (s *SiteCurveAgeMaximums) Put(curve int, m SiteCurveAgeMaximum) {
	if curve == DefaultSiteCurveKey {
		s.fallback = m
		return
	}
	s.byCurve[curve] = m
}

func (s *SiteCurveAgeMaximums) Get(curve int) SiteCurveAgeMaximum {
	if m, ok := s.byCurve[curve]; ok {
		return m
	}
	return s.fallback
}
