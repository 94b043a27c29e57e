package control

import (
	"fmt"

	"vdyp_forward/pkg/models"
)

// Parameter ids of the compatibility-variable adjustment table.
const (
	SmallBA                 = 1
	SmallDQ                 = 2
	SmallLH                 = 3
	SmallVolume             = 4
	baBandBase              = 5
	volumeBandBase          = 11
	dqBandBase              = 15
	LoreyHeightPrimaryParam = 51
	LoreyHeightOtherParam   = 52

	MinCompVarParam = 1
	MaxCompVarParam = 98
)

// CompVarAdjustments multiplies compatibility variables after each grown year.
// Every id defaults to 1.
type CompVarAdjustments struct {
	values map[int]float32
}

func NewCompVarAdjustments(values map[int]float32) (CompVarAdjustments, error) {
	a := CompVarAdjustments{values: make(map[int]float32, len(values))}
	for id, v := range values {
		if id < MinCompVarParam || id > MaxCompVarParam {
			return a, configErrorf("index %d not in the range %d to %d inclusive", id, MinCompVarParam, MaxCompVarParam)
		}
		a.values[id] = v
	}
	return a, nil
}

func (a CompVarAdjustments) Param(id int) float32 {
	if v, ok := a.values[id]; ok {
		return v
	}
	return 1.0
}

// SmallValue returns the small-component adjustment for v.
func (a CompVarAdjustments) SmallValue(v models.UtilizationClassVariable) float32 {
	switch v {
	case models.BasalAreaVariable:
		return a.Param(SmallBA)
	case models.QuadMeanDiameterVariable:
		return a.Param(SmallDQ)
	case models.LoreyHeightVariable:
		return a.Param(SmallLH)
	default:
		return a.Param(SmallVolume)
	}
}

// BandValue returns the BA or DQ adjustment of a diameter band.
func (a CompVarAdjustments) BandValue(uc models.UtilizationClass, v models.UtilizationClassVariable) (float32, error) {
	if !uc.IsBand() {
		return 0, fmt.Errorf("%s is not a diameter band", uc)
	}
	switch v {
	case models.BasalAreaVariable:
		return a.Param(baBandBase + uc.Index() - 1), nil
	case models.QuadMeanDiameterVariable:
		return a.Param(dqBandBase + uc.Index() - 1), nil
	default:
		return 0, fmt.Errorf("%s has no per-band adjustment", v)
	}
}

// VolumeValue returns the adjustment for volume variable vv in band uc.
func (a CompVarAdjustments) VolumeValue(uc models.UtilizationClass, vv models.VolumeVariable) (float32, error) {
	if !uc.IsBand() {
		return 0, fmt.Errorf("%s is not a diameter band", uc)
	}
	return a.Param(volumeBandBase + 10*(uc.Index()-1) + int(vv)), nil
}
