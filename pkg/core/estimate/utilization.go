// Package estimate holds the empirical equations that break a species' stand
// attributes down by utilization class and derive volumes, small-component
// values and Lorey heights from them.
//
// Equations are named after the legacy model numbers (EMPnnn) in their doc
// comments so results can be traced back to the published yield tables.
package estimate

import (
	"errors"
	"fmt"

	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// ErrOutOfRange is returned when an equation is evaluated outside the range
// in which it can produce a finite value.
var ErrOutOfRange = errors.New("estimate out of range")

const maxLogit = 88.0

func safeExponent(logit float32) (float32, error) {
	if logit > maxLogit {
		return 0, fmt.Errorf("%w: logit %v exceeds %v", ErrOutOfRange, logit, maxLogit)
	}
	return fmath.Exp(logit), nil
}

func exponentRatio(logit float32) (float32, error) {
	e, err := safeExponent(logit)
	if err != nil {
		return 0, err
	}
	return e / (1 + e), nil
}

func logistic(x float32) float32 {
	e := fmath.Exp(x)
	return e / (1 + e)
}

type processor func(uc models.UtilizationClass, input float32) (float32, error)

// estimateUtilization runs p over the four bands of input, writing output.
// Bands whose input matches skip get def; when target is a single band only
// that band is computed.
func estimateUtilization(input, output *models.UtilizationVector, target models.UtilizationClass,
	p processor, skip func(float32) bool, def float32) error {
	for _, uc := range models.UtilizationBands {
		in := input[uc]
		if skip != nil && skip(in) {
			output[uc] = def
			continue
		}
		if target != models.UCAll && target != uc {
			continue
		}
		v, err := p(uc, in)
		if err != nil {
			return err
		}
		output[uc] = v
	}
	return nil
}

func storeSum(v *models.UtilizationVector) {
	v[models.UCAll] = v.BandSum()
}

// normalize scales the bands so that they sum to the ALL value.
func normalize(v *models.UtilizationVector) error {
	sum := v.BandSum()
	if sum <= 0 {
		return fmt.Errorf("%w: cannot normalize utilization components summing to %v", ErrOutOfRange, sum)
	}
	k := v[models.UCAll] / sum
	for _, uc := range models.UtilizationBands {
		v[uc] *= k
	}
	return nil
}

// =============================================================================
// Diameter and basal area by utilization class
// =============================================================================

// QuadMeanDiameterByUtilization (EMP071) fills the band diameters of dq from
// dq[ALL].
func QuadMeanDiameterByUtilization(m *control.Map, bec models.BecZone, dq *models.UtilizationVector, genus string) error {
	dq07 := dq[models.UCAll]

	for _, uc := range models.UtilizationBands {
		coe, err := m.QuadMeanDiameterByUC.Get(uc.Index(), genus, bec.GrowthAlias())
		if err != nil {
			return err
		}
		a0, a1, a2 := coe.At(0), coe.At(1), coe.At(2)

		switch uc {
		case models.UC75To125:
			if dq07 < 7.5001 {
				dq[models.UCAll] = 7.5
			} else {
				e, err := safeExponent(a1 / a0 * (dq07 - 7.5))
				if err != nil {
					return err
				}
				dq[uc] = fmath.Min(7.5+a0*fmath.Pow(1-e, a2), dq07)
			}
		case models.UC125To175, models.UC175To225:
			r, err := exponentRatio(a0 + a1*fmath.Pow(dq07/7.5, a2))
			if err != nil {
				return err
			}
			dq[uc] = uc.LowBound() + 5*r
		case models.UCOver225:
			a3 := coe.At(3)
			r, err := exponentRatio(a2 + a1*fmath.Pow(dq07, a3))
			if err != nil {
				return err
			}
			dq[uc] = fmath.Max(22.5, dq07+a0*(1-r))
		}
	}
	return nil
}

// BasalAreaByUtilization (EMP070) splits ba[ALL] across the bands using the
// band diameters already in dq.
func BasalAreaByUtilization(m *control.Map, bec models.BecZone, dq, ba *models.UtilizationVector, genus string) error {
	dqAll := dq[models.UCAll]

	var b [4]float32
	b[0] = ba[models.UCAll]
	for i := 1; i < 4; i++ {
		coe, err := m.BasalAreaByUC.Get(i, genus, bec.GrowthAlias())
		if err != nil {
			return err
		}
		a0, a1 := coe.At(0), coe.At(1)

		var logit float32
		if i == 1 {
			logit = a0 + a1*fmath.Pow(dqAll, 0.25)
		} else {
			logit = a0 + a1*dqAll
		}
		r, err := exponentRatio(logit)
		if err != nil {
			return err
		}
		b[i] = b[i-1] * r

		if i == 1 && dqAll < 12.5 {
			x := (dq[models.UC75To125] - 7.4) / (dqAll - 7.4)
			ba12Max := (1 - x*x) * b[0]
			b[1] = fmath.Min(b[1], ba12Max)
		}
	}

	ba[models.UC75To125] = ba[models.UCAll] - b[1]
	ba[models.UC125To175] = b[1] - b[2]
	ba[models.UC175To225] = b[2] - b[3]
	ba[models.UCOver225] = b[3]
	return nil
}

// =============================================================================
// Volumes
// =============================================================================

// WholeStemVolumePerTree (EMP090) is the mean whole-stem volume of a tree of
// the given Lorey height and diameter.
func WholeStemVolumePerTree(m *control.Map, volumeGroup int, lh, dq float32) (float32, error) {
	c, err := m.TotalStandWholeStemVolume.Get(volumeGroup)
	if err != nil {
		return 0, err
	}
	logMean := c.At(0) +
		c.At(1)*fmath.Log(dq) +
		c.At(2)*fmath.Log(lh) +
		c.At(3)*dq +
		c.At(4)/dq +
		c.At(5)*lh +
		c.At(6)*dq*dq +
		c.At(7)*lh*dq +
		c.At(8)*lh/dq
	return fmath.Exp(logMean), nil
}

// WholeStemVolume (EMP091) estimates band whole-stem volumes from basal area.
// With target ALL the bands are then scaled to ws[ALL].
func WholeStemVolume(m *control.Map, target models.UtilizationClass, adjust float32, volumeGroup int,
	lh float32, dq, ba, ws *models.UtilizationVector) error {
	dqAll := dq[models.UCAll]

	err := estimateUtilization(ba, ws, target, func(uc models.UtilizationClass, b float32) (float32, error) {
		c, err := m.WholeStemByUC.Get(uc.Index(), volumeGroup)
		if err != nil {
			return 0, err
		}
		arg := c.At(0) + c.At(1)*fmath.Log(lh) + c.At(2)*fmath.Log(dq[uc])
		if uc != models.UCOver225 {
			arg += c.At(3) * fmath.Log(dqAll)
		} else {
			arg += c.At(3) * dqAll
		}
		if uc == target {
			arg += adjust
		}
		return b * fmath.Exp(arg), nil
	}, func(x float32) bool { return x < 0 }, 0)
	if err != nil {
		return err
	}

	if target == models.UCAll {
		return normalize(ws)
	}
	return nil
}

// CloseUtilizationVolume (EMP092) derives close-utilization volume from
// whole-stem volume.
func CloseUtilizationVolume(m *control.Map, target models.UtilizationClass, adjust *models.UtilizationVector,
	volumeGroup int, lh float32, dq, ws, cu *models.UtilizationVector) error {
	err := estimateUtilization(ws, cu, target, func(uc models.UtilizationClass, w float32) (float32, error) {
		c, err := m.CloseUtilizationByUC.Get(uc.Index(), volumeGroup)
		if err != nil {
			return 0, err
		}
		arg := c.At(0) + c.At(1)*dq[uc] + c.At(2)*lh + adjust[uc]
		return w * fmath.Ratio(arg, 7), nil
	}, nil, 0)
	if err != nil {
		return err
	}
	if target == models.UCAll {
		storeSum(cu)
	}
	return nil
}

// NetDecayVolume (EMP093) derives close-utilization volume net of decay.
func NetDecayVolume(m *control.Map, genus string, region models.Region, target models.UtilizationClass,
	adjust *models.UtilizationVector, decayGroup int, yearsAtBreastHeight float32,
	dq, cu, cuNetDecay *models.UtilizationVector) error {
	dqAll := dq[models.UCAll]
	ageTr := fmath.Log(fmath.Max(20, yearsAtBreastHeight))

	modifier, err := m.DecayModifiers.Get(genus, region)
	if err != nil {
		return err
	}

	err = estimateUtilization(cu, cuNetDecay, target, func(uc models.UtilizationClass, v float32) (float32, error) {
		c, err := m.NetDecayByUC.Get(uc.Index(), decayGroup)
		if err != nil {
			return 0, err
		}
		d := dqAll
		if uc == models.UCOver225 {
			d = dq[uc]
		}
		arg := c.At(0) + c.At(1)*fmath.Log(d) + c.At(2)*ageTr
		arg += adjust[uc] + modifier
		return v * fmath.Ratio(arg, 8), nil
	}, nil, 0)
	if err != nil {
		return err
	}
	if target == models.UCAll {
		storeSum(cuNetDecay)
	}
	return nil
}

// NetDecayAndWasteVolume (EMP094) derives close-utilization volume net of
// decay and waste. A nil adjust applies no adjustment.
func NetDecayAndWasteVolume(m *control.Map, region models.Region, target models.UtilizationClass,
	adjust *models.UtilizationVector, genus string, lh float32,
	dq, cu, cuNetDecay, cuNetDecayWaste *models.UtilizationVector) error {
	if adjust == nil {
		adjust = &models.UtilizationVector{}
	}
	modifier, err := m.WasteModifiers.Get(genus, region)
	if err != nil {
		return err
	}

	err = estimateUtilization(cuNetDecay, cuNetDecayWaste, target, func(uc models.UtilizationClass, netDecay float32) (float32, error) {
		if fmath.IsNaN(netDecay) || netDecay <= 0 {
			return 0, nil
		}
		c, err := m.NetDecayWaste.Get(genus)
		if err != nil {
			return 0, err
		}
		a0 := c.At(0)
		if uc == models.UCOver225 {
			a0 += c.At(5)
		}
		frd := 1 - netDecay/cu[uc]
		arg := a0 + c.At(1)*frd + c.At(3)*fmath.Log(dq[uc]) + c.At(4)*fmath.Log(lh)
		arg = fmath.Clamp(arg+adjust[uc]+modifier, -10, 10)
		frw := (1 - fmath.Exp(c.At(2)*frd)) * logistic(arg) * (1 - frd)
		frw = fmath.Min(frd, frw)
		return cu[uc] * (1 - frd - frw), nil
	}, nil, 0)
	if err != nil {
		return err
	}
	if target == models.UCAll {
		storeSum(cuNetDecayWaste)
	}
	return nil
}
