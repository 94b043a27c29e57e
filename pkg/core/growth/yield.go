// Package growth advances a layer's stand attributes by one year.
//
// The grow functions are pure over their scalar inputs and the bank they are
// handed; they perform no I/O and keep no state between calls.
package growth

import (
	"errors"
	"fmt"

	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/fmath"
)

// ErrInvalidStand is returned when a stand attribute is outside the domain of
// a growth equation.
var ErrInvalidStand = errors.New("invalid stand")

// EmpiricalOccupancy converts an empirically fitted basal area to full
// occupancy.
const EmpiricalOccupancy = 0.85

func vetOrZero(v *float32) float32 {
	if v == nil {
		return 0
	}
	return *v
}

// BasalAreaYield (EMP106) is the basal area yield of the primary layer at a
// dominant height and breast-height age. cv2 > 0 caps the age at cv2 centuries.
func BasalAreaYield(c control.Coefficients, cv2 int, dh, yabh float32, veteranBA *float32,
	fullOccupancy bool, upper float32) (float32, error) {
	age := yabh
	if cv2 > 0 {
		age = fmath.Min(age, float32(cv2)*100)
	}
	if age <= 0 {
		return 0, fmt.Errorf("%w: basal area yield age %v is not positive", ErrInvalidStand, age)
	}
	trAge := fmath.Log(age)

	a00 := fmath.Max(c.At(0)+c.At(1)*trAge, 0)
	ap := fmath.Max(c.At(3)+c.At(4)*trAge, 0)

	var bap float32
	if dh > c.At(2) {
		bap = a00 * fmath.Pow(dh-c.At(2), ap) * fmath.Exp(c.At(5)*dh+c.At(6)*vetOrZero(veteranBA))
		bap = fmath.Min(bap, upper)
	}
	if fullOccupancy {
		bap /= EmpiricalOccupancy
	}
	return bap, nil
}

// QuadMeanDiameterYield (EMP107) is the DQ yield of the primary layer,
// bounded to [7.6, upper].
func QuadMeanDiameterYield(c control.Coefficients, dh, yabh float32, upper float32) (float32, error) {
	if dh <= 5 {
		return 7.6, nil
	}
	if yabh <= 0 {
		return 0, fmt.Errorf("%w: DQ yield age %v is not positive", ErrInvalidStand, yabh)
	}
	trAge := fmath.Log(yabh)

	c1 := fmath.Max(c.At(1)+c.At(2)*trAge, 0)
	c2 := fmath.Max(c.At(3)+c.At(4)*trAge, 0)
	dq := c.At(0) + c1*fmath.Pow(dh-5, c2)
	return fmath.Clamp(dq, 7.6, upper), nil
}

// mixedProportion is the weight of the empirical model at a breast-height age:
// 1 below mixed[0], 0 from mixed[1] on, and a power curve in between.
func mixedProportion(fiat *control.GrowthFiatDetails, yabh float32) float32 {
	m0, m1, m2 := fiat.Mixed(0), fiat.Mixed(1), fiat.Mixed(2)
	switch {
	case yabh >= m1:
		return 0
	case yabh > m0:
		return 1 - fmath.Pow((yabh-m0)/(m1-m0), m2)
	}
	return 1
}
