package estimate

import (
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// Small components are trees under 7.5cm. Their basal area is modelled as the
// product of the probability that any are present and the basal area expected
// when they are.

// SmallComponentProbability (EMP080).
func SmallComponentProbability(m *control.Map, genus string, region models.Region, lh, primaryYearsAtBH float32) (float32, error) {
	c, err := m.SmallProbability.Get(genus)
	if err != nil {
		return 0, err
	}
	a1 := c.At(1)
	if region != models.Coastal {
		a1 = 0
	}
	logit := c.At(0) + a1 + c.At(2)*primaryYearsAtBH + c.At(3)*lh
	return logistic(logit), nil
}

// ConditionalExpectedBasalArea (EMP081). The coastal term is never applied;
// the published model was fitted that way.
func ConditionalExpectedBasalArea(m *control.Map, genus string, ba, lh float32) (float32, error) {
	c, err := m.SmallBasalArea.Get(genus)
	if err != nil {
		return 0, err
	}
	const regionMultiplier = 0
	result := (c.At(0) + c.At(1)*regionMultiplier + c.At(2)*ba) * fmath.Exp(c.At(3)*lh)
	return fmath.Max(result, 0), nil
}

// SmallQuadMeanDiameter (EMP082) is always between 4 and 7.5cm.
func SmallQuadMeanDiameter(m *control.Map, genus string, lh float32) (float32, error) {
	c, err := m.SmallQuadMeanDiameter.Get(genus)
	if err != nil {
		return 0, err
	}
	return 4 + 3.5*logistic(c.At(0)+c.At(1)*lh), nil
}

// SmallLoreyHeight (EMP085).
func SmallLoreyHeight(m *control.Map, genus string, lhAll, dqSmall, dqAll float32) (float32, error) {
	c, err := m.SmallLoreyHeight.Get(genus)
	if err != nil {
		return 0, err
	}
	a0, a1 := c.At(0), c.At(1)
	return 1.3 + (lhAll-1.3)*fmath.Exp(a0*(fmath.Pow(dqSmall, a1)-fmath.Pow(dqAll, a1))), nil
}

// MeanVolumeSmall (EMP086) is the mean whole-stem volume of a small tree.
func MeanVolumeSmall(m *control.Map, genus string, dqSmall, lhSmall float32) (float32, error) {
	c, err := m.SmallWholeStemVolume.Get(genus)
	if err != nil {
		return 0, err
	}
	return fmath.Exp(c.At(0) + c.At(1)*fmath.Log(dqSmall) + c.At(2)*fmath.Log(lhSmall) + c.At(3)*dqSmall), nil
}

// SmallComponent is the estimated small component of one species.
type SmallComponent struct {
	Probability      float32
	BasalArea        float32
	QuadMeanDiameter float32
	LoreyHeight      float32
	MeanVolume       float32
}

// SmallComponents runs EMP080 through EMP086 for one species. When
// fractionAvailable is positive the conditional basal area is evaluated on
// the actual rather than the fully stocked basal area.
func SmallComponents(m *control.Map, genus string, region models.Region, lhAll, baAll, dqAll,
	primaryYearsAtBH, fractionAvailable float32) (SmallComponent, error) {
	var s SmallComponent
	var err error

	if s.Probability, err = SmallComponentProbability(m, genus, region, lhAll, primaryYearsAtBH); err != nil {
		return s, err
	}

	ba := baAll
	if fractionAvailable > 0 {
		ba *= fractionAvailable
	}
	cond, err := ConditionalExpectedBasalArea(m, genus, ba, lhAll)
	if err != nil {
		return s, err
	}
	if fractionAvailable > 0 {
		cond /= fractionAvailable
	}
	s.BasalArea = s.Probability * cond

	if s.QuadMeanDiameter, err = SmallQuadMeanDiameter(m, genus, lhAll); err != nil {
		return s, err
	}
	if s.LoreyHeight, err = SmallLoreyHeight(m, genus, lhAll, s.QuadMeanDiameter, dqAll); err != nil {
		return s, err
	}
	if s.MeanVolume, err = MeanVolumeSmall(m, genus, s.QuadMeanDiameter, s.LoreyHeight); err != nil {
		return s, err
	}
	return s, nil
}
