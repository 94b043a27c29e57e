package control

import (
	"vdyp_forward/pkg/models"
)

const (
	maxFiatAges       = 4
	fiatMixedCount    = 3
	FiatDetailsLength = 2*maxFiatAges + fiatMixedCount
)

// GrowthFiatDetails is the per-region fallback growth curve: up to four age
// break-points with coefficients, plus three coefficients controlling how the
// fiat and empirical models are blended.
type GrowthFiatDetails struct {
	Region       models.Region
	ages         []float32
	coefficients []float32
	mixed        [fiatMixedCount]float32
}

// NewGrowthFiatDetails parses the eleven numbers of one region's fiat entry:
// four (age, coefficient) pairs followed by the three mixed coefficients.
func NewGrowthFiatDetails(region models.Region, numbers []float32) (*GrowthFiatDetails, error) {
	if len(numbers) != FiatDetailsLength {
		return nil, configErrorf("fiat details for %s need %d numbers, got %d", region, FiatDetailsLength, len(numbers))
	}

	d := &GrowthFiatDetails{Region: region}

	n := 0
	for i := 0; i < maxFiatAges; i++ {
		age := numbers[2*i]
		if age == 0 {
			break
		}
		if n > 0 && age < d.ages[n-1] {
			return nil, configErrorf("fiat ages for %s must not decrease (%v after %v)", region, age, d.ages[n-1])
		}
		d.ages = append(d.ages, age)
		d.coefficients = append(d.coefficients, numbers[2*i+1])
		n++
	}
	if n == 0 {
		return nil, configErrorf("fiat details for %s contain no age ranges", region)
	}
	for i := n; i < maxFiatAges; i++ {
		if numbers[2*i] != 0 || numbers[2*i+1] != 0 {
			return nil, configErrorf("fiat details for %s have values after the terminating age", region)
		}
	}
	copy(d.mixed[:], numbers[2*maxFiatAges:])

	return d, nil
}

func (d *GrowthFiatDetails) NAges() int { return len(d.ages) }

func (d *GrowthFiatDetails) Age(i int) float32 { return d.ages[i] }

func (d *GrowthFiatDetails) Coefficient(i int) float32 { return d.coefficients[i] }

func (d *GrowthFiatDetails) Mixed(i int) float32 { return d.mixed[i] }

// CalculateCoefficient interpolates the coefficient for an age.
func (d *GrowthFiatDetails) CalculateCoefficient(age float32) float32 {
	n := len(d.ages)
	if n == 0 {
		return 0
	}
	if age <= d.ages[0] {
		return d.coefficients[0]
	}
	if age >= d.ages[n-1] {
		return d.coefficients[n-1]
	}
	for i := 1; i < n; i++ {
		if age <= d.ages[i] {
			lo, hi := d.ages[i-1], d.ages[i]
			c0, c1 := d.coefficients[i-1], d.coefficients[i]
			return c0 + (c1-c0)*(age-lo)/(hi-lo)
		}
	}
	return d.coefficients[n-1]
}
