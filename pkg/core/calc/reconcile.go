package calc

import (
	"fmt"

	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// ErrReconciliation is returned when band components cannot be made
// consistent with their ALL totals.
var ErrReconciliation = fmt.Errorf("component reconciliation failed")

var mode1AvailabilityClasses = []models.UtilizationClass{models.UCOver225, models.UC175To225, models.UC125To175}

// ReconcileComponents adjusts the four band entries of ba, tph and dq so they
// agree with the ALL entries. ba's bands must already sum to its ALL value.
func ReconcileComponents(ba, tph, dq *models.UtilizationVector) error {
	if ba.All() == 0 {
		for _, uc := range models.UtilizationBands {
			tph[uc] = 0
			ba[uc] = 0
		}
		return nil
	}

	baSum := ba.BandSum()
	if fmath.Abs(baSum-ba.All()) > 0.00003*baSum {
		return fmt.Errorf("%w: band basal areas (%v) do not sum to total %v", ErrReconciliation, baSum, ba.All())
	}

	dq0 := QuadMeanDiameter(ba.All(), tph.All())
	if dq0 < models.UC75To125.LowBound() {
		return fmt.Errorf("%w: total diameter %v is below %v cm", ErrReconciliation, dq0, models.UC75To125.LowBound())
	}

	var tphSumHigh float32
	for _, uc := range models.UtilizationBands {
		tphSumHigh += TreesPerHectare(ba[uc], uc.LowBound())
	}

	if tphSumHigh < tph.All() {
		reconcileMode1(ba, tph, dq, tphSumHigh)
		return nil
	}
	return reconcileMode2Check(ba, tph, dq)
}

// reconcileMode1 moves basal area into lower bands until enough trees exist.
func reconcileMode1(ba, tph, dq *models.UtilizationVector, tphSumHigh float32) {
	tphNeed := tph.All() - tphSumHigh

	for _, uc := range models.UtilizationBands {
		dq[uc] = uc.LowBound()
	}

	for _, uc := range mode1AvailabilityClasses {
		prev, _ := uc.Previous()
		tphAvail := TreesPerHectare(ba[uc], prev.LowBound()) - TreesPerHectare(ba[uc], uc.LowBound())

		if tphAvail < tphNeed {
			ba[prev] += ba[uc]
			ba[uc] = 0
			tphNeed -= tphAvail
		} else {
			move := ba[uc] * tphNeed / tphAvail
			ba[prev] += move
			ba[uc] -= move
			break
		}
	}

	for _, uc := range models.UtilizationBands {
		tph[uc] = TreesPerHectare(ba[uc], dq[uc])
	}
}

func reconcileMode2Check(ba, tph, dq *models.UtilizationVector) error {
	tphSum := tph.BandSum()
	if fmath.Abs(tphSum-tph.All())/tphSum > 0.00001 {
		return reconcileMode2(ba, tph, dq)
	}
	for _, uc := range models.UtilizationBands {
		if ba[uc] > 0 {
			if tph[uc] <= 0 {
				return reconcileMode2(ba, tph, dq)
			}
			want := QuadMeanDiameter(ba[uc], tph[uc])
			if dq[uc] >= uc.LowBound() && dq[uc] <= uc.HighBound() && fmath.Abs(want-dq[uc]) < 0.00001 {
				return nil
			}
		}
	}
	return nil
}

// reconcileMode2 scales every band diameter by a common factor, pinning bands
// that leave their diameter range.
func reconcileMode2(ba, tph, dq *models.UtilizationVector) error {
	var baFixed, tphFixed float32
	var limited [models.NumUtilizationClasses]bool
	var trial models.UtilizationVector

	for n := 1; ; n++ {
		if n > 4 {
			return fmt.Errorf("%w: mode 2 iterations exceeded 4", ErrReconciliation)
		}

		var sum float32
		for _, uc := range models.UtilizationBands {
			if ba[uc] != 0 && !limited[uc] {
				sum += ba[uc] / (dq[uc] * dq[uc])
			}
		}

		baAll := ba.All() - baFixed
		tphAll := tph.All() - tphFixed
		if baAll <= 0 || tphAll <= 0 {
			reconcileMode3(ba, tph, dq)
			return nil
		}

		dqAll := QuadMeanDiameter(baAll, tphAll)
		k := dqAll * dqAll / baAll * sum
		sqrtK := fmath.Sqrt(k)

		for _, uc := range models.UtilizationBands {
			if !limited[uc] && ba[uc] > 0 {
				trial[uc] = dq[uc] * sqrtK
			}
		}

		violateClass := models.UCSmall
		var violate float32
		violateLow := false
		for _, uc := range models.UtilizationBands {
			if ba[uc] > 0 && trial[uc] < uc.LowBound() {
				if vi := 1 - trial[uc]/uc.LowBound(); vi > violate {
					violate, violateClass, violateLow = vi, uc, true
				}
			}
			if trial[uc] > uc.HighBound() {
				if vi := trial[uc]/uc.HighBound() - 1; vi > violate {
					violate, violateClass, violateLow = vi, uc, false
				}
			}
		}
		if violateClass == models.UCSmall {
			break
		}
		if violateLow {
			trial[violateClass] = violateClass.LowBound()
		} else {
			trial[violateClass] = violateClass.HighBound()
		}
		limited[violateClass] = true
		baFixed += ba[violateClass]
		tphFixed += TreesPerHectare(ba[violateClass], trial[violateClass])
	}

	for _, uc := range models.UtilizationBands {
		dq[uc] = trial[uc]
		tph[uc] = TreesPerHectare(ba[uc], dq[uc])
	}

	baSum := ba.BandSum()
	tphSum := tph.BandSum()
	if fmath.Abs(baSum-ba.All()) > 0.0002*baSum {
		return fmt.Errorf("%w: basal area", ErrReconciliation)
	}
	if fmath.Abs(tphSum-tph.All()) > 0.0002*tphSum {
		return fmt.Errorf("%w: trees per hectare", ErrReconciliation)
	}
	return nil
}

// reconcileMode3 places the whole layer in the band that contains its diameter.
func reconcileMode3(ba, tph, dq *models.UtilizationVector) {
	for _, uc := range models.UtilizationBands {
		ba[uc] = 0
		tph[uc] = 0
		dq[uc] = uc.LowBound() + 2.5
	}
	for _, uc := range models.UtilizationBands {
		if dq.All() < uc.HighBound() {
			ba[uc] = ba.All()
			tph[uc] = tph.All()
			dq[uc] = dq.All()
			return
		}
	}
}
