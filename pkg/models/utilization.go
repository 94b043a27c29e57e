package models

import "fmt"

// UtilizationClass is a diameter bucket over which stand attributes are tabulated.
// The ordinal doubles as the second index of every per-species bank vector.
type UtilizationClass int

const (
	UCSmall UtilizationClass = iota
	UCAll
	UC75To125
	UC125To175
	UC175To225
	UCOver225
)

// NumUtilizationClasses is the length of every per-species utilization vector.
const NumUtilizationClasses = 6

var ucMeta = [NumUtilizationClasses]struct {
	name      string
	index     int
	lowBound  float32
	highBound float32
}{
	{"S", -1, 0.0, 7.5},
	{"A", 0, 7.5, 10000.0},
	{"1", 1, 7.5, 12.5},
	{"2", 2, 12.5, 17.5},
	{"3", 3, 17.5, 22.5},
	{"4", 4, 22.5, 10000.0},
}

// UtilizationClasses lists every class in order.
var UtilizationClasses = []UtilizationClass{UCSmall, UCAll, UC75To125, UC125To175, UC175To225, UCOver225}

// UtilizationBands are the four diameter bands (everything except SMALL and ALL).
var UtilizationBands = []UtilizationClass{UC75To125, UC125To175, UC175To225, UCOver225}

// AllButSmall is ALL followed by the four bands.
var AllButSmall = []UtilizationClass{UCAll, UC75To125, UC125To175, UC175To225, UCOver225}

// Index is the legacy index: -1 for SMALL, 0 for ALL, 1..4 for the bands.
func (uc UtilizationClass) Index() int { return ucMeta[uc].index }

func (uc UtilizationClass) LowBound() float32 { return ucMeta[uc].lowBound }

func (uc UtilizationClass) HighBound() float32 { return ucMeta[uc].highBound }

// IsBand reports whether uc is one of the four diameter bands.
func (uc UtilizationClass) IsBand() bool { return uc >= UC75To125 && uc <= UCOver225 }

func (uc UtilizationClass) String() string {
	switch uc {
	case UCSmall:
		return "SMALL"
	case UCAll:
		return "ALL"
	case UC75To125:
		return "U75TO125"
	case UC125To175:
		return "U125TO175"
	case UC175To225:
		return "U175TO225"
	case UCOver225:
		return "OVER225"
	}
	return fmt.Sprintf("UtilizationClass(%d)", int(uc))
}

// Next returns the following class, or false for OVER225.
func (uc UtilizationClass) Next() (UtilizationClass, bool) {
	if uc >= UCOver225 {
		return uc, false
	}
	return uc + 1, true
}

// Previous returns the preceding class, or false for SMALL.
func (uc UtilizationClass) Previous() (UtilizationClass, bool) {
	if uc <= UCSmall {
		return uc, false
	}
	return uc - 1, true
}

// UtilizationClassByIndex resolves a legacy index (-1..4).
func UtilizationClassByIndex(index int) (UtilizationClass, error) {
	for _, uc := range UtilizationClasses {
		if uc.Index() == index {
			return uc, nil
		}
	}
	return UCSmall, fmt.Errorf("UtilizationClass index %d is not recognized", index)
}

// UtilizationVector holds one value per utilization class, indexed by ordinal.
type UtilizationVector [NumUtilizationClasses]float32

func (v *UtilizationVector) Get(uc UtilizationClass) float32 { return v[uc] }

func (v *UtilizationVector) Set(uc UtilizationClass, x float32) { v[uc] = x }

func (v *UtilizationVector) All() float32 { return v[UCAll] }

// BandSum sums the four diameter bands.
func (v *UtilizationVector) BandSum() float32 {
	var sum float32
	for _, uc := range UtilizationBands {
		sum += v[uc]
	}
	return sum
}
