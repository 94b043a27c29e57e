package control

// DebugVariable is the one-based position of a named debug switch.
type DebugVariable int

const (
	SpeciesDynamics1                    DebugVariable = 1
	MaxBreastHeightAge2                 DebugVariable = 2
	BasalAreaGrowthModel3               DebugVariable = 3
	PerSpeciesAndRegionMaxBreastHeight4 DebugVariable = 4
	MessagingLevel5                     DebugVariable = 5
	DQGrowthModel6                      DebugVariable = 6
	LoreyHeightChangeStrategy8          DebugVariable = 8
	DoLimitBAWhenDQLimited9             DebugVariable = 9
)

const (
	MaxDebugSettings    = 25
	firstFillInPosition = 11
)

// DebugSettings selects among competing growth sub-models.
type DebugSettings struct {
	values  [MaxDebugSettings]int
	fillIns []int
}

// NewDebugSettings builds the settings from a flat vector whose first element
// is variable 1. Values from position 11 up to the first 0 are fill-ins.
func NewDebugSettings(values []int) (DebugSettings, error) {
	var s DebugSettings
	if len(values) > MaxDebugSettings {
		return s, configErrorf("debug settings hold at most %d values, got %d", MaxDebugSettings, len(values))
	}
	copy(s.values[:], values)
	for i := firstFillInPosition - 1; i < len(values); i++ {
		if values[i] == 0 {
			break
		}
		s.fillIns = append(s.fillIns, values[i])
	}
	return s, nil
}

// Value returns the setting at its one-based position. Unset positions are 0.
func (s DebugSettings) Value(v DebugVariable) int {
	if v < 1 || int(v) > MaxDebugSettings {
		panic("debug variable out of range")
	}
	return s.values[v-1]
}

func (s DebugSettings) FillInValues() []int {
	out := make([]int, len(s.fillIns))
	copy(out, s.fillIns)
	return out
}

// With returns a copy with one setting replaced. Tests use it to flip models.
func (s DebugSettings) With(v DebugVariable, value int) DebugSettings {
	out := s
	out.fillIns = s.FillInValues()
	out.values[v-1] = value
	return out
}
