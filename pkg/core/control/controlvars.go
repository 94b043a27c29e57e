package control

// ControlVariable is the one-based position of a run control variable.
type ControlVariable int

const (
	GrowTarget1                 ControlVariable = 1
	CompatVarOutput2            ControlVariable = 2
	CompatVarApplication3       ControlVariable = 3
	OutputFiles4                ControlVariable = 4
	AllowCompatVarCalculations5 ControlVariable = 5
	UpdateDuringGrowth6         ControlVariable = 6
)

const MaxControlVariables = 10

type ControlVariables struct {
	values [MaxControlVariables]int
}

func NewControlVariables(values []int) (ControlVariables, error) {
	var c ControlVariables
	if len(values) > MaxControlVariables {
		return c, configErrorf("control variables hold at most %d values, got %d", MaxControlVariables, len(values))
	}
	copy(c.values[:], values)
	if v := c.values[AllowCompatVarCalculations5-1]; v != 0 && v != 1 {
		return c, configErrorf("control variable %d must be 0 or 1, got %d", AllowCompatVarCalculations5, v)
	}
	return c, nil
}

func (c ControlVariables) Value(v ControlVariable) int {
	if v < 1 || int(v) > MaxControlVariables {
		panic("control variable out of range")
	}
	return c.values[v-1]
}

func (c ControlVariables) With(v ControlVariable, value int) ControlVariables {
	out := c
	out.values[v-1] = value
	return out
}

// AllowCalculation gates a compatibility-variable computation. In mode 0 any
// positive value qualifies; in mode 1 the predicate decides.
func (c ControlVariables) AllowCalculation(value, limit float32, p func(value, limit float32) bool) bool {
	mode := c.Value(AllowCompatVarCalculations5)
	return (mode == 0 && value > 0) || (mode == 1 && p(value, limit))
}

// AllowCalculationIf only permits the calculation in mode 1.
func (c ControlVariables) AllowCalculationIf(p func() bool) bool {
	return c.Value(AllowCompatVarCalculations5) == 1 && p()
}

func Above(value, limit float32) bool   { return value > limit }
func AtLeast(value, limit float32) bool { return value >= limit }
