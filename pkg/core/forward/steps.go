package forward

import "fmt"

// ExecutionStep is one stage of the forward algorithm. Steps run in
// declaration order; a run may stop after any of them.
type ExecutionStep int

const (
	StepNone ExecutionStep = iota
	StepCheckForWork
	StepCalculateMissingSiteCurves
	StepCalculateCoverages
	StepDeterminePolygonRankings
	StepEstimateMissingSiteIndices
	StepEstimateMissingYearsToBreastHeightValues
	StepCalculateDominantHeightAgeSiteIndex
	StepSetCompatibilityVariables
	StepGrow1LayerDHDelta
	StepGrow2LayerBADelta
	StepGrow3LayerDQDelta
	StepGrow4LayerBAAndDQTPHEst
	StepGrow5ALHEst
	StepGrow5SpeciesBADQTPH
	StepGrow6LayerTPH2
	StepGrow7LayerDQ2
	StepGrow8SpeciesLH
	StepGrow9SpeciesPct
	StepGrow10PrimarySpeciesDetails
	StepGrow11CompatibilityVars
	StepGrow12SpeciesUC
	StepGrow13SpeciesUCSmall
	StepGrow
	StepAll
)

var stepNames = [...]string{
	"NONE",
	"CHECK_FOR_WORK",
	"CALCULATE_MISSING_SITE_CURVES",
	"CALCULATE_COVERAGES",
	"DETERMINE_POLYGON_RANKINGS",
	"ESTIMATE_MISSING_SITE_INDICES",
	"ESTIMATE_MISSING_YEARS_TO_BREAST_HEIGHT_VALUES",
	"CALCULATE_DOMINANT_HEIGHT_AGE_SITE_INDEX",
	"SET_COMPATIBILITY_VARIABLES",
	"GROW_1_LAYER_DHDELTA",
	"GROW_2_LAYER_BADELTA",
	"GROW_3_LAYER_DQDELTA",
	"GROW_4_LAYER_BA_AND_DQTPH_EST",
	"GROW_5A_LH_EST",
	"GROW_5_SPECIES_BADQTPH",
	"GROW_6_LAYER_TPH2",
	"GROW_7_LAYER_DQ2",
	"GROW_8_SPECIES_LH",
	"GROW_9_SPECIES_PCT",
	"GROW_10_PRIMARY_SPECIES_DETAILS",
	"GROW_11_COMPATIBILITY_VARS",
	"GROW_12_SPECIES_UC",
	"GROW_13_SPECIES_UC_SMALL",
	"GROW",
	"ALL",
}

// Steps lists every step in execution order.
func Steps() []ExecutionStep {
	out := make([]ExecutionStep, 0, len(stepNames))
	for s := StepNone; s <= StepAll; s++ {
		out = append(out, s)
	}
	return out
}

func (s ExecutionStep) String() string {
	if s < StepNone || s > StepAll {
		return fmt.Sprintf("ExecutionStep(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep resolves a step by name.
func ParseStep(name string) (ExecutionStep, error) {
	for i, n := range stepNames {
		if n == name {
			return ExecutionStep(i), nil
		}
	}
	return StepNone, fmt.Errorf("unknown execution step %q", name)
}

// Predecessor returns the step immediately before s. It panics for StepNone.
func (s ExecutionStep) Predecessor() ExecutionStep {
	if s == StepNone {
		panic("forward: NONE has no predecessor")
	}
	return s - 1
}

// Successor returns the step immediately after s. It panics for StepAll.
func (s ExecutionStep) Successor() ExecutionStep {
	if s == StepAll {
		panic("forward: ALL has no successor")
	}
	return s + 1
}

func (s ExecutionStep) Lt(o ExecutionStep) bool { return s < o }
func (s ExecutionStep) Le(o ExecutionStep) bool { return s <= o }
func (s ExecutionStep) Eq(o ExecutionStep) bool { return s == o }
func (s ExecutionStep) Ge(o ExecutionStep) bool { return s >= o }
func (s ExecutionStep) Gt(o ExecutionStep) bool { return s > o }
