package control

import (
	"vdyp_forward/pkg/models"
)

// NonPrimaryHLCoefficients relate a secondary species' Lorey height to the
// primary species' dominant height (equation 1) or Lorey height (equation 2).
type NonPrimaryHLCoefficients struct {
	A0       float32 `yaml:"a0"`
	A1       float32 `yaml:"a1"`
	Equation int     `yaml:"equation"`
}

// DefaultNonPrimaryHLCoefficients is the identity relationship used when a
// species pair has no entry.
var DefaultNonPrimaryHLCoefficients = NonPrimaryHLCoefficients{A0: 1, A1: 1, Equation: 1}

// UpperBound is the basal area and DQ ceiling of a basal-area group.
type UpperBound struct {
	BasalArea        float32
	QuadMeanDiameter float32
}

// Upper-bound coefficient indices in the per-region/genus table.
const (
	UpperBoundBasalArea        = 1
	UpperBoundQuadMeanDiameter = 2
)

// ComponentSizeLimits bound a species' Lorey height and DQ, both absolutely
// and as a ratio of DQ to Lorey height.
type ComponentSizeLimits struct {
	MaxLoreyHeight        float32 `yaml:"max_lorey_height"`
	MaxQuadMeanDiameter   float32 `yaml:"max_dq"`
	MinDQLoreyHeightRatio float32 `yaml:"min_dq_hl_ratio"`
	MaxDQLoreyHeightRatio float32 `yaml:"max_dq_hl_ratio"`
}

// SpeciesGrowthModel is the primary species' basal-area share model for one
// stratum: equation 3, 8 or 9 and its three coefficients.
type SpeciesGrowthModel struct {
	Model        int
	Coefficients Coefficients
}

// Map is the immutable control data shared by every polygon of a run.
type Map struct {
	BecZones map[string]models.BecZone

	// Species pairs whose percentages are merged when ranking species.
	SpeciesToCombine [][2]string

	// Site curves by (genus or sp64, region).
	SiteCurves           *MatrixMap2[string, models.Region, int]
	SiteCurveAgeMaximums *SiteCurveAgeMaximums

	DefaultEquationGroups  *MatrixMap2[string, string, int]
	EquationModifierGroups *MatrixMap2[int, int, int]
	VolumeEquationGroups   *MatrixMap2[string, string, int]
	DecayEquationGroups    *MatrixMap2[string, string, int]
	BreakageEquationGroups *MatrixMap2[string, string, int]

	// Lorey height / dominant height relationships.
	HL1Coefficients              *MatrixMap2[string, models.Region, Coefficients]
	NonPrimaryHLCoefficientTable *MatrixMap3[string, string, models.Region, NonPrimaryHLCoefficients]

	// Growth yield and empirical growth models.
	BasalAreaYield                  *MatrixMap2[string, string, Coefficients]
	QuadMeanDiameterYield           *MatrixMap2[string, string, Coefficients]
	BasalAreaGrowthEmpirical        *MatrixMap2[string, string, Coefficients]
	QuadMeanDiameterGrowthEmpirical *Table[int, Coefficients]
	QuadMeanDiameterGrowthLimits    *Table[int, Coefficients]
	UpperBounds                     *Table[int, UpperBound]
	UpperBoundsCoefficients         *MatrixMap3[models.Region, string, int, float32]
	BasalAreaGrowthFiat             *Table[models.Region, *GrowthFiatDetails]
	QuadMeanDiameterGrowthFiat      *Table[models.Region, *GrowthFiatDetails]

	// Per-species growth, used when species dynamics are on. The non-primary
	// tables are keyed by (genus, primary stratum) with stratum 0 as the
	// fallback.
	ComponentSizeLimits              *MatrixMap2[string, models.Region, ComponentSizeLimits]
	QuadMeanDiameterBySpecies        *Table[string, Coefficients]
	PrimarySpeciesBasalAreaGrowth    *Table[int, SpeciesGrowthModel]
	NonPrimarySpeciesBasalAreaGrowth *MatrixMap2[string, int, Coefficients]
	PrimarySpeciesDQGrowth           *Table[int, Coefficients]
	NonPrimarySpeciesDQGrowth        *MatrixMap2[string, int, Coefficients]

	// Utilization-class estimators, keyed by the legacy UC index first.
	BasalAreaByUC             *MatrixMap3[int, string, string, Coefficients]
	QuadMeanDiameterByUC      *MatrixMap3[int, string, string, Coefficients]
	TotalStandWholeStemVolume *Table[int, Coefficients]
	WholeStemByUC             *MatrixMap2[int, int, Coefficients]
	CloseUtilizationByUC      *MatrixMap2[int, int, Coefficients]
	NetDecayByUC              *MatrixMap2[int, int, Coefficients]
	NetDecayWaste             *Table[string, Coefficients]
	DecayModifiers            *MatrixMap2[string, models.Region, float32]
	WasteModifiers            *MatrixMap2[string, models.Region, float32]

	// Small-component (< 7.5cm) estimators by genus.
	SmallProbability      *Table[string, Coefficients]
	SmallBasalArea        *Table[string, Coefficients]
	SmallQuadMeanDiameter *Table[string, Coefficients]
	SmallLoreyHeight      *Table[string, Coefficients]
	SmallWholeStemVolume  *Table[string, Coefficients]

	Debug              DebugSettings
	Controls           ControlVariables
	CompVarAdjustments CompVarAdjustments
}

// NewMap returns an empty map with every table allocated and the defaults the
// legacy control files rely on installed.
func NewMap() *Map {
	zero := func(string, models.Region) float32 { return 0 }
	return &Map{
		BecZones:                         make(map[string]models.BecZone),
		SpeciesToCombine:                 [][2]string{{"PL", "PA"}, {"C", "Y"}},
		SiteCurves:                       NewMatrixMap2[string, models.Region, int]("site curve map"),
		SiteCurveAgeMaximums:             NewSiteCurveAgeMaximums(),
		DefaultEquationGroups:            NewMatrixMap2[string, string, int]("default equation groups"),
		EquationModifierGroups:           NewMatrixMap2[int, int, int]("equation modifier groups"),
		VolumeEquationGroups:             NewMatrixMap2[string, string, int]("volume equation groups"),
		DecayEquationGroups:              NewMatrixMap2[string, string, int]("decay equation groups"),
		BreakageEquationGroups:           NewMatrixMap2[string, string, int]("breakage equation groups"),
		HL1Coefficients:                  NewMatrixMap2[string, models.Region, Coefficients]("HL primary species coefficients"),
		NonPrimaryHLCoefficientTable:     NewMatrixMap3[string, string, models.Region, NonPrimaryHLCoefficients]("HL non-primary species coefficients").WithDefault(func(string, string, models.Region) NonPrimaryHLCoefficients { return DefaultNonPrimaryHLCoefficients }),
		BasalAreaYield:                   NewMatrixMap2[string, string, Coefficients]("basal area yield coefficients"),
		QuadMeanDiameterYield:            NewMatrixMap2[string, string, Coefficients]("DQ yield coefficients"),
		BasalAreaGrowthEmpirical:         NewMatrixMap2[string, string, Coefficients]("basal area growth empirical coefficients"),
		QuadMeanDiameterGrowthEmpirical:  NewTable[int, Coefficients]("DQ growth empirical coefficients"),
		QuadMeanDiameterGrowthLimits:     NewTable[int, Coefficients]("DQ growth empirical limits"),
		UpperBounds:                      NewTable[int, UpperBound]("BA/DQ upper bounds"),
		UpperBoundsCoefficients:          NewMatrixMap3[models.Region, string, int, float32]("upper bound coefficients"),
		BasalAreaGrowthFiat:              NewTable[models.Region, *GrowthFiatDetails]("basal area growth fiat"),
		QuadMeanDiameterGrowthFiat:       NewTable[models.Region, *GrowthFiatDetails]("DQ growth fiat"),
		ComponentSizeLimits:              NewMatrixMap2[string, models.Region, ComponentSizeLimits]("component size limits"),
		QuadMeanDiameterBySpecies:        NewTable[string, Coefficients]("DQ by species coefficients"),
		PrimarySpeciesBasalAreaGrowth:    NewTable[int, SpeciesGrowthModel]("primary species basal area growth"),
		NonPrimarySpeciesBasalAreaGrowth: NewMatrixMap2[string, int, Coefficients]("non-primary species basal area growth"),
		PrimarySpeciesDQGrowth:           NewTable[int, Coefficients]("primary species DQ growth"),
		NonPrimarySpeciesDQGrowth:        NewMatrixMap2[string, int, Coefficients]("non-primary species DQ growth"),
		BasalAreaByUC:                    NewMatrixMap3[int, string, string, Coefficients]("basal area by utilization class"),
		QuadMeanDiameterByUC:             NewMatrixMap3[int, string, string, Coefficients]("DQ by utilization class"),
		TotalStandWholeStemVolume:        NewTable[int, Coefficients]("total stand whole stem volume"),
		WholeStemByUC:                    NewMatrixMap2[int, int, Coefficients]("whole stem volume by utilization class"),
		CloseUtilizationByUC:             NewMatrixMap2[int, int, Coefficients]("close utilization volume by utilization class"),
		NetDecayByUC:                     NewMatrixMap2[int, int, Coefficients]("net decay by utilization class"),
		NetDecayWaste:                    NewTable[string, Coefficients]("net decay waste"),
		DecayModifiers:                   NewMatrixMap2[string, models.Region, float32]("decay modifiers").WithDefault(zero),
		WasteModifiers:                   NewMatrixMap2[string, models.Region, float32]("waste modifiers").WithDefault(zero),
		SmallProbability:                 NewTable[string, Coefficients]("small component probability"),
		SmallBasalArea:                   NewTable[string, Coefficients]("small component basal area"),
		SmallQuadMeanDiameter:            NewTable[string, Coefficients]("small component DQ"),
		SmallLoreyHeight:                 NewTable[string, Coefficients]("small component Lorey height"),
		SmallWholeStemVolume:             NewTable[string, Coefficients]("small component whole stem volume"),
		CompVarAdjustments:               CompVarAdjustments{values: map[int]float32{}},
	}
}

// BecZone resolves a BEC zone alias.
func (m *Map) BecZone(alias string) (models.BecZone, error) {
	z, ok := m.BecZones[alias]
	if !ok {
		return z, missingKey("BEC zones", alias)
	}
	return z, nil
}

// VolumeEquationGroup resolves the volume group; group 10 shares group 11's
// coefficients.
func (m *Map) VolumeEquationGroup(genus, bec string) (int, error) {
	g, err := m.VolumeEquationGroups.Get(genus, bec)
	if err != nil {
		return 0, err
	}
	if g == 10 {
		g = 11
	}
	return g, nil
}

func (m *Map) DecayEquationGroup(genus, bec string) (int, error) {
	return m.DecayEquationGroups.Get(genus, bec)
}

func (m *Map) BreakageEquationGroup(genus, bec string) (int, error) {
	return m.BreakageEquationGroups.Get(genus, bec)
}

// BasalAreaGroup returns the modified equation group for a default group and
// inventory type group, falling back to the default group.
func (m *Map) BasalAreaGroup(defaultGroup, itg int) int {
	if g, ok := m.EquationModifierGroups.Lookup(defaultGroup, itg); ok {
		return g
	}
	return defaultGroup
}

// NonPrimarySpeciesCoefficients looks up a non-primary species growth table
// by the primary species' stratum, falling back to stratum 0.
func NonPrimarySpeciesCoefficients(t *MatrixMap2[string, int, Coefficients], genus string, stratum int) (Coefficients, error) {
	if c, ok := t.Lookup(genus, stratum); ok {
		return c, nil
	}
	return t.Get(genus, 0)
}
