package control

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"vdyp_forward/pkg/models"
)

// =============================================================================
// YAML control document
// =============================================================================

type becZoneRow struct {
	models.BecZone `yaml:",inline"`
	Region         string `yaml:"region"`
}

type siteCurveRow struct {
	Species string `yaml:"species"`
	Region  string `yaml:"region"`
	Curve   int    `yaml:"curve"`
}

type siteCurveAgeRow struct {
	Curve    int     `yaml:"curve"`
	Coastal  float32 `yaml:"coastal"`
	Interior float32 `yaml:"interior"`
	T1       float32 `yaml:"t1"`
	T2       float32 `yaml:"t2"`
}

type equationGroupRow struct {
	Genus string `yaml:"genus"`
	Bec   string `yaml:"bec"`
	Group int    `yaml:"group"`
}

type modifierRow struct {
	DefaultGroup int `yaml:"default_group"`
	ITG          int `yaml:"itg"`
	Group        int `yaml:"group"`
}

type genusRegionRow struct {
	Genus        string    `yaml:"genus"`
	Region       string    `yaml:"region"`
	Coefficients []float32 `yaml:"coefficients"`
	Value        float32   `yaml:"value"`
}

type nonPrimaryHLRow struct {
	Species                  string `yaml:"species"`
	Primary                  string `yaml:"primary"`
	Region                   string `yaml:"region"`
	NonPrimaryHLCoefficients `yaml:",inline"`
}

type becGenusRow struct {
	Bec          string    `yaml:"bec"`
	Genus        string    `yaml:"genus"`
	Coefficients []float32 `yaml:"coefficients"`
}

type intKeyRow struct {
	Key          int       `yaml:"key"`
	Coefficients []float32 `yaml:"coefficients"`
}

type sizeLimitRow struct {
	Genus               string `yaml:"genus"`
	Region              string `yaml:"region"`
	ComponentSizeLimits `yaml:",inline"`
}

type speciesModelRow struct {
	Key          int       `yaml:"key"`
	Model        int       `yaml:"model"`
	Coefficients []float32 `yaml:"coefficients"`
}

type genusKeyRow struct {
	Genus        string    `yaml:"genus"`
	Key          int       `yaml:"key"`
	Coefficients []float32 `yaml:"coefficients"`
}

type upperBoundRow struct {
	Group            int     `yaml:"group"`
	BasalArea        float32 `yaml:"basal_area"`
	QuadMeanDiameter float32 `yaml:"dq"`
}

type upperBoundCoefficientRow struct {
	Region           string  `yaml:"region"`
	Genus            string  `yaml:"genus"`
	BasalArea        float32 `yaml:"basal_area"`
	QuadMeanDiameter float32 `yaml:"dq"`
}

type fiatRow struct {
	Region  string    `yaml:"region"`
	Numbers []float32 `yaml:"numbers"`
}

type ucBecGenusRow struct {
	UC           int       `yaml:"uc"`
	Genus        string    `yaml:"genus"`
	Bec          string    `yaml:"bec"`
	Coefficients []float32 `yaml:"coefficients"`
}

type ucGroupRow struct {
	UC           int       `yaml:"uc"`
	Group        int       `yaml:"group"`
	Coefficients []float32 `yaml:"coefficients"`
}

type genusRow struct {
	Genus        string    `yaml:"genus"`
	Coefficients []float32 `yaml:"coefficients"`
}

// Document is the on-disk shape of a control file.
type Document struct {
	BecZones               []becZoneRow               `yaml:"bec_zones"`
	SpeciesToCombine       [][]string                 `yaml:"species_to_combine"`
	SiteCurves             []siteCurveRow             `yaml:"site_curves"`
	SiteCurveAgeMaximums   []siteCurveAgeRow          `yaml:"site_curve_age_maximums"`
	DefaultEquationGroups  []equationGroupRow         `yaml:"default_equation_groups"`
	EquationModifierGroups []modifierRow              `yaml:"equation_modifier_groups"`
	VolumeEquationGroups   []equationGroupRow         `yaml:"volume_equation_groups"`
	DecayEquationGroups    []equationGroupRow         `yaml:"decay_equation_groups"`
	BreakageEquationGroups []equationGroupRow         `yaml:"breakage_equation_groups"`
	HLPrimary              []genusRegionRow           `yaml:"hl_primary"`
	HLNonPrimary           []nonPrimaryHLRow          `yaml:"hl_non_primary"`
	BasalAreaYield         []becGenusRow              `yaml:"basal_area_yield"`
	DQYield                []becGenusRow              `yaml:"dq_yield"`
	BasalAreaGrowthEmp     []becGenusRow              `yaml:"basal_area_growth_empirical"`
	DQGrowthEmp            []intKeyRow                `yaml:"dq_growth_empirical"`
	DQGrowthLimits         []intKeyRow                `yaml:"dq_growth_limits"`
	UpperBounds            []upperBoundRow            `yaml:"upper_bounds"`
	UpperBoundCoefficients []upperBoundCoefficientRow `yaml:"upper_bound_coefficients"`
	BasalAreaGrowthFiat    []fiatRow                  `yaml:"basal_area_growth_fiat"`
	DQGrowthFiat           []fiatRow                  `yaml:"dq_growth_fiat"`
	ComponentSizeLimits    []sizeLimitRow             `yaml:"component_size_limits"`
	DQBySpecies            []genusRow                 `yaml:"dq_by_species"`
	PrimarySpeciesBAGrowth []speciesModelRow          `yaml:"primary_species_ba_growth"`
	NonPrimarySpeciesBA    []genusKeyRow              `yaml:"non_primary_species_ba_growth"`
	PrimarySpeciesDQGrowth []intKeyRow                `yaml:"primary_species_dq_growth"`
	NonPrimarySpeciesDQ    []genusKeyRow              `yaml:"non_primary_species_dq_growth"`
	BasalAreaByUC          []ucBecGenusRow            `yaml:"basal_area_by_uc"`
	DQByUC                 []ucBecGenusRow            `yaml:"dq_by_uc"`
	TotalStandWholeStem    []intKeyRow                `yaml:"total_stand_whole_stem_volume"`
	WholeStemByUC          []ucGroupRow               `yaml:"whole_stem_by_uc"`
	CloseUtilizationByUC   []ucGroupRow               `yaml:"close_utilization_by_uc"`
	NetDecayByUC           []ucGroupRow               `yaml:"net_decay_by_uc"`
	NetDecayWaste          []genusRow                 `yaml:"net_decay_waste"`
	DecayModifiers         []genusRegionRow           `yaml:"decay_modifiers"`
	WasteModifiers         []genusRegionRow           `yaml:"waste_modifiers"`
	SmallProbability       []genusRow                 `yaml:"small_probability"`
	SmallBasalArea         []genusRow                 `yaml:"small_basal_area"`
	SmallDQ                []genusRow                 `yaml:"small_dq"`
	SmallLoreyHeight       []genusRow                 `yaml:"small_lorey_height"`
	SmallWholeStemVolume   []genusRow                 `yaml:"small_whole_stem_volume"`
	DebugSettings          []int                      `yaml:"debug_settings"`
	ControlVariables       []int                      `yaml:"control_variables"`
	CompVarAdjustments     map[int]float32            `yaml:"comp_var_adjustments"`
}

// Minimum tuple lengths, checked at load so estimators can index freely.
var coefficientLengths = map[string]int{
	"hl_primary":                    3,
	"basal_area_yield":              7,
	"dq_yield":                      6,
	"basal_area_growth_empirical":   8,
	"dq_growth_empirical":           7,
	"dq_growth_limits":              8,
	"dq_by_species":                 3,
	"primary_species_ba_growth":     3,
	"non_primary_species_ba_growth": 3,
	"primary_species_dq_growth":     3,
	"non_primary_species_dq_growth": 3,
	"basal_area_by_uc":              2,
	"dq_by_uc":                      4,
	"total_stand_whole_stem_volume": 9,
	"whole_stem_by_uc":              4,
	"close_utilization_by_uc":       3,
	"net_decay_by_uc":               3,
	"net_decay_waste":               6,
	"small_probability":             4,
	"small_basal_area":              4,
	"small_dq":                      2,
	"small_lorey_height":            2,
	"small_whole_stem_volume":       4,
}

// LoadFile reads and converts a YAML control file.
func LoadFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read control file %s: %w", path, err)
	}
	return Load(data)
}

// Load decodes a YAML control document into a validated Map.
func Load(data []byte) (*Map, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to parse control document: %v", ErrConfiguration, err)
	}
	return doc.Build()
}

func coefficients(table string, values []float32) (Coefficients, error) {
	if n := coefficientLengths[table]; len(values) < n {
		return nil, configErrorf("%s rows need %d coefficients, got %d", table, n, len(values))
	}
	return Coefficients(values).Copy(), nil
}

func region(s string) (models.Region, error) {
	r, err := models.ParseRegion(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return r, nil
}

// Build converts the raw document into the typed registry.
func (d *Document) Build() (*Map, error) {
	m := NewMap()

	for _, row := range d.BecZones {
		r, err := region(row.Region)
		if err != nil {
			return nil, err
		}
		z := row.BecZone
		z.Region = r
		m.BecZones[z.Alias] = z
	}

	if len(d.SpeciesToCombine) > 0 {
		m.SpeciesToCombine = nil
		for _, pair := range d.SpeciesToCombine {
			if len(pair) != 2 {
				return nil, configErrorf("species_to_combine entries must have two genera, got %v", pair)
			}
			m.SpeciesToCombine = append(m.SpeciesToCombine, [2]string{pair[0], pair[1]})
		}
	}

	for _, row := range d.SiteCurves {
		r, err := region(row.Region)
		if err != nil {
			return nil, err
		}
		m.SiteCurves.Put(row.Species, r, row.Curve)
	}
	for _, row := range d.SiteCurveAgeMaximums {
		m.SiteCurveAgeMaximums.Put(row.Curve, NewSiteCurveAgeMaximum(row.Coastal, row.Interior, row.T1, row.T2))
	}

	groups := []struct {
		rows   []equationGroupRow
		target *MatrixMap2[string, string, int]
	}{
		{d.DefaultEquationGroups, m.DefaultEquationGroups},
		{d.VolumeEquationGroups, m.VolumeEquationGroups},
		{d.DecayEquationGroups, m.DecayEquationGroups},
		{d.BreakageEquationGroups, m.BreakageEquationGroups},
	}
	for _, g := range groups {
		for _, row := range g.rows {
			g.target.Put(row.Genus, row.Bec, row.Group)
		}
	}
	for _, row := range d.EquationModifierGroups {
		m.EquationModifierGroups.Put(row.DefaultGroup, row.ITG, row.Group)
	}

	for _, row := range d.HLPrimary {
		r, err := region(row.Region)
		if err != nil {
			return nil, err
		}
		c, err := coefficients("hl_primary", row.Coefficients)
		if err != nil {
			return nil, err
		}
		m.HL1Coefficients.Put(row.Genus, r, c)
	}
	for _, row := range d.HLNonPrimary {
		r, err := region(row.Region)
		if err != nil {
			return nil, err
		}
		if row.Equation != 1 && row.Equation != 2 {
			return nil, configErrorf("hl_non_primary equation for (%s, %s) must be 1 or 2, got %d", row.Species, row.Primary, row.Equation)
		}
		m.NonPrimaryHLCoefficientTable.Put(row.Species, row.Primary, r, row.NonPrimaryHLCoefficients)
	}

	becGenus := []struct {
		table  string
		rows   []becGenusRow
		target *MatrixMap2[string, string, Coefficients]
	}{
		{"basal_area_yield", d.BasalAreaYield, m.BasalAreaYield},
		{"dq_yield", d.DQYield, m.QuadMeanDiameterYield},
		{"basal_area_growth_empirical", d.BasalAreaGrowthEmp, m.BasalAreaGrowthEmpirical},
	}
	for _, t := range becGenus {
		for _, row := range t.rows {
			c, err := coefficients(t.table, row.Coefficients)
			if err != nil {
				return nil, err
			}
			t.target.Put(row.Bec, row.Genus, c)
		}
	}

	intKeyed := []struct {
		table  string
		rows   []intKeyRow
		target *Table[int, Coefficients]
	}{
		{"dq_growth_empirical", d.DQGrowthEmp, m.QuadMeanDiameterGrowthEmpirical},
		{"dq_growth_limits", d.DQGrowthLimits, m.QuadMeanDiameterGrowthLimits},
		{"total_stand_whole_stem_volume", d.TotalStandWholeStem, m.TotalStandWholeStemVolume},
		{"primary_species_dq_growth", d.PrimarySpeciesDQGrowth, m.PrimarySpeciesDQGrowth},
	}
	for _, t := range intKeyed {
		for _, row := range t.rows {
			c, err := coefficients(t.table, row.Coefficients)
			if err != nil {
				return nil, err
			}
			t.target.Put(row.Key, c)
		}
	}

	for _, row := range d.UpperBounds {
		m.UpperBounds.Put(row.Group, UpperBound{BasalArea: row.BasalArea, QuadMeanDiameter: row.QuadMeanDiameter})
	}
	for _, row := range d.UpperBoundCoefficients {
		r, err := region(row.Region)
		if err != nil {
			return nil, err
		}
		m.UpperBoundsCoefficients.Put(r, row.Genus, UpperBoundBasalArea, row.BasalArea)
		m.UpperBoundsCoefficients.Put(r, row.Genus, UpperBoundQuadMeanDiameter, row.QuadMeanDiameter)
	}

	for _, row := range d.ComponentSizeLimits {
		r, err := region(row.Region)
		if err != nil {
			return nil, err
		}
		m.ComponentSizeLimits.Put(row.Genus, r, row.ComponentSizeLimits)
	}
	for _, row := range d.PrimarySpeciesBAGrowth {
		switch row.Model {
		case 3, 8, 9:
		default:
			return nil, configErrorf("primary_species_ba_growth model for stratum %d must be 3, 8 or 9, got %d", row.Key, row.Model)
		}
		c, err := coefficients("primary_species_ba_growth", row.Coefficients)
		if err != nil {
			return nil, err
		}
		m.PrimarySpeciesBasalAreaGrowth.Put(row.Key, SpeciesGrowthModel{Model: row.Model, Coefficients: c})
	}
	genusKeyed := []struct {
		table  string
		rows   []genusKeyRow
		target *MatrixMap2[string, int, Coefficients]
	}{
		{"non_primary_species_ba_growth", d.NonPrimarySpeciesBA, m.NonPrimarySpeciesBasalAreaGrowth},
		{"non_primary_species_dq_growth", d.NonPrimarySpeciesDQ, m.NonPrimarySpeciesDQGrowth},
	}
	for _, t := range genusKeyed {
		for _, row := range t.rows {
			c, err := coefficients(t.table, row.Coefficients)
			if err != nil {
				return nil, err
			}
			t.target.Put(row.Genus, row.Key, c)
		}
	}

	fiats := []struct {
		rows   []fiatRow
		target *Table[models.Region, *GrowthFiatDetails]
	}{
		{d.BasalAreaGrowthFiat, m.BasalAreaGrowthFiat},
		{d.DQGrowthFiat, m.QuadMeanDiameterGrowthFiat},
	}
	for _, f := range fiats {
		for _, row := range f.rows {
			r, err := region(row.Region)
			if err != nil {
				return nil, err
			}
			details, err := NewGrowthFiatDetails(r, row.Numbers)
			if err != nil {
				return nil, err
			}
			f.target.Put(r, details)
		}
	}

	byUC := []struct {
		table  string
		rows   []ucBecGenusRow
		target *MatrixMap3[int, string, string, Coefficients]
	}{
		{"basal_area_by_uc", d.BasalAreaByUC, m.BasalAreaByUC},
		{"dq_by_uc", d.DQByUC, m.QuadMeanDiameterByUC},
	}
	for _, t := range byUC {
		for _, row := range t.rows {
			if _, err := models.UtilizationClassByIndex(row.UC); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, t.table, err)
			}
			c, err := coefficients(t.table, row.Coefficients)
			if err != nil {
				return nil, err
			}
			t.target.Put(row.UC, row.Genus, row.Bec, c)
		}
	}

	byGroup := []struct {
		table  string
		rows   []ucGroupRow
		target *MatrixMap2[int, int, Coefficients]
	}{
		{"whole_stem_by_uc", d.WholeStemByUC, m.WholeStemByUC},
		{"close_utilization_by_uc", d.CloseUtilizationByUC, m.CloseUtilizationByUC},
		{"net_decay_by_uc", d.NetDecayByUC, m.NetDecayByUC},
	}
	for _, t := range byGroup {
		for _, row := range t.rows {
			if _, err := models.UtilizationClassByIndex(row.UC); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, t.table, err)
			}
			c, err := coefficients(t.table, row.Coefficients)
			if err != nil {
				return nil, err
			}
			t.target.Put(row.UC, row.Group, c)
		}
	}

	modifiers := []struct {
		rows   []genusRegionRow
		target *MatrixMap2[string, models.Region, float32]
	}{
		{d.DecayModifiers, m.DecayModifiers},
		{d.WasteModifiers, m.WasteModifiers},
	}
	for _, t := range modifiers {
		for _, row := range t.rows {
			r, err := region(row.Region)
			if err != nil {
				return nil, err
			}
			t.target.Put(row.Genus, r, row.Value)
		}
	}

	byGenus := []struct {
		table  string
		rows   []genusRow
		target *Table[string, Coefficients]
	}{
		{"net_decay_waste", d.NetDecayWaste, m.NetDecayWaste},
		{"dq_by_species", d.DQBySpecies, m.QuadMeanDiameterBySpecies},
		{"small_probability", d.SmallProbability, m.SmallProbability},
		{"small_basal_area", d.SmallBasalArea, m.SmallBasalArea},
		{"small_dq", d.SmallDQ, m.SmallQuadMeanDiameter},
		{"small_lorey_height", d.SmallLoreyHeight, m.SmallLoreyHeight},
		{"small_whole_stem_volume", d.SmallWholeStemVolume, m.SmallWholeStemVolume},
	}
	for _, t := range byGenus {
		for _, row := range t.rows {
			c, err := coefficients(t.table, row.Coefficients)
			if err != nil {
				return nil, err
			}
			t.target.Put(row.Genus, c)
		}
	}

	var err error
	if m.Debug, err = NewDebugSettings(d.DebugSettings); err != nil {
		return nil, err
	}
	if m.Controls, err = NewControlVariables(d.ControlVariables); err != nil {
		return nil, err
	}
	if m.CompVarAdjustments, err = NewCompVarAdjustments(d.CompVarAdjustments); err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the cross-table requirements every run depends on.
func (m *Map) Validate() error {
	if len(m.BecZones) == 0 {
		return configErrorf("no BEC zones defined")
	}
	for alias, z := range m.BecZones {
		if z.Region != models.Coastal && z.Region != models.Interior {
			return configErrorf("BEC zone %s has no region", alias)
		}
	}
	for _, r := range []models.Region{models.Coastal, models.Interior} {
		if _, err := m.BasalAreaGrowthFiat.Get(r); err != nil {
			return err
		}
		if _, err := m.QuadMeanDiameterGrowthFiat.Get(r); err != nil {
			return err
		}
	}
	return nil
}

// Summary describes the loaded tables, for the CLI's check mode.
func (m *Map) Summary() map[string]int {
	return map[string]int{
		"bec_zones":                     len(m.BecZones),
		"site_curves":                   m.SiteCurves.Len(),
		"default_equation_groups":       m.DefaultEquationGroups.Len(),
		"volume_equation_groups":        m.VolumeEquationGroups.Len(),
		"decay_equation_groups":         m.DecayEquationGroups.Len(),
		"hl_primary":                    m.HL1Coefficients.Len(),
		"basal_area_yield":              m.BasalAreaYield.Len(),
		"dq_yield":                      m.QuadMeanDiameterYield.Len(),
		"basal_area_growth_empirical":   m.BasalAreaGrowthEmpirical.Len(),
		"dq_growth_empirical":           m.QuadMeanDiameterGrowthEmpirical.Len(),
		"basal_area_by_uc":              m.BasalAreaByUC.Len(),
		"dq_by_uc":                      m.QuadMeanDiameterByUC.Len(),
		"whole_stem_by_uc":              m.WholeStemByUC.Len(),
		"close_utilization_by_uc":       m.CloseUtilizationByUC.Len(),
		"net_decay_by_uc":               m.NetDecayByUC.Len(),
		"net_decay_waste":               m.NetDecayWaste.Len(),
		"total_stand_whole_stem_volume": m.TotalStandWholeStemVolume.Len(),
		"small_probability":             m.SmallProbability.Len(),
		"component_size_limits":         m.ComponentSizeLimits.Len(),
		"dq_by_species":                 m.QuadMeanDiameterBySpecies.Len(),
		"primary_species_ba_growth":     m.PrimarySpeciesBasalAreaGrowth.Len(),
		"non_primary_species_ba_growth": m.NonPrimarySpeciesBasalAreaGrowth.Len(),
		"primary_species_dq_growth":     m.PrimarySpeciesDQGrowth.Len(),
		"non_primary_species_dq_growth": m.NonPrimarySpeciesDQGrowth.Len(),
	}
}
