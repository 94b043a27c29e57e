package models

import "fmt"

// Region is the coarse geographic split used by most coefficient tables.
type Region int

const (
	Coastal  Region = 1
	Interior Region = 2
)

func (r Region) String() string {
	switch r {
	case Coastal:
		return "COASTAL"
	case Interior:
		return "INTERIOR"
	}
	return fmt.Sprintf("Region(%d)", int(r))
}

// ParseRegion accepts "C"/"COASTAL" and "I"/"INTERIOR".
func ParseRegion(s string) (Region, error) {
	switch s {
	case "C", "COASTAL", "coastal":
		return Coastal, nil
	case "I", "INTERIOR", "interior":
		return Interior, nil
	}
	return 0, fmt.Errorf("unrecognized region %q", s)
}

// BecZone is a Biogeoclimatic Ecosystem Classification zone definition.
type BecZone struct {
	Alias  string `yaml:"alias" json:"alias"`
	Name   string `yaml:"name" json:"name"`
	Region Region `yaml:"-" json:"region"`
	// GrowthBec and DecayBec name the zones whose coefficients stand in for this one.
	GrowthBec string `yaml:"growth_bec" json:"growth_bec"`
	DecayBec  string `yaml:"decay_bec" json:"decay_bec"`
}

// GrowthAlias returns the alias used for growth coefficients.
func (b BecZone) GrowthAlias() string {
	if b.GrowthBec != "" {
		return b.GrowthBec
	}
	return b.Alias
}

// DecayAlias returns the alias used for decay coefficients.
func (b BecZone) DecayAlias() string {
	if b.DecayBec != "" {
		return b.DecayBec
	}
	return b.Alias
}
