package models

import "fmt"

// MissingInteger marks an absent integer attribute such as a site curve number.
const MissingInteger = -9

// PolygonIdentifier names a polygon at a given inventory year.
type PolygonIdentifier struct {
	Name string `json:"name"`
	Year int    `json:"year"`
}

func (id PolygonIdentifier) String() string {
	return fmt.Sprintf("%s(%d)", id.Name, id.Year)
}

// Sp64Share is one species (sp64) entry of a genus' distribution.
type Sp64Share struct {
	Alias      string  `json:"alias"`
	Percentage float32 `json:"percentage"`
}

// UtilizationValues holds the per-class measurements of a species or layer.
type UtilizationValues struct {
	BasalArea                   UtilizationVector `json:"basal_area"`
	TreesPerHectare             UtilizationVector `json:"trees_per_hectare"`
	QuadMeanDiameter            UtilizationVector `json:"quad_mean_diameter"`
	WholeStemVolume             UtilizationVector `json:"whole_stem_volume"`
	CloseUtilizationVolume      UtilizationVector `json:"close_utilization_volume"`
	CUVolumeLessDecay           UtilizationVector `json:"cu_volume_less_decay"`
	CUVolumeLessDecayAndWastage UtilizationVector `json:"cu_volume_less_decay_and_wastage"`
	LoreyHeightSmall            float32           `json:"lorey_height_small"`
	LoreyHeightAll              float32           `json:"lorey_height_all"`
}

// Species is one genus of a layer. Missing numeric values are NaN.
type Species struct {
	Genus               string             `json:"genus"`
	GenusIndex          int                `json:"genus_index"`
	PercentGenus        float32            `json:"percent_genus"`
	Sp64Distribution    []Sp64Share        `json:"sp64_distribution"`
	SiteIndex           float32            `json:"site_index"`
	DominantHeight      float32            `json:"dominant_height"`
	AgeTotal            float32            `json:"age_total"`
	YearsAtBreastHeight float32            `json:"years_at_breast_height"`
	YearsToBreastHeight float32            `json:"years_to_breast_height"`
	SiteCurveNumber     int                `json:"site_curve_number"`
	Utilization         *UtilizationValues `json:"utilization,omitempty"`
}

// Layer is one canopy layer of a polygon.
type Layer struct {
	Type    LayerType `json:"type"`
	Species []Species `json:"species"`
	// Utilization is the layer's default (all-species) utilization record.
	Utilization *UtilizationValues `json:"utilization,omitempty"`
}

// Polygon is the unit of processing.
type Polygon struct {
	ID               PolygonIdentifier    `json:"id"`
	BecZone          string               `json:"bec_zone"`
	PercentAvailable float32              `json:"percent_available"`
	TargetYear       *int                 `json:"target_year,omitempty"`
	Layers           map[LayerType]*Layer `json:"layers"`
}

// PrimaryLayer returns the primary layer, or nil.
func (p *Polygon) PrimaryLayer() *Layer { return p.Layers[LayerPrimary] }

// VeteranLayer returns the veteran layer, or nil.
func (p *Polygon) VeteranLayer() *Layer { return p.Layers[LayerVeteran] }
