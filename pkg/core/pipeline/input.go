package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"

	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// Polygon input is HJSON: JSON with comments, unquoted keys and optional
// commas. The document is an array of polygon records. Optional numeric
// species attributes may be omitted and are then carried as missing.

type polygonRecord struct {
	Name             string        `json:"name"`
	Year             int           `json:"year"`
	BecZone          string        `json:"bec_zone"`
	PercentAvailable *float32      `json:"percent_available"`
	TargetYear       *int          `json:"target_year"`
	Layers           []layerRecord `json:"layers"`
}

type layerRecord struct {
	Type        models.LayerType          `json:"type"`
	Utilization *models.UtilizationValues `json:"utilization"`
	Species     []speciesRecord           `json:"species"`
}

type speciesRecord struct {
	Genus               string                    `json:"genus"`
	PercentGenus        float32                   `json:"percent_genus"`
	Sp64Distribution    []models.Sp64Share        `json:"sp64_distribution"`
	SiteIndex           *float32                  `json:"site_index"`
	DominantHeight      *float32                  `json:"dominant_height"`
	AgeTotal            *float32                  `json:"age_total"`
	YearsAtBreastHeight *float32                  `json:"years_at_breast_height"`
	YearsToBreastHeight *float32                  `json:"years_to_breast_height"`
	SiteCurveNumber     *int                      `json:"site_curve_number"`
	Utilization         *models.UtilizationValues `json:"utilization"`
}

// ReadPolygonsFile reads the polygons of an HJSON file.
func ReadPolygonsFile(path string) ([]*models.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading polygons: %w", err)
	}
	return ReadPolygons(data)
}

// ReadPolygons decodes an HJSON polygon document. Unknown fields, unknown
// genera and layers without species are rejected.
func ReadPolygons(data []byte) ([]*models.Polygon, error) {
	// HJSON is normalised to standard JSON first so the typed decode can be
	// strict about field names.
	var generic any
	if err := hjson.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parsing polygons: %w", err)
	}
	normalised, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("normalising polygons: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(normalised))
	dec.DisallowUnknownFields()
	var records []polygonRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding polygons: %w", err)
	}

	polygons := make([]*models.Polygon, 0, len(records))
	for i, r := range records {
		p, err := r.toPolygon()
		if err != nil {
			return nil, fmt.Errorf("polygon %d (%s): %w", i+1, r.Name, err)
		}
		polygons = append(polygons, p)
	}
	return polygons, nil
}

func (r polygonRecord) toPolygon() (*models.Polygon, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("missing polygon name")
	}
	p := &models.Polygon{
		ID:         models.PolygonIdentifier{Name: r.Name, Year: r.Year},
		BecZone:    r.BecZone,
		TargetYear: r.TargetYear,
		Layers:     map[models.LayerType]*models.Layer{},
	}
	if r.PercentAvailable != nil {
		p.PercentAvailable = *r.PercentAvailable
	}

	for _, lr := range r.Layers {
		if lr.Type != models.LayerPrimary && lr.Type != models.LayerVeteran {
			return nil, fmt.Errorf("unknown layer type %q", lr.Type)
		}
		if _, dup := p.Layers[lr.Type]; dup {
			return nil, fmt.Errorf("duplicate %s layer", lr.Type)
		}
		if len(lr.Species) == 0 {
			return nil, fmt.Errorf("%s layer has no species", lr.Type)
		}

		layer := &models.Layer{Type: lr.Type, Utilization: lr.Utilization}
		seen := map[string]bool{}
		for _, sr := range lr.Species {
			if seen[sr.Genus] {
				return nil, fmt.Errorf("genus %s appears twice in the %s layer", sr.Genus, lr.Type)
			}
			seen[sr.Genus] = true
			s, err := sr.toSpecies()
			if err != nil {
				return nil, err
			}
			layer.Species = append(layer.Species, s)
		}
		if layer.Utilization == nil {
			layer.Utilization = calc.SumSpecies(layer.Species)
		}
		p.Layers[lr.Type] = layer
	}
	return p, nil
}

func (r speciesRecord) toSpecies() (models.Species, error) {
	index, err := models.GenusIndex(r.Genus)
	if err != nil {
		return models.Species{}, err
	}
	curve := models.MissingInteger
	if r.SiteCurveNumber != nil {
		curve = *r.SiteCurveNumber
	}
	u := r.Utilization
	if u == nil {
		u = &models.UtilizationValues{}
	}
	return models.Species{
		Genus:               r.Genus,
		GenusIndex:          index,
		PercentGenus:        r.PercentGenus,
		Sp64Distribution:    r.Sp64Distribution,
		SiteIndex:           orNaN(r.SiteIndex),
		DominantHeight:      orNaN(r.DominantHeight),
		AgeTotal:            orNaN(r.AgeTotal),
		YearsAtBreastHeight: orNaN(r.YearsAtBreastHeight),
		YearsToBreastHeight: orNaN(r.YearsToBreastHeight),
		SiteCurveNumber:     curve,
		Utilization:         u,
	}, nil
}

func orNaN(v *float32) float32 {
	if v == nil {
		return fmath.NaN()
	}
	return *v
}
