package pipeline

import (
	"encoding/json"
	"io"

	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/core/forward"
	"vdyp_forward/pkg/models"
)

// Output records. JSON has no NaN, so attributes that may be missing are
// written as null.

const (
	StatusProjected = "projected"
	StatusFailed    = "failed"
)

// SpeciesOutput is one species of a year's layer.
type SpeciesOutput struct {
	Genus               string                    `json:"genus"`
	PercentForestedLand float32                   `json:"percent_forested_land"`
	SiteCurveNumber     *int                      `json:"site_curve_number"`
	SiteIndex           *float32                  `json:"site_index"`
	DominantHeight      *float32                  `json:"dominant_height"`
	AgeTotal            *float32                  `json:"age_total"`
	YearsAtBreastHeight *float32                  `json:"years_at_breast_height"`
	YearsToBreastHeight *float32                  `json:"years_to_breast_height"`
	Utilization         *models.UtilizationValues `json:"utilization"`
}

// PrimaryOutput is the layer's primary species details.
type PrimaryOutput struct {
	DominantHeight      *float32 `json:"dominant_height"`
	SiteIndex           *float32 `json:"site_index"`
	TotalAge            *float32 `json:"total_age"`
	YearsAtBreastHeight *float32 `json:"years_at_breast_height"`
	YearsToBreastHeight *float32 `json:"years_to_breast_height"`
}

// YearOutput is the primary layer at the end of one year.
type YearOutput struct {
	Year        int                       `json:"year"`
	Primary     PrimaryOutput             `json:"primary"`
	Utilization *models.UtilizationValues `json:"utilization"`
	Species     []SpeciesOutput           `json:"species"`
}

// PolygonResult is a successfully projected polygon.
type PolygonResult struct {
	Polygon    models.PolygonIdentifier `json:"polygon"`
	TargetYear int                      `json:"target_year"`
	Years      []YearOutput             `json:"years"`
}

// FinalBasalArea is the layer basal area of the last year, or 0.
func (r *PolygonResult) FinalBasalArea() float32 {
	if len(r.Years) == 0 || r.Years[len(r.Years)-1].Utilization == nil {
		return 0
	}
	return r.Years[len(r.Years)-1].Utilization.BasalArea[models.UCAll]
}

// PolygonFailure is a polygon whose processing stopped with an error.
type PolygonFailure struct {
	Polygon models.PolygonIdentifier `json:"polygon"`
	// Step is the execution step that failed, empty when processing was
	// interrupted rather than failed.
	Step  string `json:"step,omitempty"`
	Error string `json:"error"`
}

// Record is one line of the output stream.
type Record struct {
	RunID   string                   `json:"run_id"`
	Status  string                   `json:"status"`
	Polygon models.PolygonIdentifier `json:"polygon"`
	Result  *PolygonResult           `json:"result,omitempty"`
	Failure *PolygonFailure          `json:"failure,omitempty"`
}

func nullable(v float32) *float32 {
	if fmath.IsNaN(v) {
		return nil
	}
	return &v
}

func nullableCurve(c int) *int {
	if c == models.MissingInteger {
		return nil
	}
	return &c
}

func yearOutput(s forward.YearSnapshot) YearOutput {
	out := YearOutput{
		Year: s.Year,
		Primary: PrimaryOutput{
			DominantHeight:      nullable(s.Primary.DominantHeight),
			SiteIndex:           nullable(s.Primary.SiteIndex),
			TotalAge:            nullable(s.Primary.TotalAge),
			YearsAtBreastHeight: nullable(s.Primary.YearsAtBreastHeight),
			YearsToBreastHeight: nullable(s.Primary.YearsToBreastHeight),
		},
	}
	if s.Layer == nil {
		return out
	}
	out.Utilization = s.Layer.Utilization
	for _, sp := range s.Layer.Species {
		out.Species = append(out.Species, SpeciesOutput{
			Genus:               sp.Genus,
			PercentForestedLand: sp.PercentGenus,
			SiteCurveNumber:     nullableCurve(sp.SiteCurveNumber),
			SiteIndex:           nullable(sp.SiteIndex),
			DominantHeight:      nullable(sp.DominantHeight),
			AgeTotal:            nullable(sp.AgeTotal),
			YearsAtBreastHeight: nullable(sp.YearsAtBreastHeight),
			YearsToBreastHeight: nullable(sp.YearsToBreastHeight),
			Utilization:         sp.Utilization,
		})
	}
	return out
}

// recordWriter writes one JSON document per line.
type recordWriter struct {
	enc *json.Encoder
}

func newRecordWriter(w io.Writer) *recordWriter {
	return &recordWriter{enc: json.NewEncoder(w)}
}

func (w *recordWriter) write(r Record) error {
	return w.enc.Encode(r)
}
