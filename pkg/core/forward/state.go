package forward

import (
	"errors"
	"fmt"

	"vdyp_forward/pkg/core/bank"
	"vdyp_forward/pkg/core/compat"
	"vdyp_forward/pkg/models"
)

// ErrProcessing marks data-driven failures that abort one polygon: no
// species to grow, a polygon year before 1900, negative densities and the
// like.
var ErrProcessing = errors.New("processing error")

func processingErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProcessing, fmt.Sprintf(format, args...))
}

// StepError reports the step at which a polygon failed.
type StepError struct {
	Step ExecutionStep
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Rankings identifies the primary and secondary species of the layer and the
// equation groups derived from them.
type Rankings struct {
	PrimaryIndex int
	// SecondaryIndex is 0 when the layer has a single species.
	SecondaryIndex     int
	InventoryTypeGroup int
	BasalAreaGroup1    int
	BasalAreaGroup3    int
}

func (r Rankings) HasSecondary() bool { return r.SecondaryIndex > 0 }

// PrimarySpeciesDetails are the layer's running dominant height, site index
// and ages, all taken from (or estimated for) the primary species.
type PrimarySpeciesDetails struct {
	DominantHeight      float32 `json:"dominant_height"`
	SiteIndex           float32 `json:"site_index"`
	TotalAge            float32 `json:"total_age"`
	YearsAtBreastHeight float32 `json:"years_at_breast_height"`
	YearsToBreastHeight float32 `json:"years_to_breast_height"`
}

// afterGrowth advances the details by one year.
func (d PrimarySpeciesDetails) afterGrowth(dhEnd float32) PrimarySpeciesDetails {
	d.DominantHeight = dhEnd
	d.TotalAge++
	d.YearsAtBreastHeight++
	return d
}

// State is the processing state of one polygon's primary layer.
type State struct {
	Polygon *models.Polygon
	Bank    *bank.Bank
	// Year is the year the bank currently describes.
	Year int

	Rankings       Rankings
	Primary        PrimarySpeciesDetails
	EquationGroups compat.EquationGroups
	CompatVars     *compat.Variables

	// LastStep is the last step that completed.
	LastStep ExecutionStep
}

// Layer exports the bank as the polygon's primary layer.
func (s *State) Layer() *models.Layer {
	return s.Bank.ToLayer(models.LayerPrimary)
}

// YearSnapshot is the state of the primary layer at the end of one year.
type YearSnapshot struct {
	Polygon models.PolygonIdentifier `json:"polygon"`
	Year    int                      `json:"year"`
	Primary PrimarySpeciesDetails    `json:"primary"`
	Layer   *models.Layer            `json:"layer"`
}

func (s *State) snapshot() YearSnapshot {
	return YearSnapshot{Polygon: s.Polygon.ID, Year: s.Year, Primary: s.Primary, Layer: s.Layer()}
}
