// Package bank holds the array-based state of one polygon layer for one
// simulation year.
//
// Slot 0 of every per-species array is the layer aggregate; slots 1..NSpecies
// are the species in ascending genus order. A bank is owned by exactly one
// polygon's processing and is never shared.
package bank

import (
	"sort"

	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// LoreyHeights is indexed by models.UCSmall and models.UCAll.
type LoreyHeights [2]float32

// SpeciesFilter decides whether a species takes a slot in the bank.
type SpeciesFilter func(s models.Species) bool

// Bank is the per-layer, per-year state the growth steps operate on.
type Bank struct {
	BecZone  models.BecZone
	NSpecies int

	SpeciesIndices    []int
	SpeciesNames      []string
	Sp64Distributions [][]models.Sp64Share

	SiteIndices         []float32
	DominantHeights     []float32
	AgeTotals           []float32
	YearsAtBreastHeight []float32
	YearsToBreastHeight []float32
	PercentForestedLand []float32
	SiteCurveNumbers    []int

	BasalAreas                    []models.UtilizationVector
	TreesPerHectare               []models.UtilizationVector
	QuadMeanDiameters             []models.UtilizationVector
	WholeStemVolumes              []models.UtilizationVector
	CloseUtilizationVolumes       []models.UtilizationVector
	CUVolumesMinusDecay           []models.UtilizationVector
	CUVolumesMinusDecayAndWastage []models.UtilizationVector
	LoreyHeights                  []LoreyHeights
}

func speciesBasalArea(s models.Species) float32 {
	if s.Utilization == nil {
		return 0
	}
	return s.Utilization.BasalArea[models.UCAll]
}

// MinimumBasalArea is the smallest 7.5cm+ basal area for which a species is
// carried in a bank.
const MinimumBasalArea = 0.001

// AboveMinimumBasalArea is the filter the engine uses.
func AboveMinimumBasalArea(s models.Species) bool {
	return speciesBasalArea(s) >= MinimumBasalArea
}

// New builds a bank from layer, keeping the species accepted by filter.
func New(layer *models.Layer, becZone models.BecZone, filter SpeciesFilter) *Bank {
	var kept []models.Species
	for _, s := range layer.Species {
		if filter == nil || filter(s) {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].GenusIndex < kept[j].GenusIndex })

	b := allocate(len(kept))
	b.BecZone = becZone

	b.SiteCurveNumbers[0] = models.MissingInteger
	b.SiteIndices[0] = fmath.NaN()
	b.DominantHeights[0] = fmath.NaN()
	b.AgeTotals[0] = fmath.NaN()
	b.YearsAtBreastHeight[0] = fmath.NaN()
	b.YearsToBreastHeight[0] = fmath.NaN()

	for i, s := range kept {
		n := i + 1
		b.SpeciesIndices[n] = s.GenusIndex
		b.SpeciesNames[n] = s.Genus
		b.Sp64Distributions[n] = append([]models.Sp64Share(nil), s.Sp64Distribution...)
		b.SiteIndices[n] = s.SiteIndex
		b.DominantHeights[n] = s.DominantHeight
		b.AgeTotals[n] = s.AgeTotal
		b.YearsAtBreastHeight[n] = s.YearsAtBreastHeight
		b.YearsToBreastHeight[n] = s.YearsToBreastHeight
		b.PercentForestedLand[n] = s.PercentGenus
		b.SiteCurveNumbers[n] = s.SiteCurveNumber
	}

	b.RefreshFromLayer(layer)
	return b
}

func allocate(n int) *Bank {
	size := n + 1
	return &Bank{
		NSpecies:                      n,
		SpeciesIndices:                make([]int, size),
		SpeciesNames:                  make([]string, size),
		Sp64Distributions:             make([][]models.Sp64Share, size),
		SiteIndices:                   make([]float32, size),
		DominantHeights:               make([]float32, size),
		AgeTotals:                     make([]float32, size),
		YearsAtBreastHeight:           make([]float32, size),
		YearsToBreastHeight:           make([]float32, size),
		PercentForestedLand:           make([]float32, size),
		SiteCurveNumbers:              make([]int, size),
		BasalAreas:                    make([]models.UtilizationVector, size),
		TreesPerHectare:               make([]models.UtilizationVector, size),
		QuadMeanDiameters:             make([]models.UtilizationVector, size),
		WholeStemVolumes:              make([]models.UtilizationVector, size),
		CloseUtilizationVolumes:       make([]models.UtilizationVector, size),
		CUVolumesMinusDecay:           make([]models.UtilizationVector, size),
		CUVolumesMinusDecayAndWastage: make([]models.UtilizationVector, size),
		LoreyHeights:                  make([]LoreyHeights, size),
	}
}

// Indices returns the species slots 1..NSpecies.
func (b *Bank) Indices() []int {
	out := make([]int, b.NSpecies)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func (b *Bank) setUtilization(i int, u *models.UtilizationValues) {
	if u == nil {
		return
	}
	b.BasalAreas[i] = u.BasalArea
	b.TreesPerHectare[i] = u.TreesPerHectare
	b.QuadMeanDiameters[i] = u.QuadMeanDiameter
	b.WholeStemVolumes[i] = u.WholeStemVolume
	b.CloseUtilizationVolumes[i] = u.CloseUtilizationVolume
	b.CUVolumesMinusDecay[i] = u.CUVolumeLessDecay
	b.CUVolumesMinusDecayAndWastage[i] = u.CUVolumeLessDecayAndWastage
	b.LoreyHeights[i] = LoreyHeights{u.LoreyHeightSmall, u.LoreyHeightAll}
}

func (b *Bank) utilization(i int) *models.UtilizationValues {
	return &models.UtilizationValues{
		BasalArea:                   b.BasalAreas[i],
		TreesPerHectare:             b.TreesPerHectare[i],
		QuadMeanDiameter:            b.QuadMeanDiameters[i],
		WholeStemVolume:             b.WholeStemVolumes[i],
		CloseUtilizationVolume:      b.CloseUtilizationVolumes[i],
		CUVolumeLessDecay:           b.CUVolumesMinusDecay[i],
		CUVolumeLessDecayAndWastage: b.CUVolumesMinusDecayAndWastage[i],
		LoreyHeightSmall:            b.LoreyHeights[i][models.UCSmall],
		LoreyHeightAll:              b.LoreyHeights[i][models.UCAll],
	}
}

// RefreshFromLayer overwrites the utilization arrays from layer. Species are
// matched by genus; layer species not in the bank are ignored.
func (b *Bank) RefreshFromLayer(layer *models.Layer) {
	b.setUtilization(0, layer.Utilization)
	for _, s := range layer.Species {
		for _, i := range b.Indices() {
			if b.SpeciesNames[i] == s.Genus {
				b.setUtilization(i, s.Utilization)
				break
			}
		}
	}
}

// ToLayer exports the bank as a layer of the given type.
func (b *Bank) ToLayer(t models.LayerType) *models.Layer {
	layer := &models.Layer{Type: t, Utilization: b.utilization(0)}
	for _, i := range b.Indices() {
		layer.Species = append(layer.Species, models.Species{
			Genus:               b.SpeciesNames[i],
			GenusIndex:          b.SpeciesIndices[i],
			PercentGenus:        b.PercentForestedLand[i],
			Sp64Distribution:    append([]models.Sp64Share(nil), b.Sp64Distributions[i]...),
			SiteIndex:           b.SiteIndices[i],
			DominantHeight:      b.DominantHeights[i],
			AgeTotal:            b.AgeTotals[i],
			YearsAtBreastHeight: b.YearsAtBreastHeight[i],
			YearsToBreastHeight: b.YearsToBreastHeight[i],
			SiteCurveNumber:     b.SiteCurveNumbers[i],
			Utilization:         b.utilization(i),
		})
	}
	return layer
}

// Copy returns a deep copy; no slice is shared with b.
func (b *Bank) Copy() *Bank {
	c := allocate(b.NSpecies)
	c.BecZone = b.BecZone
	copy(c.SpeciesIndices, b.SpeciesIndices)
	copy(c.SpeciesNames, b.SpeciesNames)
	for i, d := range b.Sp64Distributions {
		c.Sp64Distributions[i] = append([]models.Sp64Share(nil), d...)
	}
	copy(c.SiteIndices, b.SiteIndices)
	copy(c.DominantHeights, b.DominantHeights)
	copy(c.AgeTotals, b.AgeTotals)
	copy(c.YearsAtBreastHeight, b.YearsAtBreastHeight)
	copy(c.YearsToBreastHeight, b.YearsToBreastHeight)
	copy(c.PercentForestedLand, b.PercentForestedLand)
	copy(c.SiteCurveNumbers, b.SiteCurveNumbers)
	copy(c.BasalAreas, b.BasalAreas)
	copy(c.TreesPerHectare, b.TreesPerHectare)
	copy(c.QuadMeanDiameters, b.QuadMeanDiameters)
	copy(c.WholeStemVolumes, b.WholeStemVolumes)
	copy(c.CloseUtilizationVolumes, b.CloseUtilizationVolumes)
	copy(c.CUVolumesMinusDecay, b.CUVolumesMinusDecay)
	copy(c.CUVolumesMinusDecayAndWastage, b.CUVolumesMinusDecayAndWastage)
	copy(c.LoreyHeights, b.LoreyHeights)
	return c
}
