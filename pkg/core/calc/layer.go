package calc

import "vdyp_forward/pkg/models"

// SumSpecies builds a layer's default utilization record from its species.
// Basal area, density and volumes are summed by class, diameters follow from
// the sums and the Lorey heights are basal-area weighted.
func SumSpecies(species []models.Species) *models.UtilizationValues {
	total := &models.UtilizationValues{}
	var lhSmall, lhAll float32
	for _, s := range species {
		u := s.Utilization
		if u == nil {
			continue
		}
		for _, uc := range models.UtilizationClasses {
			total.BasalArea[uc] += u.BasalArea[uc]
			total.TreesPerHectare[uc] += u.TreesPerHectare[uc]
			total.WholeStemVolume[uc] += u.WholeStemVolume[uc]
			total.CloseUtilizationVolume[uc] += u.CloseUtilizationVolume[uc]
			total.CUVolumeLessDecay[uc] += u.CUVolumeLessDecay[uc]
			total.CUVolumeLessDecayAndWastage[uc] += u.CUVolumeLessDecayAndWastage[uc]
		}
		lhSmall += u.BasalArea[models.UCSmall] * u.LoreyHeightSmall
		lhAll += u.BasalArea[models.UCAll] * u.LoreyHeightAll
	}
	for _, uc := range models.UtilizationClasses {
		total.QuadMeanDiameter[uc] = QuadMeanDiameter(total.BasalArea[uc], total.TreesPerHectare[uc])
	}
	if ba := total.BasalArea[models.UCSmall]; ba > 0 {
		total.LoreyHeightSmall = lhSmall / ba
	}
	if ba := total.BasalArea[models.UCAll]; ba > 0 {
		total.LoreyHeightAll = lhAll / ba
	}
	return total
}
