package forward

import (
	"vdyp_forward/pkg/core/calc"
	"vdyp_forward/pkg/core/control"
	"vdyp_forward/pkg/core/estimate"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/models"
)

// Compatibility variable application modes, selected by control variable 3.
const (
	compatVarsNone      = 0
	compatVarsBasalArea = 1
	compatVarsAll       = 2
)

// computeUtilizationComponents re-derives every species' utilization-class
// basal areas, densities, diameters and volumes from its grown ALL values,
// applying the compatibility variables the run asks for. The layer slot
// becomes the species sum.
func (p *processor) computeUtilizationComponents() error {
	b := p.s.Bank
	mode := p.m.Controls.Value(control.CompatVarApplication3)
	cv := p.s.CompatVars
	if cv == nil {
		mode = compatVarsNone
	}
	region := b.BecZone.Region
	groups := p.s.EquationGroups

	for _, i := range b.Indices() {
		genus := b.SpeciesNames[i]
		lh := b.LoreyHeights[i][models.UCAll]
		vg, dg := groups.Volume[i], groups.Decay[i]

		ba, tph, dq := b.BasalAreas[i], b.TreesPerHectare[i], b.QuadMeanDiameters[i]
		ws, cu := b.WholeStemVolumes[i], b.CloseUtilizationVolumes[i]
		nd, ndw := b.CUVolumesMinusDecay[i], b.CUVolumesMinusDecayAndWastage[i]

		perTree, err := estimate.WholeStemVolumePerTree(p.m, vg, lh, dq[models.UCAll])
		if err != nil {
			return err
		}
		ws[models.UCAll] = tph[models.UCAll] * perTree

		if err := estimate.QuadMeanDiameterByUtilization(p.m, b.BecZone, &dq, genus); err != nil {
			return err
		}
		if err := estimate.BasalAreaByUtilization(p.m, b.BecZone, &dq, &ba, genus); err != nil {
			return err
		}
		for _, uc := range models.UtilizationBands {
			tph[uc] = calc.TreesPerHectare(ba[uc], dq[uc])
		}
		if err := calc.ReconcileComponents(&ba, &tph, &dq); err != nil {
			return err
		}

		if mode != compatVarsNone {
			for _, uc := range models.UtilizationBands {
				ba[uc] = fmath.Max(ba[uc]+cv.BasalArea[i][uc], 0)
				dq[uc] = fmath.Clamp(dq[uc]+cv.QuadMeanDiameter[i][uc], uc.LowBound(), uc.HighBound())
			}
			if sum := ba.BandSum(); sum > 0 {
				scale := ba[models.UCAll] / sum
				for _, uc := range models.UtilizationBands {
					ba[uc] *= scale
				}
			}
			for _, uc := range models.UtilizationBands {
				tph[uc] = calc.TreesPerHectare(ba[uc], dq[uc])
			}
			if err := calc.ReconcileComponents(&ba, &tph, &dq); err != nil {
				return err
			}
		}

		if err := estimate.WholeStemVolume(p.m, models.UCAll, 0, vg, lh, &dq, &ba, &ws); err != nil {
			return err
		}

		var cuAdjust, ndAdjust, ndwAdjust models.UtilizationVector
		if mode == compatVarsAll {
			for _, uc := range models.UtilizationBands {
				ws[uc] *= fmath.Exp(cv.VolumeValue(i, uc, models.WholeStemVolume))
				cuAdjust[uc] = cv.VolumeValue(i, uc, models.CloseUtilizationVolume)
				ndAdjust[uc] = cv.VolumeValue(i, uc, models.CloseUtilizationVolumeLessDecay)
				ndwAdjust[uc] = cv.VolumeValue(i, uc, models.CloseUtilizationVolumeLessDecayLessWastage)
			}
			ws[models.UCAll] = ws.BandSum()
		}

		if err := estimate.CloseUtilizationVolume(p.m, models.UCAll, &cuAdjust, vg, lh, &dq, &ws, &cu); err != nil {
			return err
		}
		if err := estimate.NetDecayVolume(p.m, genus, region, models.UCAll, &ndAdjust, dg,
			p.s.Primary.YearsAtBreastHeight, &dq, &cu, &nd); err != nil {
			return err
		}
		if err := estimate.NetDecayAndWasteVolume(p.m, region, models.UCAll, &ndwAdjust, genus, lh,
			&dq, &cu, &nd, &ndw); err != nil {
			return err
		}

		b.BasalAreas[i], b.TreesPerHectare[i], b.QuadMeanDiameters[i] = ba, tph, dq
		b.WholeStemVolumes[i], b.CloseUtilizationVolumes[i] = ws, cu
		b.CUVolumesMinusDecay[i], b.CUVolumesMinusDecayAndWastage[i] = nd, ndw
	}

	sumLayer(b.BasalAreas, b.Indices(), models.AllButSmall)
	sumLayer(b.TreesPerHectare, b.Indices(), models.AllButSmall)
	sumLayer(b.WholeStemVolumes, b.Indices(), models.AllButSmall)
	sumLayer(b.CloseUtilizationVolumes, b.Indices(), models.AllButSmall)
	sumLayer(b.CUVolumesMinusDecay, b.Indices(), models.AllButSmall)
	sumLayer(b.CUVolumesMinusDecayAndWastage, b.Indices(), models.AllButSmall)
	for _, uc := range models.AllButSmall {
		b.QuadMeanDiameters[0][uc] = calc.QuadMeanDiameter(b.BasalAreas[0][uc], b.TreesPerHectare[0][uc])
	}

	var weighted, total float32
	for _, i := range b.Indices() {
		weighted += b.BasalAreas[i][models.UCAll] * b.LoreyHeights[i][models.UCAll]
		total += b.BasalAreas[i][models.UCAll]
	}
	if total > 0 {
		b.LoreyHeights[0][models.UCAll] = weighted / total
	}
	return nil
}

// sumLayer stores in slot 0 the sum over species of each class in classes.
func sumLayer(v []models.UtilizationVector, species []int, classes []models.UtilizationClass) {
	for _, uc := range classes {
		var sum float32
		for _, i := range species {
			sum += v[i][uc]
		}
		v[0][uc] = sum
	}
}

// Small-component DQ stays strictly inside the small class once corrected.
const (
	minimumSmallDiameter = 4.01
	maximumSmallDiameter = 7.49
)

// computeSmallComponents re-estimates every species' small (< 7.5cm)
// component from its grown Lorey height, basal area and diameter. Basal area
// is evaluated on the stocked fraction of the polygon.
func (p *processor) computeSmallComponents() error {
	b := p.s.Bank
	mode := p.m.Controls.Value(control.CompatVarApplication3)
	cv := p.s.CompatVars
	if cv == nil {
		mode = compatVarsNone
	}
	fraction := p.s.Polygon.PercentAvailable / 100
	pspYabh := b.YearsAtBreastHeight[p.s.Rankings.PrimaryIndex]

	var lhSum, baSum, tphSum, wsSum float32
	for _, i := range b.Indices() {
		lhAll := b.LoreyHeights[i][models.UCAll]
		small, err := estimate.SmallComponents(p.m, b.SpeciesNames[i], b.BecZone.Region, lhAll,
			b.BasalAreas[i][models.UCAll], b.QuadMeanDiameters[i][models.UCAll], pspYabh, fraction)
		if err != nil {
			return err
		}

		ba, dq, lh, meanVolume := small.BasalArea, small.QuadMeanDiameter, small.LoreyHeight, small.MeanVolume
		if mode != compatVarsNone {
			ba = fmath.Max(ba+cv.SmallValue(i, models.BasalAreaVariable), 0)
			dq = fmath.Clamp(dq+cv.SmallValue(i, models.QuadMeanDiameterVariable), minimumSmallDiameter, maximumSmallDiameter)
			lh = 1.3 + (lh-1.3)*fmath.Exp(cv.SmallValue(i, models.LoreyHeightVariable))
			if mode == compatVarsAll && meanVolume > 0 {
				meanVolume *= fmath.Exp(cv.SmallValue(i, models.WholeStemVolumeVariable))
			}
		}

		tph := calc.TreesPerHectare(ba, dq)
		ws := tph * meanVolume

		b.LoreyHeights[i][models.UCSmall] = lh
		b.BasalAreas[i][models.UCSmall] = ba
		b.TreesPerHectare[i][models.UCSmall] = tph
		b.QuadMeanDiameters[i][models.UCSmall] = dq
		b.WholeStemVolumes[i][models.UCSmall] = ws
		b.CloseUtilizationVolumes[i][models.UCSmall] = 0
		b.CUVolumesMinusDecay[i][models.UCSmall] = 0
		b.CUVolumesMinusDecayAndWastage[i][models.UCSmall] = 0

		lhSum += ba * lh
		baSum += ba
		tphSum += tph
		wsSum += ws
	}

	b.LoreyHeights[0][models.UCSmall] = 0
	if baSum > 0 {
		b.LoreyHeights[0][models.UCSmall] = lhSum / baSum
	}
	b.BasalAreas[0][models.UCSmall] = baSum
	b.TreesPerHectare[0][models.UCSmall] = tphSum
	b.QuadMeanDiameters[0][models.UCSmall] = calc.QuadMeanDiameter(baSum, tphSum)
	b.WholeStemVolumes[0][models.UCSmall] = wsSum
	b.CloseUtilizationVolumes[0][models.UCSmall] = 0
	b.CUVolumesMinusDecay[0][models.UCSmall] = 0
	b.CUVolumesMinusDecayAndWastage[0][models.UCSmall] = 0
	return nil
}
