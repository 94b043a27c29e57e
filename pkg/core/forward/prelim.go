package forward

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"vdyp_forward/pkg/core/bank"
	"vdyp_forward/pkg/core/estimate"
	"vdyp_forward/pkg/core/fmath"
	"vdyp_forward/pkg/core/sitetool"
	"vdyp_forward/pkg/models"
)

// =============================================================================
// Preliminary steps: run once per polygon before the first year is grown.
// =============================================================================

func (p *processor) checkForWork() error {
	if p.s.Bank.NSpecies == 0 {
		return processingErrorf("polygon %s primary layer has no species with basal area of at least %v",
			p.s.Polygon.ID, bank.MinimumBasalArea)
	}
	return nil
}

// calculateMissingSiteCurves fills each missing site curve number from the
// site curve map, trying the species' first sp64 alias and then its genus.
// An empty map defers to the site tool's default curve for the genus.
func (p *processor) calculateMissingSiteCurves() error {
	b := p.s.Bank
	region := b.BecZone.Region
	useMap := p.m.SiteCurves.Len() > 0

	find := func(alias string) (int, bool) {
		if useMap {
			return p.m.SiteCurves.Lookup(alias, region)
		}
		c := sitetool.DefaultCurve(alias, region == models.Coastal)
		return c, c != sitetool.NoCurve
	}

	for _, i := range b.Indices() {
		if b.SiteCurveNumbers[i] != models.MissingInteger {
			continue
		}
		var (
			curve int
			found bool
		)
		if dist := b.Sp64Distributions[i]; len(dist) > 0 {
			curve, found = find(dist[0].Alias)
		}
		if !found {
			curve, found = find(b.SpeciesNames[i])
		}
		if !found {
			return processingErrorf("no site curve for species %s in region %s", b.SpeciesNames[i], region)
		}
		b.SiteCurveNumbers[i] = curve
	}
	return nil
}

// calculateCoverages sets each species' share of the layer basal area.
func calculateCoverages(b *bank.Bank) {
	for _, i := range b.Indices() {
		b.PercentForestedLand[i] = b.BasalAreas[i][models.UCAll] / b.BasalAreas[0][models.UCAll] * 100
	}
}

// ----------------------------------------------------------------------------
// Rankings
// ----------------------------------------------------------------------------

// defaultBasalAreaGroups is indexed by genus index.
var defaultBasalAreaGroups = [...]int{0, 1, 2, 3, 4, 1, 2, 5, 6, 7, 1, 9, 8, 9, 9, 10, 4}

// Genera whose interior stands use the group 20 higher.
var interiorShiftedGenera = map[int]bool{3: true, 4: true, 5: true, 6: true, 10: true}

// determinePolygonRankings picks the primary and secondary species by
// percentage, after merging the paired genera, and derives the inventory
// type group and basal area groups from them.
func (p *processor) determinePolygonRankings() error {
	b := p.s.Bank
	if b.NSpecies == 0 {
		return processingErrorf("cannot rank species of an empty layer")
	}

	percentages := append([]float32(nil), b.PercentForestedLand...)
	for _, pair := range p.m.SpeciesToCombine {
		combinePercentages(b.SpeciesNames, pair, percentages)
	}

	var highest, second float32
	highestIndex, secondIndex := 0, 0
	for _, i := range b.Indices() {
		switch {
		case percentages[i] > highest:
			second, secondIndex = highest, highestIndex
			highest, highestIndex = percentages[i], i
		case percentages[i] > second:
			second, secondIndex = percentages[i], i
		}
	}
	if highestIndex == 0 {
		return processingErrorf("no species covers a positive percentage of the layer")
	}

	primaryGenus := b.SpeciesNames[highestIndex]
	var secondaryGenus string
	if secondIndex > 0 {
		secondaryGenus = b.SpeciesNames[secondIndex]
	}

	itg, err := findInventoryTypeGroup(primaryGenus, secondaryGenus, highest)
	if err != nil {
		return err
	}

	defaultGroup, err := p.m.DefaultEquationGroups.Get(primaryGenus, b.BecZone.Alias)
	if err != nil {
		return err
	}

	genusIndex := b.SpeciesIndices[highestIndex]
	group3 := defaultBasalAreaGroups[genusIndex]
	if b.BecZone.Region == models.Interior && interiorShiftedGenera[genusIndex] {
		group3 += 20
	}

	p.s.Rankings = Rankings{
		PrimaryIndex:       highestIndex,
		SecondaryIndex:     secondIndex,
		InventoryTypeGroup: itg,
		BasalAreaGroup1:    p.m.BasalAreaGroup(defaultGroup, itg),
		BasalAreaGroup3:    group3,
	}
	p.log.WithFields(logrus.Fields{
		"primary":   primaryGenus,
		"secondary": secondaryGenus,
		"itg":       itg,
	}).Debug("ranked species")
	return nil
}

// combinePercentages folds the lower percentage of a genus pair into the
// higher when both genera are present.
func combinePercentages(names []string, pair [2]string, percentages []float32) {
	a, b := -1, -1
	for i, n := range names {
		switch n {
		case pair[0]:
			a = i
		case pair[1]:
			b = i
		}
	}
	if a < 0 || b < 0 {
		return
	}
	if percentages[a] <= percentages[b] {
		a, b = b, a
	}
	percentages[a] += percentages[b]
	percentages[b] = 0
}

var pureInventoryTypeGroups = map[string]int{
	"AC": 36, "AT": 42, "B": 18, "C": 9, "D": 38, "E": 40, "F": 1, "H": 12,
	"L": 34, "MB": 39, "PA": 28, "PL": 28, "PW": 27, "PY": 32, "S": 21, "Y": 9,
}

// findInventoryTypeGroup (ITGFIND) classifies a stand by its primary and
// secondary genera. secondary is empty for single-species stands.
func findInventoryTypeGroup(primary, secondary string, primaryPercentage float32) (int, error) {
	if primaryPercentage > 79.999 {
		itg, ok := pureInventoryTypeGroups[primary]
		if !ok {
			return 0, processingErrorf("unrecognized primary genus %q", primary)
		}
		return itg, nil
	}
	if primary == secondary {
		return 0, processingErrorf("primary and secondary genus are both %q", primary)
	}

	hardwood := models.Hardwoods[secondary]
	switch primary {
	case "F":
		switch secondary {
		case "C", "Y":
			return 2, nil
		case "B", "H":
			return 3, nil
		case "S":
			return 4, nil
		case "PL", "PA":
			return 5, nil
		case "PY":
			return 6, nil
		case "L", "PW":
			return 7, nil
		}
		return 8, nil
	case "C", "Y":
		switch secondary {
		case "H", "B", "S":
			return 11, nil
		}
		return 10, nil
	case "H":
		switch secondary {
		case "C", "Y":
			return 14, nil
		case "B":
			return 15, nil
		case "S":
			return 16, nil
		}
		return 13, nil
	case "B":
		switch secondary {
		case "C", "Y", "H":
			return 19, nil
		}
		return 20, nil
	case "S":
		switch secondary {
		case "C", "Y", "H":
			return 23, nil
		case "B":
			return 24, nil
		case "PL":
			return 25, nil
		}
		if hardwood {
			return 26, nil
		}
		return 22, nil
	case "PW":
		return 27, nil
	case "PL", "PA":
		switch secondary {
		case "PL", "PA":
			return 28, nil
		case "F", "PW", "L", "PY":
			return 29, nil
		}
		if hardwood {
			return 31, nil
		}
		return 30, nil
	case "PY":
		return 32, nil
	case "L":
		if secondary == "F" {
			return 33, nil
		}
		return 34, nil
	case "AC":
		if hardwood {
			return 36, nil
		}
		return 35, nil
	case "D":
		if hardwood {
			return 38, nil
		}
		return 37, nil
	case "MB":
		return 39, nil
	case "E":
		return 40, nil
	case "AT":
		if hardwood {
			return 42, nil
		}
		return 41, nil
	}
	return 0, processingErrorf("unrecognized primary genus %q", primary)
}

// ----------------------------------------------------------------------------
// Site index, years to breast height, dominant height
// ----------------------------------------------------------------------------

// convertSiteIndex maps a site index between curves. ok is false when the
// curves have no conversion; any other failure is returned.
func convertSiteIndex(from int, si float32, to int) (converted float32, ok bool, err error) {
	v, err := sitetool.ConvertSiteIndexBetweenCurves(from, float64(si), to)
	if errors.Is(err, sitetool.ErrNoAnswer) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: converting site index %v from curve %d to %d: %w",
			ErrProcessing, si, from, to, err)
	}
	return float32(v), true, nil
}

// estimateMissingSiteIndices (SITEADD) fills a missing primary site index
// with the mean of the others converted to the primary curve, then fills the
// other missing site indices from the primary one.
func (p *processor) estimateMissingSiteIndices() error {
	b := p.s.Bank
	psp := p.s.Rankings.PrimaryIndex
	pspCurve := b.SiteCurveNumbers[psp]

	if fmath.IsNaN(b.SiteIndices[psp]) {
		var sum float64
		var n int
		for _, i := range b.Indices() {
			if i == psp || fmath.IsNaN(b.SiteIndices[i]) {
				continue
			}
			si, ok, err := convertSiteIndex(b.SiteCurveNumbers[i], b.SiteIndices[i], pspCurve)
			if err != nil {
				return err
			}
			if !ok {
				p.log.Warnf("no conversion from site curve %d to %d; species %s not used to estimate the site index of %s",
					b.SiteCurveNumbers[i], pspCurve, b.SpeciesNames[i], b.SpeciesNames[psp])
				continue
			}
			if si > 1.3 {
				sum += float64(si)
				n++
			}
		}
		if n > 0 {
			b.SiteIndices[psp] = float32(sum / float64(n))
		}
	}

	pspSI := b.SiteIndices[psp]
	if !fmath.IsNaN(pspSI) {
		for _, i := range b.Indices() {
			if i == psp || !fmath.IsNaN(b.SiteIndices[i]) {
				continue
			}
			si, ok, err := convertSiteIndex(pspCurve, pspSI, b.SiteCurveNumbers[i])
			if err != nil {
				return err
			}
			if !ok {
				p.log.Warnf("no conversion from site curve %d to %d; site index of species %s left unset",
					pspCurve, b.SiteCurveNumbers[i], b.SpeciesNames[i])
				continue
			}
			b.SiteIndices[i] = si
		}
	}

	b.SiteIndices[0] = pspSI
	return nil
}

// estimateMissingYearsToBreastHeightValues derives each missing years to
// breast height from the ages when it can, and from the site curve
// otherwise. Species the site tool cannot resolve are left missing.
func (p *processor) estimateMissingYearsToBreastHeightValues() {
	b := p.s.Bank

	defaultSI := b.SiteIndices[p.s.Rankings.PrimaryIndex]
	if fmath.IsNaN(defaultSI) {
		for _, i := range b.Indices() {
			if !fmath.IsNaN(b.SiteIndices[i]) {
				defaultSI = b.SiteIndices[i]
				break
			}
		}
	}

	for _, i := range b.Indices() {
		if !fmath.IsNaN(b.YearsToBreastHeight[i]) {
			continue
		}
		if !fmath.IsNaN(b.YearsAtBreastHeight[i]) && b.AgeTotals[i] > b.YearsAtBreastHeight[i] {
			b.YearsToBreastHeight[i] = b.AgeTotals[i] - b.YearsAtBreastHeight[i]
			continue
		}

		si := b.SiteIndices[i]
		if fmath.IsNaN(si) {
			si = defaultSI
		}
		ytbh, err := sitetool.YearsToBreastHeight(b.SiteCurveNumbers[i], float64(si))
		if err != nil {
			p.log.WithError(err).Warnf("unable to determine years to breast height of species %s", b.SpeciesNames[i])
			continue
		}
		b.YearsToBreastHeight[i] = float32(ytbh)
	}
}

// calculateDominantHeightAgeSiteIndex (VHDOM1) establishes the primary
// species details, borrowing ages and site index from other species where
// the primary species has none.
func (p *processor) calculateDominantHeightAgeSiteIndex() error {
	b := p.s.Bank
	r := p.s.Rankings
	psp := r.PrimaryIndex

	// 1. Dominant height, estimated from Lorey height when missing.
	dh := b.DominantHeights[psp]
	if fmath.IsNaN(dh) {
		lh := b.LoreyHeights[psp][models.UCAll]
		if fmath.IsNaN(lh) {
			return processingErrorf("neither dominant nor Lorey height is available for primary species %s",
				b.SpeciesNames[psp])
		}
		var err error
		dh, err = estimate.DominantHeightFromLoreyHeight(p.m, b.SpeciesNames[psp], b.BecZone.Region, lh,
			b.TreesPerHectare[psp][models.UCAll])
		if err != nil {
			return err
		}
	}

	// 2. Ages.
	totalAge := b.AgeTotals[psp]
	yabh := b.YearsAtBreastHeight[psp]
	ytbh := b.YearsToBreastHeight[psp]

	active := 0
	if fmath.IsNaN(totalAge) {
		active = firstWith(b, r, b.AgeTotals, 0)
		if active == 0 {
			return processingErrorf("age data unavailable for all species")
		}
		totalAge = b.AgeTotals[active]
		switch {
		case !fmath.IsNaN(ytbh):
			yabh = totalAge - ytbh
		case !fmath.IsNaN(yabh):
			ytbh = totalAge - yabh
		default:
			yabh = b.YearsAtBreastHeight[active]
			ytbh = b.YearsToBreastHeight[active]
		}
	}

	// 3. Site index, expressed on the layer's site curve.
	si := b.SiteIndices[psp]
	if fmath.IsNaN(si) {
		active = firstWith(b, r, b.SiteIndices, active)
		if active == 0 {
			return processingErrorf("site index data unavailable for all species")
		}
		si = b.SiteIndices[active]
	} else {
		active = psp
	}

	if layerCurve := b.SiteCurveNumbers[0]; layerCurve != models.MissingInteger {
		if converted, err := sitetool.ConvertSiteIndexBetweenCurves(b.SiteCurveNumbers[active], float64(si), layerCurve); err == nil && converted > 1.3 {
			si = float32(converted)
		}
	}

	p.s.Primary = PrimarySpeciesDetails{
		DominantHeight:      dh,
		SiteIndex:           si,
		TotalAge:            totalAge,
		YearsAtBreastHeight: yabh,
		YearsToBreastHeight: ytbh,
	}
	return nil
}

// firstWith returns the secondary species when it has a value in values,
// else the current candidate when it has one, else the first species that
// does. It returns 0 when none has.
func firstWith(b *bank.Bank, r Rankings, values []float32, current int) int {
	if r.HasSecondary() && !fmath.IsNaN(values[r.SecondaryIndex]) {
		return r.SecondaryIndex
	}
	if current > 0 && !fmath.IsNaN(values[current]) {
		return current
	}
	for _, i := range b.Indices() {
		if !fmath.IsNaN(values[i]) {
			return i
		}
	}
	return 0
}
