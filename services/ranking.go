package services

import (
	"fmt"
	"math"
	"sort"

	"rvrank-scraper/models"
	"rvrank-scraper/utils"
)

// missingRank is substituted when a listing carries no rank, so projection
// math stays total. Such listings are still excluded from ceiling
// computation.
const missingRank = 999

// Factor holds the point values and correlation weights for one
// improvement action. The point values are empirically fitted against the
// marketplace's undocumented ranking algorithm; treat them as calibration
// data, not domain truth.
type Factor struct {
	Key              string
	Label            string
	RelevancePts     int
	MerchPts         int
	RankCorrelation  float64
	MerchCorrelation float64
	Difficulty       string
}

// Factors is the full calibration set for the ranking engine. Build one
// with DefaultFactors and pass it by reference; it is never mutated.
type Factors struct {
	Price     Factor
	VIN       Factor
	Photos    Factor
	Floorplan Factor
	Length    Factor

	// RelevancePerRank converts relevance points into rank positions.
	RelevancePerRank float64

	// PhotoTarget is the photo count the marketplace stops rewarding at.
	PhotoTarget int

	CurrentModelYear int
	YearPenaltyPts   int

	// Merch score estimation.
	MerchBase        float64
	MerchPhotoFactor float64
	MerchPhotoCap    float64
	MerchMax         int
}

// DefaultFactors returns the calibration observed in production data.
func DefaultFactors() *Factors {
	return &Factors{
		Price:     Factor{Key: "price", Label: "Add listing price", RelevancePts: 194, MerchPts: 5, RankCorrelation: 0.840, MerchCorrelation: 0.298, Difficulty: "Easy"},
		VIN:       Factor{Key: "vin", Label: "Add VIN number", RelevancePts: 165, MerchPts: 6, RankCorrelation: 0.689, MerchCorrelation: 0.412, Difficulty: "Easy"},
		Photos:    Factor{Key: "photos", Label: "Add photos to reach 35", RelevancePts: 195, MerchPts: 30, RankCorrelation: 0.611, MerchCorrelation: 0.658, Difficulty: "Medium"},
		Floorplan: Factor{Key: "floorplan", Label: "Add floorplan image", RelevancePts: 50, MerchPts: 12, RankCorrelation: 0.300, MerchCorrelation: 0.554, Difficulty: "Easy"},
		Length:    Factor{Key: "length", Label: "Add vehicle length", RelevancePts: 0, MerchPts: 8, RankCorrelation: 0.100, MerchCorrelation: 0.702, Difficulty: "Easy"},

		RelevancePerRank: 15.0,
		PhotoTarget:      35,
		CurrentModelYear: 2026,
		YearPenaltyPts:   24,

		MerchBase:        72,
		MerchPhotoFactor: 0.5,
		MerchPhotoCap:    33,
		MerchMax:         125,
	}
}

// Analyzer is the rank-improvement engine. All of its methods are pure
// functions over listings; the only cross-listing operation is Ceilings,
// which requires one complete, coherent rank space.
type Analyzer struct {
	factors *Factors
	logger  *utils.Logger
}

// NewAnalyzer creates an Analyzer with the given calibration.
func NewAnalyzer(factors *Factors, logger *utils.Logger) *Analyzer {
	return &Analyzer{factors: factors, logger: logger}
}

// TierOf derives a listing's placement tier. Top premium wins over premium
// regardless of the premium flag; absent flags mean standard.
func (a *Analyzer) TierOf(l *models.Listing) models.Tier {
	if l.IsTopPremium {
		return models.TierTopPremium
	}
	if l.IsPremium {
		return models.TierPremium
	}
	return models.TierStandard
}

// Ceilings computes the best achievable rank per tier over one rank space.
// Standard listings cannot pass premium listings, and premium listings
// cannot pass top-premium ones. Listings without a rank do not compete.
// An empty set yields 1/1/1.
func (a *Analyzer) Ceilings(listings []*models.Listing) models.TierCeilings {
	maxTopPremium := 0
	maxAnyPremium := 0
	for _, l := range listings {
		if l.Rank == nil {
			continue
		}
		if l.IsTopPremium && *l.Rank > maxTopPremium {
			maxTopPremium = *l.Rank
		}
		if (l.IsPremium || l.IsTopPremium) && *l.Rank > maxAnyPremium {
			maxAnyPremium = *l.Rank
		}
	}

	c := models.TierCeilings{TopPremium: 1, Premium: 1, Standard: 1}
	if maxTopPremium > 0 {
		c.Premium = maxTopPremium + 1
	}
	if maxAnyPremium > 0 {
		c.Standard = maxAnyPremium + 1
	}
	return c
}

// CeilingsBySpace groups listings by their (zip, type, condition) key and
// computes ceilings per key. Rank spaces from different searches are not
// comparable, so a combined session must never share one ceiling.
func (a *Analyzer) CeilingsBySpace(listings []*models.Listing) map[models.SpaceKey]models.TierCeilings {
	spaces := make(map[models.SpaceKey][]*models.Listing)
	for _, l := range listings {
		key := l.Space()
		spaces[key] = append(spaces[key], l)
	}

	out := make(map[models.SpaceKey]models.TierCeilings, len(spaces))
	for key, group := range spaces {
		out[key] = a.Ceilings(group)
	}
	return out
}

// Improvements lists the actions a listing is missing, in the fixed
// user-facing order: price, VIN, photos, floorplan, length, with the
// year-penalty note last. The note carries no relevance points and never
// moves the rank projection.
func (a *Analyzer) Improvements(l *models.Listing) []models.ImprovementAction {
	f := a.factors
	var actions []models.ImprovementAction

	if !l.HasPrice {
		actions = append(actions, a.action(f.Price, ""))
	}
	if !l.HasVIN {
		actions = append(actions, a.action(f.VIN, ""))
	}
	if l.PhotoCount < f.PhotoTarget {
		needed := f.PhotoTarget - l.PhotoCount
		actions = append(actions, a.action(f.Photos, fmt.Sprintf("%d more needed", needed)))
	}
	if !l.HasFloorplan {
		actions = append(actions, a.action(f.Floorplan, ""))
	}
	if !l.HasLength {
		actions = append(actions, a.action(f.Length, ""))
	}

	if note, ok := a.yearPenaltyNote(l); ok {
		actions = append(actions, note)
	}
	return actions
}

func (a *Analyzer) action(f Factor, detail string) models.ImprovementAction {
	label := f.Label
	if detail != "" {
		label = fmt.Sprintf("%s (%s)", f.Label, detail)
	}
	return models.ImprovementAction{
		Key:           f.Key,
		Action:        label,
		RelevancePts:  f.RelevancePts,
		MerchPts:      f.MerchPts,
		RankGain:      int(float64(f.RelevancePts) / a.factors.RelevancePerRank),
		PriorityScore: a.priorityScore(f),
	}
}

// priorityScore weights an action's points by its observed correlations,
// with a difficulty multiplier favoring easy fixes. Merch points are
// scaled up since their raw magnitudes are smaller.
func (a *Analyzer) priorityScore(f Factor) float64 {
	impact := float64(f.RelevancePts)*f.RankCorrelation + float64(f.MerchPts)*f.MerchCorrelation*3
	switch f.Difficulty {
	case "Easy":
		impact *= 1.5
	case "Cost":
		impact *= 0.3
	}
	return impact
}

// yearPenaltyNote emits the display-only aging note for non-top-premium
// listings at least one model year old, recommending the next paid tier.
func (a *Analyzer) yearPenaltyNote(l *models.Listing) (models.ImprovementAction, bool) {
	if l.Year == nil {
		return models.ImprovementAction{}, false
	}
	tier := a.TierOf(l)
	yearsOld := a.factors.CurrentModelYear - *l.Year
	if yearsOld < 1 || tier == models.TierTopPremium {
		return models.ImprovementAction{}, false
	}

	penalty := yearsOld * a.factors.YearPenaltyPts
	label := fmt.Sprintf("Year penalty: -%d pts. Consider Top Premium", penalty)
	if tier == models.TierStandard {
		label = fmt.Sprintf("Year penalty: -%d pts. Upgrade to Premium", penalty)
	}
	return models.ImprovementAction{Key: "year_penalty", Action: label, Note: true}, true
}

// SortByPriority reorders actions by correlation-weighted priority,
// highest first, keeping display-only notes at the end. This is the
// ordering the brand-analysis export uses; the default fixed order stays
// untouched for every other surface.
func (a *Analyzer) SortByPriority(actions []models.ImprovementAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Note != actions[j].Note {
			return !actions[i].Note
		}
		return actions[i].PriorityScore > actions[j].PriorityScore
	})
}

// PriorityOf totals an analysis's action priorities into one listing-level
// score, halved once the listing has exhausted its tier headroom and data
// fixes alone cannot move it further.
func (a *Analyzer) PriorityOf(an *models.Analysis) float64 {
	total := 0.0
	for _, imp := range an.Improvements {
		if imp.Note {
			continue
		}
		total += imp.PriorityScore
	}
	if an.AtTierCeiling {
		total *= 0.5
	}
	return math.Round(total*10) / 10
}

// Factors exposes the calibration set for consumers that need the raw
// point values, like the brand-analysis report's quick-win math.
func (a *Analyzer) Factors() *Factors {
	return a.factors
}

// Analyze computes the full derived field set for one listing against its
// rank space's ceilings. It is a total function: missing fields degrade to
// safe defaults and nothing here can fail.
func (a *Analyzer) Analyze(l *models.Listing, ceilings models.TierCeilings) *models.Analysis {
	f := a.factors
	tier := a.TierOf(l)
	ceiling := ceilings.For(tier)

	improvements := a.Improvements(l)

	totalRelevance := 0
	totalMerch := 0
	for _, imp := range improvements {
		if imp.Note {
			continue
		}
		totalRelevance += imp.RelevancePts
		totalMerch += imp.MerchPts
	}

	currentRank := missingRank
	if l.Rank != nil {
		currentRank = *l.Rank
	}

	gain := int(math.Floor(float64(totalRelevance) / f.RelevancePerRank))
	unconstrainedNewRank := currentRank - gain
	if unconstrainedNewRank < 1 {
		unconstrainedNewRank = 1
	}

	an := &models.Analysis{
		Tier:              tier,
		TierCeiling:       ceiling,
		Improvements:      improvements,
		TotalRelevance:    totalRelevance,
		TotalMerch:        totalMerch,
		UnconstrainedGain: gain,

		CompetitivePosition: a.CompetitivePosition(tier, l.Year),
		EstimatedMerchScore: a.EstimateMerchScore(l),
		QualityTier:         a.QualityTier(l.MerchScore),
	}

	// A listing ranked better than its own tier's ceiling is riding a
	// sparsely-populated higher tier; no improvement can be promised.
	if currentRank < ceiling {
		an.OutperformingTier = true
		an.RealisticNewRank = currentRank
		an.RealisticImprovement = 0
	} else {
		an.RealisticNewRank = unconstrainedNewRank
		if an.RealisticNewRank < ceiling {
			an.RealisticNewRank = ceiling
		}
		an.RealisticImprovement = currentRank - an.RealisticNewRank
		an.AtTierCeiling = an.RealisticNewRank == ceiling && unconstrainedNewRank < ceiling
	}
	an.PremiumRecommended = an.AtTierCeiling && tier == models.TierStandard

	if l.Price != nil && l.MSRP != nil && *l.MSRP > 0 {
		pct := math.Round((*l.Price-*l.MSRP)/(*l.MSRP)*1000) / 10
		an.PriceVsMSRP = &pct
	}

	return an
}

// AnalyzeAll runs the full engine over a combined batch: ceilings per rank
// space, then per-listing analysis, brand and region classification.
func (a *Analyzer) AnalyzeAll(listings []*models.Listing, brands BrandTable, regions RegionTable) {
	ceilings := a.CeilingsBySpace(listings)
	for _, l := range listings {
		l.ThorBrand = brands.Classify(l.Make)
		l.Region = regions.Region(l.State)
		l.Analysis = a.Analyze(l, ceilings[l.Space()])
	}
	a.logger.Info("[rank] Analyzed %d listings across %d rank spaces", len(listings), len(ceilings))
}

// CompetitivePosition labels a listing by tier and model-year age. A year
// at or above the current model year counts as current.
func (a *Analyzer) CompetitivePosition(tier models.Tier, year *int) string {
	if year == nil || *year == 0 {
		return "Unknown"
	}
	yearsOld := a.factors.CurrentModelYear - *year

	switch tier {
	case models.TierTopPremium:
		switch {
		case yearsOld <= 0:
			return "Dominant"
		case yearsOld == 1:
			return "Strong"
		default:
			return "Competitive"
		}
	case models.TierPremium:
		switch {
		case yearsOld <= 0:
			return "Strong"
		case yearsOld == 1:
			return "Neutral"
		default:
			return "At Risk"
		}
	default:
		switch {
		case yearsOld <= 0:
			return "Competitive"
		case yearsOld == 1:
			return "At Risk"
		default:
			return "Disadvantaged"
		}
	}
}

// EstimateMerchScore approximates the marketplace's merch score from the
// factors we can see, capped at the observed maximum.
func (a *Analyzer) EstimateMerchScore(l *models.Listing) int {
	f := a.factors
	score := f.MerchBase

	photoPts := float64(l.PhotoCount) * f.MerchPhotoFactor
	if photoPts > f.MerchPhotoCap {
		photoPts = f.MerchPhotoCap
	}
	score += photoPts

	if l.HasFloorplan {
		score += float64(f.Floorplan.MerchPts)
	}
	if l.HasVIN {
		score += float64(f.VIN.MerchPts)
	}
	if l.HasPrice {
		score += float64(f.Price.MerchPts)
	}
	if l.HasLength {
		score += float64(f.Length.MerchPts)
	}

	if int(score) > f.MerchMax {
		return f.MerchMax
	}
	return int(score)
}

// QualityTier buckets an actual merch score for display.
func (a *Analyzer) QualityTier(merchScore *float64) string {
	if merchScore == nil || *merchScore == 0 {
		return "Unknown"
	}
	switch {
	case *merchScore >= 121:
		return "Excellent"
	case *merchScore >= 111:
		return "High"
	case *merchScore >= 91:
		return "Medium"
	default:
		return "Low"
	}
}
