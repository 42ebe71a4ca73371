package services

import (
	"math"
	"sort"

	"rvrank-scraper/models"
	"rvrank-scraper/utils"
)

// Summarizer rolls per-listing analysis into group-level metrics for
// dealers, brands and regions.
type Summarizer struct {
	factors *Factors
	logger  *utils.Logger
}

// NewSummarizer creates a Summarizer using the same calibration as the
// analyzer, so projected group gains line up with per-listing projections.
func NewSummarizer(factors *Factors, logger *utils.Logger) *Summarizer {
	return &Summarizer{factors: factors, logger: logger}
}

// Metrics computes the rolled-up view of a listing group. marketAvgRank is
// the comparison group's average rank; pass 0 when there is none. Empty
// input yields a zeroed result, never a division by zero.
func (s *Summarizer) Metrics(listings []*models.Listing, marketAvgRank float64) models.GroupMetrics {
	m := models.GroupMetrics{Grade: "N/A", GradeColor: gradeColor("N/A")}
	if len(listings) == 0 {
		return m
	}

	total := len(listings)
	m.Count = total

	var rankSum, photoSum float64
	var ranked int
	var viewsSum, savesSum float64
	var viewsN, savesN int
	var withPrice, withVIN, withFloorplan, withLength, withPhotos35 int

	m.BestRank = math.MaxInt
	for _, l := range listings {
		if l.Rank != nil {
			ranked++
			rankSum += float64(*l.Rank)
			if *l.Rank < m.BestRank {
				m.BestRank = *l.Rank
			}
			if *l.Rank > m.WorstRank {
				m.WorstRank = *l.Rank
			}
		}
		photoSum += float64(l.PhotoCount)
		if l.IsPremium || l.IsTopPremium {
			m.PremiumCount++
		}
		if l.HasPrice {
			withPrice++
		}
		if l.HasVIN {
			withVIN++
		}
		if l.HasFloorplan {
			withFloorplan++
		}
		if l.HasLength {
			withLength++
		}
		if l.PhotoCount >= s.factors.PhotoTarget {
			withPhotos35++
		}
		if l.Views != nil {
			viewsSum += float64(*l.Views)
			viewsN++
		}
		if l.Saves != nil {
			savesSum += float64(*l.Saves)
			savesN++
		}
	}

	if ranked > 0 {
		m.AvgRank = round1(rankSum / float64(ranked))
	} else {
		m.AvgRank = missingRank
		m.BestRank = missingRank
		m.WorstRank = missingRank
	}
	m.AvgPhotos = round1(photoSum / float64(total))
	if viewsN > 0 {
		m.AvgViews = round1(viewsSum / float64(viewsN))
	}
	if savesN > 0 {
		m.AvgSaves = round1(savesSum / float64(savesN))
	}

	m.PctPremium = pct(m.PremiumCount, total)
	m.PctPrice = pct(withPrice, total)
	m.PctVIN = pct(withVIN, total)
	m.PctFloorplan = pct(withFloorplan, total)
	m.PctLength = pct(withLength, total)
	m.PctPhotos35 = pct(withPhotos35, total)

	// Quality score: share of the five quality fields present across the
	// whole group.
	m.QualityScore = round1(float64(withPrice+withVIN+withFloorplan+withLength+withPhotos35) /
		float64(total*5) * 100)

	m.QuickWins = models.QuickWins{
		MissingPrice:     total - withPrice,
		MissingVIN:       total - withVIN,
		MissingFloorplan: total - withFloorplan,
		MissingLength:    total - withLength,
		MissingPhotos35:  total - withPhotos35,
	}

	f := s.factors
	totalPts := m.QuickWins.MissingPrice*f.Price.RelevancePts +
		m.QuickWins.MissingVIN*f.VIN.RelevancePts +
		m.QuickWins.MissingFloorplan*f.Floorplan.RelevancePts +
		m.QuickWins.MissingLength*f.Length.MerchPts +
		m.QuickWins.MissingPhotos35*f.Photos.RelevancePts
	m.TotalRankGain = int(float64(totalPts) / f.RelevancePerRank)

	m.Score, m.RankVsMarket = s.blendedScore(total, withPrice, withVIN, withFloorplan,
		photoSum/float64(total), m.AvgRank, marketAvgRank)
	m.Grade = gradeLetter(m.Score)
	m.GradeColor = gradeColor(m.Grade)

	return m
}

// blendedScore is the 0-100 dealer grade blend: price 25, VIN 25,
// floorplan 15, photos 25 (capped), rank-vs-market 10.
func (s *Summarizer) blendedScore(total, withPrice, withVIN, withFloorplan int,
	avgPhotos, avgRank, marketAvgRank float64) (float64, float64) {

	priceScore := float64(withPrice) / float64(total) * 25
	vinScore := float64(withVIN) / float64(total) * 25
	floorplanScore := float64(withFloorplan) / float64(total) * 15
	photoScore := avgPhotos / float64(s.factors.PhotoTarget) * 25
	if photoScore > 25 {
		photoScore = 25
	}

	rankScore := 5.0
	rankVsMarket := 0.0
	if marketAvgRank > 0 {
		rankVsMarket = round1(avgRank - marketAvgRank)
		rankScore = 10 - (avgRank-marketAvgRank)/5
		if rankScore < 0 {
			rankScore = 0
		}
		if rankScore > 10 {
			rankScore = 10
		}
	}

	return round1(priceScore + vinScore + floorplanScore + photoScore + rankScore), rankVsMarket
}

// GroupBy buckets listings by an arbitrary key; empty keys are skipped.
func GroupBy(listings []*models.Listing, key func(*models.Listing) string) map[string][]*models.Listing {
	groups := make(map[string][]*models.Listing)
	for _, l := range listings {
		k := key(l)
		if k == "" {
			continue
		}
		groups[k] = append(groups[k], l)
	}
	return groups
}

// DealerSummaries builds one summary per dealer, graded against the whole
// batch's average rank, with its top improvement targets attached.
// Opportunities only come from standard-tier listings; paid tiers are not
// something the dealer can fix with data entry.
func (s *Summarizer) DealerSummaries(listings []*models.Listing) []*models.DealerSummary {
	market := s.Metrics(listings, 0)

	groups := GroupBy(listings, func(l *models.Listing) string { return l.DealerName })
	summaries := make([]*models.DealerSummary, 0, len(groups))

	for name, group := range groups {
		first := group[0]
		ds := &models.DealerSummary{
			DealerID:    first.DealerID,
			DealerName:  name,
			DealerGroup: first.DealerGroup,
			Brand:       first.ThorBrand,
			City:        first.City,
			State:       first.State,
			Region:      first.Region,
			Metrics:     s.Metrics(group, market.AvgRank),
		}

		var opportunities []*models.Listing
		for _, l := range group {
			if l.Analysis == nil || l.Analysis.Tier != models.TierStandard {
				continue
			}
			if l.Analysis.RealisticImprovement > 0 {
				opportunities = append(opportunities, l)
			}
		}
		sort.Slice(opportunities, func(i, j int) bool {
			return opportunities[i].Analysis.RealisticImprovement > opportunities[j].Analysis.RealisticImprovement
		})
		if len(opportunities) > 5 {
			opportunities = opportunities[:5]
		}
		ds.TopOpportunities = opportunities

		summaries = append(summaries, ds)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Metrics.Score > summaries[j].Metrics.Score
	})

	s.logger.Info("[summary] Built %d dealer summaries", len(summaries))
	return summaries
}

func gradeLetter(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func gradeColor(grade string) string {
	switch grade {
	case "A":
		return "#22c55e"
	case "B":
		return "#84cc16"
	case "C":
		return "#eab308"
	case "D":
		return "#f97316"
	case "F":
		return "#ef4444"
	default:
		return "#6b7280"
	}
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(n) / float64(total) * 100)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
