package services

import (
	"strings"
	"testing"

	"rvrank-scraper/models"
	"rvrank-scraper/utils"
)

func iptr(v int) *int { return &v }

func fptr(v float64) *float64 { return &v }

func testAnalyzer() *Analyzer {
	return NewAnalyzer(DefaultFactors(), utils.NewLogger())
}

// completeListing has every quality field filled, so no actions apply.
func completeListing(rank int) *models.Listing {
	return &models.Listing{
		Rank:         iptr(rank),
		Year:         iptr(2026),
		HasPrice:     true,
		HasVIN:       true,
		HasFloorplan: true,
		HasLength:    true,
		PhotoCount:   40,
	}
}

func TestTierPrecedence(t *testing.T) {
	a := testAnalyzer()

	tests := []struct {
		name       string
		premium    bool
		topPremium bool
		want       models.Tier
	}{
		{"neither flag", false, false, models.TierStandard},
		{"premium only", true, false, models.TierPremium},
		{"top premium only", false, true, models.TierTopPremium},
		{"both flags", true, true, models.TierTopPremium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &models.Listing{IsPremium: tt.premium, IsTopPremium: tt.topPremium}
			if got := a.TierOf(l); got != tt.want {
				t.Errorf("TierOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCeilings(t *testing.T) {
	a := testAnalyzer()

	ranked := func(rank int, premium, top bool) *models.Listing {
		return &models.Listing{Rank: iptr(rank), IsPremium: premium, IsTopPremium: top}
	}

	tests := []struct {
		name     string
		listings []*models.Listing
		want     models.TierCeilings
	}{
		{
			name:     "empty set",
			listings: nil,
			want:     models.TierCeilings{TopPremium: 1, Premium: 1, Standard: 1},
		},
		{
			name: "standard only",
			listings: []*models.Listing{
				ranked(1, false, false), ranked(2, false, false),
			},
			want: models.TierCeilings{TopPremium: 1, Premium: 1, Standard: 1},
		},
		{
			name: "full tier stack",
			listings: []*models.Listing{
				ranked(1, false, true), ranked(5, false, true),
				ranked(12, true, false), ranked(40, true, false),
				ranked(50, false, false),
			},
			want: models.TierCeilings{TopPremium: 1, Premium: 6, Standard: 41},
		},
		{
			name: "unranked premiums do not compete",
			listings: []*models.Listing{
				{IsTopPremium: true}, {IsPremium: true},
				ranked(3, true, false),
			},
			want: models.TierCeilings{TopPremium: 1, Premium: 1, Standard: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Ceilings(tt.listings); got != tt.want {
				t.Errorf("Ceilings() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// Ceilings never relax when premium listings are added: a deeper paid tier
// can only push the standard ceiling down.
func TestCeilingMonotonicity(t *testing.T) {
	a := testAnalyzer()

	base := []*models.Listing{
		{Rank: iptr(10), IsPremium: true},
		{Rank: iptr(30)},
	}
	before := a.Ceilings(base)

	extended := append(base, &models.Listing{Rank: iptr(20), IsPremium: true})
	after := a.Ceilings(extended)

	if after.Standard < before.Standard {
		t.Errorf("standard ceiling relaxed from %d to %d after adding a premium listing",
			before.Standard, after.Standard)
	}
	if after.Standard != 21 {
		t.Errorf("standard ceiling = %d, want 21", after.Standard)
	}
}

func TestCeilingsBySpaceIsolation(t *testing.T) {
	a := testAnalyzer()

	listings := []*models.Listing{
		{Rank: iptr(10), IsTopPremium: true, SearchZip: "60616", SearchType: "Class A"},
		{Rank: iptr(50), SearchZip: "60616", SearchType: "Class A"},
		{Rank: iptr(2), SearchZip: "77001", SearchType: "Class A"},
	}

	bySpace := a.CeilingsBySpace(listings)
	if len(bySpace) != 2 {
		t.Fatalf("got %d rank spaces, want 2", len(bySpace))
	}

	chicago := bySpace[models.SpaceKey{Zip: "60616", Type: "Class A"}]
	houston := bySpace[models.SpaceKey{Zip: "77001", Type: "Class A"}]

	if chicago.Premium != 11 {
		t.Errorf("chicago premium ceiling = %d, want 11", chicago.Premium)
	}
	// The other zip has no premium listings; its ceilings must not leak in.
	if houston.Premium != 1 || houston.Standard != 1 {
		t.Errorf("houston ceilings = %+v, want all 1", houston)
	}
}

func TestAnalyzeConstrainedByCeiling(t *testing.T) {
	a := testAnalyzer()

	// Standard listing at rank 50 missing price, VIN and floorplan, with 10
	// photos. Available relevance: 194 + 165 + 195 + 50 = 604, a 40-position
	// gain, but the tier ceiling at 41 caps the projection.
	l := &models.Listing{
		Rank:       iptr(50),
		HasLength:  true,
		PhotoCount: 10,
	}
	ceilings := models.TierCeilings{TopPremium: 1, Premium: 6, Standard: 41}

	an := a.Analyze(l, ceilings)

	if an.Tier != models.TierStandard {
		t.Fatalf("tier = %q, want standard", an.Tier)
	}
	if an.TotalRelevance != 604 {
		t.Errorf("TotalRelevance = %d, want 604", an.TotalRelevance)
	}
	if an.UnconstrainedGain != 40 {
		t.Errorf("UnconstrainedGain = %d, want 40", an.UnconstrainedGain)
	}
	if an.RealisticNewRank != 41 {
		t.Errorf("RealisticNewRank = %d, want 41", an.RealisticNewRank)
	}
	if an.RealisticImprovement != 9 {
		t.Errorf("RealisticImprovement = %d, want 9", an.RealisticImprovement)
	}
	if !an.AtTierCeiling {
		t.Error("AtTierCeiling = false, want true")
	}
	if !an.PremiumRecommended {
		t.Error("PremiumRecommended = false, want true")
	}
	if an.OutperformingTier {
		t.Error("OutperformingTier = true, want false")
	}
}

func TestAnalyzeOutperformingTier(t *testing.T) {
	a := testAnalyzer()

	// Same gaps, but already ranked above the standard ceiling: no
	// improvement can be promised.
	l := &models.Listing{
		Rank:       iptr(30),
		HasLength:  true,
		PhotoCount: 10,
	}
	ceilings := models.TierCeilings{TopPremium: 1, Premium: 6, Standard: 41}

	an := a.Analyze(l, ceilings)

	if !an.OutperformingTier {
		t.Fatal("OutperformingTier = false, want true")
	}
	if an.RealisticNewRank != 30 {
		t.Errorf("RealisticNewRank = %d, want 30", an.RealisticNewRank)
	}
	if an.RealisticImprovement != 0 {
		t.Errorf("RealisticImprovement = %d, want 0", an.RealisticImprovement)
	}
	if an.AtTierCeiling {
		t.Error("AtTierCeiling = true, want false")
	}
	if an.PremiumRecommended {
		t.Error("PremiumRecommended = true, want false")
	}
}

func TestAnalyzeCompleteListing(t *testing.T) {
	a := testAnalyzer()

	l := completeListing(5)
	an := a.Analyze(l, models.TierCeilings{TopPremium: 1, Premium: 1, Standard: 1})

	if len(an.Improvements) != 0 {
		t.Fatalf("complete listing produced %d actions: %+v", len(an.Improvements), an.Improvements)
	}
	if an.TotalRelevance != 0 || an.TotalMerch != 0 {
		t.Errorf("totals = %d/%d, want 0/0", an.TotalRelevance, an.TotalMerch)
	}
	if an.RealisticNewRank != 5 {
		t.Errorf("RealisticNewRank = %d, want 5 (no projected movement)", an.RealisticNewRank)
	}
	if an.RealisticImprovement != 0 {
		t.Errorf("RealisticImprovement = %d, want 0", an.RealisticImprovement)
	}
}

func TestImprovementsOrder(t *testing.T) {
	a := testAnalyzer()

	l := &models.Listing{
		Year:       iptr(2024),
		PhotoCount: 10,
	}
	actions := a.Improvements(l)

	wantKeys := []string{"price", "vin", "photos", "floorplan", "length", "year_penalty"}
	if len(actions) != len(wantKeys) {
		t.Fatalf("got %d actions, want %d", len(actions), len(wantKeys))
	}
	for i, key := range wantKeys {
		if actions[i].Key != key {
			t.Errorf("action[%d].Key = %q, want %q", i, actions[i].Key, key)
		}
	}

	if !strings.Contains(actions[2].Action, "25 more needed") {
		t.Errorf("photo action = %q, want remaining count of 25", actions[2].Action)
	}
	if !actions[5].Note {
		t.Error("year penalty must be a display-only note")
	}
}

func TestYearPenaltyNote(t *testing.T) {
	a := testAnalyzer()

	tests := []struct {
		name       string
		year       *int
		premium    bool
		topPremium bool
		want       string // "" means no note
	}{
		{"no year", nil, false, false, ""},
		{"current year standard", iptr(2026), false, false, ""},
		{"two years old standard", iptr(2024), false, false, "Year penalty: -48 pts. Upgrade to Premium"},
		{"one year old premium", iptr(2025), true, false, "Year penalty: -24 pts. Consider Top Premium"},
		{"old top premium exempt", iptr(2020), false, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &models.Listing{Year: tt.year, IsPremium: tt.premium, IsTopPremium: tt.topPremium}
			note, ok := a.yearPenaltyNote(l)
			if tt.want == "" {
				if ok {
					t.Fatalf("unexpected note %q", note.Action)
				}
				return
			}
			if !ok {
				t.Fatal("expected a note, got none")
			}
			if note.Action != tt.want {
				t.Errorf("note = %q, want %q", note.Action, tt.want)
			}
		})
	}
}

func TestSortByPriority(t *testing.T) {
	a := testAnalyzer()

	l := &models.Listing{Year: iptr(2023), PhotoCount: 0}
	actions := a.Improvements(l)
	a.SortByPriority(actions)

	// Price has the strongest rank correlation and an easy difficulty
	// multiplier; it must lead every priority-ordered list.
	if actions[0].Key != "price" {
		t.Errorf("highest priority action = %q, want price", actions[0].Key)
	}
	if last := actions[len(actions)-1]; !last.Note {
		t.Errorf("last action = %q, want the display-only note", last.Key)
	}
	for i := 1; i < len(actions); i++ {
		if actions[i].Note {
			continue
		}
		if actions[i-1].PriorityScore < actions[i].PriorityScore {
			t.Errorf("priority order violated at %d: %f < %f",
				i, actions[i-1].PriorityScore, actions[i].PriorityScore)
		}
	}
}

func TestCompetitivePosition(t *testing.T) {
	a := testAnalyzer()

	tests := []struct {
		name string
		tier models.Tier
		year *int
		want string
	}{
		{"missing year", models.TierStandard, nil, "Unknown"},
		{"zero year", models.TierPremium, iptr(0), "Unknown"},
		{"current standard", models.TierStandard, iptr(2026), "Competitive"},
		{"next model year standard", models.TierStandard, iptr(2027), "Competitive"},
		{"one year old standard", models.TierStandard, iptr(2025), "At Risk"},
		{"two years old standard", models.TierStandard, iptr(2024), "Disadvantaged"},
		{"current premium", models.TierPremium, iptr(2026), "Strong"},
		{"one year old premium", models.TierPremium, iptr(2025), "Neutral"},
		{"old premium", models.TierPremium, iptr(2023), "At Risk"},
		{"current top premium", models.TierTopPremium, iptr(2026), "Dominant"},
		{"one year old top premium", models.TierTopPremium, iptr(2025), "Strong"},
		{"old top premium", models.TierTopPremium, iptr(2022), "Competitive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.CompetitivePosition(tt.tier, tt.year); got != tt.want {
				t.Errorf("CompetitivePosition(%s, %v) = %q, want %q", tt.tier, tt.year, got, tt.want)
			}
		})
	}
}

func TestEstimateMerchScore(t *testing.T) {
	a := testAnalyzer()

	tests := []struct {
		name    string
		listing *models.Listing
		want    int
	}{
		{"bare listing", &models.Listing{}, 72},
		{"photos below cap", &models.Listing{PhotoCount: 20}, 82},
		{"photos capped", &models.Listing{PhotoCount: 200}, 105},
		{"complete listing", completeListing(1), 123},
		{"capped at observed max", &models.Listing{
			PhotoCount: 200, HasPrice: true, HasVIN: true, HasFloorplan: true, HasLength: true,
		}, 125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.EstimateMerchScore(tt.listing); got != tt.want {
				t.Errorf("EstimateMerchScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQualityTier(t *testing.T) {
	a := testAnalyzer()

	tests := []struct {
		name  string
		score *float64
		want  string
	}{
		{"missing", nil, "Unknown"},
		{"zero", fptr(0), "Unknown"},
		{"low", fptr(85), "Low"},
		{"medium boundary", fptr(91), "Medium"},
		{"high boundary", fptr(111), "High"},
		{"excellent boundary", fptr(121), "Excellent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.QualityTier(tt.score); got != tt.want {
				t.Errorf("QualityTier(%v) = %q, want %q", tt.score, got, tt.want)
			}
		})
	}
}

func TestAnalyzeAll(t *testing.T) {
	a := testAnalyzer()

	listings := []*models.Listing{
		{Rank: iptr(3), IsTopPremium: true, Make: "Thor Motor Coach", State: "IL",
			SearchZip: "60616", SearchType: "Class A"},
		{Rank: iptr(20), Make: "Jayco", State: "ZZ",
			SearchZip: "60616", SearchType: "Class A"},
	}

	a.AnalyzeAll(listings, DefaultBrandTable(), DefaultRegionTable())

	for i, l := range listings {
		if l.Analysis == nil {
			t.Fatalf("listing %d has no analysis", i)
		}
	}
	if listings[0].ThorBrand != "Thor Motor Coach" || listings[0].Region != "Midwest" {
		t.Errorf("listing 0 classified as %q/%q", listings[0].ThorBrand, listings[0].Region)
	}
	if listings[1].Region != "Unknown" {
		t.Errorf("unmapped state classified as %q, want Unknown", listings[1].Region)
	}
	if listings[1].Analysis.TierCeiling != 4 {
		t.Errorf("standard ceiling = %d, want 4", listings[1].Analysis.TierCeiling)
	}
}
