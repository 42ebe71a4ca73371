package reports

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rvrank-scraper/models"
	"rvrank-scraper/services"
	"rvrank-scraper/utils"
)

func iptr(v int) *int { return &v }

func analyzedListings(t *testing.T) (*services.Analyzer, []*models.Listing) {
	t.Helper()
	analyzer := services.NewAnalyzer(services.DefaultFactors(), utils.NewLogger())

	listings := []*models.Listing{
		// Missing everything: the biggest opportunity.
		{Rank: iptr(50), Make: "Jayco", Model: "Eagle", Year: iptr(2025),
			DealerName: "General RV", City: "Wixom", State: "MI",
			PhotoCount: 10, SearchZip: "60616", SearchType: "Fifth Wheel"},
		// Only the floorplan is missing: a smaller opportunity.
		{Rank: iptr(20), Make: "Jayco", Model: "Jay Flight", Year: iptr(2026),
			DealerName: "Camping World", City: "Chicago", State: "IL",
			HasPrice: true, HasVIN: true, HasLength: true, PhotoCount: 40,
			SearchZip: "60616", SearchType: "Fifth Wheel"},
		// Premium: never an opportunity row.
		{Rank: iptr(2), Make: "Jayco", Model: "Pinnacle", Year: iptr(2026),
			DealerName: "Camping World", IsTopPremium: true, PhotoCount: 5,
			SearchZip: "60616", SearchType: "Fifth Wheel"},
	}
	analyzer.AnalyzeAll(listings, services.DefaultBrandTable(), services.DefaultRegionTable())
	return analyzer, listings
}

func TestDashboard(t *testing.T) {
	analyzer, listings := analyzedListings(t)
	renderer, err := NewRenderer(t.TempDir(), utils.NewLogger())
	if err != nil {
		t.Fatal(err)
	}

	path, err := renderer.Dashboard(listings, analyzer)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "rv_dashboard_standalone.html" {
		t.Errorf("dashboard path = %q, want rv_dashboard_standalone.html", path)
	}

	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	body := string(html)

	for _, want := range []string{"Jayco", "Midwest", "General RV", "Top Improvement Opportunities"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	// The top-premium listing must not appear as an opportunity.
	if strings.Contains(body, "Pinnacle</td>") {
		t.Error("premium listing leaked into the opportunity table")
	}
}

func TestBrandAnalysisPriorityOrder(t *testing.T) {
	analyzer, listings := analyzedListings(t)
	renderer, err := NewRenderer(t.TempDir(), utils.NewLogger())
	if err != nil {
		t.Fatal(err)
	}

	path, err := renderer.BrandAnalysis("Jayco", listings, analyzer, 25)
	if err != nil {
		t.Fatal(err)
	}

	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	body := string(html)

	// The listing missing every field outranks the floorplan-only one.
	eagle := strings.Index(body, "Eagle")
	jayFlight := strings.Index(body, "Jay Flight")
	if eagle == -1 || jayFlight == -1 {
		t.Fatalf("opportunity rows missing (eagle=%d, jayFlight=%d)", eagle, jayFlight)
	}
	// Both models appear in the dealer table too, so compare within the
	// actions section only.
	actions := body[strings.Index(body, "Detailed Actions Needed"):]
	if strings.Index(actions, "Eagle") > strings.Index(actions, "Jay Flight") {
		t.Error("opportunities are not in priority order (highest first)")
	}

	// Within one listing, actions follow correlation-weighted priority:
	// price leads.
	first := actions[strings.Index(actions, "<ol>"):]
	if !strings.Contains(first[:strings.Index(first, "</li>")], "Add listing price") {
		t.Error("first action is not the highest priority one (price)")
	}

	// Quick-win math carries the point table through.
	if !strings.Contains(body, "+194 relevance") {
		t.Error("quick wins missing the single-listing price points")
	}
}

func TestPriorityHalvedAtCeiling(t *testing.T) {
	analyzer := services.NewAnalyzer(services.DefaultFactors(), utils.NewLogger())

	open := &models.Analysis{
		Improvements: []models.ImprovementAction{
			{Key: "price", PriorityScore: 200},
			{Key: "year_penalty", Note: true, PriorityScore: 0},
		},
	}
	capped := &models.Analysis{
		AtTierCeiling: true,
		Improvements:  open.Improvements,
	}

	if got := analyzer.PriorityOf(open); got != 200 {
		t.Errorf("PriorityOf(open) = %v, want 200 (notes excluded)", got)
	}
	if got := analyzer.PriorityOf(capped); got != 100 {
		t.Errorf("PriorityOf(at ceiling) = %v, want 100 (halved)", got)
	}
}
