package reports

import (
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"rvrank-scraper/models"
	"rvrank-scraper/services"
)

type countRow struct {
	Label string
	Count int
}

type tierCounts struct {
	TopPremium int
	Premium    int
	Standard   int
}

type yearCounts struct {
	Current    int
	OneYearOld int
	Older      int
	Unknown    int
}

type engagementStats struct {
	WithViews  int
	TotalViews int
	TotalSaves int
	AvgViews   float64
	AvgSaves   float64
}

type dashboardData struct {
	Generated  string
	Total      int
	ThorCount  int
	ThorPct    float64
	Tiers      tierCounts
	Years      yearCounts
	Brands     []countRow
	Positions  []countRow
	Regions    []countRow
	Engagement engagementStats

	Opportunities []opportunityRow
}

type opportunityRow struct {
	Listing  *models.Listing
	Priority float64
	Actions  []models.ImprovementAction
}

// Dashboard renders the consolidated standalone dashboard: market-wide
// tier/year/brand/region breakdowns, engagement totals and the highest
// priority improvement targets across every dealer.
func (r *Renderer) Dashboard(listings []*models.Listing, analyzer *services.Analyzer) (string, error) {
	currentYear := analyzer.Factors().CurrentModelYear

	data := dashboardData{
		Generated: time.Now().Format("2006-01-02 15:04"),
		Total:     len(listings),
	}

	brands := make(map[string]int)
	positions := make(map[string]int)
	regions := make(map[string]int)

	var viewsN int
	for _, l := range listings {
		if l.ThorBrand != "" {
			data.ThorCount++
			brands[l.ThorBrand]++
		}
		regions[l.Region]++

		switch {
		case l.Year == nil:
			data.Years.Unknown++
		case *l.Year >= currentYear:
			data.Years.Current++
		case *l.Year == currentYear-1:
			data.Years.OneYearOld++
		default:
			data.Years.Older++
		}

		if l.Analysis != nil {
			switch l.Analysis.Tier {
			case models.TierTopPremium:
				data.Tiers.TopPremium++
			case models.TierPremium:
				data.Tiers.Premium++
			default:
				data.Tiers.Standard++
			}
			positions[l.Analysis.CompetitivePosition]++
		}

		if l.Views != nil {
			viewsN++
			data.Engagement.WithViews++
			data.Engagement.TotalViews += *l.Views
		}
		if l.Saves != nil {
			data.Engagement.TotalSaves += *l.Saves
		}
	}

	if data.Total > 0 {
		data.ThorPct = round1(float64(data.ThorCount) / float64(data.Total) * 100)
	}
	if viewsN > 0 {
		data.Engagement.AvgViews = round1(float64(data.Engagement.TotalViews) / float64(viewsN))
		data.Engagement.AvgSaves = round1(float64(data.Engagement.TotalSaves) / float64(viewsN))
	}

	data.Brands = sortedCounts(brands)
	data.Positions = sortedCounts(positions)
	data.Regions = sortedCounts(regions)
	data.Opportunities = topOpportunities(listings, analyzer, 15)

	path := filepath.Join(r.dir, "rv_dashboard_standalone.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("reports: create %q: %w", path, err)
	}
	defer f.Close()

	if err := dashboardTmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("reports: render dashboard: %w", err)
	}
	r.logger.Info("[reports] Wrote dashboard (%d listings, %d Thor)", data.Total, data.ThorCount)
	return path, nil
}

type brandDealerRow struct {
	Name         string
	Phone        string
	City         string
	State        string
	Count        int
	PremiumCount int
	AvgRank      float64
	RankDiff     float64
}

type quickWinPoints struct {
	PricePts     int
	VINPts       int
	FloorplanPts int
	LengthPts    int
}

type brandAnalysisData struct {
	Brand            string
	Generated        string
	Total            int
	AvgRank          float64
	PremiumCount     int
	StandardCount    int
	TotalImprovement int

	QuickWins models.QuickWins
	Points    quickWinPoints

	Dealers       []brandDealerRow
	Opportunities []opportunityRow
}

// BrandAnalysis renders one brand's actionable report: brand summary,
// quick-win point math, dealer breakdown (best average rank first) and the
// improvement opportunities in correlation-weighted priority order.
func (r *Renderer) BrandAnalysis(brand string, listings []*models.Listing,
	analyzer *services.Analyzer, marketAvgRank float64) (string, error) {

	f := analyzer.Factors()
	data := brandAnalysisData{
		Brand:     brand,
		Generated: time.Now().Format("2006-01-02 15:04"),
		Total:     len(listings),
	}

	var rankSum float64
	var ranked int
	for _, l := range listings {
		if l.Rank != nil {
			rankSum += float64(*l.Rank)
			ranked++
		}
		if l.IsPremium || l.IsTopPremium {
			data.PremiumCount++
		} else {
			data.StandardCount++
		}
		if a := l.Analysis; a != nil {
			data.TotalImprovement += a.RealisticImprovement
		}
		if !l.HasPrice {
			data.QuickWins.MissingPrice++
		}
		if !l.HasVIN {
			data.QuickWins.MissingVIN++
		}
		if !l.HasFloorplan {
			data.QuickWins.MissingFloorplan++
		}
		if !l.HasLength {
			data.QuickWins.MissingLength++
		}
		if l.PhotoCount < f.PhotoTarget {
			data.QuickWins.MissingPhotos35++
		}
	}
	if ranked > 0 {
		data.AvgRank = round1(rankSum / float64(ranked))
	}

	data.Points = quickWinPoints{
		PricePts:     data.QuickWins.MissingPrice * f.Price.RelevancePts,
		VINPts:       data.QuickWins.MissingVIN * f.VIN.RelevancePts,
		FloorplanPts: data.QuickWins.MissingFloorplan * f.Floorplan.RelevancePts,
		LengthPts:    data.QuickWins.MissingLength * f.Length.MerchPts,
	}

	data.Dealers = dealerBreakdown(listings, marketAvgRank)
	data.Opportunities = topOpportunities(listings, analyzer, 15)

	path := filepath.Join(r.dir, "brand_analysis_"+slug(brand)+".html")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("reports: create %q: %w", path, err)
	}
	defer out.Close()

	if err := brandAnalysisTmpl.Execute(out, data); err != nil {
		return "", fmt.Errorf("reports: render brand analysis for %q: %w", brand, err)
	}
	r.logger.Info("[reports] Wrote brand analysis for %s (%d listings)", brand, len(listings))
	return path, nil
}

// topOpportunities collects standard-tier listings with actionable gaps,
// each with its actions reordered by priority, and returns the highest
// priority listings first.
func topOpportunities(listings []*models.Listing, analyzer *services.Analyzer, limit int) []opportunityRow {
	var rows []opportunityRow
	for _, l := range listings {
		a := l.Analysis
		if a == nil || a.Tier != models.TierStandard {
			continue
		}

		actions := append([]models.ImprovementAction(nil), a.Improvements...)
		analyzer.SortByPriority(actions)

		actionable := 0
		for _, imp := range actions {
			if !imp.Note {
				actionable++
			}
		}
		if actionable == 0 {
			continue
		}

		rows = append(rows, opportunityRow{
			Listing:  l,
			Priority: analyzer.PriorityOf(a),
			Actions:  actions,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Priority > rows[j].Priority })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func dealerBreakdown(listings []*models.Listing, marketAvgRank float64) []brandDealerRow {
	byDealer := services.GroupBy(listings, func(l *models.Listing) string { return l.DealerName })

	rows := make([]brandDealerRow, 0, len(byDealer))
	for name, group := range byDealer {
		first := group[0]
		row := brandDealerRow{
			Name:  name,
			Phone: first.DealerPhone,
			City:  first.City,
			State: first.State,
			Count: len(group),
		}

		var rankSum float64
		var ranked int
		for _, l := range group {
			if l.Rank != nil {
				rankSum += float64(*l.Rank)
				ranked++
			}
			if l.IsPremium || l.IsTopPremium {
				row.PremiumCount++
			}
		}
		if ranked > 0 {
			row.AvgRank = round1(rankSum / float64(ranked))
		} else {
			row.AvgRank = 999
		}
		if marketAvgRank > 0 {
			row.RankDiff = round1(row.AvgRank - marketAvgRank)
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].AvgRank < rows[j].AvgRank })
	return rows
}

func sortedCounts(m map[string]int) []countRow {
	rows := make([]countRow, 0, len(m))
	for label, count := range m {
		if label == "" {
			label = "Unknown"
		}
		rows = append(rows, countRow{Label: label, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Label < rows[j].Label
	})
	return rows
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>RV Market Dashboard</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
       background: #f3f4f6; padding: 20px; color: #1f2937; }
.container { max-width: 1100px; margin: 0 auto; }
.header { background: linear-gradient(135deg, #1e3a5f 0%, #2d5a87 100%); color: white;
          padding: 30px; border-radius: 12px; margin-bottom: 20px; }
.header h1 { margin: 0 0 6px; }
.header .sub { opacity: 0.85; font-size: 0.9rem; }
.cards { display: grid; grid-template-columns: repeat(4, 1fr); gap: 16px; margin-bottom: 20px; }
.card { background: white; border-radius: 12px; padding: 20px; text-align: center;
        box-shadow: 0 2px 8px rgba(0,0,0,0.06); }
.card .value { font-size: 2rem; font-weight: bold; color: #1e3a5f; }
.card .label { font-size: 0.85rem; color: #6b7280; }
.grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 16px; margin-bottom: 20px; }
.panel { background: white; border-radius: 12px; padding: 20px;
         box-shadow: 0 2px 8px rgba(0,0,0,0.06); }
.panel h2 { margin: 0 0 12px; font-size: 1rem; color: #1e3a5f; }
table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
th { text-align: left; color: #6b7280; font-weight: 600; padding: 6px; border-bottom: 2px solid #e5e7eb; }
td { padding: 6px; border-bottom: 1px solid #f3f4f6; }
.num { text-align: right; }
.gain { color: #22c55e; font-weight: bold; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>RV Market Dashboard</h1>
    <div class="sub">Generated {{.Generated}} &middot; {{.Total}} listings &middot; {{.ThorCount}} Thor family ({{.ThorPct}}%)</div>
  </div>
  <div class="cards">
    <div class="card"><div class="value">{{.Tiers.TopPremium}}</div><div class="label">Top Premium</div></div>
    <div class="card"><div class="value">{{.Tiers.Premium}}</div><div class="label">Premium</div></div>
    <div class="card"><div class="value">{{.Tiers.Standard}}</div><div class="label">Standard</div></div>
    <div class="card"><div class="value">{{.Years.Current}}</div><div class="label">Current Model Year</div></div>
  </div>
  <div class="cards">
    <div class="card"><div class="value">{{.Engagement.WithViews}}</div><div class="label">Listings With Views</div></div>
    <div class="card"><div class="value">{{.Engagement.TotalViews}}</div><div class="label">Total Views</div></div>
    <div class="card"><div class="value">{{.Engagement.AvgViews}}</div><div class="label">Avg Views</div></div>
    <div class="card"><div class="value">{{.Engagement.AvgSaves}}</div><div class="label">Avg Saves</div></div>
  </div>
  <div class="grid">
    <div class="panel">
      <h2>By Brand</h2>
      <table>{{range .Brands}}<tr><td>{{.Label}}</td><td class="num">{{.Count}}</td></tr>{{end}}</table>
    </div>
    <div class="panel">
      <h2>By Region</h2>
      <table>{{range .Regions}}<tr><td>{{.Label}}</td><td class="num">{{.Count}}</td></tr>{{end}}</table>
    </div>
    <div class="panel">
      <h2>Competitive Position</h2>
      <table>{{range .Positions}}<tr><td>{{.Label}}</td><td class="num">{{.Count}}</td></tr>{{end}}</table>
    </div>
  </div>
  {{if .Opportunities}}
  <div class="panel">
    <h2>Top Improvement Opportunities (by priority)</h2>
    <table>
      <tr><th>Listing</th><th>Dealer</th><th>Rank</th><th>Projected</th><th>Gain</th><th class="num">Priority</th><th>Top Action</th></tr>
      {{range .Opportunities}}
      <tr>
        <td>{{if .Listing.Year}}{{.Listing.Year}} {{end}}{{.Listing.Make}} {{.Listing.Model}}</td>
        <td>{{.Listing.DealerName}}</td>
        <td>{{if .Listing.Rank}}#{{.Listing.Rank}}{{end}}</td>
        <td>#{{.Listing.Analysis.RealisticNewRank}}</td>
        <td class="gain">+{{.Listing.Analysis.RealisticImprovement}}</td>
        <td class="num">{{.Priority}}</td>
        <td>{{with index .Actions 0}}{{.Action}}{{end}}</td>
      </tr>
      {{end}}
    </table>
  </div>
  {{end}}
</div>
</body>
</html>
`))

var brandAnalysisTmpl = template.Must(template.New("brandAnalysis").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Brand Analysis - {{.Brand}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
       background: #f3f4f6; padding: 20px; color: #1f2937; }
.container { max-width: 1000px; margin: 0 auto; }
.header { background: linear-gradient(135deg, #1e3a5f 0%, #2d5a87 100%); color: white;
          padding: 30px; border-radius: 12px; margin-bottom: 20px; }
.header h1 { margin: 0 0 6px; }
.header .sub { opacity: 0.85; font-size: 0.9rem; }
.stats { display: flex; gap: 24px; margin-top: 10px; font-size: 0.95rem; flex-wrap: wrap; }
.panel { background: white; border-radius: 12px; padding: 20px; margin-bottom: 16px;
         box-shadow: 0 2px 8px rgba(0,0,0,0.06); }
.panel h2 { margin: 0 0 12px; font-size: 1rem; color: #1e3a5f; }
table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
th { text-align: left; color: #6b7280; font-weight: 600; padding: 6px; border-bottom: 2px solid #e5e7eb; }
td { padding: 6px; border-bottom: 1px solid #f3f4f6; }
.num { text-align: right; }
.gain { color: #22c55e; font-weight: bold; }
.opp { border-top: 1px solid #e5e7eb; padding: 12px 0; }
.opp .title { font-weight: 600; color: #111827; }
.opp .meta { font-size: 0.85rem; color: #6b7280; margin: 4px 0; }
.opp ol { margin: 6px 0 0 20px; font-size: 0.9rem; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>{{.Brand}}</h1>
    <div class="sub">Brand analysis &middot; generated {{.Generated}}</div>
    <div class="stats">
      <span>{{.Total}} listings</span>
      <span>Avg rank {{.AvgRank}}</span>
      <span>{{.PremiumCount}} premium / {{.StandardCount}} standard</span>
      <span>Improvement potential <strong>+{{.TotalImprovement}}</strong> positions</span>
    </div>
  </div>
  <div class="panel">
    <h2>Quick Wins</h2>
    <table>
      <tr><th>Gap</th><th class="num">Listings</th><th class="num">Available Points</th></tr>
      <tr><td>Missing price</td><td class="num">{{.QuickWins.MissingPrice}}</td><td class="num">+{{.Points.PricePts}} relevance</td></tr>
      <tr><td>Missing VIN</td><td class="num">{{.QuickWins.MissingVIN}}</td><td class="num">+{{.Points.VINPts}} relevance</td></tr>
      <tr><td>Missing floorplan</td><td class="num">{{.QuickWins.MissingFloorplan}}</td><td class="num">+{{.Points.FloorplanPts}} relevance</td></tr>
      <tr><td>Missing length/specs</td><td class="num">{{.QuickWins.MissingLength}}</td><td class="num">+{{.Points.LengthPts}} merch</td></tr>
      <tr><td>Under 35 photos</td><td class="num">{{.QuickWins.MissingPhotos35}}</td><td class="num"></td></tr>
    </table>
  </div>
  <div class="panel">
    <h2>Dealer Breakdown ({{len .Dealers}} dealers, best rank first)</h2>
    <table>
      <tr><th>Dealer</th><th>Location</th><th>Contact</th><th class="num">Listings</th><th class="num">Premium</th><th class="num">Avg Rank</th><th class="num">vs Market</th></tr>
      {{range .Dealers}}
      <tr>
        <td>{{.Name}}</td>
        <td>{{.City}}, {{.State}}</td>
        <td>{{.Phone}}</td>
        <td class="num">{{.Count}}</td>
        <td class="num">{{.PremiumCount}}</td>
        <td class="num">{{.AvgRank}}</td>
        <td class="num">{{if .RankDiff}}{{printf "%+.1f" .RankDiff}}{{end}}</td>
      </tr>
      {{end}}
    </table>
  </div>
  {{if .Opportunities}}
  <div class="panel">
    <h2>Detailed Actions Needed (priority order)</h2>
    {{range .Opportunities}}
    <div class="opp">
      <div class="title">{{if .Listing.Year}}{{.Listing.Year}} {{end}}{{.Listing.Make}} {{.Listing.Model}}
        {{if .Listing.Rank}}(Rank #{{.Listing.Rank}}){{end}} &middot; priority {{.Priority}}</div>
      <div class="meta">{{.Listing.DealerName}} &middot; Stock# {{if .Listing.StockNumber}}{{.Listing.StockNumber}}{{else}}N/A{{end}}
        &middot; {{.Listing.PhotoCount}} photos
        {{if gt .Listing.Analysis.RealisticImprovement 0}}&middot; projected #{{.Listing.Analysis.RealisticNewRank}} (<span class="gain">+{{.Listing.Analysis.RealisticImprovement}}</span>){{end}}
        {{if .Listing.Analysis.OutperformingTier}}&middot; outperforming tier, apply actions to hold position{{end}}</div>
      <ol>
        {{range .Actions}}{{if not .Note}}<li>{{.Action}}{{if .RelevancePts}} (+{{.RelevancePts}} relevance{{if .MerchPts}}, +{{.MerchPts}} merch{{end}}){{else if .MerchPts}} (+{{.MerchPts}} merch){{end}}</li>{{end}}{{end}}
      </ol>
    </div>
    {{end}}
  </div>
  {{end}}
</div>
</body>
</html>
`))
