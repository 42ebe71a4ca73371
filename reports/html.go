package reports

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rvrank-scraper/models"
	"rvrank-scraper/utils"
)

// Renderer writes HTML reports (dealer scorecards, regional summaries)
// into the reports directory.
type Renderer struct {
	dir    string
	logger *utils.Logger
}

// NewRenderer creates the reports directory and returns a Renderer.
func NewRenderer(dir string, logger *utils.Logger) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("reports: create dir: %w", err)
	}
	return &Renderer{dir: dir, logger: logger}, nil
}

type scorecardData struct {
	Dealer *models.DealerSummary
	Market models.GroupMetrics
}

// DealerScorecards renders one scorecard per dealer summary and returns
// the written paths.
func (r *Renderer) DealerScorecards(summaries []*models.DealerSummary, market models.GroupMetrics) ([]string, error) {
	var paths []string
	for _, ds := range summaries {
		path := filepath.Join(r.dir, "scorecard_"+slug(ds.DealerName)+".html")
		f, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("reports: create %q: %w", path, err)
		}
		err = scorecardTmpl.Execute(f, scorecardData{Dealer: ds, Market: market})
		f.Close()
		if err != nil {
			return paths, fmt.Errorf("reports: render scorecard for %q: %w", ds.DealerName, err)
		}
		paths = append(paths, path)
	}
	r.logger.Info("[reports] Wrote %d dealer scorecards to %s", len(paths), r.dir)
	return paths, nil
}

type regionSection struct {
	Region  string
	Metrics models.GroupMetrics
}

type regionalData struct {
	Brand   string
	Metrics models.GroupMetrics
	Regions []regionSection
}

// RegionalSummary renders one per-brand report with a section per region.
func (r *Renderer) RegionalSummary(brand string, brandMetrics models.GroupMetrics,
	regionMetrics map[string]models.GroupMetrics) (string, error) {

	data := regionalData{Brand: brand, Metrics: brandMetrics}
	for region, m := range regionMetrics {
		data.Regions = append(data.Regions, regionSection{Region: region, Metrics: m})
	}
	sort.Slice(data.Regions, func(i, j int) bool {
		return data.Regions[i].Metrics.Count > data.Regions[j].Metrics.Count
	})

	path := filepath.Join(r.dir, "regional_"+slug(brand)+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("reports: create %q: %w", path, err)
	}
	defer f.Close()

	if err := regionalTmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("reports: render regional summary for %q: %w", brand, err)
	}
	r.logger.Info("[reports] Wrote regional summary for %s", brand)
	return path, nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '-', c == '_', c == '/':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

var scorecardTmpl = template.Must(template.New("scorecard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Dealer Scorecard - {{.Dealer.DealerName}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
       background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
       min-height: 100vh; padding: 20px; color: #1f2937; }
.container { max-width: 900px; margin: 0 auto; }
.card { background: white; border-radius: 16px; box-shadow: 0 20px 40px rgba(0,0,0,0.15);
        overflow: hidden; margin-bottom: 20px; }
.header { background: linear-gradient(135deg, #1e3a5f 0%, #2d5a87 100%); color: white;
          padding: 30px; display: flex; justify-content: space-between; align-items: center; }
.header h1 { font-size: 1.8rem; margin: 0 0 8px; }
.brand-badge { display: inline-block; background: rgba(255,255,255,0.2);
               padding: 4px 12px; border-radius: 20px; font-size: 0.85rem; }
.location { margin-top: 8px; opacity: 0.9; font-size: 0.95rem; }
.grade-circle { width: 100px; height: 100px; border-radius: 50%; background: {{.Dealer.Metrics.GradeColor}};
                display: flex; flex-direction: column; align-items: center; justify-content: center; }
.grade-letter { font-size: 3rem; font-weight: bold; line-height: 1; color: white; }
.grade-label { font-size: 0.7rem; text-transform: uppercase; letter-spacing: 1px; color: white; }
.metrics-grid { display: grid; grid-template-columns: repeat(4, 1fr); gap: 1px;
                background: #e5e7eb; padding: 1px; }
.metric { background: white; padding: 20px; text-align: center; }
.metric-value { font-size: 2rem; font-weight: bold; color: #1e3a5f; }
.metric-label { font-size: 0.85rem; color: #6b7280; }
.section { padding: 20px 30px; }
.section h2 { font-size: 1.1rem; color: #1e3a5f; margin-bottom: 12px; }
table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
th { text-align: left; color: #6b7280; font-weight: 600; padding: 8px; border-bottom: 2px solid #e5e7eb; }
td { padding: 8px; border-bottom: 1px solid #f3f4f6; }
.gain { color: #22c55e; font-weight: bold; }
</style>
</head>
<body>
<div class="container">
  <div class="card">
    <div class="header">
      <div>
        <h1>{{.Dealer.DealerName}}</h1>
        {{if .Dealer.Brand}}<span class="brand-badge">{{.Dealer.Brand}}</span>{{end}}
        <div class="location">{{.Dealer.City}}, {{.Dealer.State}} &middot; {{.Dealer.Region}}</div>
      </div>
      <div class="grade-circle">
        <span class="grade-letter">{{.Dealer.Metrics.Grade}}</span>
        <span class="grade-label">Overall</span>
      </div>
    </div>
    <div class="metrics-grid">
      <div class="metric"><div class="metric-value">{{.Dealer.Metrics.Count}}</div><div class="metric-label">Listings</div></div>
      <div class="metric"><div class="metric-value">{{.Dealer.Metrics.AvgRank}}</div><div class="metric-label">Avg Rank (market {{.Market.AvgRank}})</div></div>
      <div class="metric"><div class="metric-value">{{.Dealer.Metrics.QualityScore}}%</div><div class="metric-label">Quality Score</div></div>
      <div class="metric"><div class="metric-value">{{.Dealer.Metrics.AvgPhotos}}</div><div class="metric-label">Avg Photos</div></div>
    </div>
    <div class="metrics-grid">
      <div class="metric"><div class="metric-value">{{.Dealer.Metrics.PctPrice}}%</div><div class="metric-label">With Price</div></div>
      <div class="metric"><div class="metric-value">{{.Dealer.Metrics.PctVIN}}%</div><div class="metric-label">With VIN</div></div>
      <div class="metric"><div class="metric-value">{{.Dealer.Metrics.PctFloorplan}}%</div><div class="metric-label">With Floorplan</div></div>
      <div class="metric"><div class="metric-value">{{.Dealer.Metrics.PctPhotos35}}%</div><div class="metric-label">35+ Photos</div></div>
    </div>
    {{if .Dealer.TopOpportunities}}
    <div class="section">
      <h2>Top Improvement Opportunities</h2>
      <table>
        <tr><th>Listing</th><th>Rank</th><th>Projected</th><th>Gain</th><th>Actions</th></tr>
        {{range .Dealer.TopOpportunities}}
        <tr>
          <td>{{if .Year}}{{.Year}} {{end}}{{.Make}} {{.Model}}</td>
          <td>{{if .Rank}}#{{.Rank}}{{end}}</td>
          <td>#{{.Analysis.RealisticNewRank}}</td>
          <td class="gain">+{{.Analysis.RealisticImprovement}}</td>
          <td>{{range $i, $a := .Analysis.Improvements}}{{if $i}}; {{end}}{{$a.Action}}{{end}}</td>
        </tr>
        {{end}}
      </table>
    </div>
    {{end}}
  </div>
</div>
</body>
</html>
`))

var regionalTmpl = template.Must(template.New("regional").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Regional Summary - {{.Brand}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
       background: #f3f4f6; padding: 20px; color: #1f2937; }
.container { max-width: 1000px; margin: 0 auto; }
.header { background: linear-gradient(135deg, #1e3a5f 0%, #2d5a87 100%); color: white;
          padding: 30px; border-radius: 12px; margin-bottom: 20px;
          display: flex; justify-content: space-between; align-items: center; }
.header h1 { margin: 0; }
.grade-badge { background: {{.Metrics.GradeColor}}; border-radius: 10px; padding: 10px 18px;
               text-align: center; }
.grade-letter { font-size: 2rem; font-weight: bold; }
.grade-label { font-size: 0.7rem; text-transform: uppercase; }
.stats { display: flex; gap: 20px; margin-top: 12px; font-size: 0.95rem; }
.region { background: white; border-radius: 12px; padding: 20px; margin-bottom: 16px;
          box-shadow: 0 2px 8px rgba(0,0,0,0.06); }
.region h2 { margin: 0 0 10px; font-size: 1.1rem; color: #1e3a5f; }
.row { display: flex; flex-wrap: wrap; gap: 24px; font-size: 0.9rem; color: #374151; }
.row strong { color: #111827; }
.badge { display: inline-block; border-radius: 6px; padding: 2px 10px; color: white;
         font-weight: bold; font-size: 0.85rem; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <div>
      <h1>{{.Brand}}</h1>
      <div class="stats">
        <span>{{.Metrics.Count}} listings</span>
        <span>Avg rank {{.Metrics.AvgRank}}</span>
        <span>Quality {{.Metrics.QualityScore}}%</span>
        <span>Premium {{.Metrics.PctPremium}}%</span>
      </div>
    </div>
    <div class="grade-badge">
      <div class="grade-letter">{{.Metrics.Grade}}</div>
      <div class="grade-label">Overall</div>
    </div>
  </div>
  {{range .Regions}}
  <div class="region">
    <h2>{{.Region}} <span class="badge" style="background: {{.Metrics.GradeColor}}">{{.Metrics.Grade}}</span></h2>
    <div class="row">
      <span><strong>{{.Metrics.Count}}</strong> listings</span>
      <span>Avg rank <strong>{{.Metrics.AvgRank}}</strong></span>
      <span>Quality <strong>{{.Metrics.QualityScore}}%</strong></span>
      <span>Price <strong>{{.Metrics.PctPrice}}%</strong></span>
      <span>VIN <strong>{{.Metrics.PctVIN}}%</strong></span>
      <span>Floorplan <strong>{{.Metrics.PctFloorplan}}%</strong></span>
      <span>35+ photos <strong>{{.Metrics.PctPhotos35}}%</strong></span>
      <span>Projected gain <strong>+{{.Metrics.TotalRankGain}}</strong> positions</span>
    </div>
  </div>
  {{end}}
</div>
</body>
</html>
`))
