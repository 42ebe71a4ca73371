package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"rvrank-scraper/config"
	"rvrank-scraper/models"
	"rvrank-scraper/reports"
	"rvrank-scraper/scraper/rvtrader"
	"rvrank-scraper/services"
	"rvrank-scraper/storage"
	"rvrank-scraper/utils"
)

var (
	flagZips           []string
	flagTypes          []string
	flagCondition      string
	flagRadius         int
	flagLimit          int
	flagRefreshCookies bool
	flagSkipEngagement bool
	flagSkipDB         bool
	flagSkipReports    bool
)

func main() {
	root := &cobra.Command{
		Use:   "rvrank-scraper",
		Short: "Scrape RV marketplace search results and analyze listing rank potential",
		Long: `rvrank-scraper pulls search results from the RV marketplace API,
normalizes them, and runs the rank-improvement engine: tier ceilings,
projected rank gains, dealer scorecards and regional summaries.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	root.Flags().StringSliceVar(&flagZips, "zip", nil, "zip codes to search (default: zip codes file)")
	root.Flags().StringSliceVar(&flagTypes, "type", nil, "RV types to search (default: all types)")
	root.Flags().StringVar(&flagCondition, "condition", "", "listing condition filter, N or U (default: config)")
	root.Flags().IntVar(&flagRadius, "radius", 0, "search radius in miles (default: config)")
	root.Flags().IntVar(&flagLimit, "limit", 0, "cap the number of listings analyzed (0 = no cap)")
	root.Flags().BoolVar(&flagRefreshCookies, "refresh-cookies", false, "force a browser cookie refresh before fetching engagement stats")
	root.Flags().BoolVar(&flagSkipEngagement, "skip-engagement", false, "skip the views/saves endpoints")
	root.Flags().BoolVar(&flagSkipDB, "skip-db", false, "skip the PostgreSQL export")
	root.Flags().BoolVar(&flagSkipReports, "skip-reports", false, "skip HTML report generation")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := utils.NewLogger()
	cfg := config.Load()
	if flagCondition != "" {
		cfg.Condition = flagCondition
	}
	if flagRadius > 0 {
		cfg.Radius = flagRadius
	}

	zips := flagZips
	if len(zips) == 0 {
		zips = cfg.LoadZipCodes()
	}
	rvTypes := flagTypes
	if len(rvTypes) == 0 {
		for name := range config.RVTypes {
			rvTypes = append(rvTypes, name)
		}
		sort.Strings(rvTypes)
	}
	for _, name := range rvTypes {
		if _, ok := config.RVTypes[name]; !ok {
			return fmt.Errorf("unknown RV type %q", name)
		}
	}

	logger.Info("Starting scrape: %d zips, %d types, condition=%s, radius=%d",
		len(zips), len(rvTypes), cfg.Condition, cfg.Radius)
	start := time.Now()

	sc := rvtrader.New(cfg, logger)
	var raw []models.RawListing
	for _, zip := range zips {
		raw = append(raw, sc.ScrapeZip(zip, rvTypes)...)
	}
	logger.Info("Scraped %d raw listings in %s", len(raw), time.Since(start).Round(time.Second))

	normalizer := services.NewNormalizer(logger)
	listings := normalizer.Normalize(raw)
	if flagLimit > 0 && len(listings) > flagLimit {
		logger.Info("Limiting to the first %d of %d listings", flagLimit, len(listings))
		listings = listings[:flagLimit]
	}
	if len(listings) == 0 {
		logger.Warn("No listings scraped; nothing to analyze")
		return nil
	}

	if !flagSkipEngagement {
		fetchEngagement(ctx, cfg, logger, normalizer, listings)
	}

	analyzer := services.NewAnalyzer(services.DefaultFactors(), logger)
	analyzer.AnalyzeAll(listings, services.DefaultBrandTable(), services.DefaultRegionTable())

	if err := writeCSV(cfg, logger, listings); err != nil {
		return err
	}

	if !flagSkipDB {
		if err := writePostgres(cfg, logger, listings); err != nil {
			logger.Error("PostgreSQL export failed: %v", err)
		}
	}

	if err := updateHistory(cfg, logger, listings); err != nil {
		logger.Error("History update failed: %v", err)
	}

	summarizer := services.NewSummarizer(services.DefaultFactors(), logger)
	summaries := summarizer.DealerSummaries(listings)

	if !flagSkipReports {
		if err := writeReports(cfg, logger, analyzer, summarizer, summaries, listings); err != nil {
			logger.Error("Report generation failed: %v", err)
		}
	}

	printSummary(logger, summarizer, listings, summaries)
	logger.Info("Done in %s", time.Since(start).Round(time.Second))
	return nil
}

// fetchEngagement pulls views/saves for every listing. Failures here only
// degrade the output, so they never abort the run.
func fetchEngagement(ctx context.Context, cfg *config.Config, logger *utils.Logger,
	normalizer *services.Normalizer, listings []*models.Listing) {

	jar := rvtrader.NewCookieJar(cfg, logger)
	cookie, err := jar.Get(ctx, flagRefreshCookies)
	if err != nil {
		logger.Warn("Cookie refresh failed, skipping engagement stats: %v", err)
		return
	}

	es := rvtrader.NewEngagementScraper(cfg, logger, cookie)
	stats := es.FetchAll(listings)
	normalizer.MergeEngagement(listings, stats)
}

func writeCSV(cfg *config.Config, logger *utils.Logger, listings []*models.Listing) error {
	path := filepath.Join(cfg.OutputDir,
		fmt.Sprintf("rv_listings_%s.csv", time.Now().Format("2006-01-02_150405")))

	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Write(listings); err != nil {
		return err
	}
	logger.Info("Wrote %d listings to %s", len(listings), path)

	master := filepath.Join(cfg.OutputDir, "rv_listings_master.csv")
	if err := storage.AppendMaster(master, listings); err != nil {
		return err
	}
	logger.Info("Appended to master file %s", master)
	return nil
}

func writePostgres(cfg *config.Config, logger *utils.Logger, listings []*models.Listing) error {
	pw, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		return err
	}
	defer pw.Close()

	if err := pw.Write(listings); err != nil {
		return err
	}
	logger.Info("Wrote %d listings to PostgreSQL", len(listings))
	return nil
}

func updateHistory(cfg *config.Config, logger *utils.Logger, listings []*models.Listing) error {
	store, err := storage.NewHistoryStore(cfg.HistoryDir)
	if err != nil {
		return err
	}

	history, err := store.Load()
	if err != nil {
		return err
	}

	week := time.Now().Format("2006-01-02")
	factors := services.DefaultFactors()
	store.Update(history, listings, week, factors.PhotoTarget)
	if err := store.Save(history); err != nil {
		return err
	}

	changes := history.WoWChanges(week)
	if len(changes) == 0 {
		logger.Info("History updated for %s (no prior week to compare)", week)
		return nil
	}

	logger.Info("Week-over-week: %d listings moved", len(changes))
	top := changes
	if len(top) > 5 {
		top = top[:5]
	}
	for _, c := range top {
		logger.Info("  %s %s (%s): rank %+d, quality %+d",
			c.DealerName, c.Model, c.StockNumber, c.RankChange, c.QualityChange)
	}
	return nil
}

func writeReports(cfg *config.Config, logger *utils.Logger, analyzer *services.Analyzer,
	summarizer *services.Summarizer, summaries []*models.DealerSummary,
	listings []*models.Listing) error {

	renderer, err := reports.NewRenderer(cfg.ReportsDir, logger)
	if err != nil {
		return err
	}

	market := summarizer.Metrics(listings, 0)
	if _, err := renderer.DealerScorecards(summaries, market); err != nil {
		return err
	}

	if _, err := renderer.Dashboard(listings, analyzer); err != nil {
		return err
	}

	byBrand := services.GroupBy(listings, func(l *models.Listing) string { return l.ThorBrand })
	for brand, group := range byBrand {
		brandMetrics := summarizer.Metrics(group, market.AvgRank)

		regionMetrics := make(map[string]models.GroupMetrics)
		byRegion := services.GroupBy(group, func(l *models.Listing) string { return l.Region })
		for region, regionGroup := range byRegion {
			regionMetrics[region] = summarizer.Metrics(regionGroup, market.AvgRank)
		}

		if _, err := renderer.RegionalSummary(brand, brandMetrics, regionMetrics); err != nil {
			return err
		}
		if _, err := renderer.BrandAnalysis(brand, group, analyzer, market.AvgRank); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(logger *utils.Logger, summarizer *services.Summarizer,
	listings []*models.Listing, summaries []*models.DealerSummary) {

	market := summarizer.Metrics(listings, 0)
	logger.Info("=== Market summary ===")
	logger.Info("Listings: %d across %d dealers", market.Count, len(summaries))
	logger.Info("Avg rank: %.1f, quality score: %.1f%%, premium share: %.1f%%",
		market.AvgRank, market.QualityScore, market.PctPremium)
	logger.Info("Quick wins: %d missing price, %d missing VIN, %d missing floorplan, %d under %d photos",
		market.QuickWins.MissingPrice, market.QuickWins.MissingVIN,
		market.QuickWins.MissingFloorplan, market.QuickWins.MissingPhotos35, 35)
	logger.Info("Projected market-wide rank gain: %d positions", market.TotalRankGain)

	top := summaries
	if len(top) > 5 {
		top = top[:5]
	}
	logger.Info("=== Top dealers ===")
	for _, ds := range top {
		logger.Info("  [%s] %s (%s): score %.1f, %d listings, avg rank %.1f",
			ds.Metrics.Grade, ds.DealerName, ds.Region,
			ds.Metrics.Score, ds.Metrics.Count, ds.Metrics.AvgRank)
	}
}
