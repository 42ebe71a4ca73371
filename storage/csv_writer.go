package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"rvrank-scraper/models"
)

// exportColumns is the fixed column order of the flat-file export.
// External consumers key on these names; do not reorder.
var exportColumns = []string{
	"scrape_date", "search_zip", "search_type", "search_condition", "rank",
	"id", "stock_number", "vin",
	"year", "make", "model", "trim", "class", "condition", "length", "mileage",
	"price", "msrp",
	"city", "state", "region",
	"dealer_id", "dealer_name", "dealer_group", "dealer_phone",
	"photo_count", "floorplan_id",
	"relevance_score", "merch_score",
	"is_premium", "is_top_premium",
	"thor_brand", "tier", "tier_ceiling",
	"outperforming_tier", "at_tier_ceiling", "premium_recommended",
	"competitive_position",
	"total_relevance_available", "total_merch_available",
	"realistic_new_rank", "realistic_improvement",
	"estimated_merch_score", "quality_tier", "price_vs_msrp",
	"views", "saves", "fetch_error",
	"improvements", "listing_url",
}

// CSVWriter writes enriched listings to a flat CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(exportColumns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends one row per listing in the fixed column order.
func (c *CSVWriter) Write(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	scrapeDate := time.Now().Format("2006-01-02")
	for _, l := range listings {
		if err := c.writer.Write(listingRow(l, scrapeDate)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// AppendMaster appends listings to a long-running master file, writing the
// header only when the file is new.
func AppendMaster(path string, listings []*models.Listing) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("csv: open master %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(exportColumns); err != nil {
			return fmt.Errorf("csv: write master header: %w", err)
		}
	}

	scrapeDate := time.Now().Format("2006-01-02")
	for _, l := range listings {
		if err := w.Write(listingRow(l, scrapeDate)); err != nil {
			return fmt.Errorf("csv: write master row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func listingRow(l *models.Listing, scrapeDate string) []string {
	a := l.Analysis
	if a == nil {
		a = &models.Analysis{}
	}

	var actions []string
	for _, imp := range a.Improvements {
		actions = append(actions, imp.Action)
	}

	return []string{
		scrapeDate, l.SearchZip, l.SearchType, l.SearchCondition, intPtr(l.Rank),
		l.ID, l.StockNumber, l.VIN,
		intPtr(l.Year), l.Make, l.Model, l.Trim, l.Class, l.Condition,
		floatPtr(l.Length), intPtr(l.Mileage),
		floatPtr(l.Price), floatPtr(l.MSRP),
		l.City, l.State, l.Region,
		l.DealerID, l.DealerName, l.DealerGroup, l.DealerPhone,
		strconv.Itoa(l.PhotoCount), l.FloorplanID,
		floatPtr(l.RelevanceScore), floatPtr(l.MerchScore),
		boolFlag(l.IsPremium), boolFlag(l.IsTopPremium),
		l.ThorBrand, string(a.Tier), strconv.Itoa(a.TierCeiling),
		boolFlag(a.OutperformingTier), boolFlag(a.AtTierCeiling), boolFlag(a.PremiumRecommended),
		a.CompetitivePosition,
		strconv.Itoa(a.TotalRelevance), strconv.Itoa(a.TotalMerch),
		strconv.Itoa(a.RealisticNewRank), strconv.Itoa(a.RealisticImprovement),
		strconv.Itoa(a.EstimatedMerchScore), a.QualityTier, floatPtr(a.PriceVsMSRP),
		intPtr(l.Views), intPtr(l.Saves), l.FetchError,
		strings.Join(actions, "; "), l.ListingURL,
	}
}

func intPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
