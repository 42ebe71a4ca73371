package rvtrader

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"rvrank-scraper/config"
	"rvrank-scraper/models"
	"rvrank-scraper/utils"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper pulls ranked listings from the marketplace search API, one rank
// space (zip + type + condition) at a time.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	client *resty.Client
	pool   *utils.WorkerPool
	seen   *utils.KeySet
	retry  *utils.RetryConfig
}

// New creates a ready-to-use search Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	timeout := 15 * time.Second
	if cfg.UseScraperAPI {
		// The proxy processes the request on its end before responding.
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &Scraper{
		cfg:    cfg,
		logger: logger,
		client: client,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		seen:   utils.NewKeySet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

type searchResponse struct {
	Data struct {
		TotalResults int              `json:"total_results"`
		Results      []map[string]any `json:"results"`
	} `json:"data"`
}

// ScrapeZip fetches every requested RV type for one zip code. Individual
// page failures are logged and skipped; they never abort the batch.
func (s *Scraper) ScrapeZip(zip string, rvTypes []string) []models.RawListing {
	s.logger.Info("[rvtrader] Zip %s — fetching %d RV types", zip, len(rvTypes))

	var mu sync.Mutex
	var all []models.RawListing

	var wg sync.WaitGroup
	for _, rvType := range rvTypes {
		wg.Add(1)
		go func(rvType string) {
			defer wg.Done()
			listings := s.scrapeType(zip, rvType)
			mu.Lock()
			all = append(all, listings...)
			mu.Unlock()
		}(rvType)
	}
	wg.Wait()

	s.logger.Info("[rvtrader] Zip %s complete: %d listings", zip, len(all))
	return all
}

// scrapeType extracts one full rank space. Page 1 doubles as the probe for
// the total; deep result sets fan out over the price-chunk ladder because
// the API stops serving past its page window.
func (s *Scraper) scrapeType(zip, rvType string) []models.RawListing {
	page1, err := s.fetchPage(s.buildURL(rvType, 1, zip, nil, nil))
	if err != nil {
		s.logger.Error("[rvtrader] %s/%s: probe failed: %v", zip, rvType, err)
		return nil
	}

	total := page1.Data.TotalResults
	if total == 0 {
		return nil
	}

	listings := s.flattenPage(page1.Data.Results, 0, zip, rvType)

	switch {
	case total <= s.cfg.ResultsPerPage:
		s.logger.Info("[rvtrader] [%s] %d done", rvType, total)
		return listings

	case total <= s.cfg.MaxResults():
		rest := s.fetchRemainingPages(zip, rvType, nil, nil, total, 0)
		return append(listings, rest...)

	default:
		s.logger.Info("[rvtrader] [%s] %d results — fanning out price chunks", rvType, total)
		return s.fetchAllChunks(zip, rvType)
	}
}

// fetchRemainingPages pulls pages 2+ concurrently, keeping rank order by
// indexing results per page before flattening.
func (s *Scraper) fetchRemainingPages(zip, rvType string, priceMin, priceMax *int,
	total, rankOffset int) []models.RawListing {

	numPages := (total + s.cfg.ResultsPerPage - 1) / s.cfg.ResultsPerPage
	if numPages > s.cfg.MaxPages {
		numPages = s.cfg.MaxPages
	}
	if numPages <= 1 {
		return nil
	}

	pages := make([][]map[string]any, numPages+1)
	var wg sync.WaitGroup
	for page := 2; page <= numPages; page++ {
		page := page
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			resp, err := s.fetchPage(s.buildURL(rvType, page, zip, priceMin, priceMax))
			if err != nil {
				s.logger.Warn("[rvtrader] %s/%s page %d failed: %v", zip, rvType, page, err)
				return
			}
			pages[page] = resp.Data.Results
		})
	}
	wg.Wait()

	var out []models.RawListing
	for page := 2; page <= numPages; page++ {
		base := rankOffset + (page-1)*s.cfg.ResultsPerPage
		out = append(out, s.flattenPage(pages[page], base, zip, rvType)...)
	}
	return out
}

type chunkResult struct {
	index int
	min   *int
	max   *int
	total int
	page1 []map[string]any
}

// fetchAllChunks fires page 1 of every price chunk at once, then every
// remaining page, then stitches ranks back together chunk by chunk in
// ladder order.
func (s *Scraper) fetchAllChunks(zip, rvType string) []models.RawListing {
	breaks := config.PriceBreaks

	var mu sync.Mutex
	var chunks []chunkResult

	var wg sync.WaitGroup
	for i := 0; i < len(breaks); i++ {
		i := i
		min, max := chunkBounds(breaks, i)
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			resp, err := s.fetchPage(s.buildURL(rvType, 1, zip, min, max))
			if err != nil {
				s.logger.Warn("[rvtrader] %s/%s chunk %d failed: %v", zip, rvType, i, err)
				return
			}
			if resp.Data.TotalResults == 0 {
				return
			}
			mu.Lock()
			chunks = append(chunks, chunkResult{
				index: i, min: min, max: max,
				total: resp.Data.TotalResults,
				page1: resp.Data.Results,
			})
			mu.Unlock()
		})
	}
	wg.Wait()

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })

	// Ranks continue across chunks: each chunk's offset is the sum of the
	// (capped) totals before it.
	var all []models.RawListing
	rankOffset := 0
	for _, c := range chunks {
		all = append(all, s.flattenPage(c.page1, rankOffset, zip, rvType)...)
		all = append(all, s.fetchRemainingPages(zip, rvType, c.min, c.max, c.total, rankOffset)...)

		capped := c.total
		if capped > s.cfg.MaxResults() {
			capped = s.cfg.MaxResults()
		}
		rankOffset += capped
	}

	s.logger.Info("[rvtrader] [%s] %d chunks, %d listings done", rvType, len(chunks), len(all))
	return all
}

func chunkBounds(breaks []int, i int) (*int, *int) {
	var min, max *int
	if breaks[i] > 0 {
		v := breaks[i]
		min = &v
	}
	if i+1 < len(breaks) {
		v := breaks[i+1]
		max = &v
	}
	return min, max
}

// fetchPage retrieves and decodes one API page, retrying with backoff.
func (s *Scraper) fetchPage(pageURL string) (*searchResponse, error) {
	var decoded searchResponse

	err := s.retry.Do("fetch-page", func() error {
		resp, err := s.client.R().Get(s.wrapProxy(pageURL))
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		if resp.StatusCode() == 403 {
			return fmt.Errorf("403 forbidden — anti-bot block, consider the proxy")
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &decoded, nil
}

// buildURL assembles a search API URL for one page of one rank space.
func (s *Scraper) buildURL(rvType string, page int, zip string, priceMin, priceMax *int) string {
	typeCode, ok := config.RVTypes[rvType]
	if !ok {
		typeCode = "198068"
	}

	params := url.Values{}
	params.Set("type", fmt.Sprintf("%s|%s", rvType, typeCode))
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("zip", zip)
	params.Set("radius", fmt.Sprintf("%d", s.cfg.Radius))
	params.Set("condition", s.cfg.Condition)

	if priceMin != nil || priceMax != nil {
		minStr, maxStr := "*", "*"
		if priceMin != nil {
			minStr = fmt.Sprintf("%d", *priceMin)
		}
		if priceMax != nil {
			maxStr = fmt.Sprintf("%d", *priceMax)
		}
		params.Set("price", fmt.Sprintf("%s:%s", minStr, maxStr))
	}

	return s.cfg.SearchAPIBase + "?" + params.Encode()
}

// wrapProxy routes a URL through ScraperAPI when enabled.
func (s *Scraper) wrapProxy(target string) string {
	if !s.cfg.UseScraperAPI || s.cfg.ScraperAPIKey == "" {
		return target
	}
	return fmt.Sprintf("%s?api_key=%s&url=%s",
		s.cfg.ScraperAPIBase, s.cfg.ScraperAPIKey, url.QueryEscape(target))
}

// flattenPage converts one page of API results to RawListings with
// 1-based ranks, skipping ads already seen in this run (retried pages and
// overlapping chunks can re-serve the same ad).
func (s *Scraper) flattenPage(results []map[string]any, rankOffset int, zip, rvType string) []models.RawListing {
	out := make([]models.RawListing, 0, len(results))
	for i, r := range results {
		flat := s.flatten(r, rankOffset+i+1, zip, rvType)
		if id := idString(flat["id"]); id != "" && !s.seen.Add(id) {
			continue
		}
		out = append(out, flat)
	}
	return out
}

// flatten maps the API's wrapped field names onto the flat keys the
// normalizer understands.
func (s *Scraper) flatten(r map[string]any, rank int, zip, rvType string) models.RawListing {
	phone := primaryPhone(r)

	return models.RawListing{
		"rank":             rank,
		"search_zip":       zip,
		"search_type":      rvType,
		"search_condition": s.cfg.Condition,

		"id":           extractRaw(r["ad_id"]),
		"dealer_id":    extractRaw(r["dealer_id"]),
		"vin":          extractRaw(r["mfr_serial_num"]),
		"stock_number": extractRaw(r["stock_number"]),

		"year":      extractRaw(r["year"]),
		"make":      extractRaw(r["make_name"]),
		"model":     extractRaw(r["model_name"]),
		"trim":      extractRaw(r["trim_name"]),
		"class":     extractRaw(r["class_name"]),
		"condition": extractRaw(r["condition"]),
		"length":    extractRaw(r["length"]),
		"mileage":   extractRaw(r["mileage"]),

		"price": extractRaw(r["price"]),
		"msrp":  extractRaw(r["msrp"]),

		"city":  extractRaw(r["city"]),
		"state": extractRaw(r["state_code"]),

		"dealer_name":  extractRaw(r["company_name"]),
		"dealer_group": extractRaw(r["dealer_group_name"]),
		"dealer_phone": phone,

		"photo_count":  extractRaw(r["photo_count"]),
		"floorplan_id": extractRaw(r["floorplan_mediaid"]),

		"relevance_score": extractRaw(r["_score"]),
		"merch_score":     extractRaw(r["lcs_merch_score"]),

		"is_premium":     extractRaw(r["is_premium"]),
		"is_top_premium": extractRaw(r["is_toppremium"]),

		"listing_url": extractRaw(r["ad_detail_url"]),
		"create_date": extractRaw(r["create_date"]),
	}
}

// idString renders an ad id for dedup regardless of how the backend
// typed it.
func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}

// extractRaw unwraps the API's {"raw": ...} envelope. Single-element raw
// lists collapse to their only value.
func extractRaw(val any) any {
	m, ok := val.(map[string]any)
	if !ok {
		return val
	}
	raw, ok := m["raw"]
	if !ok {
		return val
	}
	if list, ok := raw.([]any); ok && len(list) == 1 {
		return list[0]
	}
	return raw
}

// primaryPhone picks the first dealer phone, which arrives as a
// pipe-delimited list wrapped in the raw envelope.
func primaryPhone(r map[string]any) any {
	raw := extractRaw(r["dealer_phone"])
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return extractRaw(r["phone"])
	}
	first, ok := list[0].(string)
	if !ok {
		return extractRaw(r["phone"])
	}
	for i := 0; i < len(first); i++ {
		if first[i] == '|' {
			return first[:i]
		}
	}
	return first
}
