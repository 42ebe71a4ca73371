package rvtrader

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"rvrank-scraper/config"
	"rvrank-scraper/models"
	"rvrank-scraper/services"
	"rvrank-scraper/utils"
)

// EngagementScraper pulls per-listing views and saves from the detail
// stats endpoints. These endpoints want a logged-in cookie; see cookies.go.
type EngagementScraper struct {
	cfg    *config.Config
	logger *utils.Logger
	client *resty.Client
	pool   *utils.WorkerPool
}

// NewEngagementScraper creates an engagement stats fetcher authenticated
// with the given cookie string.
func NewEngagementScraper(cfg *config.Config, logger *utils.Logger, cookie string) *EngagementScraper {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("accept", "application/json, text/plain, */*").
		SetHeader("accept-language", "en-US,en;q=0.9").
		SetHeader("user-agent", userAgent).
		SetHeader("cookie", cookie)

	return &EngagementScraper{
		cfg:    cfg,
		logger: logger,
		client: client,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
	}
}

type viewsResponse struct {
	Error            any `json:"error"`
	ListingViewsData any `json:"listingViewsData"`
}

type savesResponse struct {
	Error            any `json:"error"`
	ListingSavesData any `json:"listingSavesData"`
}

// FetchAll retrieves views/saves for every listing, keyed by ad id. A
// failed fetch records an error string on that listing's entry and moves
// on; the batch always completes.
func (e *EngagementScraper) FetchAll(listings []*models.Listing) map[string]services.Engagement {
	stats := make(map[string]services.Engagement, len(listings))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, l := range listings {
		if l.ID == "" {
			continue
		}
		l := l
		wg.Add(1)
		e.pool.Submit(func() {
			defer wg.Done()
			eng := e.fetchOne(l.ID)
			mu.Lock()
			stats[l.ID] = eng
			mu.Unlock()
		})
	}
	wg.Wait()

	withViews := 0
	for _, eng := range stats {
		if eng.Views != nil {
			withViews++
		}
	}
	e.logger.Info("[engagement] Fetched stats for %d listings (%d with views)", len(stats), withViews)
	return stats
}

func (e *EngagementScraper) fetchOne(adID string) services.Engagement {
	var eng services.Engagement

	viewsURL := fmt.Sprintf("%s?adId=%s&realmId=%%5Bobject%%20Object%%5D", e.cfg.ViewsURL, adID)
	resp, err := e.client.R().Get(viewsURL)
	if err != nil {
		eng.Err = fmt.Sprintf("views: %v", err)
	} else if resp.StatusCode() == 200 {
		var v viewsResponse
		if json.Unmarshal(resp.Body(), &v) == nil {
			eng.Views = statValue(v.ListingViewsData)
		}
	}

	savesURL := fmt.Sprintf("%s?adId=%s&realmId=%%5Bobject%%20Object%%5D", e.cfg.SavesURL, adID)
	resp, err = e.client.R().Get(savesURL)
	if err != nil {
		if eng.Err != "" {
			eng.Err += "; "
		}
		eng.Err += fmt.Sprintf("saves: %v", err)
	} else if resp.StatusCode() == 200 {
		var v savesResponse
		if json.Unmarshal(resp.Body(), &v) == nil {
			eng.Saves = statValue(v.ListingSavesData)
		}
	}

	return eng
}

// statValue copes with the stats endpoints returning counts as either
// JSON numbers or digit strings.
func statValue(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}
