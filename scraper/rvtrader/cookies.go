package rvtrader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"rvrank-scraper/config"
	"rvrank-scraper/utils"
)

// CookieJar caches the marketplace session cookies the engagement
// endpoints require. Cookies live in a JSON file and expire after the
// configured number of hours, after which a real browser session must
// refresh them.
type CookieJar struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewCookieJar creates a cookie cache bound to the configured path.
func NewCookieJar(cfg *config.Config, logger *utils.Logger) *CookieJar {
	return &CookieJar{cfg: cfg, logger: logger}
}

type cookieCache struct {
	Timestamp    time.Time `json:"timestamp"`
	CookieString string    `json:"cookie_string"`
}

// Load returns the cached cookie string if it exists and is still fresh.
func (j *CookieJar) Load() (string, bool) {
	data, err := os.ReadFile(j.cfg.CookieCachePath)
	if err != nil {
		return "", false
	}

	var cache cookieCache
	if err := json.Unmarshal(data, &cache); err != nil || cache.CookieString == "" {
		return "", false
	}

	age := time.Since(cache.Timestamp)
	maxAge := time.Duration(j.cfg.CookieExpiryHrs) * time.Hour
	if age > maxAge {
		j.logger.Warn("[cookies] Cached cookies are %.1fh old (max %dh)", age.Hours(), j.cfg.CookieExpiryHrs)
		return "", false
	}
	return cache.CookieString, true
}

// Save writes the cookie string to the cache file with the current time.
func (j *CookieJar) Save(cookieString string) error {
	data, err := json.MarshalIndent(cookieCache{
		Timestamp:    time.Now(),
		CookieString: cookieString,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("cookies: marshal: %w", err)
	}
	if err := os.WriteFile(j.cfg.CookieCachePath, data, 0600); err != nil {
		return fmt.Errorf("cookies: write cache: %w", err)
	}
	j.logger.Info("[cookies] Saved to %s", j.cfg.CookieCachePath)
	return nil
}

// Refresh opens a visible browser on the marketplace homepage so its
// anti-bot challenge can complete (or the user can log in), then captures
// the session cookies. Blocks for up to two minutes.
func (j *CookieJar) Refresh(parent context.Context) (string, error) {
	chromeBin := j.findChromeBinary()
	j.logger.Info("[cookies] Launching browser for cookie refresh: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, 2*time.Minute)
	defer cancelTimeout()

	var cookieString string
	err := chromedp.Run(ctx,
		chromedp.Navigate("https://www.rvtrader.com/"),
		chromedp.Sleep(15*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			parts := make([]string, 0, len(cookies))
			for _, c := range cookies {
				parts = append(parts, c.Name+"="+c.Value)
			}
			cookieString = strings.Join(parts, "; ")
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("cookies: browser refresh: %w", err)
	}
	if cookieString == "" {
		return "", fmt.Errorf("cookies: browser returned no cookies")
	}

	if err := j.Save(cookieString); err != nil {
		return "", err
	}
	return cookieString, nil
}

// Get returns valid cookies, refreshing through the browser when the
// cache is stale or forceRefresh is set.
func (j *CookieJar) Get(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if cookies, ok := j.Load(); ok {
			return cookies, nil
		}
	}
	return j.Refresh(ctx)
}

// findChromeBinary locates a Chrome/Chromium binary.
func (j *CookieJar) findChromeBinary() string {
	if j.cfg.ChromeBin != "" {
		return j.cfg.ChromeBin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
