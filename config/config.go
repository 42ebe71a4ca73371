package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// RVTypes maps display names to the marketplace's internal type codes.
// The search API wants both, joined as "name|code".
var RVTypes = map[string]string{
	"Class A":             "198066",
	"Class B":             "198068",
	"Class C":             "198067",
	"Fifth Wheel":         "198069",
	"Toy Hauler":          "198074",
	"Travel Trailer":      "198073",
	"Truck Camper":        "198072",
	"Pop-Up Camper":       "198071",
	"Park Model":          "198070",
	"Destination Trailer": "671069",
	"Teardrop Trailer":    "764498",
}

// PriceBreaks is the price-chunk ladder used when a single search exceeds
// the API's result window. 0 means open-ended on that side.
var PriceBreaks = []int{
	0, 5000, 10000, 15000, 20000, 25000, 30000, 35000, 40000, 45000, 50000,
	55000, 60000, 65000, 70000, 75000, 80000, 85000, 90000, 95000, 100000,
	125000, 150000, 175000, 200000, 250000, 300000, 400000, 500000, 750000, 1000000,
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SearchAPIBase  string
	ScraperAPIBase string
	ScraperAPIKey  string
	UseScraperAPI  bool

	ZipCodesFile string
	Radius       int
	Condition    string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	ResultsPerPage int
	MaxPages       int

	CookieCachePath string
	CookieExpiryHrs int
	ViewsURL        string
	SavesURL        string

	OutputDir  string
	HistoryDir string
	ReportsDir string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ChromeBin string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		SearchAPIBase:  getEnv("SEARCH_API_BASE", "https://www.rvtrader.com/ssr-api/search-results"),
		ScraperAPIBase: getEnv("SCRAPER_API_BASE", "http://api.scraperapi.com"),
		ScraperAPIKey:  getEnv("SCRAPER_API_KEY", ""),
		UseScraperAPI:  getEnvBool("USE_SCRAPER_API", false),

		ZipCodesFile: getEnv("ZIP_CODES_FILE", "zip_codes.txt"),
		Radius:       getEnvInt("SEARCH_RADIUS", 50),
		Condition:    getEnv("SEARCH_CONDITION", "N"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 10),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 200),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		ResultsPerPage: getEnvInt("RESULTS_PER_PAGE", 36),
		MaxPages:       getEnvInt("MAX_PAGES", 10),

		CookieCachePath: getEnv("COOKIE_CACHE_PATH", ".cookie_cache.json"),
		CookieExpiryHrs: getEnvInt("COOKIE_EXPIRY_HOURS", 48),
		ViewsURL:        getEnv("ENGAGEMENT_VIEWS_URL", "https://www.rvtrader.com/gettiledata/addetail_listingstats/showadviewsstats"),
		SavesURL:        getEnv("ENGAGEMENT_SAVES_URL", "https://www.rvtrader.com/gettiledata/addetail_listingstats/showsavedadsstats"),

		OutputDir:  getEnv("OUTPUT_DIR", "./output"),
		HistoryDir: getEnv("HISTORY_DIR", "./output/history"),
		ReportsDir: getEnv("REPORTS_DIR", "./output/reports"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rvrank_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ChromeBin: getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// MaxResults is the deepest rank the API will serve for one search.
func (c *Config) MaxResults() int {
	return c.ResultsPerPage * c.MaxPages
}

// LoadZipCodes reads one zip code per line from the configured file.
// A missing or empty file falls back to a single default zip.
func (c *Config) LoadZipCodes() []string {
	f, err := os.Open(c.ZipCodesFile)
	if err != nil {
		return []string{"60616"}
	}
	defer f.Close()

	var zips []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			zips = append(zips, line)
		}
	}
	if len(zips) == 0 {
		return []string{"60616"}
	}
	return zips
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
