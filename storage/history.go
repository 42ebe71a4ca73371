package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"rvrank-scraper/models"
)

const (
	maxHistoryWeeks = 52
	maxWeeklyData   = 12
)

// WeekSnapshot is one listing's tracked state for one week.
type WeekSnapshot struct {
	Rank         *int     `json:"rank"`
	Price        *float64 `json:"price"`
	PhotoCount   int      `json:"photo_count"`
	QualityScore int      `json:"quality_score"`
	HasPrice     bool     `json:"has_price"`
	HasVIN       bool     `json:"has_vin"`
	HasFloorplan bool     `json:"has_floorplan"`
	HasLength    bool     `json:"has_length"`
	Photos35     bool     `json:"photos_35"`
	Views        *int     `json:"views"`
	Saves        *int     `json:"saves"`
}

// ListingRecord is the persistent history of one listing across weeks.
type ListingRecord struct {
	StockNumber string                  `json:"stock_number"`
	DealerName  string                  `json:"dealer_name"`
	ThorBrand   string                  `json:"thor_brand"`
	Region      string                  `json:"region"`
	Year        *int                    `json:"year"`
	Model       string                  `json:"model"`
	FirstSeen   string                  `json:"first_seen"`
	LastSeen    string                  `json:"last_seen"`
	WeeklyData  map[string]WeekSnapshot `json:"weekly_data"`
}

// History is the full tracking file: every listing ever seen, and the
// ordered list of tracked weeks.
type History struct {
	Weeks    []string                  `json:"weeks"`
	Listings map[string]*ListingRecord `json:"listings"`
}

// WoWChange describes one listing's movement between consecutive weeks.
type WoWChange struct {
	Key              string
	StockNumber      string
	DealerName       string
	ThorBrand        string
	Model            string
	RankChange       int
	QualityChange    int
	ActionsCompleted []string
}

// HistoryStore persists weekly snapshots as a JSON file under the history
// directory.
type HistoryStore struct {
	dir string
}

// NewHistoryStore creates the history directory if needed.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	return &HistoryStore{dir: dir}, nil
}

func (s *HistoryStore) path() string {
	return filepath.Join(s.dir, "listing_history.json")
}

// Load reads the history file, returning an empty history when none exists.
func (s *HistoryStore) Load() (*History, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return &History{Listings: make(map[string]*ListingRecord)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("history: decode: %w", err)
	}
	if h.Listings == nil {
		h.Listings = make(map[string]*ListingRecord)
	}
	return &h, nil
}

// Save writes the history file atomically via a temp rename.
func (s *HistoryStore) Save(h *History) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}

// ListingKey builds the stable tracking key: stock number when present,
// listing id otherwise, year+model+dealer as a last resort.
func ListingKey(l *models.Listing) string {
	if l.StockNumber != "" && l.StockNumber != "-" {
		return "stock:" + l.StockNumber
	}
	if l.ID != "" {
		return "id:" + l.ID
	}
	year := ""
	if l.Year != nil {
		year = fmt.Sprintf("%d", *l.Year)
	}
	return fmt.Sprintf("ymk:%s_%s_%s", year, l.Model, l.DealerName)
}

// QualityScore is a listing's 0-100 completeness: 20 points per quality
// field present.
func QualityScore(l *models.Listing, photoTarget int) int {
	score := 0
	if l.HasPrice {
		score += 20
	}
	if l.HasVIN {
		score += 20
	}
	if l.HasFloorplan {
		score += 20
	}
	if l.HasLength {
		score += 20
	}
	if l.PhotoCount >= photoTarget {
		score += 20
	}
	return score
}

// Update records this week's snapshot of every listing, trimming old weeks.
func (s *HistoryStore) Update(h *History, listings []*models.Listing, weekDate string, photoTarget int) {
	if !contains(h.Weeks, weekDate) {
		h.Weeks = append(h.Weeks, weekDate)
		sort.Strings(h.Weeks)
		if len(h.Weeks) > maxHistoryWeeks {
			h.Weeks = h.Weeks[len(h.Weeks)-maxHistoryWeeks:]
		}
	}

	for _, l := range listings {
		key := ListingKey(l)
		record, ok := h.Listings[key]
		if !ok {
			record = &ListingRecord{
				StockNumber: l.StockNumber,
				DealerName:  l.DealerName,
				ThorBrand:   l.ThorBrand,
				Region:      l.Region,
				Year:        l.Year,
				Model:       l.Model,
				FirstSeen:   weekDate,
				WeeklyData:  make(map[string]WeekSnapshot),
			}
			h.Listings[key] = record
		}
		record.LastSeen = weekDate

		record.WeeklyData[weekDate] = WeekSnapshot{
			Rank:         l.Rank,
			Price:        l.Price,
			PhotoCount:   l.PhotoCount,
			QualityScore: QualityScore(l, photoTarget),
			HasPrice:     l.HasPrice,
			HasVIN:       l.HasVIN,
			HasFloorplan: l.HasFloorplan,
			HasLength:    l.HasLength,
			Photos35:     l.PhotoCount >= photoTarget,
			Views:        l.Views,
			Saves:        l.Saves,
		}

		if len(record.WeeklyData) > maxWeeklyData {
			weeks := make([]string, 0, len(record.WeeklyData))
			for w := range record.WeeklyData {
				weeks = append(weeks, w)
			}
			sort.Strings(weeks)
			for _, w := range weeks[:len(weeks)-maxWeeklyData] {
				delete(record.WeeklyData, w)
			}
		}
	}
}

// WoWChanges compares the current week against the previous tracked week.
// Listings with no movement are omitted.
func (h *History) WoWChanges(currentWeek string) []WoWChange {
	weeks := append([]string(nil), h.Weeks...)
	sort.Strings(weeks)

	idx := -1
	for i, w := range weeks {
		if w == currentWeek {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return nil
	}
	prevWeek := weeks[idx-1]

	var changes []WoWChange
	for key, record := range h.Listings {
		cur, hasCur := record.WeeklyData[currentWeek]
		prev, hasPrev := record.WeeklyData[prevWeek]
		if !hasCur || !hasPrev {
			continue
		}

		rankChange := rankOr(prev.Rank) - rankOr(cur.Rank)
		qualityChange := cur.QualityScore - prev.QualityScore

		var completed []string
		if cur.HasPrice && !prev.HasPrice {
			completed = append(completed, "Added price")
		}
		if cur.HasVIN && !prev.HasVIN {
			completed = append(completed, "Added VIN")
		}
		if cur.HasFloorplan && !prev.HasFloorplan {
			completed = append(completed, "Added floorplan")
		}
		if cur.HasLength && !prev.HasLength {
			completed = append(completed, "Added length")
		}
		if cur.Photos35 && !prev.Photos35 {
			completed = append(completed, "Added photos (35+)")
		}

		if rankChange == 0 && qualityChange == 0 && len(completed) == 0 {
			continue
		}
		changes = append(changes, WoWChange{
			Key:              key,
			StockNumber:      record.StockNumber,
			DealerName:       record.DealerName,
			ThorBrand:        record.ThorBrand,
			Model:            record.Model,
			RankChange:       rankChange,
			QualityChange:    qualityChange,
			ActionsCompleted: completed,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].RankChange > changes[j].RankChange
	})
	return changes
}

func rankOr(r *int) int {
	if r == nil {
		return 999
	}
	return *r
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
