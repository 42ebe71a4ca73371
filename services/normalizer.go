package services

import (
	"strconv"
	"strings"

	"rvrank-scraper/models"
	"rvrank-scraper/utils"
)

// Normalizer converts loosely-typed RawListings into canonical Listings.
// Malformed values never produce an error here; fields degrade to nil or
// false, because scraped data is routinely incomplete.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize processes raw records and returns typed listings, deduplicated
// by listing id within the batch.
func (n *Normalizer) Normalize(raw []models.RawListing) []*models.Listing {
	seen := make(map[string]struct{})
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		l := n.NormalizeOne(r)
		if l.ID != "" {
			if _, dup := seen[l.ID]; dup {
				n.logger.Debug("[normalize] Duplicate listing id skipped: %s", l.ID)
				continue
			}
			seen[l.ID] = struct{}{}
		}
		result = append(result, l)
	}

	n.logger.Info("[normalize] Normalized %d → %d listings (dropped %d duplicates)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// NormalizeOne converts a single raw record. It never fails: the worst a
// malformed field can do is come out nil or false.
func (n *Normalizer) NormalizeOne(r models.RawListing) *models.Listing {
	l := &models.Listing{
		Rank:            SafeInt(r["rank"]),
		SearchZip:       SafeString(r["search_zip"]),
		SearchType:      SafeString(r["search_type"]),
		SearchCondition: SafeString(r["search_condition"]),

		ID:          SafeString(r["id"]),
		StockNumber: SafeString(r["stock_number"]),
		VIN:         SafeString(r["vin"]),

		Year:      SafeInt(r["year"]),
		Make:      SafeString(r["make"]),
		Model:     SafeString(r["model"]),
		Trim:      SafeString(r["trim"]),
		Class:     SafeString(r["class"]),
		Condition: SafeString(r["condition"]),
		Length:    SafeFloat(r["length"]),
		Mileage:   SafeInt(r["mileage"]),

		Price: SafeFloat(r["price"]),
		MSRP:  SafeFloat(r["msrp"]),

		IsPremium:    SafeBool(r["is_premium"]),
		IsTopPremium: SafeBool(r["is_top_premium"]),

		FloorplanID: SafeString(r["floorplan_id"]),
		ListingURL:  SafeString(r["listing_url"]),
		CreateDate:  SafeString(r["create_date"]),

		RelevanceScore: SafeFloat(r["relevance_score"]),
		MerchScore:     SafeFloat(r["merch_score"]),

		City:  SafeString(r["city"]),
		State: SafeString(r["state"]),

		DealerID:    SafeString(r["dealer_id"]),
		DealerName:  SafeString(r["dealer_name"]),
		DealerGroup: SafeString(r["dealer_group"]),
		DealerPhone: SafeString(r["dealer_phone"]),

		FetchError: SafeString(r["fetch_error"]),
	}

	if pc := SafeInt(r["photo_count"]); pc != nil && *pc > 0 {
		l.PhotoCount = *pc
	}

	l.HasPrice = l.Price != nil && *l.Price > 0
	l.HasVIN = l.VIN != ""
	l.HasFloorplan = l.FloorplanID != ""
	l.HasLength = l.Length != nil && *l.Length > 0

	return l
}

// Engagement is one listing's views/saves result from the stats endpoints.
type Engagement struct {
	Views *int
	Saves *int
	Err   string
}

// MergeEngagement attaches engagement stats to listings by id. Listings
// without a matching entry are left untouched.
func (n *Normalizer) MergeEngagement(listings []*models.Listing, stats map[string]Engagement) {
	matched := 0
	for _, l := range listings {
		e, ok := stats[l.ID]
		if !ok {
			continue
		}
		l.Views = e.Views
		l.Saves = e.Saves
		l.FetchError = e.Err
		matched++
	}
	n.logger.Info("[normalize] Engagement merged for %d/%d listings", matched, len(listings))
}

// SafeInt converts a loose value to *int. Empty, nil and unparseable
// values come back nil, never zero and never an error.
func SafeInt(val any) *int {
	f := SafeFloat(val)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// SafeFloat converts a loose value to *float64 under the same rules.
func SafeFloat(val any) *float64 {
	switch v := val.(type) {
	case nil:
		return nil
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// SafeBool accepts "1", 1, true and case-insensitive "true"/"yes" as true.
// Everything else, including nil, is false.
func SafeBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v == 1
	case int64:
		return v == 1
	case float64:
		return v == 1
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "1" || s == "true" || s == "yes"
	default:
		return false
	}
}

// SafeString renders a loose value as a trimmed string. Numbers are
// formatted without a decimal tail when they are whole, so ids that some
// backends serve as JSON numbers keep their canonical form.
func SafeString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
