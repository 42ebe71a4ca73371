package services

import (
	"testing"

	"rvrank-scraper/models"
	"rvrank-scraper/utils"
)

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"nil", nil, nil},
		{"float64", 42.5, fptr(42.5)},
		{"int", 7, fptr(7)},
		{"numeric string", "19999.99", fptr(19999.99)},
		{"padded string", "  32.0  ", fptr(32)},
		{"empty string", "", nil},
		{"blank string", "   ", nil},
		{"garbage string", "N/A", nil},
		{"wrong type", []string{"x"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeFloat(tt.in)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("SafeFloat(%v) = %v, want nil", tt.in, *got)
			case tt.want != nil && got == nil:
				t.Errorf("SafeFloat(%v) = nil, want %v", tt.in, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("SafeFloat(%v) = %v, want %v", tt.in, *got, *tt.want)
			}
		})
	}
}

func TestSafeInt(t *testing.T) {
	if got := SafeInt("37"); got == nil || *got != 37 {
		t.Errorf("SafeInt(\"37\") = %v, want 37", got)
	}
	if got := SafeInt(12.9); got == nil || *got != 12 {
		t.Errorf("SafeInt(12.9) = %v, want 12 (truncated)", got)
	}
	if got := SafeInt(nil); got != nil {
		t.Errorf("SafeInt(nil) = %v, want nil", *got)
	}
	if got := SafeInt("not a number"); got != nil {
		t.Errorf("SafeInt(garbage) = %v, want nil", *got)
	}
}

func TestSafeBool(t *testing.T) {
	trueValues := []any{true, 1, int64(1), float64(1), "1", "true", "TRUE", " yes "}
	for _, v := range trueValues {
		if !SafeBool(v) {
			t.Errorf("SafeBool(%v) = false, want true", v)
		}
	}
	falseValues := []any{nil, false, 0, 2, float64(0), "", "0", "no", "premium", []int{1}}
	for _, v := range falseValues {
		if SafeBool(v) {
			t.Errorf("SafeBool(%v) = true, want false", v)
		}
	}
}

func TestSafeString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"trimmed", "  Jayco  ", "Jayco"},
		{"whole float keeps id form", float64(5031337), "5031337"},
		{"fractional float", 19.5, "19.5"},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"wrong type", map[string]any{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeString(tt.in); got != tt.want {
				t.Errorf("SafeString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeOneQualityFlags(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	raw := models.RawListing{
		"id":           float64(5031337),
		"rank":         float64(12),
		"year":         "2025",
		"make":         "Thor Motor Coach",
		"price":        "89999.00",
		"vin":          "1FDXE4FN8PDC12345",
		"floorplan_id": "fp-221",
		"length":       float64(32.5),
		"photo_count":  float64(18),
		"is_premium":   float64(1),
		"state":        "IL",
	}

	l := n.NormalizeOne(raw)

	if l.ID != "5031337" {
		t.Errorf("ID = %q, want 5031337", l.ID)
	}
	if l.Rank == nil || *l.Rank != 12 {
		t.Errorf("Rank = %v, want 12", l.Rank)
	}
	if l.Year == nil || *l.Year != 2025 {
		t.Errorf("Year = %v, want 2025", l.Year)
	}
	if !l.HasPrice || !l.HasVIN || !l.HasFloorplan || !l.HasLength {
		t.Errorf("quality flags = %v/%v/%v/%v, want all true",
			l.HasPrice, l.HasVIN, l.HasFloorplan, l.HasLength)
	}
	if !l.IsPremium {
		t.Error("IsPremium = false, want true")
	}
	if l.PhotoCount != 18 {
		t.Errorf("PhotoCount = %d, want 18", l.PhotoCount)
	}
}

func TestNormalizeOneDegradesGracefully(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	l := n.NormalizeOne(models.RawListing{
		"price": "Call for price",
		"year":  "",
		"vin":   "",
	})

	if l.Price != nil {
		t.Errorf("Price = %v, want nil for unparseable input", *l.Price)
	}
	if l.HasPrice || l.HasVIN || l.HasFloorplan || l.HasLength {
		t.Error("quality flags set on an empty listing")
	}
	if l.Rank != nil {
		t.Errorf("Rank = %v, want nil when absent", *l.Rank)
	}
}

func TestNormalizeOneZeroPriceNotCounted(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	l := n.NormalizeOne(models.RawListing{"price": float64(0)})
	if l.HasPrice {
		t.Error("a zero price must not count as having a price")
	}
}

func TestNormalizeDeduplicates(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	raw := []models.RawListing{
		{"id": "a-1", "rank": float64(1)},
		{"id": "a-2", "rank": float64(2)},
		{"id": "a-1", "rank": float64(9)},
		{"rank": float64(3)}, // no id; kept
	}

	got := n.Normalize(raw)
	if len(got) != 3 {
		t.Fatalf("Normalize() kept %d listings, want 3", len(got))
	}
	// First occurrence wins.
	if *got[0].Rank != 1 {
		t.Errorf("first listing rank = %d, want 1", *got[0].Rank)
	}
}

func TestMergeEngagement(t *testing.T) {
	n := NewNormalizer(utils.NewLogger())

	listings := []*models.Listing{
		{ID: "a-1"},
		{ID: "a-2"},
		{ID: "a-3"},
	}
	stats := map[string]Engagement{
		"a-1": {Views: iptr(120), Saves: iptr(8)},
		"a-3": {Err: "stats fetch failed: 403"},
	}

	n.MergeEngagement(listings, stats)

	if listings[0].Views == nil || *listings[0].Views != 120 {
		t.Errorf("listing a-1 views = %v, want 120", listings[0].Views)
	}
	if listings[1].Views != nil || listings[1].Saves != nil {
		t.Error("listing a-2 must be untouched without a stats entry")
	}
	if listings[2].FetchError == "" {
		t.Error("listing a-3 must carry the fetch error")
	}
}
