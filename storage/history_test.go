package storage

import (
	"testing"

	"rvrank-scraper/models"
)

func iptr(v int) *int { return &v }

func TestListingKey(t *testing.T) {
	tests := []struct {
		name    string
		listing *models.Listing
		want    string
	}{
		{"stock number preferred", &models.Listing{StockNumber: "ST-100", ID: "a-1"}, "stock:ST-100"},
		{"dash stock falls back to id", &models.Listing{StockNumber: "-", ID: "a-1"}, "id:a-1"},
		{"id fallback", &models.Listing{ID: "a-1"}, "id:a-1"},
		{
			"last resort composite",
			&models.Listing{Year: iptr(2025), Model: "Ace 29D", DealerName: "General RV"},
			"ymk:2025_Ace 29D_General RV",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ListingKey(tt.listing); got != tt.want {
				t.Errorf("ListingKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQualityScore(t *testing.T) {
	full := &models.Listing{
		HasPrice: true, HasVIN: true, HasFloorplan: true, HasLength: true, PhotoCount: 35,
	}
	if got := QualityScore(full, 35); got != 100 {
		t.Errorf("QualityScore(full) = %d, want 100", got)
	}
	if got := QualityScore(&models.Listing{PhotoCount: 34}, 35); got != 0 {
		t.Errorf("QualityScore(empty) = %d, want 0", got)
	}
	if got := QualityScore(&models.Listing{HasPrice: true, HasVIN: true}, 35); got != 40 {
		t.Errorf("QualityScore(partial) = %d, want 40", got)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	h, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Weeks) != 0 || len(h.Listings) != 0 {
		t.Fatal("fresh store must load an empty history")
	}

	listings := []*models.Listing{
		{StockNumber: "ST-1", DealerName: "General RV", Rank: iptr(40), PhotoCount: 10},
	}
	store.Update(h, listings, "2026-08-22", 35)
	if err := store.Save(h); err != nil {
		t.Fatal(err)
	}

	reloaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	record, ok := reloaded.Listings["stock:ST-1"]
	if !ok {
		t.Fatal("listing record missing after reload")
	}
	if record.FirstSeen != "2026-08-22" || record.LastSeen != "2026-08-22" {
		t.Errorf("seen dates = %s/%s, want 2026-08-22", record.FirstSeen, record.LastSeen)
	}
	snap := record.WeeklyData["2026-08-22"]
	if snap.Rank == nil || *snap.Rank != 40 {
		t.Errorf("snapshot rank = %v, want 40", snap.Rank)
	}
}

func TestWoWChanges(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h, _ := store.Load()

	week1 := []*models.Listing{
		{StockNumber: "ST-1", DealerName: "General RV", Model: "Ace 29D", Rank: iptr(40), PhotoCount: 10},
		{StockNumber: "ST-2", DealerName: "General RV", Model: "Chateau", Rank: iptr(12), HasPrice: true},
	}
	store.Update(h, week1, "2026-08-15", 35)

	week2 := []*models.Listing{
		// Added price, climbed 15 positions.
		{StockNumber: "ST-1", DealerName: "General RV", Model: "Ace 29D", Rank: iptr(25), PhotoCount: 10, HasPrice: true},
		// No movement, no data changes.
		{StockNumber: "ST-2", DealerName: "General RV", Model: "Chateau", Rank: iptr(12), HasPrice: true},
	}
	store.Update(h, week2, "2026-08-22", 35)

	changes := h.WoWChanges("2026-08-22")
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1 (unchanged listings omitted)", len(changes))
	}

	c := changes[0]
	if c.StockNumber != "ST-1" {
		t.Errorf("change key = %q, want ST-1", c.StockNumber)
	}
	if c.RankChange != 15 {
		t.Errorf("RankChange = %d, want 15 (positive means climbed)", c.RankChange)
	}
	if c.QualityChange != 20 {
		t.Errorf("QualityChange = %d, want 20", c.QualityChange)
	}
	if len(c.ActionsCompleted) != 1 || c.ActionsCompleted[0] != "Added price" {
		t.Errorf("ActionsCompleted = %v, want [Added price]", c.ActionsCompleted)
	}
}

func TestWoWChangesNoPriorWeek(t *testing.T) {
	store, err := NewHistoryStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h, _ := store.Load()
	store.Update(h, []*models.Listing{{ID: "a-1"}}, "2026-08-22", 35)

	if changes := h.WoWChanges("2026-08-22"); changes != nil {
		t.Errorf("first tracked week produced %d changes, want none", len(changes))
	}
}
