package services

import "testing"

func TestBrandClassify(t *testing.T) {
	table := DefaultBrandTable()

	tests := []struct {
		make string
		want string
	}{
		{"Thor Motor Coach", "Thor Motor Coach"},
		{"THOR", "Thor Motor Coach"},
		{"  thor motor coach  ", "Thor Motor Coach"},
		{"Jayco", "Jayco"},
		{"Jayco Inc.", "Jayco"},
		{"Airstream", "Airstream"},
		{"Tiffin Motorhomes", "Tiffin Motorhomes"},
		{"Tiffin", "Tiffin Motorhomes"},
		{"Entegra Coach", "Entegra Coach"},
		{"Heartland", "Heartland RV"},
		{"Keystone", "Keystone RV"},
		{"Forest River", ""},
		{"Winnebago", ""},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := table.Classify(tt.make); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.make, got, tt.want)
		}
	}
}

// Specific aliases must sit before their substrings, or a plain "thor"
// entry would shadow them. Guard the ordering itself.
func TestBrandTableOrdering(t *testing.T) {
	table := DefaultBrandTable()

	seen := make(map[string]int)
	for i, alias := range table {
		seen[alias.Pattern] = i
	}

	pairs := [][2]string{
		{"thor motor coach", "thor"},
		{"tiffin motorhomes", "tiffin"},
		{"entegra coach", "entegra"},
	}
	for _, p := range pairs {
		specific, ok1 := seen[p[0]]
		general, ok2 := seen[p[1]]
		if !ok1 || !ok2 {
			t.Fatalf("table missing alias pair %q / %q", p[0], p[1])
		}
		if specific > general {
			t.Errorf("alias %q listed after %q; specific patterns must come first", p[0], p[1])
		}
	}
}

func TestRegion(t *testing.T) {
	table := DefaultRegionTable()

	tests := []struct {
		state string
		want  string
	}{
		{"IL", "Midwest"},
		{"FL", "Southeast"},
		{"NY", "Northeast"},
		{"TX", "Southwest"},
		{"CA", "West"},
		{"CO", "Mountain"},
		{"ZZ", "Unknown"},
		{"", "Unknown"},
	}

	for _, tt := range tests {
		if got := table.Region(tt.state); got != tt.want {
			t.Errorf("Region(%q) = %q, want %q", tt.state, got, tt.want)
		}
	}
}
