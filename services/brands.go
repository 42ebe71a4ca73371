package services

import "strings"

// BrandAlias pairs a lowercase substring pattern with the canonical parent
// brand it identifies.
type BrandAlias struct {
	Pattern string
	Brand   string
}

// BrandTable is an ordered alias list. Order matters: more specific
// aliases must come before any alias that is a substring of them, or
// matching becomes ambiguous. First match wins.
type BrandTable []BrandAlias

// DefaultBrandTable returns the Thor Industries family table.
func DefaultBrandTable() BrandTable {
	return BrandTable{
		{"thor motor coach", "Thor Motor Coach"},
		{"thor", "Thor Motor Coach"},
		{"jayco", "Jayco"},
		{"airstream", "Airstream"},
		{"tiffin motorhomes", "Tiffin Motorhomes"},
		{"tiffin", "Tiffin Motorhomes"},
		{"entegra coach", "Entegra Coach"},
		{"entegra", "Entegra Coach"},
		{"heartland", "Heartland RV"},
		{"cruiser", "Cruiser RV"},
		{"keystone", "Keystone RV"},
		{"dutchmen", "Dutchmen RV"},
	}
}

// Classify maps a free-text manufacturer name to its canonical parent
// brand, or "" when the make is not in the family.
func (t BrandTable) Classify(make string) string {
	if make == "" {
		return ""
	}
	needle := strings.ToLower(strings.TrimSpace(make))
	if needle == "" {
		return ""
	}
	for _, alias := range t {
		if strings.Contains(needle, alias.Pattern) {
			return alias.Brand
		}
	}
	return ""
}

// RegionTable maps two-letter state codes to sales regions.
type RegionTable map[string]string

// DefaultRegionTable returns the US state → region mapping.
func DefaultRegionTable() RegionTable {
	return RegionTable{
		"IL": "Midwest", "IN": "Midwest", "MI": "Midwest", "OH": "Midwest",
		"WI": "Midwest", "MN": "Midwest", "IA": "Midwest", "MO": "Midwest",
		"ND": "Midwest", "SD": "Midwest", "NE": "Midwest", "KS": "Midwest",
		"FL": "Southeast", "GA": "Southeast", "SC": "Southeast", "NC": "Southeast",
		"AL": "Southeast", "MS": "Southeast", "TN": "Southeast", "KY": "Southeast",
		"VA": "Southeast", "WV": "Southeast",
		"NY": "Northeast", "PA": "Northeast", "NJ": "Northeast", "CT": "Northeast",
		"MA": "Northeast", "RI": "Northeast", "VT": "Northeast", "NH": "Northeast",
		"ME": "Northeast", "MD": "Northeast", "DE": "Northeast", "DC": "Northeast",
		"TX": "Southwest", "AZ": "Southwest", "NM": "Southwest", "OK": "Southwest",
		"AR": "Southwest", "LA": "Southwest",
		"CA": "West", "NV": "West", "OR": "West", "WA": "West", "HI": "West", "AK": "West",
		"CO": "Mountain", "UT": "Mountain", "WY": "Mountain", "MT": "Mountain", "ID": "Mountain",
	}
}

// Region returns the region for a state code, or "Unknown" for anything
// unmapped. It never fails.
func (t RegionTable) Region(state string) string {
	if r, ok := t[state]; ok {
		return r
	}
	return "Unknown"
}
