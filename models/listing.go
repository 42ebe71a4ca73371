package models

// RawListing is one flattened search-API record before any typing.
// Values come straight from the marketplace JSON and may be strings,
// numbers, booleans or nil depending on which backend served the request.
type RawListing map[string]any

// Tier is a listing's paid placement category.
type Tier string

const (
	TierStandard   Tier = "standard"
	TierPremium    Tier = "premium"
	TierTopPremium Tier = "top_premium"
)

// SpaceKey identifies one coherent rank space. Ranks from different keys
// are never comparable and must not share a ceiling computation.
type SpaceKey struct {
	Zip       string
	Type      string
	Condition string
}

// Listing is the canonical, typed record produced by the normalizer.
// Pointer fields distinguish "absent" from zero.
type Listing struct {
	// Search context
	Rank            *int
	SearchZip       string
	SearchType      string
	SearchCondition string

	// Identity
	ID          string
	StockNumber string
	VIN         string

	// Vehicle
	Year      *int
	Make      string
	Model     string
	Trim      string
	Class     string
	Condition string
	Length    *float64
	Mileage   *int

	// Commercial
	Price *float64
	MSRP  *float64

	// Placement
	IsPremium    bool
	IsTopPremium bool

	// Media
	PhotoCount  int
	FloorplanID string
	ListingURL  string
	CreateDate  string

	// Marketplace scoring
	RelevanceScore *float64
	MerchScore     *float64

	// Location
	City  string
	State string

	// Dealer
	DealerID    string
	DealerName  string
	DealerGroup string
	DealerPhone string

	// Derived quality flags
	HasPrice     bool
	HasVIN       bool
	HasFloorplan bool
	HasLength    bool

	// Engagement (merged from the stats endpoints; nil when unavailable)
	Views      *int
	Saves      *int
	FetchError string

	// Derived classification
	ThorBrand string // canonical parent brand, "" when not a Thor make
	Region    string

	// Filled by the analyzer
	Analysis *Analysis
}

// Space returns the rank-space key this listing belongs to.
func (l *Listing) Space() SpaceKey {
	return SpaceKey{Zip: l.SearchZip, Type: l.SearchType, Condition: l.SearchCondition}
}

// TierCeilings holds the best achievable rank per tier for one rank space.
type TierCeilings struct {
	TopPremium int
	Premium    int
	Standard   int
}

// For returns the ceiling for the given tier.
func (c TierCeilings) For(t Tier) int {
	switch t {
	case TierTopPremium:
		return c.TopPremium
	case TierPremium:
		return c.Premium
	default:
		return c.Standard
	}
}

// ImprovementAction is one recommended fix with its point values.
// Note actions (the year penalty) are display-only and contribute no
// relevance to the rank projection.
type ImprovementAction struct {
	Key           string
	Action        string
	RelevancePts  int
	MerchPts      int
	RankGain      int
	Note          bool
	PriorityScore float64
}

// Analysis holds every field the ranking engine computes for one listing.
type Analysis struct {
	Tier                Tier
	TierCeiling         int
	OutperformingTier   bool
	AtTierCeiling       bool
	PremiumRecommended  bool
	CompetitivePosition string

	Improvements         []ImprovementAction
	TotalRelevance       int
	TotalMerch           int
	UnconstrainedGain    int
	RealisticNewRank     int
	RealisticImprovement int

	EstimatedMerchScore int
	QualityTier         string
	PriceVsMSRP         *float64
}

// QuickWins counts listings in a group missing each quality field.
type QuickWins struct {
	MissingPrice     int
	MissingVIN       int
	MissingFloorplan int
	MissingLength    int
	MissingPhotos35  int
}

// GroupMetrics is the rolled-up view of a set of listings (per dealer,
// brand or region).
type GroupMetrics struct {
	Count        int
	AvgRank      float64
	BestRank     int
	WorstRank    int
	AvgPhotos    float64
	PremiumCount int

	PctPremium   float64
	PctPrice     float64
	PctVIN       float64
	PctFloorplan float64
	PctLength    float64
	PctPhotos35  float64

	QualityScore  float64
	QuickWins     QuickWins
	TotalRankGain int

	AvgViews float64
	AvgSaves float64

	Score        float64
	Grade        string
	GradeColor   string
	RankVsMarket float64
}

// DealerSummary pairs a dealer's metrics with its best improvement targets.
type DealerSummary struct {
	DealerID    string
	DealerName  string
	DealerGroup string
	Brand       string
	City        string
	State       string
	Region      string

	Metrics          GroupMetrics
	TopOpportunities []*Listing
}
