package model

import "time"

// Currency is the only currency the pipeline prices in.
const Currency = "LKR"

// CompCount is the exact number of comparables every price estimate
// carries, regardless of whether they came from the heuristic generator
// or the model.
const CompCount = 3

// Comparable is a synthetic or model-suggested similar property shown to
// justify a price estimate. Display-only; never persisted as ground truth.
type Comparable struct {
	ID           string  `json:"id"`
	Price        float64 `json:"price"`
	PriceLKR     string  `json:"price_lkr"`
	Area         float64 `json:"area"`
	Beds         float64 `json:"beds"`
	Baths        float64 `json:"baths"`
	City         string  `json:"city"`
	PropertyType string  `json:"property_type"`
	PricePerSqft float64 `json:"price_per_sqft"`
	Distance     float64 `json:"distance"` // km
	SoldDate     string  `json:"sold_date"`
}

// PriceEstimate is the Price Engine output.
// Invariants: len(Comps) == CompCount, MarketLow <= EstimatedPrice <= MarketHigh
// on success, Confidence in [0.1, 0.95].
type PriceEstimate struct {
	EstimatedPrice       float64      `json:"estimated_price"`
	PricePerSqft         float64      `json:"price_per_sqft"`
	Confidence           float64      `json:"confidence"`
	FeaturesUsed         []string     `json:"features_used"`
	Comps                []Comparable `json:"comps"`
	Currency             string       `json:"currency"`
	MarketLow            float64      `json:"market_low"`
	MarketHigh           float64      `json:"market_high"`
	MarketRangeRationale string       `json:"market_range_rationale,omitempty"`
	LocationFactor       float64      `json:"location_factor"`
	LocationRationale    string       `json:"location_rationale,omitempty"`
	KeyFactors           []string     `json:"key_factors,omitempty"`
	Error                string       `json:"error,omitempty"`
}

// Provenance is a source-attribution record attached to a derived fact.
// Sanitized before external exposure.
type Provenance struct {
	DocID      string  `json:"doc_id"`
	Source     string  `json:"source"`
	Snippet    string  `json:"snippet"`
	Link       string  `json:"link"`
	Confidence float64 `json:"confidence"`
}

// LocationScore is the Location Engine output. Score is in [0,1] and
// Bullets carries at most 10 short factual lines.
type LocationScore struct {
	Score      float64      `json:"score"`
	Bullets    []string     `json:"bullets"`
	Summary    string       `json:"summary"`
	Provenance []Provenance `json:"provenance"`
	Error      string       `json:"error,omitempty"`
}

// RiskLevel is the aggregate hazard classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskFactor is one hazard contributing to the assessment.
// Severity runs 1 (negligible) to 5 (severe).
type RiskFactor struct {
	Name        string `json:"name"`
	Severity    int    `json:"severity"`
	Description string `json:"description"`
}

// RiskAssessment combines per-hazard factors into an overall level.
// Always computable heuristically; the LLM may only restate it.
type RiskAssessment struct {
	Level   RiskLevel    `json:"level"`
	Factors []RiskFactor `json:"factors"`
	Summary string       `json:"summary"`
}

// Amenity is a nearby point or linear feature with its distance from the
// queried coordinates.
type Amenity struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	DistanceKm float64 `json:"distance_km"`
}

// NearbyAmenities groups amenities by category, each list sorted by
// distance and truncated to at most 10 entries.
type NearbyAmenities struct {
	Categories map[string][]Amenity `json:"categories"`
	RadiusM    int                  `json:"radius_m"`
	Retried    bool                 `json:"retried"`
}

// FacilitySummary is the count-per-category roll-up within a radius.
type FacilitySummary struct {
	Counts  map[string]int `json:"counts"`
	Summary string         `json:"summary"`
}

// Verdict classifies asking price against estimated value.
type Verdict string

const (
	VerdictGoodDeal   Verdict = "Good Deal"
	VerdictFair       Verdict = "Fair"
	VerdictOverpriced Verdict = "Overpriced"
)

// DealVerdict is the Deal Evaluator output.
type DealVerdict struct {
	Verdict    Verdict `json:"verdict"`
	Why        string  `json:"why"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// LandDetails is the best-effort development/investment narrative.
// Free-form fields: the land-analysis contract tolerates text fallback.
type LandDetails struct {
	LandAnalysis         string   `json:"land_analysis"`
	DevelopmentPotential string   `json:"development_potential,omitempty"`
	LandUseOpportunities []string `json:"land_use_opportunities,omitempty"`
	Restrictions         string   `json:"restrictions,omitempty"`
	InvestmentPotential  string   `json:"investment_potential,omitempty"`
	ParsingError         string   `json:"parsing_error,omitempty"`
}

// Entity is a named entity extracted from rationale text.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// RetrievedDoc is a lexical-retrieval hit attached for context.
type RetrievedDoc struct {
	DocID   string  `json:"doc_id"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// AnalysisResult is the envelope the orchestrator assembles once per
// request. Append-only history; never mutated after creation.
type AnalysisResult struct {
	EstimatedPrice       float64          `json:"estimated_price"`
	PricePerSqft         float64          `json:"price_per_sqft,omitempty"`
	Currency             string           `json:"currency"`
	MarketLow            float64          `json:"market_low,omitempty"`
	MarketHigh           float64          `json:"market_high,omitempty"`
	MarketRangeRationale string           `json:"market_range_rationale,omitempty"`
	LocationScore        float64          `json:"location_score"`
	LocationFactor       float64          `json:"location_factor,omitempty"`
	LocationRationale    string           `json:"location_rationale,omitempty"`
	LocationBullets      []string         `json:"location_bullets,omitempty"`
	LocationSummary      string           `json:"location_summary,omitempty"`
	Risk                 *RiskAssessment  `json:"risk,omitempty"`
	DealVerdict          Verdict          `json:"deal_verdict"`
	Why                  string           `json:"why"`
	Confidence           float64          `json:"confidence"`
	Provenance           []Provenance     `json:"provenance"`
	LandDetails          *LandDetails     `json:"land_details,omitempty"`
	LLMExplanation       string           `json:"llm_explanation,omitempty"`
	Entities             []Entity         `json:"entities,omitempty"`
	QuerySummary         string           `json:"query_summary,omitempty"`
	RetrievedContext     []RetrievedDoc   `json:"retrieved_context,omitempty"`
	Error                string           `json:"error,omitempty"`
}

// Plan identifies a subscription tier gating analysis quota.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// PlanLimits maps each plan to its analysis quota.
var PlanLimits = map[Plan]int{
	PlanFree:     5,
	PlanStandard: 50,
	PlanPremium:  500,
}

// User is the quota-bearing account record the request boundary resolves.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Plan         Plan      `json:"plan"`
	AnalysesUsed int       `json:"analyses_used"`
	CreatedAt    time.Time `json:"created_at"`
}

// Remaining returns how many analyses the user has left on their plan.
func (u User) Remaining() int {
	limit := PlanLimits[u.Plan]
	if r := limit - u.AnalysesUsed; r > 0 {
		return r
	}
	return 0
}

// Query is the persisted record of one valuation request.
type Query struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	QueryText string    `json:"query_text"`
	Features  Features  `json:"features"`
	CreatedAt time.Time `json:"created_at"`
}

// Response is the persisted analysis keyed to its query.
type Response struct {
	ID        string         `json:"id"`
	QueryID   string         `json:"query_id"`
	Result    AnalysisResult `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}

// Feedback is a user's thumbs up or down on one analysis response.
// One row per (response, user); resubmitting replaces the rating.
type Feedback struct {
	ID         string    `json:"id"`
	ResponseID string    `json:"response_id"`
	UserID     string    `json:"user_id"`
	IsPositive bool      `json:"is_positive"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryItem is the list-view projection of a past query.
type HistoryItem struct {
	ID          string    `json:"id"`
	QueryText   string    `json:"query_text"`
	CreatedAt   time.Time `json:"created_at"`
	HasResponse bool      `json:"has_response"`
}
