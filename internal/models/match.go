package models

import "time"

// PriceSource represents where a missing line's unit price came from
type PriceSource string

const (
	// Price resolution order: ledger history, then catalog reference,
	// then the advisory estimator. Unavailable means no source answered.
	PriceSourceLedger      PriceSource = "ledger-average"
	PriceSourceCatalog     PriceSource = "catalog"
	PriceSourceEstimate    PriceSource = "fallback-estimate"
	PriceSourceUnavailable PriceSource = "unavailable"
)

// LotAllocation represents a planned or committed draw from one stock lot.
type LotAllocation struct {
	LotID     string  `json:"lot_id"`
	Quantity  float64 `json:"quantity"` // canonical units
	UnitPrice float64 `json:"unit_price"`
	DaysLeft  *int    `json:"days_left,omitempty"`
	// Version of the lot when the allocation was planned. The commit
	// step refuses to apply the plan against a lot that moved since.
	LotVersion int64 `json:"-"`
}

// Value returns the monetary value of the allocated quantity. BlockSize is
// the quantity the unit price refers to (1000 for mass/volume, 1 for count).
func (a *LotAllocation) Value(blockSize float64) float64 {
	return a.UnitPrice * a.Quantity / blockSize
}

// UsedLine represents the part of a requirement satisfiable from owned stock.
type UsedLine struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Quantity     float64         `json:"quantity"` // canonical units
	Unit         string          `json:"unit"`
	Optional     bool            `json:"optional"`
	Allocations  []LotAllocation `json:"allocations"`
	Value        float64         `json:"value"`
}

// MissingLine represents the part of a requirement not covered by stock.
type MissingLine struct {
	IngredientID string      `json:"ingredient_id"`
	Name         string      `json:"name"`
	Quantity     float64     `json:"quantity"` // canonical units
	Unit         string      `json:"unit"`
	Optional     bool        `json:"optional"`
	UnitPrice    float64     `json:"unit_price"`
	PriceSource  PriceSource `json:"price_source"`
	Cost         float64     `json:"cost"`
}

// MatchResult represents one recipe scored against an inventory snapshot.
// Derived, never persisted.
type MatchResult struct {
	RecipeID     string           `json:"recipe_id"`
	RecipeName   string           `json:"recipe_name"`
	Country      string           `json:"country,omitempty"`
	TimeMinutes  float64          `json:"time_minutes"`
	Coverage     float64          `json:"coverage"`
	Score        float64          `json:"score"`
	CanCookNow   bool             `json:"can_cook_now"`
	Used         []UsedLine       `json:"used"`
	Missing      []MissingLine    `json:"missing"`
	Economy      *EconomySnapshot `json:"economy,omitempty"`
	MissingCount int              `json:"missing_count"`
}

// EconomySnapshot represents the monetary effect of cooking a match.
type EconomySnapshot struct {
	UsedValue       float64 `json:"used_value"`
	CostToComplete  float64 `json:"cost_to_complete"`
	TotalRecipeCost float64 `json:"total_recipe_cost"`
	WasteRiskSaved  float64 `json:"waste_risk_saved"`
	Currency        string  `json:"currency"`
	// EstimateUnavailable marks snapshots where at least one missing
	// line had no resolvable price; such figures undercount the true
	// cost to complete.
	EstimateUnavailable bool      `json:"estimate_unavailable,omitempty"`
	ComputedAt          time.Time `json:"computed_at"`
}
