package models

import (
	"math"
	"time"
)

// FreshnessTier represents how close a stock lot is to expiring
type FreshnessTier string

const (
	// Freshness tiers, derived from days left at read time
	TierFresh   FreshnessTier = "fresh"
	TierWarning FreshnessTier = "warning"
	TierDanger  FreshnessTier = "danger"
)

// StockLot represents one purchased batch of an ingredient owned by a user.
// Quantities and unit prices are stored normalized: QuantityTotal and
// QuantityRemaining in canonical units, UnitPrice per BlockSize canonical
// units. Normalization happens once, at the ledger's write boundary.
type StockLot struct {
	LotID             string     `gorm:"column:id;primary_key" json:"lot_id"`
	UserID            string     `gorm:"index" json:"user_id"`
	IngredientID      string     `gorm:"index" json:"ingredient_id"`
	QuantityTotal     float64    `json:"quantity_total"`
	QuantityRemaining float64    `json:"quantity_remaining"`
	Unit              string     `json:"unit"` // canonical unit symbol
	UnitPrice         float64    `json:"unit_price"`
	Currency          string     `json:"currency"`
	ArrivedAt         time.Time  `json:"arrived_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	// Version increments on every mutation; the transactor uses it to
	// detect writes that slipped in between allocation and commit.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName sets the table name for StockLot
func (StockLot) TableName() string {
	return "stock_lots"
}

// DaysLeft returns the number of whole days until the lot expires at the
// given instant, or nil when the lot has no expiry. Already-expired lots
// report negative values.
func (l *StockLot) DaysLeft(now time.Time) *int {
	if l.ExpiresAt == nil {
		return nil
	}
	days := int(math.Floor(l.ExpiresAt.Sub(now).Hours() / 24))
	return &days
}

// Freshness derives the freshness tier from the lot's expiry at the given
// instant. Lots without an expiry are always fresh.
func (l *StockLot) Freshness(now time.Time) FreshnessTier {
	days := l.DaysLeft(now)
	switch {
	case days == nil:
		return TierFresh
	case *days <= 1:
		return TierDanger
	case *days <= 3:
		return TierWarning
	default:
		return TierFresh
	}
}

// Expired reports whether the lot is past its expiry at the given instant.
func (l *StockLot) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// SnapshotLot is a StockLot annotated with derived freshness data.
// Never persisted, always recomputed at read time.
type SnapshotLot struct {
	StockLot
	DaysToExpiry *int          `json:"days_left"`
	Tier         FreshnessTier `json:"freshness_tier"`
}

// InventorySnapshot is the point-in-time view of one user's stock,
// grouped by ingredient.
type InventorySnapshot struct {
	UserID  string                   `json:"user_id"`
	TakenAt time.Time                `json:"taken_at"`
	Lots    map[string][]SnapshotLot `json:"lots"` // ingredientID -> lots, FEFO order
}

// Available returns the total remaining quantity for an ingredient in
// canonical units.
func (s *InventorySnapshot) Available(ingredientID string) float64 {
	var total float64
	for _, lot := range s.Lots[ingredientID] {
		total += lot.QuantityRemaining
	}
	return total
}
