package models

import (
	"encoding/json"
	"time"
)

// ReceiptLine records the consumption of one ingredient within a cook.
type ReceiptLine struct {
	IngredientID   string          `json:"ingredient_id"`
	Name           string          `json:"name"`
	Quantity       float64         `json:"quantity"` // canonical units
	Unit           string          `json:"unit"`
	Lots           []LotAllocation `json:"lots"`
	RemainingAfter float64         `json:"remaining_after"`
}

// ConsumptionReceipt represents one committed cook action. Exactly one row
// exists per (user, idempotency key); replays return this row unchanged.
type ConsumptionReceipt struct {
	ReceiptID          string `gorm:"column:id;primary_key" json:"receipt_id"`
	UserID             string `gorm:"unique_index:ux_user_idem_key" json:"user_id"`
	IdempotencyKey     string `gorm:"unique_index:ux_user_idem_key" json:"idempotency_key"`
	RecipeID           string `json:"recipe_id"`
	ServingsMultiplier float64 `json:"servings_multiplier"`
	LinesJSON          string `gorm:"type:text" json:"-"`
	EconomyJSON        string `gorm:"type:text" json:"-"`
	CommittedAt        time.Time `json:"committed_at"`
	// Transient fields (ignored by GORM)
	Lines   []ReceiptLine    `gorm:"-" json:"lines"`
	Economy *EconomySnapshot `gorm:"-" json:"economy"`
}

// TableName sets the table name for ConsumptionReceipt
func (ConsumptionReceipt) TableName() string {
	return "consumption_receipts"
}

// Hydrate deserializes the stored line and economy payloads into the
// transient fields.
func (r *ConsumptionReceipt) Hydrate() error {
	if r.LinesJSON != "" {
		if err := json.Unmarshal([]byte(r.LinesJSON), &r.Lines); err != nil {
			return err
		}
	}
	if r.EconomyJSON != "" {
		var snap EconomySnapshot
		if err := json.Unmarshal([]byte(r.EconomyJSON), &snap); err != nil {
			return err
		}
		r.Economy = &snap
	}
	return nil
}

// Dehydrate serializes the transient fields for storage.
func (r *ConsumptionReceipt) Dehydrate() error {
	lines, err := json.Marshal(r.Lines)
	if err != nil {
		return err
	}
	r.LinesJSON = string(lines)
	if r.Economy != nil {
		economy, err := json.Marshal(r.Economy)
		if err != nil {
			return err
		}
		r.EconomyJSON = string(economy)
	}
	return nil
}
