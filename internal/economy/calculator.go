package economy

import (
	"context"
	"errors"
	"time"

	"fridgechef/internal/catalog"
	"fridgechef/internal/models"
	"fridgechef/internal/pricing"
	"fridgechef/internal/units"
)

// Urgency tuning. The day thresholds mirror the freshness tiers shown to
// users; the weights are tunable constants, not fixed law.
const (
	UrgencyDangerDays  = 1
	UrgencyWarningDays = 3

	UrgencyDangerWeight  = 1.0
	UrgencyWarningWeight = 0.5
	UrgencyBaseWeight    = 0.1
)

// LedgerPrices exposes the ledger's purchase-price history.
type LedgerPrices interface {
	RecentUnitPrice(userID, ingredientID string) (float64, string, bool)
}

// Calculator turns a match result into monetary figures. Used-stock values
// come from the FEFO allocations embedded in the match, so the quote equals
// what a commit against the same inventory would charge.
type Calculator struct {
	ledger   LedgerPrices
	catalog  catalog.Adapter
	fallback pricing.Estimator
	currency string
}

// NewCalculator creates an economy calculator.
func NewCalculator(ledger LedgerPrices, cat catalog.Adapter, fallback pricing.Estimator, currency string) *Calculator {
	if fallback == nil {
		fallback = pricing.Disabled{}
	}
	return &Calculator{ledger: ledger, catalog: cat, fallback: fallback, currency: currency}
}

// Urgency returns the spoilage-urgency weight for a lot's days left.
// No expiry means no waste risk at all.
func Urgency(daysLeft *int) float64 {
	switch {
	case daysLeft == nil:
		return 0
	case *daysLeft <= UrgencyDangerDays:
		return UrgencyDangerWeight
	case *daysLeft <= UrgencyWarningDays:
		return UrgencyWarningWeight
	default:
		return UrgencyBaseWeight
	}
}

// Price computes the economy snapshot for a match and resolves missing-line
// prices in place: ledger history first, then the catalog reference, then
// the advisory estimator, else unavailable. Fallback misses degrade the
// snapshot, they never fail it.
func (c *Calculator) Price(ctx context.Context, match *models.MatchResult, snap *models.InventorySnapshot) (*models.EconomySnapshot, error) {
	eco := &models.EconomySnapshot{
		Currency:   c.currency,
		ComputedAt: time.Now().UTC(),
	}

	for i := range match.Used {
		used := &match.Used[i]
		kind := models.KindOfCanonicalUnit(used.Unit)
		eco.UsedValue += used.Value
		for _, alloc := range used.Allocations {
			eco.WasteRiskSaved += alloc.Value(kind.BlockSize()) * Urgency(alloc.DaysLeft)
		}
	}

	for i := range match.Missing {
		missing := &match.Missing[i]
		if missing.PriceSource == models.PriceSourceUnavailable {
			eco.EstimateUnavailable = true
			continue
		}

		price, source, ok := c.resolvePrice(ctx, snap.UserID, missing.IngredientID)
		missing.PriceSource = source
		if !ok {
			eco.EstimateUnavailable = true
			continue
		}

		kind := models.KindOfCanonicalUnit(missing.Unit)
		missing.UnitPrice = price
		missing.Cost = units.Value(missing.Quantity, price, kind)
		eco.CostToComplete += missing.Cost
	}

	eco.TotalRecipeCost = eco.UsedValue + eco.CostToComplete
	return eco, nil
}

// resolvePrice walks the resolution order for one missing ingredient.
func (c *Calculator) resolvePrice(ctx context.Context, userID, ingredientID string) (float64, models.PriceSource, bool) {
	if price, _, ok := c.ledger.RecentUnitPrice(userID, ingredientID); ok {
		return price, models.PriceSourceLedger, true
	}

	ref, err := c.catalog.GetIngredient(ctx, ingredientID)
	if err != nil {
		if !errors.Is(err, catalog.ErrIngredientNotFound) {
			// Catalog trouble for a price lookup degrades like a
			// fallback miss; availability was already settled by
			// the matching step.
			return 0, models.PriceSourceUnavailable, false
		}
		return 0, models.PriceSourceUnavailable, false
	}
	if ref.HasReferencePrice() {
		return ref.ReferencePrice, models.PriceSourceCatalog, true
	}

	if est, ok := c.fallback.EstimateUnitPrice(ctx, ref); ok {
		return est.Price, models.PriceSourceEstimate, true
	}
	return 0, models.PriceSourceUnavailable, false
}
