package economy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgechef/internal/catalog"
	"fridgechef/internal/models"
	"fridgechef/internal/pricing"
)

type fakePrices struct {
	prices map[string]float64
}

func (f *fakePrices) RecentUnitPrice(_, ingredientID string) (float64, string, bool) {
	if p, ok := f.prices[ingredientID]; ok {
		return p, "EUR", true
	}
	return 0, "", false
}

type fakeCatalog struct {
	ingredients map[string]*models.IngredientRef
}

func (f *fakeCatalog) GetRecipe(_ context.Context, id string) (*models.Recipe, error) {
	return nil, catalog.ErrRecipeNotFound
}

func (f *fakeCatalog) ListRecipes(_ context.Context) ([]models.Recipe, error) {
	return nil, nil
}

func (f *fakeCatalog) GetIngredient(_ context.Context, id string) (*models.IngredientRef, error) {
	if ref, ok := f.ingredients[id]; ok {
		return ref, nil
	}
	return nil, catalog.ErrIngredientNotFound
}

func (f *fakeCatalog) MarkMalformed(id, reason string) {}

type fixedEstimator struct {
	price float64
}

func (e fixedEstimator) EstimateUnitPrice(_ context.Context, _ *models.IngredientRef) (pricing.Estimate, bool) {
	if e.price <= 0 {
		return pricing.Estimate{}, false
	}
	return pricing.Estimate{Price: e.price, Currency: "EUR"}, true
}

func days(n int) *int { return &n }

func emptySnap() *models.InventorySnapshot {
	return &models.InventorySnapshot{UserID: "u1", TakenAt: time.Now().UTC()}
}

func TestUrgency(t *testing.T) {
	assert.Equal(t, 0.0, Urgency(nil))
	assert.Equal(t, UrgencyDangerWeight, Urgency(days(0)))
	assert.Equal(t, UrgencyDangerWeight, Urgency(days(1)))
	assert.Equal(t, UrgencyWarningWeight, Urgency(days(2)))
	assert.Equal(t, UrgencyWarningWeight, Urgency(days(3)))
	assert.Equal(t, UrgencyBaseWeight, Urgency(days(4)))
	assert.Equal(t, UrgencyBaseWeight, Urgency(days(30)))
}

func TestPriceUsedValueAndWasteRisk(t *testing.T) {
	calc := NewCalculator(&fakePrices{}, &fakeCatalog{}, pricing.Disabled{}, "EUR")

	// 6 eggs from a lot expiring tomorrow plus 2 from a fresh one.
	match := &models.MatchResult{
		Used: []models.UsedLine{{
			IngredientID: "egg",
			Quantity:     8,
			Unit:         "pc",
			Value:        2.30,
			Allocations: []models.LotAllocation{
				{LotID: "a", Quantity: 6, UnitPrice: 0.30, DaysLeft: days(1)},
				{LotID: "b", Quantity: 2, UnitPrice: 0.25, DaysLeft: days(10)},
			},
		}},
	}

	eco, err := calc.Price(context.Background(), match, emptySnap())
	require.NoError(t, err)

	assert.InDelta(t, 2.30, eco.UsedValue, 1e-9)
	// 1.80 x 1.0 urgency + 0.50 x 0.1 urgency
	assert.InDelta(t, 1.85, eco.WasteRiskSaved, 1e-9)
	assert.InDelta(t, 2.30, eco.TotalRecipeCost, 1e-9)
	assert.Zero(t, eco.CostToComplete)
	assert.False(t, eco.EstimateUnavailable)
	assert.Equal(t, "EUR", eco.Currency)
}

func TestPriceResolutionOrder(t *testing.T) {
	ledger := &fakePrices{prices: map[string]float64{"milk": 1.10}}
	cat := &fakeCatalog{ingredients: map[string]*models.IngredientRef{
		"milk":    {IngredientID: "milk", Kind: models.KindVolume, ReferencePrice: 1.50, ReferenceCurrency: "EUR"},
		"flour":   {IngredientID: "flour", Kind: models.KindMass, ReferencePrice: 0.90, ReferenceCurrency: "EUR"},
		"saffron": {IngredientID: "saffron", Kind: models.KindMass},
	}}
	calc := NewCalculator(ledger, cat, fixedEstimator{price: 8000}, "EUR")

	match := &models.MatchResult{
		Missing: []models.MissingLine{
			{IngredientID: "milk", Quantity: 500, Unit: "ml"},
			{IngredientID: "flour", Quantity: 200, Unit: "g"},
			{IngredientID: "saffron", Quantity: 1, Unit: "g"},
		},
	}

	eco, err := calc.Price(context.Background(), match, emptySnap())
	require.NoError(t, err)

	// Ledger history beats the catalog reference.
	assert.Equal(t, models.PriceSourceLedger, match.Missing[0].PriceSource)
	assert.InDelta(t, 0.55, match.Missing[0].Cost, 1e-9)

	// No history: catalog reference price.
	assert.Equal(t, models.PriceSourceCatalog, match.Missing[1].PriceSource)
	assert.InDelta(t, 0.18, match.Missing[1].Cost, 1e-9)

	// Neither: the advisory estimator.
	assert.Equal(t, models.PriceSourceEstimate, match.Missing[2].PriceSource)
	assert.InDelta(t, 8.00, match.Missing[2].Cost, 1e-9)

	assert.InDelta(t, 0.55+0.18+8.00, eco.CostToComplete, 1e-9)
	assert.False(t, eco.EstimateUnavailable)
}

func TestPriceUnavailableDegrades(t *testing.T) {
	cat := &fakeCatalog{ingredients: map[string]*models.IngredientRef{
		"saffron": {IngredientID: "saffron", Kind: models.KindMass},
	}}
	calc := NewCalculator(&fakePrices{}, cat, pricing.Disabled{}, "EUR")

	match := &models.MatchResult{
		Missing: []models.MissingLine{
			{IngredientID: "saffron", Quantity: 1, Unit: "g"},
			{Name: "dragon fruit", Quantity: 2, Unit: "pc", PriceSource: models.PriceSourceUnavailable},
		},
	}

	eco, err := calc.Price(context.Background(), match, emptySnap())
	require.NoError(t, err)

	// Misses never fail the snapshot; they flag it and undercount.
	assert.True(t, eco.EstimateUnavailable)
	assert.Zero(t, eco.CostToComplete)
	assert.Equal(t, models.PriceSourceUnavailable, match.Missing[0].PriceSource)
}

func TestPriceConservation(t *testing.T) {
	ledger := &fakePrices{prices: map[string]float64{"milk": 1.00}}
	cat := &fakeCatalog{ingredients: map[string]*models.IngredientRef{
		"milk": {IngredientID: "milk", Kind: models.KindVolume},
	}}
	calc := NewCalculator(ledger, cat, pricing.Disabled{}, "EUR")

	match := &models.MatchResult{
		Used: []models.UsedLine{{
			IngredientID: "egg",
			Quantity:     6,
			Unit:         "pc",
			Value:        1.80,
			Allocations: []models.LotAllocation{
				{LotID: "a", Quantity: 6, UnitPrice: 0.30, DaysLeft: days(5)},
			},
		}},
		Missing: []models.MissingLine{
			{IngredientID: "milk", Quantity: 250, Unit: "ml"},
		},
	}

	eco, err := calc.Price(context.Background(), match, emptySnap())
	require.NoError(t, err)
	assert.InDelta(t, eco.UsedValue+eco.CostToComplete, eco.TotalRecipeCost, 1e-9)
}
