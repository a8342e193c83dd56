package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgechef/internal/database"
	"fridgechef/internal/models"
	"fridgechef/internal/units"
)

type fakeRefs struct {
	refs map[string]*models.IngredientRef
}

func (f *fakeRefs) GetIngredient(_ context.Context, id string) (*models.IngredientRef, error) {
	if ref, ok := f.refs[id]; ok {
		return ref, nil
	}
	return nil, errors.New("unknown ingredient")
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	refs := &fakeRefs{refs: map[string]*models.IngredientRef{
		"egg":   {IngredientID: "egg", Name: "Egg", Kind: models.KindCount},
		"flour": {IngredientID: "flour", Name: "Flour", Kind: models.KindMass},
		"milk":  {IngredientID: "milk", Name: "Milk", Kind: models.KindVolume, DensityGramsPerML: 1.03},
	}}
	return NewLedger(db, refs, units.NewConverter())
}

func TestAddLotNormalizesAtWriteBoundary(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	lot, err := led.AddLot(ctx, "u1", AddLotInput{
		IngredientID: "flour",
		Quantity:     2,
		Unit:         "kg",
		UnitPrice:    0.90, // per kg
		Currency:     "EUR",
	})
	require.NoError(t, err)

	assert.Equal(t, 2000.0, lot.QuantityTotal)
	assert.Equal(t, 2000.0, lot.QuantityRemaining)
	assert.Equal(t, "g", lot.Unit)
	// Price is stored per 1000 g block, so a per-kg price is unchanged.
	assert.InDelta(t, 0.90, lot.UnitPrice, 1e-9)
	assert.Equal(t, int64(1), lot.Version)
	assert.NotEmpty(t, lot.LotID)
}

func TestAddLotRejectsNonPositiveQuantity(t *testing.T) {
	led := newTestLedger(t)

	_, err := led.AddLot(context.Background(), "u1", AddLotInput{
		IngredientID: "egg",
		Quantity:     0,
		Unit:         "pc",
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSnapshotFEFOOrder(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	far := now.Add(10 * 24 * time.Hour)
	near := now.Add(1 * 24 * time.Hour)

	// Inserted out of order on purpose.
	b, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 12, Unit: "pc", UnitPrice: 0.25, Currency: "EUR", ExpiresAt: &far})
	require.NoError(t, err)
	open, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 4, Unit: "pc", UnitPrice: 0.28, Currency: "EUR"})
	require.NoError(t, err)
	a, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 6, Unit: "pc", UnitPrice: 0.30, Currency: "EUR", ExpiresAt: &near})
	require.NoError(t, err)

	snap, err := led.Snapshot("u1", now)
	require.NoError(t, err)

	lots := snap.Lots["egg"]
	require.Len(t, lots, 3)
	assert.Equal(t, a.LotID, lots[0].LotID)
	assert.Equal(t, b.LotID, lots[1].LotID)
	// No-expiry lots sort after every dated lot.
	assert.Equal(t, open.LotID, lots[2].LotID)

	require.NotNil(t, lots[0].DaysToExpiry)
	assert.Equal(t, 1, *lots[0].DaysToExpiry)
	assert.Nil(t, lots[2].DaysToExpiry)
	assert.Equal(t, 22.0, snap.Available("egg"))
}

func TestSnapshotExcludesDepletedLots(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	lot, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 6, Unit: "pc", UnitPrice: 0.30, Currency: "EUR"})
	require.NoError(t, err)

	err = led.ApplyAllocations(led.DB(), "u1", []models.LotAllocation{
		{LotID: lot.LotID, Quantity: 6, LotVersion: 1},
	})
	require.NoError(t, err)

	snap, err := led.Snapshot("u1", time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, snap.Lots["egg"])
	assert.Equal(t, 0.0, snap.Available("egg"))
}

func TestApplyAllocationsVersionConflict(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	lot, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 6, Unit: "pc", UnitPrice: 0.30, Currency: "EUR"})
	require.NoError(t, err)

	// First deduction bumps the version.
	err = led.ApplyAllocations(led.DB(), "u1", []models.LotAllocation{
		{LotID: lot.LotID, Quantity: 2, LotVersion: 1},
	})
	require.NoError(t, err)

	// A plan built against the stale version must fail, not deduct.
	err = led.ApplyAllocations(led.DB(), "u1", []models.LotAllocation{
		{LotID: lot.LotID, Quantity: 2, LotVersion: 1},
	})
	assert.ErrorIs(t, err, ErrLotConflict)

	snap, err := led.Snapshot("u1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 4.0, snap.Available("egg"))
}

func TestApplyAllocationsRejectsOverdraw(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	lot, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 3, Unit: "pc", UnitPrice: 0.30, Currency: "EUR"})
	require.NoError(t, err)

	err = led.ApplyAllocations(led.DB(), "u1", []models.LotAllocation{
		{LotID: lot.LotID, Quantity: 5, LotVersion: 1},
	})
	assert.ErrorIs(t, err, ErrLotConflict)
}

func TestRemoveLot(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	lot, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 6, Unit: "pc", UnitPrice: 0.30, Currency: "EUR"})
	require.NoError(t, err)

	// Another user cannot remove it.
	assert.ErrorIs(t, led.RemoveLot("u2", lot.LotID), ErrLotNotFound)

	require.NoError(t, led.RemoveLot("u1", lot.LotID))
	assert.ErrorIs(t, led.RemoveLot("u1", lot.LotID), ErrLotNotFound)
}

func TestRecentUnitPrice(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	_, _, ok := led.RecentUnitPrice("u1", "egg")
	assert.False(t, ok)

	first, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 6, Unit: "pc", UnitPrice: 0.30, Currency: "EUR"})
	require.NoError(t, err)
	// Arrival times must differ for recency ordering.
	require.NoError(t, led.DB().Model(&models.StockLot{}).
		Where("id = ?", first.LotID).
		Update("arrived_at", time.Now().UTC().Add(-time.Hour)).Error)

	latest, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 12, Unit: "pc", UnitPrice: 0.25, Currency: "EUR"})
	require.NoError(t, err)

	// Deplete the latest lot; its price still counts.
	err = led.ApplyAllocations(led.DB(), "u1", []models.LotAllocation{
		{LotID: latest.LotID, Quantity: 12, LotVersion: 1},
	})
	require.NoError(t, err)

	price, currency, ok := led.RecentUnitPrice("u1", "egg")
	require.True(t, ok)
	assert.InDelta(t, 0.25, price, 1e-9)
	assert.Equal(t, "EUR", currency)
}

func TestSweepExpired(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	_, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 6, Unit: "pc", UnitPrice: 0.30, Currency: "EUR", ExpiresAt: &past})
	require.NoError(t, err)
	keep, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 12, Unit: "pc", UnitPrice: 0.25, Currency: "EUR", ExpiresAt: &future})
	require.NoError(t, err)
	_, err = led.AddLot(ctx, "u1", AddLotInput{IngredientID: "flour", Quantity: 1, Unit: "kg", UnitPrice: 0.90, Currency: "EUR"})
	require.NoError(t, err)

	removed, err := led.SweepExpired("u1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	snap, err := led.Snapshot("u1", now)
	require.NoError(t, err)
	require.Len(t, snap.Lots["egg"], 1)
	assert.Equal(t, keep.LotID, snap.Lots["egg"][0].LotID)
	assert.Len(t, snap.Lots["flour"], 1)
}

func TestUsers(t *testing.T) {
	led := newTestLedger(t)
	ctx := context.Background()

	_, err := led.AddLot(ctx, "u1", AddLotInput{IngredientID: "egg", Quantity: 6, Unit: "pc", UnitPrice: 0.30, Currency: "EUR"})
	require.NoError(t, err)
	_, err = led.AddLot(ctx, "u2", AddLotInput{IngredientID: "egg", Quantity: 6, Unit: "pc", UnitPrice: 0.30, Currency: "EUR"})
	require.NoError(t, err)

	users, err := led.Users()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, users)
}
