package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgechef/internal/models"
)

func snapshotLot(id string, remaining, price float64, daysLeft *int) models.SnapshotLot {
	lot := models.SnapshotLot{
		StockLot: models.StockLot{
			LotID:             id,
			QuantityRemaining: remaining,
			UnitPrice:         price,
			Version:           1,
		},
		DaysToExpiry: daysLeft,
	}
	if daysLeft != nil {
		exp := time.Now().Add(time.Duration(*daysLeft) * 24 * time.Hour)
		lot.ExpiresAt = &exp
	}
	return lot
}

func days(n int) *int { return &n }

func TestPlanAllocationSpansLots(t *testing.T) {
	lots := []models.SnapshotLot{
		snapshotLot("a", 6, 0.30, days(1)),
		snapshotLot("b", 12, 0.25, days(10)),
	}

	plan := PlanAllocation(lots, 8)
	require.Len(t, plan, 2)

	// Earliest expiry drains completely before the later lot is touched.
	assert.Equal(t, "a", plan[0].LotID)
	assert.Equal(t, 6.0, plan[0].Quantity)
	assert.Equal(t, "b", plan[1].LotID)
	assert.Equal(t, 2.0, plan[1].Quantity)
	assert.Equal(t, 8.0, PlannedQuantity(plan))
}

func TestPlanAllocationSingleLot(t *testing.T) {
	lots := []models.SnapshotLot{
		snapshotLot("a", 6, 0.30, days(1)),
		snapshotLot("b", 12, 0.25, days(10)),
	}

	plan := PlanAllocation(lots, 4)
	require.Len(t, plan, 1)
	assert.Equal(t, "a", plan[0].LotID)
	assert.Equal(t, 4.0, plan[0].Quantity)
}

func TestPlanAllocationShortStock(t *testing.T) {
	lots := []models.SnapshotLot{
		snapshotLot("a", 6, 0.30, days(1)),
	}

	plan := PlanAllocation(lots, 10)
	require.Len(t, plan, 1)
	assert.Equal(t, 6.0, PlannedQuantity(plan))
}

func TestPlanAllocationSkipsEmptyLots(t *testing.T) {
	lots := []models.SnapshotLot{
		snapshotLot("empty", 0, 0.30, days(1)),
		snapshotLot("b", 5, 0.25, days(5)),
	}

	plan := PlanAllocation(lots, 3)
	require.Len(t, plan, 1)
	assert.Equal(t, "b", plan[0].LotID)
}
