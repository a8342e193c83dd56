package ledger

import "fridgechef/internal/models"

// PlanAllocation selects lots for the needed quantity, consuming the
// earliest-expiring lot first and spanning lots as required. Lots without
// an expiry come last. The same plan backs both the economy quote and the
// committed deduction, so quoted and charged values can only diverge when
// the inventory itself changed in between.
//
// The input lots must be in snapshot order (expiry ascending, nulls last).
// When stock is short the plan covers what it can; the caller compares the
// planned total against the requirement.
func PlanAllocation(lots []models.SnapshotLot, needed float64) []models.LotAllocation {
	var plan []models.LotAllocation
	remaining := needed

	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		if lot.QuantityRemaining <= 0 {
			continue
		}

		take := lot.QuantityRemaining
		if take > remaining {
			take = remaining
		}

		plan = append(plan, models.LotAllocation{
			LotID:      lot.LotID,
			Quantity:   take,
			UnitPrice:  lot.UnitPrice,
			DaysLeft:   lot.DaysToExpiry,
			LotVersion: lot.Version,
		})
		remaining -= take
	}

	return plan
}

// PlannedQuantity sums the quantity covered by a plan.
func PlannedQuantity(plan []models.LotAllocation) float64 {
	var total float64
	for _, alloc := range plan {
		total += alloc.Quantity
	}
	return total
}
