package cooking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"fridgechef/internal/catalog"
	"fridgechef/internal/ledger"
	"fridgechef/internal/matching"
	"fridgechef/internal/models"
	"fridgechef/internal/monitoring"
)

var (
	// ErrMissingIdempotencyKey is returned for cook requests without a key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
	// ErrConcurrentModification is surfaced only after internal retries
	// with fresh re-validation have been exhausted.
	ErrConcurrentModification = errors.New("inventory modified concurrently")
)

// maxCommitRetries bounds the internal retry loop on lot conflicts.
const maxCommitRetries = 3

// InsufficientInventoryError reports exactly which required lines are short
// so the client can re-query matches.
type InsufficientInventoryError struct {
	RecipeID string
	Missing  []models.MissingLine
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for recipe %s: %d required lines short", e.RecipeID, len(e.Missing))
}

// CookState represents a cook request's position in its lifecycle.
type CookState string

const (
	StateRequested  CookState = "requested"
	StateValidating CookState = "validating"
	StateAllocating CookState = "allocating"
	StateCommitted  CookState = "committed"
	StateRejected   CookState = "rejected"
)

// Transactor performs the stock deduction for cook actions: idempotency,
// re-validation against the live ledger, FEFO allocation, and an
// all-or-nothing commit.
type Transactor struct {
	db         *gorm.DB
	ledger     *ledger.Ledger
	catalog    catalog.Adapter
	engine     *matching.Engine
	calculator matching.Pricer
	monitor    *monitoring.Collector
}

// NewTransactor creates a consumption transactor.
func NewTransactor(db *gorm.DB, led *ledger.Ledger, cat catalog.Adapter, engine *matching.Engine, calculator matching.Pricer, monitor *monitoring.Collector) *Transactor {
	return &Transactor{
		db:         db,
		ledger:     led,
		catalog:    cat,
		engine:     engine,
		calculator: calculator,
		monitor:    monitor,
	}
}

// Cook commits one cook action. Replaying the same (user, key) returns the
// stored receipt unchanged, regardless of the replay's parameters, and the
// ledger is mutated exactly once.
func (t *Transactor) Cook(ctx context.Context, userID, recipeID string, servingsMultiplier float64, idempotencyKey string) (*models.ConsumptionReceipt, error) {
	start := time.Now()

	if idempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	if servingsMultiplier <= 0 {
		return nil, matching.ErrInvalidServings
	}

	// Fast path: a committed receipt already exists for this key.
	if receipt, err := t.findReceipt(userID, idempotencyKey); err != nil {
		return nil, err
	} else if receipt != nil {
		t.monitor.ObserveCook("replayed", time.Since(start))
		return receipt, nil
	}

	// Recipe resolution happens before the critical section; the catalog
	// is read-only and an unknown or malformed recipe never needs the lock.
	recipe, err := t.catalog.GetRecipe(ctx, recipeID)
	if err != nil {
		t.monitor.ObserveCook("rejected", time.Since(start))
		return nil, err
	}

	release := t.ledger.Acquire(userID)
	defer release()

	// Re-check under the lock: a concurrent request with the same key may
	// have committed while this one waited. Whoever lost the race reads
	// back the winner's receipt.
	if receipt, err := t.findReceipt(userID, idempotencyKey); err != nil {
		return nil, err
	} else if receipt != nil {
		t.monitor.ObserveCook("replayed", time.Since(start))
		return receipt, nil
	}

	receipt, err := t.cookLocked(ctx, userID, recipe, servingsMultiplier, idempotencyKey)
	if err != nil {
		t.monitor.ObserveCook("rejected", time.Since(start))
		return nil, err
	}
	t.monitor.ObserveCook("committed", time.Since(start))
	return receipt, nil
}

// cookLocked runs validate-allocate-commit under the user's critical
// section, retrying with a fresh snapshot when a lot moved underneath
// (an external writer on the same database).
func (t *Transactor) cookLocked(ctx context.Context, userID string, recipe *models.Recipe, servingsMultiplier float64, idempotencyKey string) (*models.ConsumptionReceipt, error) {
	state := StateRequested

	for attempt := 0; attempt <= maxCommitRetries; attempt++ {
		state = StateValidating
		snap, err := t.ledger.Snapshot(userID, time.Now().UTC())
		if err != nil {
			return nil, err
		}

		match, err := t.engine.Match(ctx, snap, recipe, servingsMultiplier)
		if err != nil {
			return nil, err
		}
		if !match.CanCookNow {
			state = StateRejected
			log.Printf("cooking: %s for user %s rejected in state %s: required lines short", recipe.RecipeID, userID, state)
			return nil, &InsufficientInventoryError{
				RecipeID: recipe.RecipeID,
				Missing:  requiredMissing(match),
			}
		}

		state = StateAllocating
		economy, err := t.calculator.Price(ctx, match, snap)
		if err != nil {
			return nil, err
		}

		receipt := buildReceipt(userID, recipe.RecipeID, servingsMultiplier, idempotencyKey, match, snap, economy)
		if err := receipt.Dehydrate(); err != nil {
			return nil, fmt.Errorf("serialize receipt: %w", err)
		}

		err = t.commit(userID, match, receipt)
		if err == nil {
			state = StateCommitted
			log.Printf("cooking: %s for user %s %s, %d lots consumed", recipe.RecipeID, userID, state, countAllocations(match))
			t.monitor.RecordLotsConsumed(countAllocations(match))
			return receipt, nil
		}
		if errors.Is(err, ledger.ErrLotConflict) {
			t.monitor.RecordRetry()
			log.Printf("cooking: lot conflict for user %s on attempt %d, re-validating", userID, attempt+1)
			continue
		}
		if isUniqueViolation(err) {
			// A writer outside this process claimed the key first.
			if existing, ferr := t.findReceipt(userID, idempotencyKey); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	return nil, ErrConcurrentModification
}

// commit applies every allocation and inserts the receipt in one
// transaction. Any failure rolls the whole deduction back.
func (t *Transactor) commit(userID string, match *models.MatchResult, receipt *models.ConsumptionReceipt) error {
	tx := t.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin cook transaction: %w", tx.Error)
	}

	var allocations []models.LotAllocation
	for _, used := range match.Used {
		allocations = append(allocations, used.Allocations...)
	}

	if err := t.ledger.ApplyAllocations(tx, userID, allocations); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Create(receipt).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("insert receipt: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit cook transaction: %w", err)
	}
	return nil
}

// findReceipt loads and hydrates a stored receipt, or nil when none exists.
func (t *Transactor) findReceipt(userID, idempotencyKey string) (*models.ConsumptionReceipt, error) {
	var receipt models.ConsumptionReceipt
	err := t.db.Where("user_id = ? AND idempotency_key = ?", userID, idempotencyKey).First(&receipt).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	if err := receipt.Hydrate(); err != nil {
		return nil, fmt.Errorf("hydrate receipt: %w", err)
	}
	return &receipt, nil
}

// GetReceipt returns the stored receipt for a key.
func (t *Transactor) GetReceipt(userID, idempotencyKey string) (*models.ConsumptionReceipt, error) {
	receipt, err := t.findReceipt(userID, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return receipt, nil
}

func buildReceipt(userID, recipeID string, servingsMultiplier float64, idempotencyKey string, match *models.MatchResult, snap *models.InventorySnapshot, economy *models.EconomySnapshot) *models.ConsumptionReceipt {
	receipt := &models.ConsumptionReceipt{
		ReceiptID:          uuid.NewString(),
		UserID:             userID,
		IdempotencyKey:     idempotencyKey,
		RecipeID:           recipeID,
		ServingsMultiplier: servingsMultiplier,
		Economy:            economy,
		CommittedAt:        time.Now().UTC(),
	}
	for _, used := range match.Used {
		receipt.Lines = append(receipt.Lines, models.ReceiptLine{
			IngredientID:   used.IngredientID,
			Name:           used.Name,
			Quantity:       used.Quantity,
			Unit:           used.Unit,
			Lots:           used.Allocations,
			RemainingAfter: snap.Available(used.IngredientID) - used.Quantity,
		})
	}
	return receipt
}

func requiredMissing(match *models.MatchResult) []models.MissingLine {
	var short []models.MissingLine
	for _, line := range match.Missing {
		if !line.Optional {
			short = append(short, line)
		}
	}
	return short
}

func countAllocations(match *models.MatchResult) int {
	n := 0
	for _, used := range match.Used {
		n += len(used.Allocations)
	}
	return n
}

// isUniqueViolation detects duplicate-key failures from either supported
// driver without binding to driver-specific error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
