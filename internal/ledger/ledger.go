package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"fridgechef/internal/models"
	"fridgechef/internal/units"
)

var (
	// ErrLotNotFound is returned when a lot id does not exist for the user.
	ErrLotNotFound = errors.New("stock lot not found")
	// ErrLotConflict is returned when a lot changed between allocation and
	// commit. The transactor retries with a fresh snapshot.
	ErrLotConflict = errors.New("stock lot modified concurrently")
	// ErrInvalidQuantity is returned for non-positive quantities at the
	// write boundary.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// RefSource resolves ingredient definitions. The catalog implements this;
// the ledger only reads refs to normalize quantities and prices once, at
// its write boundary.
type RefSource interface {
	GetIngredient(ctx context.Context, id string) (*models.IngredientRef, error)
}

// Ledger owns the authoritative stock lots per user. All mutations for one
// user are serialized through a per-user mutex; users never block each other.
type Ledger struct {
	db        *gorm.DB
	refs      RefSource
	converter *units.Converter

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewLedger creates a ledger over the given database.
func NewLedger(db *gorm.DB, refs RefSource, converter *units.Converter) *Ledger {
	return &Ledger{
		db:        db,
		refs:      refs,
		converter: converter,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Acquire enters the user's exclusive critical section and returns the
// release function. Held only across validate-allocate-commit, never
// across read-only matching.
func (l *Ledger) Acquire(userID string) func() {
	l.mu.Lock()
	lock, ok := l.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.userLocks[userID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// DB exposes the underlying handle for transactional composition with the
// receipt store.
func (l *Ledger) DB() *gorm.DB {
	return l.db
}

// AddLotInput carries a purchase entry before normalization.
type AddLotInput struct {
	IngredientID string
	Quantity     float64
	Unit         string
	UnitPrice    float64 // per one Unit as entered
	Currency     string
	ExpiresAt    *time.Time
}

// AddLot records a new stock lot for the user. Quantity and unit price are
// normalized to canonical units here; readers never reconcile units again.
// Re-stock always creates a new lot, existing lots are never increased.
func (l *Ledger) AddLot(ctx context.Context, userID string, in AddLotInput) (*models.StockLot, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	ref, err := l.refs.GetIngredient(ctx, in.IngredientID)
	if err != nil {
		return nil, fmt.Errorf("resolve ingredient %s: %w", in.IngredientID, err)
	}

	quantity, err := l.converter.ToCanonical(in.Quantity, in.Unit, ref)
	if err != nil {
		return nil, err
	}
	price, err := l.converter.NormalizeUnitPrice(in.UnitPrice, in.Unit, ref)
	if err != nil {
		return nil, err
	}

	lot := &models.StockLot{
		LotID:             uuid.NewString(),
		UserID:            userID,
		IngredientID:      ref.IngredientID,
		QuantityTotal:     quantity,
		QuantityRemaining: quantity,
		Unit:              ref.Kind.CanonicalUnit(),
		UnitPrice:         price,
		Currency:          in.Currency,
		ArrivedAt:         time.Now().UTC(),
		ExpiresAt:         in.ExpiresAt,
		Version:           1,
	}

	release := l.Acquire(userID)
	defer release()

	if err := l.db.Create(lot).Error; err != nil {
		return nil, fmt.Errorf("create stock lot: %w", err)
	}
	return lot, nil
}

// RemoveLot deletes a lot manually. Part of the serialized mutation set.
func (l *Ledger) RemoveLot(userID, lotID string) error {
	release := l.Acquire(userID)
	defer release()

	res := l.db.Where("id = ? AND user_id = ?", lotID, userID).Delete(&models.StockLot{})
	if res.Error != nil {
		return fmt.Errorf("delete stock lot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLotNotFound
	}
	return nil
}

// Snapshot returns the user's current inventory with derived freshness
// data, lots in FEFO order per ingredient. Read-only; takes no lock.
func (l *Ledger) Snapshot(userID string, now time.Time) (*models.InventorySnapshot, error) {
	var lots []models.StockLot
	err := l.db.
		Where("user_id = ? AND quantity_remaining > 0", userID).
		Order("expires_at IS NULL, expires_at, arrived_at, id").
		Find(&lots).Error
	if err != nil {
		return nil, fmt.Errorf("load stock lots: %w", err)
	}

	snap := &models.InventorySnapshot{
		UserID:  userID,
		TakenAt: now,
		Lots:    make(map[string][]models.SnapshotLot),
	}
	for _, lot := range lots {
		snap.Lots[lot.IngredientID] = append(snap.Lots[lot.IngredientID], models.SnapshotLot{
			StockLot:     lot,
			DaysToExpiry: lot.DaysLeft(now),
			Tier:         lot.Freshness(now),
		})
	}
	return snap, nil
}

// RecentUnitPrice returns the user's most recent purchase price for an
// ingredient, normalized, from any lot including depleted ones.
func (l *Ledger) RecentUnitPrice(userID, ingredientID string) (float64, string, bool) {
	var lot models.StockLot
	err := l.db.
		Where("user_id = ? AND ingredient_id = ?", userID, ingredientID).
		Order("arrived_at DESC").
		First(&lot).Error
	if err != nil {
		return 0, "", false
	}
	return lot.UnitPrice, lot.Currency, true
}

// ApplyAllocations decrements the allocated quantity from each lot inside
// the given transaction. Every update is guarded by the version observed at
// allocation time; any lot that moved since fails the whole transaction
// with ErrLotConflict so no partial deduction can survive.
func (l *Ledger) ApplyAllocations(tx *gorm.DB, userID string, allocations []models.LotAllocation) error {
	for _, alloc := range allocations {
		res := tx.Model(&models.StockLot{}).
			Where("id = ? AND user_id = ? AND version = ? AND quantity_remaining >= ?",
				alloc.LotID, userID, alloc.LotVersion, alloc.Quantity).
			Updates(map[string]interface{}{
				"quantity_remaining": gorm.Expr("quantity_remaining - ?", alloc.Quantity),
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("decrement lot %s: %w", alloc.LotID, res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("lot %s: %w", alloc.LotID, ErrLotConflict)
		}
	}
	return nil
}

// SweepExpired removes the user's fully-expired lots. Runs under the same
// critical section as cooks so a sweep never races a commit.
func (l *Ledger) SweepExpired(userID string, now time.Time) (int, error) {
	release := l.Acquire(userID)
	defer release()

	res := l.db.
		Where("user_id = ? AND expires_at IS NOT NULL AND expires_at <= ?", userID, now).
		Delete(&models.StockLot{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep expired lots: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Users returns the distinct user ids present in the ledger, for sweeping.
func (l *Ledger) Users() ([]string, error) {
	var ids []string
	rows, err := l.db.Model(&models.StockLot{}).Select("DISTINCT user_id").Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
