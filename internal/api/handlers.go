package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	"fridgechef/internal/catalog"
	"fridgechef/internal/cooking"
	"fridgechef/internal/ledger"
	"fridgechef/internal/matching"
	"fridgechef/internal/stream"
)

// Matching handlers

// MatchRecipes computes ranked matches for the caller's current inventory.
func (s *Server) MatchRecipes(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	filters, ok := parseFilters(c)
	if !ok {
		return
	}

	snap, err := s.ledger.Snapshot(uid, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	recipes, err := s.catalog.ListRecipes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "recipe catalog unavailable"})
		return
	}

	start := time.Now()
	results, err := s.engine.MatchAll(c.Request.Context(), snap, recipes, filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.monitor.ObserveMatch("batch", time.Since(start))

	c.JSON(http.StatusOK, gin.H{"count": len(results), "recipes": results})
}

func parseFilters(c *gin.Context) (matching.Filters, bool) {
	filters := matching.Filters{
		ServingsMultiplier: 1,
		Sort:               matching.SortByScore,
		Descending:         true,
	}

	if v := c.Query("servings"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "servings must be a positive number"})
			return filters, false
		}
		filters.ServingsMultiplier = f
	}
	if v := c.Query("min_coverage"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_coverage"})
			return filters, false
		}
		filters.MinCoverage = &f
	}
	if v := c.Query("max_missing_cost"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_missing_cost"})
			return filters, false
		}
		filters.MaxMissingCost = &f
	}
	if v := c.Query("max_time_minutes"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_time_minutes"})
			return filters, false
		}
		filters.MaxTimeMinutes = &f
	}
	if v := c.Query("countries"); v != "" {
		filters.Countries = strings.Split(v, ",")
	}
	switch c.DefaultQuery("sort", string(matching.SortByScore)) {
	case string(matching.SortByScore):
		filters.Sort = matching.SortByScore
	case string(matching.SortByCoverage):
		filters.Sort = matching.SortByCoverage
	case string(matching.SortByTime):
		filters.Sort = matching.SortByTime
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be score, coverage, or time"})
		return filters, false
	}
	switch c.DefaultQuery("order", "desc") {
	case "desc":
		filters.Descending = true
	case "asc":
		filters.Descending = false
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "order must be asc or desc"})
		return filters, false
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return filters, false
		}
		filters.Limit = n
	}

	return filters, true
}

// Cook handlers

// CookRequest is the cook action payload. The idempotency key is
// client-generated, unique per intended cook attempt.
type CookRequest struct {
	RecipeID           string  `json:"recipe_id" binding:"required"`
	ServingsMultiplier float64 `json:"servings_multiplier"`
	IdempotencyKey     string  `json:"idempotency_key" binding:"required"`
}

// Cook commits one cook action and returns its receipt.
func (s *Server) Cook(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req CookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ServingsMultiplier == 0 {
		req.ServingsMultiplier = 1
	}

	receipt, err := s.transactor.Cook(c.Request.Context(), uid, req.RecipeID, req.ServingsMultiplier, req.IdempotencyKey)
	if err != nil {
		s.renderCookError(c, err)
		return
	}

	s.hub.Publish(stream.Event{
		Type:    stream.EventCookCommitted,
		UserID:  uid,
		Payload: gin.H{"recipe_id": receipt.RecipeID, "receipt_id": receipt.ReceiptID},
	})
	c.JSON(http.StatusCreated, receipt)
}

// renderCookError maps the domain error taxonomy onto HTTP responses with
// enough structure for the caller to react.
func (s *Server) renderCookError(c *gin.Context, err error) {
	var short *cooking.InsufficientInventoryError
	if errors.As(err, &short) {
		c.JSON(http.StatusConflict, gin.H{
			"error":         "insufficient inventory",
			"kind":          "InsufficientInventory",
			"missing_lines": short.Missing,
		})
		return
	}

	switch {
	case errors.Is(err, catalog.ErrRecipeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
	case errors.Is(err, catalog.ErrMalformedRecipe):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": "MalformedRecipe"})
	case errors.Is(err, cooking.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "ConcurrentModification"})
	case errors.Is(err, cooking.ErrMissingIdempotencyKey),
		errors.Is(err, matching.ErrInvalidServings):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetReceipt returns the stored receipt for an idempotency key.
func (s *Server) GetReceipt(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	receipt, err := s.transactor.GetReceipt(uid, c.Param("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// Inventory handlers

// GetInventory returns the caller's inventory snapshot with freshness tiers.
func (s *Server) GetInventory(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	snap, err := s.ledger.Snapshot(uid, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// AddLotRequest is a purchase entry before normalization.
type AddLotRequest struct {
	IngredientID string     `json:"ingredient_id" binding:"required"`
	Quantity     float64    `json:"quantity" binding:"required"`
	Unit         string     `json:"unit" binding:"required"`
	UnitPrice    float64    `json:"unit_price"`
	Currency     string     `json:"currency"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// AddLot records a new stock lot for the caller.
func (s *Server) AddLot(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req AddLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lot, err := s.ledger.AddLot(c.Request.Context(), uid, ledger.AddLotInput{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		UnitPrice:    req.UnitPrice,
		Currency:     req.Currency,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrIngredientNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	s.hub.Publish(stream.Event{
		Type:    stream.EventLotAdded,
		UserID:  uid,
		Payload: gin.H{"lot_id": lot.LotID, "ingredient_id": lot.IngredientID},
	})
	c.JSON(http.StatusCreated, lot)
}

// RemoveLot deletes one of the caller's stock lots.
func (s *Server) RemoveLot(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	lotID := c.Param("id")
	if err := s.ledger.RemoveLot(uid, lotID); err != nil {
		if errors.Is(err, ledger.ErrLotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "stock lot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.hub.Publish(stream.Event{
		Type:    stream.EventLotRemoved,
		UserID:  uid,
		Payload: gin.H{"lot_id": lotID},
	})
	c.JSON(http.StatusOK, gin.H{"message": "stock lot removed"})
}
