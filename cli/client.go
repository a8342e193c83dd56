package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// ApiClient handles API requests to the fridgechef server.
type ApiClient struct {
	httpClient *http.Client
	BaseURL    string
	UserID     string
}

// NewApiClient creates a new API client. The server address comes from
// FRIDGECHEF_API_URL, the caller identity from FRIDGECHEF_USER.
func NewApiClient() *ApiClient {
	baseURL := os.Getenv("FRIDGECHEF_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	user := os.Getenv("FRIDGECHEF_USER")
	if user == "" {
		user = "default"
	}

	return &ApiClient{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		BaseURL: baseURL,
		UserID:  user,
	}
}

// Ping checks if the API server is available.
func (c *ApiClient) Ping() bool {
	resp, err := c.httpClient.Get(c.BaseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// SnapshotLot is one stock lot with its derived freshness data.
type SnapshotLot struct {
	LotID             string     `json:"lot_id"`
	IngredientID      string     `json:"ingredient_id"`
	QuantityTotal     float64    `json:"quantity_total"`
	QuantityRemaining float64    `json:"quantity_remaining"`
	Unit              string     `json:"unit"`
	UnitPrice         float64    `json:"unit_price"`
	Currency          string     `json:"currency"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	DaysLeft          *int       `json:"days_left"`
	FreshnessTier     string     `json:"freshness_tier"`
}

// InventorySnapshot is the user's current stock grouped by ingredient.
type InventorySnapshot struct {
	UserID  string                   `json:"user_id"`
	TakenAt time.Time                `json:"taken_at"`
	Lots    map[string][]SnapshotLot `json:"lots"`
}

// EconomySnapshot is the monetary effect of cooking a match.
type EconomySnapshot struct {
	UsedValue           float64 `json:"used_value"`
	CostToComplete      float64 `json:"cost_to_complete"`
	TotalRecipeCost     float64 `json:"total_recipe_cost"`
	WasteRiskSaved      float64 `json:"waste_risk_saved"`
	Currency            string  `json:"currency"`
	EstimateUnavailable bool    `json:"estimate_unavailable,omitempty"`
}

// MissingLine is the uncovered part of one requirement.
type MissingLine struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Optional     bool    `json:"optional"`
	Cost         float64 `json:"cost"`
	PriceSource  string  `json:"price_source"`
}

// MatchResult is one recipe scored against the inventory.
type MatchResult struct {
	RecipeID     string           `json:"recipe_id"`
	RecipeName   string           `json:"recipe_name"`
	Country      string           `json:"country,omitempty"`
	TimeMinutes  float64          `json:"time_minutes"`
	Coverage     float64          `json:"coverage"`
	Score        float64          `json:"score"`
	CanCookNow   bool             `json:"can_cook_now"`
	MissingCount int              `json:"missing_count"`
	Missing      []MissingLine    `json:"missing"`
	Economy      *EconomySnapshot `json:"economy,omitempty"`
}

// ReceiptLine records the consumption of one ingredient within a cook.
type ReceiptLine struct {
	IngredientID   string  `json:"ingredient_id"`
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	RemainingAfter float64 `json:"remaining_after"`
}

// Receipt is one committed cook action.
type Receipt struct {
	ReceiptID          string           `json:"receipt_id"`
	RecipeID           string           `json:"recipe_id"`
	ServingsMultiplier float64          `json:"servings_multiplier"`
	Lines              []ReceiptLine    `json:"lines"`
	Economy            *EconomySnapshot `json:"economy"`
	CommittedAt        time.Time        `json:"committed_at"`
}

// apiError is the server's error payload.
type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (c *ApiClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", c.UserID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// GetInventory retrieves the current inventory snapshot.
func (c *ApiClient) GetInventory() (*InventorySnapshot, error) {
	var snap InventorySnapshot
	if err := c.do(http.MethodGet, "/api/v1/inventory", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// AddLotRequest is a purchase entry as entered by the user.
type AddLotRequest struct {
	IngredientID string     `json:"ingredient_id"`
	Quantity     float64    `json:"quantity"`
	Unit         string     `json:"unit"`
	UnitPrice    float64    `json:"unit_price"`
	Currency     string     `json:"currency"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// AddLot records a new stock lot.
func (c *ApiClient) AddLot(req AddLotRequest) (*SnapshotLot, error) {
	var lot SnapshotLot
	if err := c.do(http.MethodPost, "/api/v1/inventory/lots", req, &lot); err != nil {
		return nil, err
	}
	return &lot, nil
}

// RemoveLot deletes a stock lot by id.
func (c *ApiClient) RemoveLot(lotID string) error {
	return c.do(http.MethodDelete, "/api/v1/inventory/lots/"+url.PathEscape(lotID), nil, nil)
}

// GetMatches retrieves ranked recipe matches for the current inventory.
func (c *ApiClient) GetMatches(servings float64) ([]MatchResult, error) {
	path := fmt.Sprintf("/api/v1/recipes/matches?servings=%g", servings)

	var payload struct {
		Count   int           `json:"count"`
		Recipes []MatchResult `json:"recipes"`
	}
	if err := c.do(http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Recipes, nil
}

// cookRequest is the cook action payload.
type cookRequest struct {
	RecipeID           string  `json:"recipe_id"`
	ServingsMultiplier float64 `json:"servings_multiplier"`
	IdempotencyKey     string  `json:"idempotency_key"`
}

// Cook commits a cook action and returns its receipt.
func (c *ApiClient) Cook(recipeID string, servings float64, idempotencyKey string) (*Receipt, error) {
	var receipt Receipt
	err := c.do(http.MethodPost, "/api/v1/cook", cookRequest{
		RecipeID:           recipeID,
		ServingsMultiplier: servings,
		IdempotencyKey:     idempotencyKey,
	}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}
