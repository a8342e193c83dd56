package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgechef/internal/catalog"
	"fridgechef/internal/cooking"
	"fridgechef/internal/database"
	"fridgechef/internal/economy"
	"fridgechef/internal/ledger"
	"fridgechef/internal/matching"
	"fridgechef/internal/monitoring"
	"fridgechef/internal/pricing"
	"fridgechef/internal/stream"
	"fridgechef/internal/units"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	catalog.Seed(db)

	monitor := monitoring.NewCollector()
	hub := stream.NewHub(monitor.StreamClientConnected)
	cat := catalog.NewStore(db)
	converter := units.NewConverter()
	led := ledger.NewLedger(db, cat, converter)
	calc := economy.NewCalculator(led, cat, pricing.Disabled{}, "EUR")
	engine := matching.NewEngine(cat, converter, calc)
	transactor := cooking.NewTransactor(db, led, cat, engine, calc, monitor)

	return NewServer(led, cat, engine, transactor, hub, monitor)
}

func request(t *testing.T, s *Server, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func stockOmeletteIngredients(t *testing.T, s *Server) {
	t.Helper()

	soon := time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339)
	w := request(t, s, http.MethodPost, "/api/v1/inventory/lots", "u1", map[string]interface{}{
		"ingredient_id": "egg",
		"quantity":      6,
		"unit":          "pc",
		"unit_price":    0.30,
		"currency":      "EUR",
		"expires_at":    soon,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(t, s, http.MethodPost, "/api/v1/inventory/lots", "u1", map[string]interface{}{
		"ingredient_id": "butter",
		"quantity":      100,
		"unit":          "g",
		"unit_price":    8.50,
		"currency":      "EUR",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := request(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserIDRequired(t *testing.T) {
	s := newTestServer(t)
	w := request(t, s, http.MethodGet, "/api/v1/inventory", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddLotAndGetInventory(t *testing.T) {
	s := newTestServer(t)
	stockOmeletteIngredients(t, s)

	w := request(t, s, http.MethodGet, "/api/v1/inventory", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	lots := body["lots"].(map[string]interface{})
	require.Contains(t, lots, "egg")
	require.Contains(t, lots, "butter")

	egg := lots["egg"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 6.0, egg["quantity_remaining"])
	assert.Equal(t, "pc", egg["unit"])
	assert.Equal(t, 1.0, egg["days_left"])
	assert.Equal(t, "danger", egg["freshness_tier"])

	// Another user sees an empty fridge.
	w = request(t, s, http.MethodGet, "/api/v1/inventory", "u2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["lots"])
}

func TestAddLotRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	w := request(t, s, http.MethodPost, "/api/v1/inventory/lots", "u1", map[string]interface{}{
		"ingredient_id": "unobtainium",
		"quantity":      1,
		"unit":          "pc",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(t, s, http.MethodPost, "/api/v1/inventory/lots", "u1", map[string]interface{}{
		"ingredient_id": "egg",
		"quantity":      3,
		"unit":          "fathom",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveLot(t *testing.T) {
	s := newTestServer(t)

	w := request(t, s, http.MethodPost, "/api/v1/inventory/lots", "u1", map[string]interface{}{
		"ingredient_id": "egg",
		"quantity":      6,
		"unit":          "pc",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	lotID := decode(t, w)["lot_id"].(string)

	w = request(t, s, http.MethodDelete, "/api/v1/inventory/lots/"+lotID, "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(t, s, http.MethodDelete, "/api/v1/inventory/lots/"+lotID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchRecipes(t *testing.T) {
	s := newTestServer(t)
	stockOmeletteIngredients(t, s)

	w := request(t, s, http.MethodGet, "/api/v1/recipes/matches", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, 3.0, body["count"])

	recipes := body["recipes"].([]interface{})
	first := recipes[0].(map[string]interface{})
	// Full egg and butter stock puts the omelette on top.
	assert.Equal(t, "omelette-1", first["recipe_id"])
	assert.Equal(t, true, first["can_cook_now"])
	assert.Equal(t, 1.0, first["coverage"])

	// Hard filter trims partially covered recipes.
	w = request(t, s, http.MethodGet, "/api/v1/recipes/matches?min_coverage=0.9", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["count"])
}

func TestMatchRecipesRejectsBadFilters(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/v1/recipes/matches?servings=-1",
		"/api/v1/recipes/matches?sort=banana",
		"/api/v1/recipes/matches?order=sideways",
		"/api/v1/recipes/matches?limit=-2",
	} {
		w := request(t, s, http.MethodGet, path, "u1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestCookFlow(t *testing.T) {
	s := newTestServer(t)
	stockOmeletteIngredients(t, s)

	w := request(t, s, http.MethodPost, "/api/v1/cook", "u1", map[string]interface{}{
		"recipe_id":       "omelette-1",
		"idempotency_key": "key-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	receipt := decode(t, w)
	receiptID := receipt["receipt_id"].(string)
	assert.NotEmpty(t, receiptID)

	// Replay returns the stored receipt.
	w = request(t, s, http.MethodPost, "/api/v1/cook", "u1", map[string]interface{}{
		"recipe_id":           "omelette-1",
		"servings_multiplier": 2,
		"idempotency_key":     "key-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, receiptID, decode(t, w)["receipt_id"])

	// The receipt is retrievable by key.
	w = request(t, s, http.MethodGet, "/api/v1/cook/receipts/key-1", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, receiptID, decode(t, w)["receipt_id"])

	w = request(t, s, http.MethodGet, "/api/v1/cook/receipts/unknown", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCookErrorMapping(t *testing.T) {
	s := newTestServer(t)
	stockOmeletteIngredients(t, s)

	// Pancakes need flour and milk the fridge does not have.
	w := request(t, s, http.MethodPost, "/api/v1/cook", "u1", map[string]interface{}{
		"recipe_id":       "pancakes-1",
		"idempotency_key": "key-1",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "InsufficientInventory", body["kind"])
	assert.NotEmpty(t, body["missing_lines"])

	w = request(t, s, http.MethodPost, "/api/v1/cook", "u1", map[string]interface{}{
		"recipe_id":       "no-such-recipe",
		"idempotency_key": "key-2",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Binding rejects a missing idempotency key.
	w = request(t, s, http.MethodPost, "/api/v1/cook", "u1", map[string]interface{}{
		"recipe_id": "omelette-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(t, s, http.MethodPost, "/api/v1/cook", "u1", map[string]interface{}{
		"recipe_id":           "omelette-1",
		"servings_multiplier": -1,
		"idempotency_key":     "key-3",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
