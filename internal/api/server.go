package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fridgechef/internal/catalog"
	"fridgechef/internal/cooking"
	"fridgechef/internal/ledger"
	"fridgechef/internal/matching"
	"fridgechef/internal/monitoring"
	"fridgechef/internal/stream"
)

// Server represents the HTTP surface of the fridge-to-recipe engine
type Server struct {
	Router     *gin.Engine
	ledger     *ledger.Ledger
	catalog    catalog.Adapter
	engine     *matching.Engine
	transactor *cooking.Transactor
	hub        *stream.Hub
	monitor    *monitoring.Collector
}

// NewServer creates the API server and wires its routes
func NewServer(led *ledger.Ledger, cat catalog.Adapter, engine *matching.Engine, transactor *cooking.Transactor, hub *stream.Hub, monitor *monitoring.Collector) *Server {
	s := &Server{
		Router:     gin.Default(),
		ledger:     led,
		catalog:    cat,
		engine:     engine,
		transactor: transactor,
		hub:        hub,
		monitor:    monitor,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "fridgechef API is running"})
	})

	// Live inventory event feed
	s.Router.GET("/ws", s.hub.HandleWebSocket)

	v1 := s.Router.Group("/api/v1")
	{
		// Recipe matching
		v1.GET("/recipes/matches", s.MatchRecipes)

		// Cook action
		v1.POST("/cook", s.Cook)
		v1.GET("/cook/receipts/:key", s.GetReceipt)

		// Inventory management
		v1.GET("/inventory", s.GetInventory)
		v1.POST("/inventory/lots", s.AddLot)
		v1.DELETE("/inventory/lots/:id", s.RemoveLot)
	}
}

// userID extracts the explicit caller identity. Authentication lives
// outside this subsystem; identity still arrives as an explicit parameter,
// never ambient state.
func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		id = c.Query("user_id")
	}
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
		return "", false
	}
	return id, true
}
