package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fridgechef/internal/api"
	"fridgechef/internal/catalog"
	"fridgechef/internal/config"
	"fridgechef/internal/cooking"
	"fridgechef/internal/database"
	"fridgechef/internal/economy"
	"fridgechef/internal/ledger"
	"fridgechef/internal/matching"
	"fridgechef/internal/monitoring"
	"fridgechef/internal/pricing"
	"fridgechef/internal/pricing/providers"
	"fridgechef/internal/stream"
	"fridgechef/internal/units"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}

	db, err := database.Open(cfg.Database.Dialect, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	catalog.Seed(db)

	monitor := monitoring.NewCollector()
	hub := stream.NewHub(monitor.StreamClientConnected)

	cat := catalog.NewStore(db)
	converter := units.NewConverter()
	led := ledger.NewLedger(db, cat, converter)

	estimator := initializeEstimator(cfg)
	calculator := economy.NewCalculator(led, cat, estimator, cfg.Pricing.Currency)
	engine := matching.NewEngine(cat, converter, calculator)
	transactor := cooking.NewTransactor(db, led, cat, engine, calculator, monitor)

	server := api.NewServer(led, cat, engine, transactor, hub, monitor)

	go startMetricsServer(cfg.Server.MetricsPort, monitor)
	go runExpirySweeper(ctx, led, hub, monitor, time.Duration(cfg.Sweep.IntervalMinutes)*time.Minute)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}

		cancel()
	}()

	log.Printf("Starting API server on port %d", cfg.Server.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("API server error: %v", err)
	}
}

// initializeEstimator wires the advisory price estimator when pricing is
// enabled and credentials exist; otherwise estimates are simply unavailable.
func initializeEstimator(cfg *config.Config) pricing.Estimator {
	if !cfg.Pricing.Enabled {
		return pricing.Disabled{}
	}

	backend, err := providers.New(cfg.Pricing.Provider, cfg.Pricing.Model)
	if err != nil {
		log.Printf("Price estimation disabled: %v", err)
		return pricing.Disabled{}
	}
	return pricing.NewLLMEstimator(backend, time.Duration(cfg.Pricing.TimeoutSeconds)*time.Second, cfg.Pricing.Currency)
}

// runExpirySweeper periodically removes fully-expired lots for every user.
// Each user's sweep runs inside that user's critical section, so sweeps
// never race cook commits.
func runExpirySweeper(ctx context.Context, led *ledger.Ledger, hub *stream.Hub, monitor *monitoring.Collector, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			users, err := led.Users()
			if err != nil {
				log.Printf("Expiry sweep: listing users failed: %v", err)
				continue
			}
			for _, uid := range users {
				removed, err := led.SweepExpired(uid, time.Now().UTC())
				if err != nil {
					log.Printf("Expiry sweep for user %s failed: %v", uid, err)
					continue
				}
				if removed > 0 {
					monitor.RecordSweep(removed)
					hub.Publish(stream.Event{
						Type:    stream.EventLotsSwept,
						UserID:  uid,
						Payload: gin.H{"removed": removed},
					})
				}
			}
		}
	}
}

func startMetricsServer(port int, monitor *monitoring.Collector) {
	metricsRouter := gin.Default()
	metricsRouter.GET("/metrics", gin.WrapH(promhttp.HandlerFor(monitor.Registry(), promhttp.HandlerOpts{})))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	log.Printf("Starting metrics server on port %d", port)
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("Metrics server error: %v", err)
	}
}
