package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records the engine's operational metrics.
type Collector struct {
	registry *prometheus.Registry

	matchDuration  *prometheus.HistogramVec
	cookDuration   *prometheus.HistogramVec
	cookOutcomes   *prometheus.CounterVec
	cookRetries    prometheus.Counter
	lotsConsumed   prometheus.Counter
	sweptLots      prometheus.Counter
	streamClients  prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		matchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "match_duration_seconds",
				Help:    "Time taken to compute ranked recipe matches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		cookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cook_duration_seconds",
				Help:    "Time taken by cook transactions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		cookOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cook_total",
				Help: "Cook attempts by outcome",
			},
			[]string{"outcome"},
		),
		cookRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cook_concurrency_retries_total",
			Help: "Internal retries after concurrent lot modification",
		}),
		lotsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_lots_consumed_total",
			Help: "Stock lot allocations committed by cooks",
		}),
		sweptLots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_lots_swept_total",
			Help: "Expired stock lots removed by the sweeper",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_clients",
			Help: "Connected websocket clients",
		}),
	}

	c.registry.MustRegister(
		c.matchDuration,
		c.cookDuration,
		c.cookOutcomes,
		c.cookRetries,
		c.lotsConsumed,
		c.sweptLots,
		c.streamClients,
	)
	return c
}

// Registry returns the collector's registry for the metrics endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveMatch records the duration of one match computation.
func (c *Collector) ObserveMatch(kind string, d time.Duration) {
	c.matchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveCook records the outcome and duration of one cook attempt.
func (c *Collector) ObserveCook(outcome string, d time.Duration) {
	c.cookOutcomes.WithLabelValues(outcome).Inc()
	c.cookDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordRetry counts one internal concurrency retry.
func (c *Collector) RecordRetry() {
	c.cookRetries.Inc()
}

// RecordLotsConsumed counts committed lot allocations.
func (c *Collector) RecordLotsConsumed(n int) {
	c.lotsConsumed.Add(float64(n))
}

// RecordSweep counts lots removed by an expiry sweep.
func (c *Collector) RecordSweep(n int) {
	c.sweptLots.Add(float64(n))
}

// StreamClientConnected adjusts the connected-client gauge.
func (c *Collector) StreamClientConnected(delta int) {
	c.streamClients.Add(float64(delta))
}
