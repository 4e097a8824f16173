package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EntityCounter counts rows of one routing entity.
type EntityCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Decision outcome labels for the routing counters.
const (
	OutcomeDomain  = "domain"
	OutcomeDID     = "did"
	OutcomeNoMatch = "nomatch"
	OutcomeError   = "error"
)

// RoutingMetrics holds the counters incremented on the signaling path.
type RoutingMetrics struct {
	Decisions        *prometheus.CounterVec
	DecisionDuration prometheus.Histogram
}

// NewRoutingMetrics creates and registers the routing counters.
func NewRoutingMetrics(reg prometheus.Registerer) *RoutingMetrics {
	m := &RoutingMetrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siprouted_routing_decisions_total",
			Help: "Routing decisions by outcome",
		}, []string{"outcome"}),
		DecisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "siprouted_routing_decision_seconds",
			Help:    "Time spent resolving a routing query, store reads included",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	reg.MustRegister(m.Decisions, m.DecisionDuration)
	return m
}

// Collector is a prometheus.Collector that gathers entity counts from the
// rule store at scrape time.
type Collector struct {
	counters  map[string]EntityCounter
	startTime time.Time

	entityDesc *prometheus.Desc
	uptimeDesc *prometheus.Desc
}

// NewCollector creates a collector over the named entity counters. Keys are
// used as the entity label value.
func NewCollector(counters map[string]EntityCounter, startTime time.Time) *Collector {
	return &Collector{
		counters:  counters,
		startTime: startTime,

		entityDesc: prometheus.NewDesc(
			"siprouted_entities",
			"Number of configured routing entities by type",
			[]string{"entity"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"siprouted_uptime_seconds",
			"Seconds since the siprouted process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entityDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries the store at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for entity, counter := range c.counters {
		count, err := counter.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count entities", "entity", entity, "error", err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(
			c.entityDesc, prometheus.GaugeValue, float64(count), entity,
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
