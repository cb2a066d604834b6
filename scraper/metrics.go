package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a prospecting batch.
type Metrics struct {
	Registry       *prometheus.Registry
	ListingsTotal  *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	LeadsTotal     prometheus.Counter
	StrategyHits   *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	ExportedTotal  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadscout_listings_total",
			Help: "Listings visited by outcome.",
		},
		[]string{"outcome"},
	)
	renderDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadscout_listing_render_seconds",
			Help:    "Time for a listing's detail view to become readable.",
			Buckets: prometheus.DefBuckets,
		},
	)
	leads := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leadscout_leads_total",
			Help: "Total number of leads sent to the pipeline.",
		},
	)
	strategyHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadscout_strategy_hits_total",
			Help: "Fields resolved per extraction strategy.",
		},
		[]string{"field", "strategy"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadscout_errors_total",
			Help: "Total number of batch errors by type.",
		},
		[]string{"error_type"},
	)
	exported := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leadscout_exported_leads_total",
			Help: "Leads written to the configured sinks.",
		},
	)

	registry.MustRegister(listings, renderDuration, leads, strategyHits, errorsTotal, exported)

	return &Metrics{
		Registry:       registry,
		ListingsTotal:  listings,
		RenderDuration: renderDuration,
		LeadsTotal:     leads,
		StrategyHits:   strategyHits,
		ErrorsTotal:    errorsTotal,
		ExportedTotal:  exported,
	}
}

// IncListing counts a visited listing by outcome (lead, skipped, failed).
func (m *Metrics) IncListing(outcome string) {
	if m == nil {
		return
	}
	m.ListingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRender records how long a detail view took to open.
func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(d.Seconds())
}

// IncLeads increments the leads counter.
func (m *Metrics) IncLeads() {
	if m == nil {
		return
	}
	m.LeadsTotal.Inc()
}

// IncStrategyHit counts a field resolved by strategy.
func (m *Metrics) IncStrategyHit(field, strategy string) {
	if m == nil {
		return
	}
	m.StrategyHits.WithLabelValues(field, strategy).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddExported counts leads persisted by a flush.
func (m *Metrics) AddExported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ExportedTotal.Add(float64(n))
}
