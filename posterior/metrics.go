package posterior

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes a Driver's progress as Prometheus metrics: elections
// simulated, outcomes matching the reported result, batch durations, and
// the number of nodes materialized in the posterior tree.
//
// Modeled directly on lib/prom.Metrics: its own registry (rather than the
// global default one, so multiple Drivers in one process don't collide),
// promauto-constructed collectors, and an HTTP server exposing them for
// scraping.
type Metrics struct {
	electionsTotal     prometheus.Counter
	matchesTotal       prometheus.Counter
	batchSeconds       prometheus.Histogram
	nodesMaterialized  prometheus.Gauge
	registry           *prometheus.Registry
	srv                *http.Server
}

// NewMetrics constructs a Metrics with its own registry, not bound to any
// HTTP server. Use Listen to additionally serve it.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	factory := promauto.With(m.registry)
	m.electionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "dtree_elections_simulated_total",
		Help: "Simulated elections completed across all batches.",
	})
	m.matchesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "dtree_elections_matched_total",
		Help: "Simulated elections whose IRV outcome matched the reported winners.",
	})
	m.batchSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "dtree_batch_duration_seconds",
		Help:    "Wall-clock duration of one worker batch of simulated elections.",
		Buckets: prometheus.DefBuckets,
	})
	m.nodesMaterialized = factory.NewGauge(prometheus.GaugeOpts{
		Name: "dtree_nodes_materialized",
		Help: "Number of Dirichlet-tree nodes materialized so far.",
	})

	return m
}

// Listen starts an HTTP server exposing the registry at bindURL (e.g.
// "http://0.0.0.0:8880"), the same shape as lib/prom.NewMetricsWithParams.
func (m *Metrics) Listen(bindURL string) error {
	p, err := url.Parse(bindURL)
	if err != nil {
		return fmt.Errorf("posterior: invalid bind URL %q: %w", bindURL, err)
	}
	host, port, err := net.SplitHostPort(p.Host)
	if err != nil {
		return fmt.Errorf("posterior: invalid bind URL %q: %w", bindURL, err)
	}

	m.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", host, port),
		Handler: promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}),
	}
	go m.srv.ListenAndServe()
	return nil
}

// Close shuts down the HTTP server, if Listen was called.
func (m *Metrics) Close() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(context.Background())
}

// recordElection records one completed simulated election.
func (m *Metrics) recordElection(matched bool) {
	if m == nil {
		return
	}
	m.electionsTotal.Inc()
	if matched {
		m.matchesTotal.Inc()
	}
}

// recordBatch records the wall-clock duration of one worker batch.
func (m *Metrics) recordBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchSeconds.Observe(d.Seconds())
}

// setNodesMaterialized reports the posterior tree's current node count.
func (m *Metrics) setNodesMaterialized(n int) {
	if m == nil {
		return
	}
	m.nodesMaterialized.Set(float64(n))
}
