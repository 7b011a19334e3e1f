// Package metrics exposes Prometheus metrics for the reconciliation service.
package metrics

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtlprog/nftstate/internal/chain"
	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/snapshot"
)

const defaultNamespace = "nftstate"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Chain metrics
	RPCCalls   *prometheus.CounterVec
	RPCLatency *prometheus.HistogramVec

	// Ownership metrics
	StrategyOutcomes *prometheus.CounterVec

	// Market metrics
	MarketEvents      *prometheus.CounterVec
	LastMarketEvent   prometheus.Gauge
	WatcherReconnects prometheus.Counter
	CollectionFloor   *prometheus.GaugeVec
	CollectionListed  *prometheus.GaugeVec
	ExchangeRate      prometheus.Gauge
	RateDegraded      prometheus.Gauge

	// Worker metrics
	WorkerRuns    *prometheus.CounterVec
	LastWorkerRun *prometheus.GaugeVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered on its own registry, together with Go and process collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RPCCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_calls_total",
			Help:      "Total number of JSON-RPC calls by method and status",
		}, []string{"method", "status"}),
		RPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		StrategyOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ownership",
			Name:      "strategy_outcomes_total",
			Help:      "Ownership strategy attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),

		MarketEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "events_total",
			Help:      "Marketplace events seen by the watcher by kind and collection",
		}, []string{"kind", "collection"}),
		LastMarketEvent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "last_event_timestamp_seconds",
			Help:      "Unix time of the last marketplace event seen",
		}),
		WatcherReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "watcher_reconnects_total",
			Help:      "Number of times the event subscription was re-established",
		}),
		CollectionFloor: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "collection_floor",
			Help:      "Floor price of a collection in currency A at the last snapshot",
		}, []string{"collection"}),
		CollectionListed: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "collection_listed",
			Help:      "Active listings of a collection at the last snapshot",
		}, []string{"collection"}),
		ExchangeRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "exchange_rate_a_per_b",
			Help:      "Units of currency A per unit of currency B",
		}),
		RateDegraded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "exchange_rate_degraded",
			Help:      "1 when the last exchange rate came from the degraded fallback",
		}),

		WorkerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "runs_total",
			Help:      "Worker runs by worker and status",
		}, []string{"worker", "status"}),
		LastWorkerRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per worker",
		}, []string{"worker"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument wraps next with request counting and latency measurement.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(m.HTTPDuration,
		promhttp.InstrumentHandlerCounter(m.HTTPRequests, next))
}

// ObserveRPC implements chain.Observer.
func (m *Metrics) ObserveRPC(method string, d time.Duration, err error) {
	m.RPCCalls.WithLabelValues(method, rpcStatus(err)).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(d.Seconds())
}

func rpcStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, chain.ErrReverted):
		return "reverted"
	case errors.Is(err, domain.ErrSourceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// ObserveStrategy implements ownership.Observer.
func (m *Metrics) ObserveStrategy(strategy, outcome string) {
	m.StrategyOutcomes.WithLabelValues(strategy, outcome).Inc()
}

// ObserveMarketEvent records a decoded marketplace event.
func (m *Metrics) ObserveMarketEvent(ev chain.MarketEvent, at time.Time) {
	m.MarketEvents.WithLabelValues(ev.Kind, strings.ToLower(ev.Collection)).Inc()
	m.LastMarketEvent.Set(float64(at.Unix()))
}

// ObserveReconnect counts a re-established event subscription.
func (m *Metrics) ObserveReconnect() {
	m.WatcherReconnects.Inc()
}

// ObserveRate records the exchange rate of a pass.
func (m *Metrics) ObserveRate(rate domain.ExchangeRate) {
	f, _ := rate.APerB.Float64()
	m.ExchangeRate.Set(f)
	if rate.Degraded {
		m.RateDegraded.Set(1)
	} else {
		m.RateDegraded.Set(0)
	}
}

// ObserveSnapshot publishes per-collection floors and listing counts of snap.
// Collections without a floor are removed from the floor gauge.
func (m *Metrics) ObserveSnapshot(snap snapshot.MarketSnapshot) {
	m.ObserveRate(snap.Rate)
	for _, c := range snap.Collections {
		label := strings.ToLower(c.Address)
		m.CollectionListed.WithLabelValues(label).Set(float64(c.ListedCount))
		if c.Floor == nil {
			m.CollectionFloor.DeleteLabelValues(label)
			continue
		}
		f, _ := c.Floor.Float64()
		m.CollectionFloor.WithLabelValues(label).Set(f)
	}
}

// ObserveWorkerRun records the outcome of one worker iteration.
func (m *Metrics) ObserveWorkerRun(worker string, err error, at time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		m.LastWorkerRun.WithLabelValues(worker).Set(float64(at.Unix()))
	}
	m.WorkerRuns.WithLabelValues(worker, status).Inc()
}
