// Package metrics exposes ledger and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "ledger"

// LedgerMetrics implements appledger.Metrics on a private registry
type LedgerMetrics struct {
	registry *prometheus.Registry

	paymentsOpened    *prometheus.CounterVec
	paymentsConfirmed *prometheus.CounterVec
	settlements       *prometheus.CounterVec
	settledAmount     prometheus.Counter
	tickDuration      *prometheus.HistogramVec
	returnsCreated    prometheus.Counter
	returnsPromoted   prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New registers the ledger collectors, plus Go and process collectors when
// withRuntime is set
func New(withRuntime bool) *LedgerMetrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		)
	}

	m := &LedgerMetrics{
		registry: reg,
		paymentsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payments_opened_total",
			Help: "Pending payments opened, by type and method.",
		}, []string{"type", "method"}),
		paymentsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payment_confirmations_total",
			Help: "Payment confirmation attempts, by type and outcome.",
		}, []string{"type", "outcome"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "settlements_total",
			Help: "Return withdrawal attempts, by outcome.",
		}, []string{"outcome"}),
		settledAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "settled_amount_total",
			Help: "Sum of settled return amounts in the ledger currency.",
		}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "tick_duration_seconds",
			Help:    "Duration of payout scheduler ticks.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"outcome"}),
		returnsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "returns_created_total",
			Help: "Returns created by scheduler ticks.",
		}),
		returnsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "returns_promoted_total",
			Help: "Returns moved from pending to due by scheduler ticks.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.paymentsOpened, m.paymentsConfirmed, m.settlements, m.settledAmount,
		m.tickDuration, m.returnsCreated, m.returnsPromoted,
		m.httpRequests, m.httpLatency,
	)
	return m
}

// Registry returns the underlying registry
func (m *LedgerMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *LedgerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PaymentOpened implements appledger.Metrics
func (m *LedgerMetrics) PaymentOpened(typ ledger.PaymentType, method ledger.PaymentMethod) {
	m.paymentsOpened.WithLabelValues(string(typ), string(method)).Inc()
}

// PaymentConfirmed implements appledger.Metrics
func (m *LedgerMetrics) PaymentConfirmed(typ ledger.PaymentType, outcome string) {
	m.paymentsConfirmed.WithLabelValues(string(typ), outcome).Inc()
}

// Settlement implements appledger.Metrics
func (m *LedgerMetrics) Settlement(outcome string, amount decimal.Decimal) {
	m.settlements.WithLabelValues(outcome).Inc()
	if outcome == appledger.OutcomeSuccess && amount.IsPositive() {
		m.settledAmount.Add(amount.InexactFloat64())
	}
}

// SchedulerTick implements appledger.Metrics
func (m *LedgerMetrics) SchedulerTick(d time.Duration, created, promoted int64, outcome string) {
	m.tickDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.returnsCreated.Add(float64(created))
	m.returnsPromoted.Add(float64(promoted))
}

// GinMiddleware records request count and latency by matched route
func (m *LedgerMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

var _ appledger.Metrics = (*LedgerMetrics)(nil)
