package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Webhook metrics
	WebhooksReceived *prometheus.CounterVec

	// Reconciliation pipeline metrics
	SalesApplied       *prometheus.CounterVec
	ResolverOutcomes   *prometheus.CounterVec
	WithdrawalsTotal   *prometheus.CounterVec
	ReconcileRuns      *prometheus.CounterVec
	ReconcileDuration  prometheus.Histogram
	ChannelAPILatency  *prometheus.HistogramVec

	// Outbox metrics
	OutboxPublished *prometheus.CounterVec
	OutboxPending   prometheus.Gauge
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "shop",
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.WebhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "webhooks_received_total",
			Help:      "Total number of inbound sale webhooks by outcome",
		},
		[]string{"service", "channel", "outcome"},
	)

	m.SalesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sales_applied_total",
			Help:      "Total number of ledger sale applications by result",
		},
		[]string{"service", "channel", "result"},
	)

	m.ResolverOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "resolver_outcomes_total",
			Help:      "Total number of line-item resolutions by strategy and outcome",
		},
		[]string{"service", "strategy", "outcome"},
	)

	m.WithdrawalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "listing_withdrawals_total",
			Help:      "Total number of cross-channel listing withdrawals by outcome",
		},
		[]string{"service", "channel", "outcome"},
	)

	m.ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "reconcile_runs_total",
			Help:      "Total number of batch reconciliation runs by status",
		},
		[]string{"service", "status"},
	)

	m.ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "reconcile_run_duration_seconds",
			Help:        "Duration of batch reconciliation runs",
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600},
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.ChannelAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "channel_api_latency_seconds",
			Help:      "Latency of outbound channel API calls",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "channel", "operation"},
	)

	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_events_published_total",
			Help:      "Total number of outbox events published by status",
		},
		[]string{"service", "event_type", "status"},
	)

	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "outbox_events_pending",
			Help:        "Number of outbox events awaiting publication",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.WebhooksReceived,
		m.SalesApplied,
		m.ResolverOutcomes,
		m.WithdrawalsTotal,
		m.ReconcileRuns,
		m.ReconcileDuration,
		m.ChannelAPILatency,
		m.OutboxPublished,
		m.OutboxPending,
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// RecordWebhook records an inbound webhook by outcome
func (m *Metrics) RecordWebhook(channel, outcome string) {
	m.WebhooksReceived.WithLabelValues(m.serviceName, channel, outcome).Inc()
}

// RecordSaleApplied records a ledger application result
func (m *Metrics) RecordSaleApplied(channel, result string) {
	m.SalesApplied.WithLabelValues(m.serviceName, channel, result).Inc()
}

// RecordResolverOutcome records a resolution attempt
func (m *Metrics) RecordResolverOutcome(strategy, outcome string) {
	m.ResolverOutcomes.WithLabelValues(m.serviceName, strategy, outcome).Inc()
}

// RecordWithdrawal records a cross-channel withdrawal attempt
func (m *Metrics) RecordWithdrawal(channel, outcome string) {
	m.WithdrawalsTotal.WithLabelValues(m.serviceName, channel, outcome).Inc()
}

// RecordReconcileRun records a completed reconciliation run
func (m *Metrics) RecordReconcileRun(status string, duration time.Duration) {
	m.ReconcileRuns.WithLabelValues(m.serviceName, status).Inc()
	m.ReconcileDuration.Observe(duration.Seconds())
}

// RecordChannelAPICall records the latency of an outbound channel API call
func (m *Metrics) RecordChannelAPICall(channel, operation string, duration time.Duration) {
	m.ChannelAPILatency.WithLabelValues(m.serviceName, channel, operation).Observe(duration.Seconds())
}

// RecordOutboxPublish records an outbox publish attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, status).Inc()
}

// SetOutboxPending sets the pending outbox gauge
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
