package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector exported by the reservation service
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec
	TransactionAttempts      *prometheus.CounterVec

	// Ledger metrics
	LedgerOperations        *prometheus.CounterVec
	LedgerQuantity          *prometheus.CounterVec
	QuotationTransitions    *prometheus.CounterVec
	ConcurrentModifications *prometheus.CounterVec

	// Sweeper metrics
	SweeperRuns     *prometheus.CounterVec
	SweeperExpired  prometheus.Counter
	SweeperDuration prometheus.Histogram

	// Outbox metrics
	OutboxPending prometheus.Gauge

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec

	// Idempotency metrics
	IdempotencyRequests *prometheus.CounterVec
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
		Namespace:   "backoffice",
	}
}

// New creates a Metrics instance backed by a private registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: constLabels,
		},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "kafka_events_published_total",
			Help:        "Total number of Kafka events published",
			ConstLabels: constLabels,
		},
		[]string{"topic", "event_type", "status"},
	)

	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "kafka_publish_duration_seconds",
			Help:        "Kafka publish duration in seconds",
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			ConstLabels: constLabels,
		},
		[]string{"topic"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "mongodb_operations_total",
			Help:        "Total number of MongoDB operations",
			ConstLabels: constLabels,
		},
		[]string{"collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "mongodb_operation_duration_seconds",
			Help:        "MongoDB operation duration in seconds",
			Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			ConstLabels: constLabels,
		},
		[]string{"collection", "operation"},
	)

	m.TransactionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "transaction_attempts_total",
			Help:        "Unit of work attempts by outcome (committed, conflict, failed, timeout)",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)

	m.LedgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "ledger_operations_total",
			Help:        "Stock ledger primitives by operation and status",
			ConstLabels: constLabels,
		},
		[]string{"operation", "status"},
	)

	m.LedgerQuantity = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "ledger_quantity_total",
			Help:        "Quantity moved by stock ledger primitives",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	m.QuotationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "quotation_transitions_total",
			Help:        "Quotation state transitions",
			ConstLabels: constLabels,
		},
		[]string{"from", "to"},
	)

	m.ConcurrentModifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "concurrent_modifications_total",
			Help:        "Lock wait timeouts surfaced to callers",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	m.SweeperRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "expiration_sweeper_runs_total",
			Help:        "Expiration sweeper runs by trigger and status",
			ConstLabels: constLabels,
		},
		[]string{"trigger", "status"},
	)

	m.SweeperExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "expiration_sweeper_quotations_expired_total",
			Help:        "Quotations expired by the sweeper",
			ConstLabels: constLabels,
		},
	)

	m.SweeperDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "expiration_sweeper_duration_seconds",
			Help:        "Expiration sweeper run duration in seconds",
			Buckets:     []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		},
	)

	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "outbox_pending_events",
			Help:        "Outbox events fetched but not yet published in the last relay cycle",
			ConstLabels: constLabels,
		},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        "circuit_breaker_state",
			Help:        "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			ConstLabels: constLabels,
		},
		[]string{"name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "circuit_breaker_trips_total",
			Help:        "Total number of circuit breaker trips",
			ConstLabels: constLabels,
		},
		[]string{"name"},
	)

	m.IdempotencyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "idempotency_requests_total",
			Help:        "Requests carrying an Idempotency-Key by outcome",
			ConstLabels: constLabels,
		},
		[]string{"path", "outcome"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.TransactionAttempts,
		m.LedgerOperations,
		m.LedgerQuantity,
		m.QuotationTransitions,
		m.ConcurrentModifications,
		m.SweeperRuns,
		m.SweeperExpired,
		m.SweeperDuration,
		m.OutboxPending,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.IdempotencyRequests,
	)

	return m
}

// Handler returns the HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record and Set methods are no-ops on a nil *Metrics.

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MongoDBOperations.WithLabelValues(collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// RecordTransactionAttempt records the outcome of one unit of work attempt
func (m *Metrics) RecordTransactionAttempt(outcome string) {
	if m == nil {
		return
	}
	m.TransactionAttempts.WithLabelValues(outcome).Inc()
}

// RecordLedgerOperation records a reserve/release/consume/receive/adjust call
func (m *Metrics) RecordLedgerOperation(operation string, success bool, quantity float64) {
	if m == nil {
		return
	}
	m.LedgerOperations.WithLabelValues(operation, statusLabel(success)).Inc()
	if success && quantity > 0 {
		m.LedgerQuantity.WithLabelValues(operation).Add(quantity)
	}
}

// RecordQuotationTransition records a committed quotation state change
func (m *Metrics) RecordQuotationTransition(from, to string) {
	if m == nil {
		return
	}
	m.QuotationTransitions.WithLabelValues(from, to).Inc()
}

// RecordConcurrentModification records a lock wait timeout
func (m *Metrics) RecordConcurrentModification(operation string) {
	if m == nil {
		return
	}
	m.ConcurrentModifications.WithLabelValues(operation).Inc()
}

// RecordSweeperRun records one sweeper pass
func (m *Metrics) RecordSweeperRun(trigger string, success bool, expired int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SweeperRuns.WithLabelValues(trigger, statusLabel(success)).Inc()
	m.SweeperExpired.Add(float64(expired))
	m.SweeperDuration.Observe(duration.Seconds())
}

// SetOutboxPending records how many events the relay picked up
func (m *Metrics) SetOutboxPending(count int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(count))
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(name).Inc()
}

// RecordIdempotency records how a keyed request was handled
func (m *Metrics) RecordIdempotency(path, outcome string) {
	if m == nil {
		return
	}
	m.IdempotencyRequests.WithLabelValues(path, outcome).Inc()
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
