package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RegistrationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_requests_total",
			Help: "Total number of device registration attempts by outcome (count)",
		},
		[]string{"status"},
	)

	TrackingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_requests_total",
			Help: "Total number of notification tracking attempts by outcome (count)",
		},
		[]string{"status"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of events dropped before dispatch (count)",
		},
		[]string{"reason"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_ms",
			Help:    "Duration of event handling on the extension queue in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"kind"},
	)

	ExtensionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extension_queue_depth",
			Help: "Number of events waiting on the extension serial queue (count)",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	RedeliveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redelivery_attempts_total",
			Help: "Total number of redelivery attempts for events held on a pending configuration state (count)",
		},
		[]string{"topic"},
	)
)

var registerOnce sync.Once

// Register registers all bridge metrics with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RegistrationRequestsTotal,
			TrackingRequestsTotal,
			EventsDroppedTotal,
			DispatchDuration,
			ExtensionQueueDepth,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RateLimitRequestsTotal,
			KafkaMessagesReadTotal,
			RedeliveryAttemptsTotal,
		)
	})
}

func ObserveDispatchDuration(d time.Duration, kind string) {
	DispatchDuration.WithLabelValues(kind).Observe(float64(d.Milliseconds()))
}
