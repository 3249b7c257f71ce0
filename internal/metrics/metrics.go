package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayflow",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	checkoutAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayflow",
			Name:      "checkout_attempts_total",
			Help:      "Checkout attempts by outcome.",
		},
		[]string{"outcome"},
	)

	webhookResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayflow",
			Name:      "payment_webhooks_total",
			Help:      "Payment provider callbacks by result.",
		},
		[]string{"result"},
	)

	sweeperExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stayflow",
			Name:      "sweeper_expired_total",
			Help:      "Bookings cancelled by the expiration sweeper.",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stayflow",
			Name:      "booking_transitions_total",
			Help:      "Booking state transitions by event.",
		},
		[]string{"event"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, checkoutAttempts, webhookResults, sweeperExpired, transitions)
	})
}

// IncHTTP increments the counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncCheckout increments checkout attempts for an outcome label.
func IncCheckout(outcome string) {
	checkoutAttempts.WithLabelValues(outcome).Inc()
}

// IncWebhook increments callback results for a result label.
func IncWebhook(result string) {
	webhookResults.WithLabelValues(result).Inc()
}

// AddExpired counts bookings expired by a sweep run.
func AddExpired(n int) {
	sweeperExpired.Add(float64(n))
}

// IncTransition counts a successful booking transition.
func IncTransition(event string) {
	transitions.WithLabelValues(event).Inc()
}
