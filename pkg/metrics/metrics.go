package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Метрики Prometheus жизненного цикла заказов
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopify_webhook_events_total",
			Help: "Shopify order webhooks by ingestion outcome",
		},
		[]string{"outcome"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transitions by outcome",
		},
		[]string{"outcome"},
	)

	FanoutDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_deliveries_total",
			Help: "Order view deliveries by channel and result",
		},
		[]string{"channel", "result"},
	)

	ReminderNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_notifications_total",
			Help: "Reminder notifications by kind and result",
		},
		[]string{"kind", "result"},
	)

	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reminder_sweep_duration_seconds",
			Help:    "Duration of reminder sweeps",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(WebhookEventsTotal)
		prometheus.MustRegister(TransitionsTotal)
		prometheus.MustRegister(FanoutDeliveriesTotal)
		prometheus.MustRegister(ReminderNotificationsTotal)
		prometheus.MustRegister(SweepDuration)
	})
}

func ObserveHTTPRequest(method, handler string, status int, latency time.Duration) {
	if handler == "" {
		handler = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(handler, method).Observe(latency.Seconds())
}
