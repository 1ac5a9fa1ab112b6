// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Promotion attempts partitioned by outcome (ok, user_personal_cooldown, community_cooldown, not_found, error)
	Promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostboard_promotions_total",
			Help: "Promotion attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Webhook deliveries partitioned by normalized event type and outcome
	Webhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostboard_webhook_events_total",
			Help: "Payment webhook deliveries by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	TiersNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boostboard_tiers_normalized_total",
			Help: "Communities reset to the normal tier by the background sweep",
		},
	)

	ListingCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostboard_listing_cache_total",
			Help: "Community promotion listing cache lookups by result",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Middleware records request count and latency per route template.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // template keeps cardinality low
		}
		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(c.Response().StatusCode()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
		return err
	}
}
