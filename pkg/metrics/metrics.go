package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AvailabilityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_availability_checks_total",
		Help: "Availability checks by result (available, occupied, error).",
	}, []string{"result"})

	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_conflicts_total",
		Help: "Rejected assignments because the resource was held over an overlapping window.",
	}, []string{"kind", "operation"})

	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_subscription_mutations_total",
		Help: "Subscription mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	SubscriptionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_subscriptions_expired_total",
		Help: "Active subscriptions moved to expired by the sweep.",
	})

	AuditPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_audit_publish_failures_total",
		Help: "Audit events that could not be published on the first attempt.",
	})

	AuditRetryQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "occupancy_audit_retry_queue_size",
		Help: "Audit events waiting for another publish attempt.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// GinMiddleware records request latency under the matched route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
