package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/noah-isme/eco-coord-api/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eco_coord_http_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eco_coord_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	workflowTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eco_coord_workflow_transitions_total",
		Help: "Applied workflow transitions by trigger and result.",
	}, []string{"trigger", "result"})
)

// ObserveTransition records a workflow transition attempt for Prometheus.
func ObserveTransition(trigger, result string) {
	workflowTransitionsTotal.WithLabelValues(trigger, result).Inc()
}

// Metrics records request counters into Prometheus and the in-process
// snapshot service.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())
		if metrics != nil {
			metrics.RecordRequest(elapsed)
		}
	}
}
