package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_mutations_total",
			Help: "Total number of optimistic mutations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	rollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_rollbacks_total",
			Help: "Total number of snapshot rollbacks by mutation kind.",
		},
		[]string{"kind"},
	)
	cacheAppliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cache_applies_total",
			Help: "Total number of mutations applied to the cache.",
		},
		[]string{"name"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_ws_events_total",
			Help: "Total number of websocket events by type and direction.",
		},
		[]string{"event", "direction"},
	)
	wsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_ws_connected",
			Help: "Whether the event channel is currently connected.",
		},
	)
	wsReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_ws_reconnects_total",
			Help: "Total number of websocket reconnect attempts.",
		},
	)
	staleEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_stale_events_total",
			Help: "Total number of push events dropped as stale.",
		},
		[]string{"event"},
	)
	typingEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_typing_entries",
			Help: "Number of live typing-indicator entries.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_http_requests_total",
			Help: "Total number of HTTP requests served by the status endpoint.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_http_request_duration_seconds",
			Help:    "Status endpoint request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mutationsTotal,
		rollbacksTotal,
		cacheAppliesTotal,
		wsEventsTotal,
		wsConnected,
		wsReconnectsTotal,
		staleEventsTotal,
		typingEntries,
		httpRequestsTotal,
		httpRequestDuration,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies for the
// local status server.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMutation(kind, outcome string) {
	mutationsTotal.WithLabelValues(kind, outcome).Inc()
}

func IncRollback(kind string) {
	rollbacksTotal.WithLabelValues(kind).Inc()
}

func IncCacheApply(name string) {
	cacheAppliesTotal.WithLabelValues(name).Inc()
}

func IncWSEvent(event, direction string) {
	wsEventsTotal.WithLabelValues(event, direction).Inc()
}

func SetWSConnected(connected bool) {
	if connected {
		wsConnected.Set(1)
		return
	}
	wsConnected.Set(0)
}

func IncWSReconnect() {
	wsReconnectsTotal.Inc()
}

func IncStaleEvent(event string) {
	staleEventsTotal.WithLabelValues(event).Inc()
}

func SetTypingEntries(n int) {
	typingEntries.Set(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
