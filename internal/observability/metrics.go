package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automarked_http_requests_total",
			Help: "Total number of HTTP requests processed by the gateway.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automarked_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	restRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automarked_rest_client_requests_total",
			Help: "Total number of REST calls issued by the sync layer.",
		},
		[]string{"operation", "outcome"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "automarked_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"side"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automarked_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"side", "event"},
	)
	wsReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automarked_ws_reconnects_total",
			Help: "Total number of successful websocket reconnects.",
		},
	)
	unreadMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "automarked_unread_messages",
			Help: "Last known global unread-message count for the synced user.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automarked_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		restRequestsTotal,
		wsActiveConnections,
		wsEventsTotal,
		wsReconnectsTotal,
		unreadMessages,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
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

func IncRESTRequest(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	restRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func IncWSActive(side string) {
	wsActiveConnections.WithLabelValues(side).Inc()
}

func DecWSActive(side string) {
	wsActiveConnections.WithLabelValues(side).Dec()
}

func IncWSEvent(side, event string) {
	wsEventsTotal.WithLabelValues(side, event).Inc()
}

func IncWSReconnect() {
	wsReconnectsTotal.Inc()
}

func SetUnreadMessages(count int) {
	unreadMessages.Set(float64(count))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
