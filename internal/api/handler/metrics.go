package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainledger_records",
		Help: "Number of records in the chain, genesis included.",
	})

	ledgerAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainledger_appends_total",
		Help: "Total records appended since start.",
	})

	ledgerVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainledger_verifications_total",
		Help: "Total integrity verifications by result.",
	}, []string{"result"})

	ledgerRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainledger_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by class (read or write).",
	}, []string{"class"})

	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		ledgerRequestsTotal.WithLabelValues(method, path, status).Inc()
		ledgerRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAppend records an append that brought the chain to length records.
func RecordAppend(records int) {
	ledgerAppendsTotal.Inc()
	ledgerRecords.Set(float64(records))
}

// SetRecordsGauge sets the chain length gauge.
func SetRecordsGauge(records int) {
	ledgerRecords.Set(float64(records))
}

// RecordVerification records an integrity verification result.
func RecordVerification(valid bool) {
	if valid {
		ledgerVerificationsTotal.WithLabelValues("valid").Inc()
	} else {
		ledgerVerificationsTotal.WithLabelValues("invalid").Inc()
	}
}

func recordRateLimited(class string) {
	ledgerRateLimitedTotal.WithLabelValues(class).Inc()
}
