package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// API metrics (low-cardinality: route template, not raw path)
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpeel_requests_total",
			Help: "Total API responses by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webpeel_request_duration_seconds",
			Help:    "End-to-end API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpeel_fetches_total",
			Help: "Total page fetches by strategy and cache result",
		},
		[]string{"method", "cache"},
	)
	jobsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "webpeel_jobs_inflight",
			Help: "Number of crawl and batch jobs currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestDuration,
		fetchesTotal,
		jobsInflight,
	)
}

// Metrics records per-request counters and latency. Uses the matched
// route template so URL parameters do not explode label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveFetch records one page fetch outcome.
func ObserveFetch(method, cache string) {
	if method == "" {
		method = "none"
	}
	if cache == "" {
		cache = "bypass"
	}
	fetchesTotal.WithLabelValues(method, cache).Inc()
}

func JobStarted()  { jobsInflight.Inc() }
func JobFinished() { jobsInflight.Dec() }
