package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	csRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cybersentinel_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	csRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cybersentinel_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	csAnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cybersentinel_analyses_total",
		Help: "Total analyses by outcome.",
	}, []string{"outcome"})

	csAnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cybersentinel_analysis_duration_seconds",
		Help:    "End-to-end analysis pipeline duration in seconds.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	csTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cybersentinel_tokens_total",
		Help: "Total tokens reported by the completion service.",
	})

	csReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cybersentinel_reports_total",
		Help: "Total report renders by outcome.",
	}, []string{"outcome"})

	csRetrievalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cybersentinel_retrieval_total",
		Help: "Total knowledge-base lookups by result.",
	}, []string{"result"})

	csDependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cybersentinel_dependency_up",
		Help: "1 if the dependency answered its last probe.",
	}, []string{"dependency"})
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

		csRequestsTotal.WithLabelValues(method, path, status).Inc()
		csRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// outcome labels an error by the status class it maps to.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	status, _ := errorStatus(err)
	switch status {
	case http.StatusServiceUnavailable:
		return "unreachable"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "error"
	}
}

// RecordAnalysis records one pipeline run. It matches analysis.AnalysisRecordFunc.
func RecordAnalysis(err error, duration time.Duration, tokens int) {
	csAnalysesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return
	}
	csAnalysisDuration.Observe(duration.Seconds())
	if tokens > 0 {
		csTokensTotal.Add(float64(tokens))
	}
}

// RecordReport records one render. It matches analysis.ReportRecordFunc.
func RecordReport(err error) {
	csReportsTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordRetrieval records a retrieval result label.
func RecordRetrieval(result string) {
	csRetrievalTotal.WithLabelValues(result).Inc()
}

// RecordDependency sets the up gauge for a probed dependency.
func RecordDependency(dependency string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	csDependencyUp.WithLabelValues(dependency).Set(v)
}
