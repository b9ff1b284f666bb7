package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. Strategy counters
// exist to support offline tuning of the keyword/threshold tables: a chain
// whose high-confidence strategies rarely hit is a chain whose tables need
// work.
type Metrics struct {
	StrategyAttempts *prometheus.CounterVec
	StrategyHits     *prometheus.CounterVec
	ExternalFailures *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		StrategyAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agewise_strategy_attempts_total",
			Help: "Resolver strategy attempts",
		}, []string{"chain", "strategy"}),
		StrategyHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agewise_strategy_hits_total",
			Help: "Resolver strategy attempts that met the confidence floor",
		}, []string{"chain", "strategy"}),
		ExternalFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agewise_external_failures_total",
			Help: "Failed outbound calls",
		}, []string{"provider"}), // 'vision', 'places', 'routes', 'scrape'
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agewise_analysis_duration_seconds",
			Help:    "End-to-end analysis duration",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agewise_http_requests_total",
			Help: "HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agewise_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncStrategyAttempt(chain, strategy string) {
	m.StrategyAttempts.WithLabelValues(chain, strategy).Inc()
}

func (m *Metrics) IncStrategyHit(chain, strategy string) {
	m.StrategyHits.WithLabelValues(chain, strategy).Inc()
}

func (m *Metrics) IncExternalFailure(provider string) {
	m.ExternalFailures.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveAnalysis(d time.Duration) {
	m.AnalysisDuration.Observe(d.Seconds())
}

// GinMiddleware records request counts and durations per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus scrape endpoint through gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
