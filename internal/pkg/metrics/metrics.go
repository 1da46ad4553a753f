package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "priceframe",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "priceframe",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "priceframe",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Extract cache metrics
	ExtractHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "priceframe",
		Subsystem: "extracts",
		Name:      "hits_total",
		Help:      "Total range queries answered from a persisted extract",
	})

	ExtractMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "priceframe",
		Subsystem: "extracts",
		Name:      "misses_total",
		Help:      "Total range queries that required an external fetch",
	})

	ExtractLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "priceframe",
		Subsystem: "extracts",
		Name:      "loads_total",
		Help:      "Total extract file loads",
	}, []string{"status"})

	ExtractSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "priceframe",
		Subsystem: "extracts",
		Name:      "saves_total",
		Help:      "Total extract file saves",
	}, []string{"status"})

	// External collaborator metrics
	StoreFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "priceframe",
		Subsystem: "store",
		Name:      "range_fetches_total",
		Help:      "Total range fetches against the transactional store",
	}, []string{"shape", "status"})

	OverpassRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "priceframe",
		Subsystem: "overpass",
		Name:      "requests_total",
		Help:      "Total Overpass API requests",
	}, []string{"category", "status"})

	OverpassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "priceframe",
		Subsystem: "overpass",
		Name:      "request_duration_seconds",
		Help:      "Duration of Overpass API requests",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "priceframe",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "priceframe",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "priceframe",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics publishes pgx pool stats as gauges.
func UpdateDBPoolMetrics(stat *pgxpool.Stat) {
	DBPoolConnsOpen.Set(float64(stat.TotalConns()))
	DBPoolConnsAcquired.Set(float64(stat.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(stat.IdleConns()))
}
