package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caesarsage/mini-pm/internal/schedule"
)

// Metrics holds the service's Prometheus collectors. It also serves as the
// scheduler's Observer.
type Metrics struct {
	gatherer prometheus.Gatherer
	factory  promauto.Factory

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	scheduleOutcomes *prometheus.CounterVec
	scheduleDuration prometheus.Histogram
	scheduleNodes    prometheus.Histogram
}

// NewMetrics registers every collector on reg. Use a fresh registry per
// server so tests can build several.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		factory:  f,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "minipm_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minipm_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		scheduleOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "minipm_schedule_outcomes_total",
			Help: "Schedule computations by outcome kind.",
		}, []string{"kind"}),
		scheduleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "minipm_schedule_duration_seconds",
			Help:    "Time spent building and sorting a dependency graph.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		scheduleNodes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "minipm_schedule_graph_nodes",
			Help:    "Node count of scheduled dependency graphs, ghosts included.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// TrackSessions exposes the live session count as a gauge read on scrape.
func (m *Metrics) TrackSessions(count func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "minipm_active_sessions",
		Help: "Sessions currently tracked, expired ones included until the next sweep.",
	}, func() float64 { return float64(count()) })
}

func (m *Metrics) ObserveSchedule(kind schedule.Kind, nodes int, elapsed time.Duration) {
	m.scheduleOutcomes.WithLabelValues(string(kind)).Inc()
	m.scheduleDuration.Observe(elapsed.Seconds())
	m.scheduleNodes.Observe(float64(nodes))
}

// Middleware records request count and latency labelled by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
