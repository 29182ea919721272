package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the criteria service
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Resolver metrics
	resolverRunsTotal  *prometheus.CounterVec
	resolverDuration   *prometheus.HistogramVec
	criteriaPredicates prometheus.Histogram
	permitLookupsTotal *prometheus.CounterVec

	// Database metrics
	dbQueriesTotal    *prometheus.CounterVec
	dbQueryDuration   *prometheus.HistogramVec
	dbConnections     prometheus.Gauge
	dbConnectionsIdle prometheus.Gauge
	dbConnectionsMax  prometheus.Gauge

	// System metrics
	systemUptime prometheus.Gauge
}

// NewMetrics creates and registers all metrics on the default registry.
// It must only be called once per process.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWithRegistry creates metrics registered on reg and exposed from
// gatherer.
func NewMetricsWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: gatherer,

		// HTTP metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "criteria_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "criteria_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "criteria_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		// Resolver metrics
		resolverRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "criteria_resolver_runs_total",
				Help: "Total number of resolver runs by outcome",
			},
			[]string{"resolver", "matched"},
		),
		resolverDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "criteria_resolver_duration_seconds",
				Help:    "Resolver latency in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
			[]string{"resolver"},
		),
		criteriaPredicates: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "criteria_predicates",
				Help:    "Number of leaf predicates per resolved criteria",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		permitLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "criteria_permit_lookups_total",
				Help: "Total number of permit cache lookups by result",
			},
			[]string{"result"},
		),

		// Database metrics
		dbQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "criteria_db_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "table", "status"},
		),
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "criteria_db_query_duration_seconds",
				Help:    "Database query latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation", "table"},
		),
		dbConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "criteria_db_connections",
				Help: "Current number of database connections",
			},
		),
		dbConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "criteria_db_connections_idle",
				Help: "Current number of idle database connections",
			},
		),
		dbConnectionsMax: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "criteria_db_connections_max",
				Help: "Maximum number of database connections",
			},
		),

		// System metrics
		systemUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "criteria_uptime_seconds",
				Help: "Time since the service started in seconds",
			},
		),
	}
}

// MetricsMiddleware returns a Fiber middleware that collects HTTP metrics
func (m *Metrics) MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		method := c.Method()

		err := c.Next()

		// The matched route keeps table names out of the label set.
		path := normalizePath(c.Route().Path)
		status := statusClass(c.Response().StatusCode())
		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

		return err
	}
}

// ObserveResolver records one resolver run. It has the signature of a
// resolver chain observer.
func (m *Metrics) ObserveResolver(name string, matched bool, elapsed time.Duration) {
	outcome := "false"
	if matched {
		outcome = "true"
	}
	m.resolverRunsTotal.WithLabelValues(name, outcome).Inc()
	m.resolverDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// RecordPredicates records the size of a resolved predicate tree
func (m *Metrics) RecordPredicates(n int) {
	m.criteriaPredicates.Observe(float64(n))
}

// RecordPermitLookup records a permit cache hit or miss
func (m *Metrics) RecordPermitLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.permitLookupsTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records database query metrics
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueriesTotal.WithLabelValues(operation, table, status).Inc()
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// UpdateDBStats updates database connection pool stats
func (m *Metrics) UpdateDBStats(total, idle, max int32) {
	m.dbConnections.Set(float64(total))
	m.dbConnectionsIdle.Set(float64(idle))
	m.dbConnectionsMax.Set(float64(max))
}

// UpdateUptime updates the system uptime metric
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.systemUptime.Set(time.Since(startTime).Seconds())
}

// Handler returns a Fiber handler that exposes Prometheus metrics
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}

// normalizePath bounds the cardinality of the path label
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	if len(path) > 50 {
		return "long_path"
	}
	return path
}

// statusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx)
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
