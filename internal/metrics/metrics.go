package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/schema"
)

// Metrics holds the collectors of one client. Each instance owns its registry so
// several clients can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	// StatementsTotal counts executed statements by kind and outcome.
	StatementsTotal *prometheus.CounterVec

	// StatementDuration is the latency of statements by kind.
	StatementDuration *prometheus.HistogramVec

	// RowsReturned observes the result size of each statement.
	RowsReturned *prometheus.HistogramVec

	// HTTPRequestsTotal counts API requests by method, route, and status.
	HTTPRequestsTotal *prometheus.CounterVec

	// EventsRelayed counts change events handed to the relay handler by outcome.
	EventsRelayed *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go runtime
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StatementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsql_statements_total",
				Help: "Total number of executed SQL statements",
			},
			[]string{"kind", "status"},
		),
		StatementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsql_statement_duration_seconds",
				Help:    "SQL statement latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		RowsReturned: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsql_rows_returned",
				Help:    "Rows returned per statement",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"kind"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsql_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		EventsRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsql_changefeed_events_relayed_total",
				Help: "Change events handed to the relay handler",
			},
			[]string{"status"},
		),
	}
}

// ObserveStatement records the outcome of one statement.
func (m *Metrics) ObserveStatement(kind string, err error, duration time.Duration, rows int) {
	m.StatementsTotal.WithLabelValues(kind, Status(err)).Inc()
	m.StatementDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if err == nil {
		m.RowsReturned.WithLabelValues(kind).Observe(float64(rows))
	}
}

// ObserveRelay records one relayed change event.
func (m *Metrics) ObserveRelay(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsRelayed.WithLabelValues(status).Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Status classifies an execution error into a low-cardinality label.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrSyntax):
		return "syntax_error"
	case errors.Is(err, core.ErrTableNotFound), errors.Is(err, core.ErrTableExists),
		errors.Is(err, schema.ErrColumnNotFound), errors.Is(err, schema.ErrColumnExists),
		errors.Is(err, schema.ErrConstraintNotFound), errors.Is(err, core.ErrInvalidDefinition):
		return "schema_error"
	case errors.Is(err, core.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, core.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, core.ErrUnsupportedStatement), errors.Is(err, core.ErrUnsupportedJoinKind),
		errors.Is(err, core.ErrUnsupportedOperator):
		return "unsupported"
	default:
		return "error"
	}
}
