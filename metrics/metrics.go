// Package metrics holds the prometheus collectors for query execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes. STATUS_ABORTED means the row callback stopped the query.
const (
	STATUS_OK      = "ok"
	STATUS_ERROR   = "error"
	STATUS_FATAL   = "fatal"
	STATUS_ABORTED = "aborted"
)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petrosql_queries_total",
			Help: "Queries executed, by statement type and outcome.",
		}, []string{"type", "status"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petrosql_rows_returned_total",
			Help: "Rows handed to query callbacks.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "petrosql_query_duration_seconds",
			Help:    "Time spent executing a query, by statement type.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"type"}),
		nodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petrosql_btree_nodes_allocated_total",
			Help: "B-tree nodes allocated across all tables.",
		}),
	}

	for _, c := range []prometheus.Collector{m.queries, m.rows, m.duration, m.nodes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveQuery records one finished query. A nil Metrics records nothing.
func (m *Metrics) ObserveQuery(typ, status string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.queries.WithLabelValues(typ, status).Inc()
	m.rows.Add(float64(rows))
	m.duration.WithLabelValues(typ).Observe(elapsed.Seconds())
}

func (m *Metrics) NodeAllocated() {
	if m == nil {
		return
	}
	m.nodes.Inc()
}

type Metrics struct {
	queries  *prometheus.CounterVec
	rows     prometheus.Counter
	duration *prometheus.HistogramVec
	nodes    prometheus.Counter
}
