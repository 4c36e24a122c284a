package clickhouse

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nodeQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickaudit_node_queries_total",
			Help: "Total number of telemetry queries issued to cluster nodes",
		},
		[]string{"op", "node", "status"},
	)

	rowsStreamedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clickaudit_rows_streamed_total",
			Help: "Total number of pre-aggregated rows streamed from cluster nodes",
		},
		[]string{"op"},
	)

	nodeQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clickaudit_node_query_duration_seconds",
			Help:    "Duration of per-node query execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
