// Package observability holds the Prometheus metrics exported on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle results.
const (
	CycleOK        = "ok"
	CycleError     = "error"
	CycleCancelled = "cancelled"
	CycleLocked    = "locked"
)

var (
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbbot_cycles_total",
		Help: "Evaluation cycles by result",
	}, []string{"result"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbbot_cycle_duration_seconds",
		Help:    "Wall time of one evaluation cycle",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	Candidates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbbot_candidates",
		Help: "Candidates produced by the last cycle",
	})

	QuotesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbbot_quotes_skipped_total",
		Help: "Pairings skipped during evaluation by reason",
	}, []string{"reason"})

	InvalidPairings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbbot_invalid_pairings_total",
		Help: "Pairings rejected as structurally invalid",
	})

	OpportunitiesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbbot_opportunities_active",
		Help: "Opportunities currently open",
	})

	OpportunitiesClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbbot_opportunities_closed_total",
		Help: "Opportunities that have closed",
	})

	OpportunityDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbbot_opportunity_duration_seconds",
		Help:    "Lifetime of closed opportunities",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbbot_ws_clients",
		Help: "Connected WebSocket clients",
	})

	ArchiveRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbbot_archive_runs_total",
		Help: "Archive runs by result",
	}, []string{"result"})

	ArchivedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbbot_archived_rows_total",
		Help: "Rows written to cold storage by kind",
	}, []string{"kind"})
)
