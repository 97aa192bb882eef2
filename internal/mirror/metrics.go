package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncTotal counts per-row sync outcomes.
	// Labels: collection, status (committed, partial, failed)
	SyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namingd",
			Subsystem: "mirror",
			Name:      "sync_total",
			Help:      "Total number of per-row mirror syncs by outcome",
		},
		[]string{"collection", "status"},
	)

	// DriftTotal counts catalog changes the index did not receive.
	DriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namingd",
			Subsystem: "mirror",
			Name:      "drift_total",
			Help:      "Total number of catalog changes not reflected in the similarity index",
		},
		[]string{"collection"},
	)

	// ResyncRecords is the record count written by the last bulk resync.
	ResyncRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "namingd",
			Subsystem: "mirror",
			Name:      "resync_records",
			Help:      "Records written by the most recent bulk resync",
		},
		[]string{"collection"},
	)

	// ResyncDuration tracks bulk resync duration.
	ResyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "namingd",
			Subsystem: "mirror",
			Name:      "resync_duration_seconds",
			Help:      "Duration of bulk resync operations in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"collection"},
	)
)
