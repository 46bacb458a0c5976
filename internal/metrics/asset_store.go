// Package metrics provides Prometheus instrumentation for the asset pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AssetStore records remote asset store calls.
//
// A nil AssetStore is valid and records nothing, so callers that run without
// metrics pay no overhead:
//
//	store := objectstore.New(client, cfg, nil)
type AssetStore interface {
	ObserveOperation(operation, kind string, err error, duration time.Duration)
}

type assetStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewAssetStore registers the asset store collectors on reg.
func NewAssetStore(reg prometheus.Registerer) AssetStore {
	return &assetStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookvault_asset_store_operations_total",
				Help: "Total number of asset store operations by operation, kind and status",
			},
			[]string{"operation", "kind", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "bookvault_asset_store_operation_duration_milliseconds",
				Help: "Duration of asset store operations in milliseconds",
				Buckets: []float64{
					10,    // 10ms - deletes
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms - small covers
					1000,  // 1s
					5000,  // 5s - large documents
					10000, // 10s
					30000, // 30s - 30MB over a slow link
				},
			},
			[]string{"operation", "kind"},
		),
	}
}

func (m *assetStoreMetrics) ObserveOperation(operation, kind string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, kind, status).Inc()
	m.operationDuration.WithLabelValues(operation, kind).Observe(float64(duration.Milliseconds()))
}

// ObserveAssetOperation records an operation on m if it is non-nil.
func ObserveAssetOperation(m AssetStore, operation, kind string, err error, start time.Time) {
	if m != nil {
		m.ObserveOperation(operation, kind, err, time.Since(start))
	}
}
