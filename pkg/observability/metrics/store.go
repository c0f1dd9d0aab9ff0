package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcome label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	// storeOperationDuration tracks document store operation latency.
	// Labels: operation, record, status
	storeOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docroute_store_operation_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "record", "status"},
	)

	// storeOperationsTotal counts document store operations.
	// Labels: operation, record, status
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docroute_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"operation", "record", "status"},
	)

	storeOperationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docroute_store_operations_in_flight",
			Help: "Current number of document store operations being processed",
		},
	)

	// batchItemsTotal counts items processed by batch operations.
	// Labels: operation, status
	batchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docroute_batch_items_total",
			Help: "Total number of items processed by batch operations",
		},
		[]string{"operation", "status"},
	)
)

// RecordStoreOperation records one finished store operation. record is the
// record type name; partitioned collection names are never used as labels.
func RecordStoreOperation(operation, record string, err error, duration time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	storeOperationDuration.WithLabelValues(operation, record, status).Observe(duration.Seconds())
	storeOperationsTotal.WithLabelValues(operation, record, status).Inc()
}

// RecordBatchItem counts one item of a batch operation.
func RecordBatchItem(operation string, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	batchItemsTotal.WithLabelValues(operation, status).Inc()
}

// IncrementInFlight increments the in-flight operations gauge.
func IncrementInFlight() {
	storeOperationsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight operations gauge.
func DecrementInFlight() {
	storeOperationsInFlight.Dec()
}
