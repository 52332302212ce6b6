package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	RecordsIngested     atomic.Int64
	BatchesRejected     atomic.Int64
	PersistenceFailures atomic.Int64
	BroadcastsDelivered atomic.Int64
	DeliveryFailures    atomic.Int64
	SubscribersActive   atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "roadmonitor_records_ingested_total %d\n", RecordsIngested.Load())
	fmt.Fprintf(w, "roadmonitor_batches_rejected_total %d\n", BatchesRejected.Load())
	fmt.Fprintf(w, "roadmonitor_persistence_failures_total %d\n", PersistenceFailures.Load())
	fmt.Fprintf(w, "roadmonitor_broadcasts_delivered_total %d\n", BroadcastsDelivered.Load())
	fmt.Fprintf(w, "roadmonitor_delivery_failures_total %d\n", DeliveryFailures.Load())
	fmt.Fprintf(w, "roadmonitor_subscribers_active %d\n", SubscribersActive.Load())
}
