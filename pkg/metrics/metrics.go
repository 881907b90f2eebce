// Package metrics provides the Prometheus registry reference for the ETL
// pipeline. All metrics are defined in their owning packages (client,
// pipeline) to maintain modularity and avoid circular dependencies.
//
// This package documents the available metrics in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry. All metrics are registered
// automatically via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - animal_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - animal_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - animal_api_errors_total{class} (Counter): Errors by class (client, server, network, validation)
//
// Retry Metrics (pkg/client):
//   - animal_api_retries_total{error_class} (Counter): Retry attempts by error class
//   - animal_api_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - animal_api_retry_exhausted_total{error_class} (Counter): Calls that exhausted max retries
//
// Pipeline Metrics (pkg/pipeline):
//   - animal_pipeline_pages_total (Counter): Listing pages fetched by the producer
//   - animal_pipeline_records_total{stage} (Counter): Records by stage (fetched, transformed, loaded)
//   - animal_pipeline_batches_total (Counter): Batches loaded to the home endpoint
//   - animal_pipeline_queue_depth (Gauge): Work items buffered between producer and consumers
//
// Example Prometheus Queries:
//
//   # Retry Rate
//   rate(animal_api_retries_total[5m]) / rate(animal_api_requests_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(animal_api_request_duration_seconds_bucket[5m]))
//
//   # Record Loss Across Stages
//   animal_pipeline_records_total{stage="fetched"} - ignoring(stage) animal_pipeline_records_total{stage="loaded"}
