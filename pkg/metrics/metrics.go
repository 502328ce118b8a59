// Package metrics exposes the Prometheus registry and scrape handler shared by
// the lunch meetups service. Collectors live next to the code they measure
// (client, pipeline, health) and register through promauto, so this
// package only documents them and serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto collectors use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

var buildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "lunch_build_info",
		Help: "Always 1, labelled with the running version",
	},
	[]string{"version"},
)

// SetBuildInfo publishes the running version.
func SetBuildInfo(version string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Upstream Request Metrics (pkg/client):
//   - lunch_upstream_requests_total{mode, status} (Counter): directory requests by partition mode and HTTP status
//   - lunch_upstream_request_duration_seconds{mode} (Histogram): partition query latency, retries included
//   - lunch_upstream_errors_total{class} (Counter): failed requests by error class
//
// Retry Metrics (pkg/client):
//   - lunch_upstream_retries_total{error_class} (Counter): retry attempts
//   - lunch_upstream_retry_backoff_seconds{error_class} (Histogram): backoff waited before a retry
//   - lunch_upstream_retry_exhausted_total{error_class} (Counter): requests that ran out of retries
//
// Pipeline Metrics (pkg/pipeline):
//   - lunch_pipeline_runs_total{outcome} (Counter): runs by outcome (upstream, fallback, timeout, cancelled)
//   - lunch_pipeline_duration_seconds (Histogram): end to end run latency
//   - lunch_fallback_total{reason} (Counter): synthetic results served (all_failed, empty)
//   - lunch_partition_failures_total (Counter): partitions that produced no envelope
//   - lunch_events_returned (Histogram): events in each returned envelope
//
// Health Metrics (pkg/health):
//   - lunch_upstream_consecutive_failed_runs (Gauge): runs in a row where every partition failed
//   - lunch_upstream_degraded (Gauge): 1 while the failure streak is at or above the threshold
//   - lunch_health_record_errors_total (Counter): failed writes of run outcomes to Redis
//
// Example Prometheus Queries:
//
//   # Share of runs answered with placeholder events
//   sum(rate(lunch_fallback_total[1h])) / sum(rate(lunch_pipeline_runs_total[1h]))
//
//   # Upstream failing
//   lunch_upstream_degraded == 1
//
//   # P95 run latency
//   histogram_quantile(0.95, rate(lunch_pipeline_duration_seconds_bucket[5m]))
