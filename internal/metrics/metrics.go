// Package metrics provides Prometheus metrics for the console client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Outbound HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Total number of backend HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "Backend HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Chunked upload metrics
	uploadChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_upload_chunks_total",
			Help: "Total chunk uploads by outcome",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "console_upload_bytes_total",
			Help: "Total bytes sent in acknowledged chunks",
		},
	)

	uploadChunksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "console_upload_chunks_skipped_total",
			Help: "Chunks skipped because the server already had them",
		},
	)

	uploadMergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_upload_merges_total",
			Help: "Total merge requests by outcome",
		},
		[]string{"status"},
	)

	uploadDedupTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "console_upload_dedup_total",
			Help: "Uploads short-circuited because the file was already stored",
		},
	)

	// Access resolution metrics
	menuResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_menu_resolutions_total",
			Help: "Route table generation passes by access mode and outcome",
		},
		[]string{"mode", "status"},
	)

	menuRoutes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_menu_routes",
			Help: "Number of routes in the current route table",
		},
	)

	forbiddenFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_forbidden_fallbacks_total",
			Help: "Routes bound to the forbidden fallback",
		},
		[]string{"reason"},
	)

	// Validation metrics
	uniqueChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_unique_checks_total",
			Help: "Remote uniqueness checks by result",
		},
		[]string{"result"},
	)

	// Dictionary cache metrics
	dictLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_dict_lookups_total",
			Help: "Dictionary lookups by cache result",
		},
		[]string{"result"},
	)

	// Export sink metrics
	exportOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_export_operations_total",
			Help: "Export sink writes by backend and status",
		},
		[]string{"backend", "status"},
	)

	exportOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_export_operation_duration_seconds",
			Help:    "Export sink write duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	exportBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_export_bytes_total",
			Help: "Bytes written to export sinks",
		},
		[]string{"backend"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an outbound request. Status 0 means the
// request never got a response.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordChunkUpload records a single chunk upload.
func RecordChunkUpload(bytes int64, success bool) {
	if success {
		uploadChunksTotal.WithLabelValues("success").Inc()
		uploadBytesTotal.Add(float64(bytes))
		return
	}
	uploadChunksTotal.WithLabelValues("error").Inc()
}

// RecordChunksSkipped records chunks the server reported as present.
func RecordChunksSkipped(n int) {
	uploadChunksSkipped.Add(float64(n))
}

// RecordMerge records a merge request.
func RecordMerge(success bool) {
	uploadMergesTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordDedup records an upload answered by the server's existing copy.
func RecordDedup() {
	uploadDedupTotal.Inc()
}

// RecordMenuResolution records a route table generation pass.
func RecordMenuResolution(mode string, routes int, success bool) {
	menuResolutionsTotal.WithLabelValues(mode, statusLabel(success)).Inc()
	if success {
		menuRoutes.Set(float64(routes))
	}
}

// RecordForbiddenFallback records a route bound to the forbidden page.
// Reason is "unknown_component" or "denied".
func RecordForbiddenFallback(reason string) {
	forbiddenFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordUniqueCheck records a remote uniqueness check.
// Result is "free", "taken" or "error".
func RecordUniqueCheck(result string) {
	uniqueChecksTotal.WithLabelValues(result).Inc()
}

// RecordDictLookup records a dictionary cache lookup.
func RecordDictLookup(hit bool) {
	if hit {
		dictLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	dictLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordExport records one object written to an export sink.
func RecordExport(backend string, bytes int64, duration time.Duration, success bool) {
	exportOperationsTotal.WithLabelValues(backend, statusLabel(success)).Inc()
	exportOperationDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if success {
		exportBytesTotal.WithLabelValues(backend).Add(float64(bytes))
	}
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
