// Package metrics provides Prometheus instrumentation for solforge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Deployment pipeline metrics
	deploymentTotal     *prometheus.CounterVec
	compileTotal        *prometheus.CounterVec
	artifactUploadTotal *prometheus.CounterVec

	// Verification metrics
	verificationTotal   *prometheus.CounterVec
	verificationBacklog prometheus.Gauge

	// Analytics metrics
	analyticsDroppedTotal prometheus.Counter
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	deploymentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployment_total",
			Help: "Total number of contract deployments attempted",
		},
		[]string{"chain", "status"},
	)

	compileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compile_total",
			Help: "Total number of solc compilations",
		},
		[]string{"status"},
	)

	artifactUploadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_upload_total",
			Help: "Total number of IPFS artifact uploads",
		},
		[]string{"status"},
	)

	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_request_total",
			Help: "Total number of explorer verification requests",
		},
		[]string{"result"},
	)

	verificationBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verification_backlog",
			Help: "Pending verifications remaining after the last sweep",
		},
	)

	analyticsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_events_dropped_total",
			Help: "Analytics events dropped because the queue was full",
		},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
