package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// TrafficRequests counts traffic service lookups by outcome (ok, fallback, cached)
	TrafficRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "traffic_requests_total", Help: "Traffic flow lookups by outcome."},
		[]string{"outcome"},
	)
	// JobTransitions counts optimization job state transitions
	JobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimization_job_transitions_total", Help: "Job state transitions."},
		[]string{"status"},
	)
	// SolverDuration records end-to-end solve durations in seconds
	SolverDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "solver_duration_seconds", Help: "Solver wall-clock time in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60}},
	)
	// MatrixBuildDuration records cost matrix build durations in seconds
	MatrixBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "matrix_build_duration_seconds", Help: "Cost matrix build time in seconds.", Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120}},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(TrafficRequests)
		Registry.MustRegister(JobTransitions)
		Registry.MustRegister(SolverDuration)
		Registry.MustRegister(MatrixBuildDuration)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
