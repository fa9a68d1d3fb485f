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
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Safety metrics. Labels never carry message content.
	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_classifications_total",
			Help: "Total number of classified messages by safety level",
		},
		[]string{"level"},
	)

	postProcessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_postprocess_total",
			Help: "Total number of post-processed AI responses by outcome",
		},
		[]string{"outcome"},
	)

	violationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_violations_total",
			Help: "Total number of golden rule violations by rule",
		},
		[]string{"rule"},
	)

	modelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_model_calls_total",
			Help: "Total number of AI model calls by result",
		},
		[]string{"result"},
	)

	auditWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_audit_writes_total",
			Help: "Total number of audit entry writes by result",
		},
		[]string{"result"},
	)

	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safety_pipeline_duration_seconds",
			Help:    "End to end guardrail pipeline duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"level"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath keeps label cardinality bounded
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// RecordClassification counts a pre-processing decision
func RecordClassification(level string) {
	classificationsTotal.WithLabelValues(level).Inc()
}

// RecordPostProcess counts a post-processing outcome ("approved" or "blocked")
func RecordPostProcess(approved bool) {
	outcome := "blocked"
	if approved {
		outcome = "approved"
	}
	postProcessTotal.WithLabelValues(outcome).Inc()
}

// RecordViolation counts one golden rule violation
func RecordViolation(rule string) {
	violationsTotal.WithLabelValues(rule).Inc()
}

// RecordModelCall counts a model call ("ok", "error" or "timeout")
func RecordModelCall(result string) {
	modelCallsTotal.WithLabelValues(result).Inc()
}

// RecordAuditWrite counts an audit write ("ok", "failed" or "dropped")
func RecordAuditWrite(result string) {
	auditWritesTotal.WithLabelValues(result).Inc()
}

// ObservePipeline records how long a message took through the guardrails
func ObservePipeline(level string, duration time.Duration) {
	pipelineDuration.WithLabelValues(level).Observe(duration.Seconds())
}
