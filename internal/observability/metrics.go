// Package observability records Prometheus metrics for workflow runs, tool
// calls and HTTP requests.
package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevehiehn/deskagent/internal/engine"
)

var stepDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Outcome label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Metrics holds the Prometheus instruments for the agent.
type Metrics struct {
	WorkflowRunsTotal    *prometheus.CounterVec
	WorkflowStepsTotal   *prometheus.CounterVec
	WorkflowStepDuration *prometheus.HistogramVec
	ToolCallsTotal       *prometheus.CounterVec
	DemoRunsTotal        *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// InitMetrics creates and registers every instrument on reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WorkflowRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskagent_workflow_runs_total",
			Help: "Total number of workflow runs by outcome.",
		}, []string{"outcome"}),
		WorkflowStepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskagent_workflow_steps_total",
			Help: "Total number of executed workflow steps.",
		}, []string{"tool", "outcome"}),
		WorkflowStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deskagent_workflow_step_duration_seconds",
			Help:    "Workflow step duration in seconds.",
			Buckets: stepDurationBuckets,
		}, []string{"tool"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskagent_tool_calls_total",
			Help: "Total number of direct tool calls from MCP clients.",
		}, []string{"tool", "outcome"}),
		DemoRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskagent_demo_runs_total",
			Help: "Total number of terminal demo runs by outcome.",
		}, []string{"outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskagent_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deskagent_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),
	}

	reg.MustRegister(
		m.WorkflowRunsTotal,
		m.WorkflowStepsTotal,
		m.WorkflowStepDuration,
		m.ToolCallsTotal,
		m.DemoRunsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSucceeded
	}
	return OutcomeFailed
}

// StepFinished implements engine.Observer.
func (m *Metrics) StepFinished(r engine.StepResult) {
	tool := "unknown"
	if r.Tool != nil {
		tool = *r.Tool
	}
	m.WorkflowStepsTotal.WithLabelValues(tool, outcome(r.Succeeded)).Inc()
	m.WorkflowStepDuration.WithLabelValues(tool).Observe(float64(r.DurationMS) / 1000)
}

// RunFinished implements engine.Observer. Runs rejected before any step
// executed are counted separately.
func (m *Metrics) RunFinished(r *engine.Report) {
	if r.StepCount == 0 {
		m.WorkflowRunsTotal.WithLabelValues(OutcomeRejected).Inc()
		return
	}
	m.WorkflowRunsTotal.WithLabelValues(outcome(r.Succeeded)).Inc()
}

// RecordToolCall records a direct tool call.
func (m *Metrics) RecordToolCall(tool string, succeeded bool) {
	m.ToolCallsTotal.WithLabelValues(tool, outcome(succeeded)).Inc()
}

// RecordDemo records a terminal demo run.
func (m *Metrics) RecordDemo(succeeded bool) {
	m.DemoRunsTotal.WithLabelValues(outcome(succeeded)).Inc()
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
}

// MetricsMiddleware records request metrics labelled with chi's route
// pattern rather than the raw path.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start))
	})
}

// Handler serves the metrics gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.TrimSuffix(strings.Join(rctx.RoutePatterns, ""), "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// statusWriter captures the response status. It forwards Flush so
// streaming handlers keep working behind the middleware.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
