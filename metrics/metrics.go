// Package metrics records run statistics as Prometheus collectors.
//
// Collectors are registered on a caller-supplied registerer; exposing them
// over HTTP is left to the host process. A nil *Recorder is valid and records
// nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the agent collectors.
type Recorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	toolCallsTotal  *prometheus.CounterVec
	iterations      *prometheus.HistogramVec
	degradedTotal   *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg. A nil reg uses the default
// registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_requests_total",
				Help: "Total number of agent runs by pattern and status",
			},
			[]string{"pattern", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_request_duration_seconds",
				Help:    "Duration of agent runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pattern"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_errors_total",
				Help: "Total number of failed agent runs by error kind",
			},
			[]string{"pattern", "kind"},
		),
		toolCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_calls_total",
				Help: "Total number of tool invocations by tool and outcome code",
			},
			[]string{"tool", "code"},
		),
		iterations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_iterations",
				Help:    "Iterations used per completed run",
				Buckets: prometheus.LinearBuckets(0, 1, 11),
			},
			[]string{"pattern"},
		),
		degradedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_degraded_total",
				Help: "Total number of runs finished on a best-effort path by reason",
			},
			[]string{"pattern", "reason"},
		),
	}
}

// ObserveRun records a completed run.
func (r *Recorder) ObserveRun(pattern string, iterations int, degradedReasons []string, duration time.Duration) {
	if r == nil {
		return
	}
	status := "ok"
	if len(degradedReasons) > 0 {
		status = "degraded"
	}
	r.requestsTotal.WithLabelValues(pattern, status).Inc()
	r.requestDuration.WithLabelValues(pattern).Observe(duration.Seconds())
	r.iterations.WithLabelValues(pattern).Observe(float64(iterations))
	for _, reason := range degradedReasons {
		r.degradedTotal.WithLabelValues(pattern, reason).Inc()
	}
}

// ObserveError records a run that ended with an error of the given kind.
func (r *Recorder) ObserveError(pattern, kind string, duration time.Duration) {
	if r == nil {
		return
	}
	r.requestsTotal.WithLabelValues(pattern, "error").Inc()
	r.requestDuration.WithLabelValues(pattern).Observe(duration.Seconds())
	r.errorsTotal.WithLabelValues(pattern, kind).Inc()
}

// ObserveToolCall records one tool invocation. code is empty on success.
func (r *Recorder) ObserveToolCall(tool, code string) {
	if r == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	r.toolCallsTotal.WithLabelValues(tool, code).Inc()
}
