// Package metrics records executor events as Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kuitang/storefront-e2e/internal/errs"
	"github.com/kuitang/storefront-e2e/internal/resilient"
)

const namespace = "storefront_e2e"

// Recorder implements resilient.Observer on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	attempts     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	recoveries   *prometheus.CounterVec
	diagFailures *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	callAttempts *prometheus.HistogramVec
}

var _ resilient.Observer = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_attempts_total",
			Help:      "Action attempts started.",
		}, []string{"action"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_attempt_failures_total",
			Help:      "Failed attempts, by error code.",
		}, []string{"action", "code"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_recoveries_total",
			Help:      "Session recoveries, by result.",
		}, []string{"action", "result"}),
		diagFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostic_capture_failures_total",
			Help:      "Screenshots that could not be captured.",
		}, []string{"action"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_outcomes_total",
			Help:      "Finished calls, by outcome.",
		}, []string{"action", "outcome"}),
		callAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_attempts_per_call",
			Help:      "Attempts used by each finished call.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}, []string{"action"}),
	}
	r.registry.MustRegister(r.attempts, r.failures, r.recoveries, r.diagFailures, r.outcomes, r.callAttempts)
	return r
}

// Registry exposes the registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) AttemptStarted(action string, _ int) {
	r.attempts.WithLabelValues(action).Inc()
}

func (r *Recorder) AttemptFailed(action string, _ int, err error) {
	r.failures.WithLabelValues(action, string(errs.CodeOf(err))).Inc()
}

func (r *Recorder) RecoveryFinished(action string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	r.recoveries.WithLabelValues(action, result).Inc()
}

func (r *Recorder) DiagnosticFailed(action string, _ error) {
	r.diagFailures.WithLabelValues(action).Inc()
}

func (r *Recorder) CallFinished(action string, attempts int, err error) {
	r.outcomes.WithLabelValues(action, Outcome(err)).Inc()
	r.callAttempts.WithLabelValues(action).Observe(float64(attempts))
}

// Outcome classifies a finished call.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var exhausted *resilient.ExhaustedError
	if errors.As(err, &exhausted) {
		return "exhausted"
	}
	if errs.CodeOf(err) == errs.Canceled {
		return "canceled"
	}
	return "error"
}

// WriteTextfile writes every metric in the node-exporter textfile format.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
