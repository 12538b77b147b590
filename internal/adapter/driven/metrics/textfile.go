// Package metrics exports run summaries in the Prometheus text format for a
// node-exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/port/driven"
)

const namespace = "midpoint_password_agent"

var _ driven.RunRecorder = (*TextfileRecorder)(nil)

// TextfileRecorder writes the last run as a set of gauges. Each call replaces
// the previous file.
type TextfileRecorder struct {
	path string
}

// NewTextfileRecorder returns a recorder that writes to path.
func NewTextfileRecorder(path string) *TextfileRecorder {
	return &TextfileRecorder{path: path}
}

// Path returns the output file.
func (r *TextfileRecorder) Path() string {
	return r.path
}

// Record renders summary into a fresh registry and writes it atomically.
func (r *TextfileRecorder) Record(summary model.RunSummary) error {
	reg := prometheus.NewRegistry()

	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "records",
		Help:      "Spool files handled by the last run, by outcome.",
	}, []string{"status"})
	timestamp := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_duration_seconds",
		Help:      "Wall-clock duration of the last run.",
	})
	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_success",
		Help:      "1 if the last run completed without failures, 0 otherwise.",
	})

	reg.MustRegister(records, timestamp, duration, success)

	records.WithLabelValues("discovered").Set(float64(summary.Discovered))
	records.WithLabelValues(string(model.RecordStatusMalformed)).Set(float64(summary.Malformed))
	records.WithLabelValues(string(model.RecordStatusStale)).Set(float64(summary.Stale))
	records.WithLabelValues(string(model.RecordStatusApplied)).Set(float64(summary.Applied))
	records.WithLabelValues(string(model.RecordStatusFailed)).Set(float64(summary.Failed))

	timestamp.Set(float64(summary.FinishedAt.UnixMilli()) / 1e3)
	duration.Set(summary.Duration().Seconds())
	if summary.Succeeded() {
		success.Set(1)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir %s: %w", dir, err)
		}
	}

	if err := prometheus.WriteToTextfile(r.path, reg); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", r.path, err)
	}

	return nil
}
