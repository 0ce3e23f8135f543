package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	herrors "harvester/pkg/errors"
	"harvester/pkg/models"
)

// Sweep collects per-source sweep counters in its own registry so it can be
// written out as a node_exporter textfile after a run.
type Sweep struct {
	registry *prometheus.Registry

	units     *prometheus.CounterVec
	records   *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	retries   *prometheus.CounterVec
	cursor    *prometheus.GaugeVec
	exhausted *prometheus.GaugeVec
	lastRun   *prometheus.GaugeVec
}

// NewSweep creates and registers the sweep collectors
func NewSweep() *Sweep {
	s := &Sweep{
		registry: prometheus.NewRegistry(),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "units_total",
			Help:      "Work units completed and checkpointed.",
		}, []string{"source"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "records_total",
			Help:      "Records appended to the sink.",
		}, []string{"source"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "skipped_units_total",
			Help:      "Work units abandoned after the retry budget was spent.",
		}, []string{"source"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "retries_total",
			Help:      "Request retries by error type.",
		}, []string{"source", "type"}),
		cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "harvester",
			Name:      "cursor",
			Help:      "Checkpoint cursor after the last completed unit.",
		}, []string{"source"}),
		exhausted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "harvester",
			Name:      "exhausted",
			Help:      "1 once the sweep has consumed its whole address space.",
		}, []string{"source"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "harvester",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}, []string{"source"}),
	}

	s.registry.MustRegister(s.units, s.records, s.skipped, s.retries, s.cursor, s.exhausted, s.lastRun)
	return s
}

// Registry exposes the underlying registry
func (s *Sweep) Registry() *prometheus.Registry {
	return s.registry
}

// ObserveUnit counts one checkpointed unit
func (s *Sweep) ObserveUnit(source string, _ models.WorkUnit, records int, skipped bool) {
	s.units.WithLabelValues(source).Inc()
	s.records.WithLabelValues(source).Add(float64(records))
	if skipped {
		s.skipped.WithLabelValues(source).Inc()
	}
}

// ObserveCursor records the checkpoint position
func (s *Sweep) ObserveCursor(source string, cursor int64, exhausted bool) {
	s.cursor.WithLabelValues(source).Set(float64(cursor))
	s.exhausted.WithLabelValues(source).Set(boolToFloat(exhausted))
}

// RetryHook returns a callback for retry.Config.OnRetry
func (s *Sweep) RetryHook(source string) func(attempt int, err error, delay time.Duration) {
	return func(_ int, err error, _ time.Duration) {
		s.retries.WithLabelValues(source, string(herrors.TypeOf(err))).Inc()
	}
}

// MarkRun stamps the end of a run
func (s *Sweep) MarkRun(source string, at time.Time) {
	s.lastRun.WithLabelValues(source).Set(float64(at.Unix()))
}

// WriteTextfile writes all collectors to path in the text exposition format.
// The write goes through a temp file so node_exporter never sees a partial file.
func (s *Sweep) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return herrors.LocalIO("metrics.write", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return herrors.LocalIO("metrics.write", fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
