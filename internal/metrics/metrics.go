// Package metrics records archiver activity in a prometheus registry and
// exports it as a node_exporter textfile. All methods are nil-safe.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Registry struct {
	SweepsTotal          *prometheus.CounterVec
	FilesCompressedTotal prometheus.Counter
	FilesDeletedTotal    *prometheus.CounterVec
	ErrorsTotal          *prometheus.CounterVec
	DegradedTotal        prometheus.Counter
	SweepDuration        prometheus.Histogram
	RotationsTotal       *prometheus.CounterVec
	LastSweep            prometheus.Gauge

	reg      *prometheus.Registry
	textfile string
}

// NewRegistry creates the collectors. textfile may be empty to disable export.
func NewRegistry(textfile string) *Registry {
	r := prometheus.NewRegistry()
	m := &Registry{
		SweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "log_archiver_sweeps_total",
			Help: "Total number of archival sweeps by trigger",
		}, []string{"trigger"}),
		FilesCompressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "log_archiver_files_compressed_total",
			Help: "Total number of raw log files compressed",
		}),
		FilesDeletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "log_archiver_files_deleted_total",
			Help: "Total number of files removed by retention, by kind",
		}, []string{"kind"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "log_archiver_errors_total",
			Help: "Total number of errors by operation",
		}, []string{"op"}),
		DegradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "log_archiver_compression_degraded_total",
			Help: "Sweeps that ran without compression capability",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "log_archiver_sweep_duration_seconds",
			Help:    "Duration of archival sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		RotationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "log_archiver_rotations_total",
			Help: "Total number of active file rotations by cause",
		}, []string{"cause"}),
		LastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "log_archiver_last_sweep_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		}),
		reg:      r,
		textfile: textfile,
	}
	r.MustRegister(m.SweepsTotal, m.FilesCompressedTotal, m.FilesDeletedTotal, m.ErrorsTotal,
		m.DegradedTotal, m.SweepDuration, m.RotationsTotal, m.LastSweep)

	// Initialize label sets so they appear in the export with zero values
	for _, kind := range []string{"raw", "archive"} {
		m.FilesDeletedTotal.WithLabelValues(kind).Add(0)
	}
	for _, op := range []string{"scan", "compress", "remove", "rotate", "sweep"} {
		m.ErrorsTotal.WithLabelValues(op).Add(0)
	}

	return m
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) CountError(op string) {
	if r == nil {
		return
	}
	r.ErrorsTotal.WithLabelValues(op).Inc()
}

func (r *Registry) CountRotation(cause string) {
	if r == nil {
		return
	}
	r.RotationsTotal.WithLabelValues(cause).Inc()
}

// SweepStats is the per-sweep summary fed into the registry.
type SweepStats struct {
	Trigger         string
	Compressed      int
	DeletedRaw      int
	DeletedArchives int
	Degraded        bool
	Duration        time.Duration
}

func (r *Registry) ObserveSweep(s SweepStats) {
	if r == nil {
		return
	}
	r.SweepsTotal.WithLabelValues(s.Trigger).Inc()
	r.FilesCompressedTotal.Add(float64(s.Compressed))
	r.FilesDeletedTotal.WithLabelValues("raw").Add(float64(s.DeletedRaw))
	r.FilesDeletedTotal.WithLabelValues("archive").Add(float64(s.DeletedArchives))
	if s.Degraded {
		r.DegradedTotal.Inc()
	}
	r.SweepDuration.Observe(s.Duration.Seconds())
	r.LastSweep.SetToCurrentTime()
}

// Flush writes the textfile export, if configured.
func (r *Registry) Flush() error {
	if r == nil || r.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.textfile), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
