// Package metrics records batch run counters and exports them as a Prometheus
// textfile for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"link-watcher/internal/report"
	"link-watcher/internal/scanner"
)

const namespace = "linkwatcher"

// Recorder owns a private registry so repeated runs in one process never collide.
type Recorder struct {
	registry *prometheus.Registry

	IntervalsTotal      *prometheus.CounterVec
	RejectedTotal       *prometheus.CounterVec
	ExceededMinutes     *prometheus.CounterVec
	NoDataLinksTotal    prometheus.Counter
	ReportsWrittenTotal prometheus.Counter
	MissingReports      prometheus.Gauge
	AlertsSentTotal     *prometheus.CounterVec
	LastSuccess         *prometheus.GaugeVec
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		IntervalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "intervals_total",
			Help:      "Exceedance intervals kept, by direction.",
		}, []string{"direction"}),
		RejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "rejected_intervals_total",
			Help:      "Exceedance intervals discarded as spikes, by direction.",
		}, []string{"direction"}),
		ExceededMinutes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "exceeded_minutes_total",
			Help:      "Minutes spent above the traffic limit, by link.",
		}, []string{"link"}),
		NoDataLinksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "no_data_links_total",
			Help:      "Links reported without data.",
		}),
		ReportsWrittenTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "reports_written_total",
			Help:      "Daily reports persisted.",
		}),
		MissingReports: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "missing_reports",
			Help:      "Days without a report in the last alert window.",
		}),
		AlertsSentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "sent_total",
			Help:      "Alert deliveries by outcome.",
		}, []string{"outcome"}),
		LastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run, by job.",
		}, []string{"job"}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// DirectionScanned implements watcher.Observer.
func (r *Recorder) DirectionScanned(link string, dir report.Direction, res scanner.Result) {
	r.IntervalsTotal.WithLabelValues(string(dir)).Add(float64(len(res.Intervals)))
	r.RejectedTotal.WithLabelValues(string(dir)).Add(float64(len(res.Rejected)))
	r.ExceededMinutes.WithLabelValues(link).Add(float64(res.TotalExceededMinutes))
}

// LinkWithoutData implements watcher.Observer.
func (r *Recorder) LinkWithoutData(string) {
	r.NoDataLinksTotal.Inc()
}

// MarkSuccess stamps the last successful run of job.
func (r *Recorder) MarkSuccess(job string, at time.Time) {
	r.LastSuccess.WithLabelValues(job).Set(float64(at.Unix()))
}

// WriteTextfile atomically writes the registry in text exposition format.
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
