// Package metrics exposes run measurements to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/customermatch/internal/core"
)

// Recorder implements core.Recorder. A nil *Recorder records nothing.
//
// Metrics registered:
//   - customermatch_runs_total{phase} - finished runs by final phase
//   - customermatch_run_duration_seconds - wall time per run
//   - customermatch_rows_processed_total - non-empty input rows
//   - customermatch_warnings_total{kind} - per-field warnings
//   - customermatch_zip_lookups_total{outcome} - cache_hit, found, not_found, failed
//   - customermatch_zip_lookup_duration_seconds - source lookup latency
//   - customermatch_hashed_cells_total - cells replaced by digests
type Recorder struct {
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	rows        prometheus.Counter
	warnings    *prometheus.CounterVec
	zipLookups  *prometheus.CounterVec
	zipLatency  prometheus.Histogram
	hashedCells prometheus.Counter
}

var _ core.Recorder = (*Recorder)(nil)

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		return nil, errors.New("prometheus registerer is nil")
	}
	const ns = "customermatch"

	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "runs_total", Help: "Finished runs by final phase",
		}, []string{"phase"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "run_duration_seconds", Help: "Duration of a normalization run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "rows_processed_total", Help: "Non-empty input rows processed",
		}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "warnings_total", Help: "Per-field warnings by kind",
		}, []string{"kind"}),
		zipLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "zip_lookups_total", Help: "Zip resolutions by outcome",
		}, []string{"outcome"}),
		zipLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "zip_lookup_duration_seconds", Help: "Latency of zip source lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		hashedCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "hashed_cells_total", Help: "Output cells replaced by SHA-256 digests",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.runs, r.runDuration, r.rows, r.warnings, r.zipLookups, r.zipLatency, r.hashedCells,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) RunFinished(phase core.Phase, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(string(phase)).Inc()
	r.runDuration.Observe(d.Seconds())
}

func (r *Recorder) RowProcessed() {
	if r == nil {
		return
	}
	r.rows.Inc()
}

func (r *Recorder) Warning(kind core.WarningKind) {
	if r == nil {
		return
	}
	r.warnings.WithLabelValues(string(kind)).Inc()
}

// ZipLookup counts an outcome. Cache hits carry no latency.
func (r *Recorder) ZipLookup(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.zipLookups.WithLabelValues(outcome).Inc()
	if d > 0 {
		r.zipLatency.Observe(d.Seconds())
	}
}

func (r *Recorder) HashedCells(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.hashedCells.Add(float64(n))
}

// Handler serves the metrics in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
