package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JonMunkholm/customermatch/internal/core"
)

func TestRecorder_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	r.RowProcessed()
	r.RowProcessed()
	r.Warning(core.WarnZipNotFound)
	r.ZipLookup("cache_hit", 0)
	r.ZipLookup("found", 20*time.Millisecond)
	r.HashedCells(6)
	r.HashedCells(0)
	r.RunFinished(core.PhaseDone, time.Second)

	if got, want := testutil.ToFloat64(r.rows), 2.0; got != want {
		t.Errorf("rows_processed_total = %v, want %v", got, want)
	}
	if got, want := testutil.ToFloat64(r.warnings.WithLabelValues(string(core.WarnZipNotFound))), 1.0; got != want {
		t.Errorf("warnings_total{zip_not_found} = %v, want %v", got, want)
	}
	if got, want := testutil.ToFloat64(r.zipLookups.WithLabelValues("cache_hit")), 1.0; got != want {
		t.Errorf("zip_lookups_total{cache_hit} = %v, want %v", got, want)
	}
	if got, want := testutil.ToFloat64(r.hashedCells), 6.0; got != want {
		t.Errorf("hashed_cells_total = %v, want %v", got, want)
	}
	if got, want := testutil.ToFloat64(r.runs.WithLabelValues(string(core.PhaseDone))), 1.0; got != want {
		t.Errorf("runs_total{done} = %v, want %v", got, want)
	}
	if got := testutil.CollectAndCount(r.zipLatency); got != 1 {
		t.Errorf("zip_lookup_duration_seconds series = %d, want 1", got)
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.RowProcessed()
	r.Warning(core.WarnPhoneUnparseable)
	r.ZipLookup("found", time.Millisecond)
	r.HashedCells(3)
	r.RunFinished(core.PhaseAborted, time.Second)
}

func TestNew_NilRegisterer(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) expected error")
	}
}

func TestNew_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New() error: %v", err)
	}
	if _, err := New(reg); err != nil {
		t.Errorf("second New() error = %v, want nil", err)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	r.RowProcessed()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "customermatch_rows_processed_total 1") {
		t.Errorf("metrics output missing rows counter:\n%s", body)
	}
}
