package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	if m == nil {
		t.Fatal("New() = nil")
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	// Vectors stay hidden until a label set is used.
	if len(families) != 5 {
		t.Errorf("got %d metric families, want 5", len(families))
	}
}

func TestMetricsUpdates(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RowsRead(120)
	m.RowsRead(30)
	m.RowsSkipped("status", 40)
	m.RowsSkipped("status", 0)
	m.RowsSkipped("normalize", 2)
	m.FailureRecords(95)
	m.HierarchyCells(48)
	m.HighlightedCells("global_max", 1)
	m.HighlightedCells("group_max", 3)
	m.ThresholdFailures(2)
	m.ObserveStage("aggregate", 3*time.Millisecond)
	m.RunFinished("hierarchy", ResultThresholdFailed)

	if got := testutil.ToFloat64(m.rowsRead); got != 150 {
		t.Errorf("rows_read_total = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.rowsSkipped.WithLabelValues("status")); got != 40 {
		t.Errorf("rows_skipped_total{stage=status} = %v, want 40", got)
	}
	if got := testutil.ToFloat64(m.rowsSkipped.WithLabelValues("normalize")); got != 2 {
		t.Errorf("rows_skipped_total{stage=normalize} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.failureRecords); got != 95 {
		t.Errorf("failure_records_total = %v, want 95", got)
	}
	if got := testutil.ToFloat64(m.hierarchyCells); got != 48 {
		t.Errorf("hierarchy_cells = %v, want 48", got)
	}
	if got := testutil.ToFloat64(m.highlightedCells.WithLabelValues("group_max")); got != 3 {
		t.Errorf("highlighted_cells{kind=group_max} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.thresholdFailures); got != 2 {
		t.Errorf("threshold_failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("hierarchy", ResultThresholdFailed)); got != 1 {
		t.Errorf("runs_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastRunTimestamp); got <= 0 {
		t.Errorf("last_run_timestamp_seconds = %v, want > 0", got)
	}
	if got := testutil.CollectAndCount(m.stageDuration); got != 1 {
		t.Errorf("stage_duration_seconds series = %d, want 1", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RowsRead(1)
	m.RowsSkipped("status", 1)
	m.FailureRecords(1)
	m.ObserveStage("build", time.Second)
	m.HierarchyCells(1)
	m.HighlightedCells("global_max", 1)
	m.ThresholdFailures(1)
	m.RunFinished("wifi", ResultSuccess)
}

func TestWriteTextfile(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	m.RowsRead(7)
	m.RunFinished("repeated", ResultSuccess)

	path := filepath.Join(t.TempDir(), "stationpivot.prom")
	if err := WriteTextfile(path, registry); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"stationpivot_rows_read_total 7",
		`stationpivot_runs_total{result="success",view="repeated"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q:\n%s", want, text)
		}
	}
}
