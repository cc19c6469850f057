package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/stationpivot/internal/analysis"
	"github.com/torosent/stationpivot/internal/config"
	"github.com/torosent/stationpivot/internal/hierarchy"
	"github.com/torosent/stationpivot/internal/highlight"
	"github.com/torosent/stationpivot/internal/record"
)

func runReport(t *testing.T, view config.View, rows []record.Row, mutate func(*config.Config)) *analysis.Report {
	t.Helper()
	cfg := config.Defaults()
	cfg.View = view
	cfg.Input = "results.csv"
	if mutate != nil {
		mutate(cfg)
	}
	deps := analysis.Deps{Now: func() time.Time { return time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC) }}
	report, err := analysis.Run(context.Background(), cfg, rows, deps)
	if err != nil && !errors.Is(err, analysis.ErrThresholdsFailed) {
		t.Fatalf("Run() error = %v", err)
	}
	return report
}

func failureRows() []record.Row {
	mk := func(model, station, failures string) record.Row {
		return record.Row{
			record.ColumnModel:      model,
			record.ColumnStation:    station,
			record.ColumnResultFail: failures,
			record.ColumnStatus:     "FAILURE",
		}
	}
	return []record.Row{
		mk("Pixel", "S1", "Camera, Touch"),
		mk("Pixel", "S1", "Camera"),
		mk("Pixel", "S2", "Camera"),
		mk("Galaxy", "S2", "Audio"),
	}
}

func TestPrintReportHierarchy(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, failureRows(), nil)

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()

	for _, want := range []string{
		"--- Station Pivot Report ---",
		"View:              hierarchy",
		"Failure Hierarchy:",
		"test_case / model",
		"Pixel",
		"Galaxy",
		"Camera",
		"Legend:",
		"Top station:",
		"Top machine:",
		"Failure records:   5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Camera") > strings.Index(out, "Audio") {
		t.Error("groups not ordered by total")
	}
}

func TestPrintReportEmpty(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, nil, nil)

	var buf bytes.Buffer
	PrintReport(&buf, report)
	if !strings.Contains(buf.String(), "No data") {
		t.Errorf("empty report missing 'No data':\n%s", buf.String())
	}

	buf.Reset()
	PrintReport(&buf, nil)
	if strings.TrimSpace(buf.String()) != "No data" {
		t.Errorf("nil report output = %q", buf.String())
	}
}

func TestPrintReportSummaryOmitsTable(t *testing.T) {
	report := runReport(t, config.ViewSummary, failureRows(), nil)

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()
	if strings.Contains(out, "Failure Hierarchy:") {
		t.Error("summary view printed the hierarchy table")
	}
	if !strings.Contains(out, "Failures:          5") {
		t.Errorf("summary missing failure count:\n%s", out)
	}
}

func TestPrintReportRepeated(t *testing.T) {
	var rows []record.Row
	for i := 0; i < 4; i++ {
		rows = append(rows, record.Row{
			record.ColumnModel:      "SM-A546E",
			record.ColumnStation:    "S1",
			record.ColumnResultFail: "Camera",
			record.ColumnOperator:   "OP1",
			record.ColumnDeviceID:   fmt.Sprintf("35%d", i%2),
		})
	}
	report := runReport(t, config.ViewRepeated, rows, nil)

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()
	for _, want := range []string{"Repeated Failures:", "SM-A546E", "Occurrences", "Camera (max 4)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReportWifi(t *testing.T) {
	var rows []record.Row
	for i := 0; i < 5; i++ {
		msg := ""
		if i == 0 {
			msg = "DUT connection error"
		}
		rows = append(rows, record.Row{
			record.ColumnDate:         "03/04/2025",
			record.ColumnHour:         fmt.Sprintf("09:%02d:00", i),
			record.ColumnOperator:     "OP1",
			record.ColumnErrorMessage: msg,
		})
	}
	report := runReport(t, config.ViewWifi, rows, func(c *config.Config) {
		c.WifiOperators = []string{"OP1"}
	})

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()
	for _, want := range []string{"WiFi Errors:", "OP1", "Grand Total", "20.00%", "Hourly Breakdown:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReportThresholds(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, failureRows(), func(c *config.Config) {
		c.Thresholds = []string{"failures:total < 3", "models:count == 2"}
	})

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()
	for _, want := range []string{"Thresholds (1/2 passed):", "[FAIL] failures:total < 3", "[PASS] models:count == 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMarkers(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, failureRows(), nil)

	total := highlight.Cell{Row: hierarchy.TotalID, Column: report.Hierarchy.MaxColumn}
	if got := Markers(report, total); !strings.Contains(got, MarkGlobalMax) {
		t.Errorf("Markers(total max) = %q, want %q", got, MarkGlobalMax)
	}
	if got := Markers(report, highlight.Cell{Row: hierarchy.TotalID, Column: "nope"}); got != "" {
		t.Errorf("Markers(unknown) = %q, want empty", got)
	}
}

func TestPrintJSONReport(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, failureRows(), nil)

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, report); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, key := range []string{"run_id", "hierarchy", "highlights", "summary", "ranking"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}
	if _, ok := decoded["repeated"]; ok {
		t.Error("JSON contains repeated section for hierarchy view")
	}
}

func TestPrintYAMLReport(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, failureRows(), nil)

	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, report); err != nil {
		t.Fatalf("PrintYAMLReport() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if decoded["view"] != "hierarchy" {
		t.Errorf("view = %v, want hierarchy", decoded["view"])
	}
	if !strings.Contains(buf.String(), "global_max") {
		t.Error("YAML missing highlight rules")
	}
}

func TestPrint(t *testing.T) {
	report := runReport(t, config.ViewSummary, failureRows(), nil)
	tests := []struct {
		format  config.OutputFormat
		want    string
		wantErr bool
	}{
		{format: config.OutputText, want: "--- Station Pivot Report ---"},
		{format: config.OutputJSON, want: `"view": "summary"`},
		{format: config.OutputYAML, want: "view: summary"},
		{format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		err := Print(&buf, tt.format, report)
		if (err != nil) != tt.wantErr {
			t.Errorf("Print(%s) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			continue
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("Print(%s) missing %q", tt.format, tt.want)
		}
	}
}
