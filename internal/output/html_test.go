package output

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/torosent/stationpivot/internal/config"
	"github.com/torosent/stationpivot/internal/record"
)

func TestGenerateHTMLReport(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, failureRows(), func(c *config.Config) {
		c.Thresholds = []string{"failures:total < 100", "stations:count == 3"}
	})

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, report); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	html := buf.String()

	checks := []struct {
		name    string
		content string
	}{
		{"doctype", "<!DOCTYPE html>"},
		{"title", "<title>Station Pivot Report</title>"},
		{"run id", report.RunID},
		{"heat map table", `<table id="heatmap">`},
		{"corner", "test_case / model"},
		{"group row", `<tr class="row-group">`},
		{"leaf row", `<tr class="row-leaf">`},
		{"global max class", "global-max"},
		{"heat class", "heat-5"},
		{"threshold section", "Thresholds (1/2 Passed)"},
		{"fail badge", "badge-error"},
	}
	for _, c := range checks {
		if !strings.Contains(html, c.content) {
			t.Errorf("%s: expected %q in HTML", c.name, c.content)
		}
	}
}

func TestGenerateHTMLReportEscapesLabels(t *testing.T) {
	rows := []record.Row{{
		record.ColumnModel:      "<script>alert(1)</script>",
		record.ColumnStation:    "S1",
		record.ColumnResultFail: "Camera",
	}}
	report := runReport(t, config.ViewHierarchy, rows, nil)

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, report); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("model label was not escaped")
	}
}

func TestGenerateHTMLReportEmpty(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, nil, nil)

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, report); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	html := buf.String()
	if strings.Contains(html, `<table id="heatmap">`) {
		t.Error("empty report rendered a heat map")
	}
	if !strings.Contains(html, "No data") {
		t.Error("empty report missing 'No data'")
	}

	if err := GenerateHTMLReport(&buf, nil); err == nil {
		t.Error("GenerateHTMLReport(nil) error = nil")
	}
}

func TestGenerateHTMLReportWifi(t *testing.T) {
	var rows []record.Row
	for i := 0; i < 4; i++ {
		rows = append(rows, record.Row{
			record.ColumnDate:         "03/04/2025",
			record.ColumnHour:         fmt.Sprintf("14:%02d:00", i*10),
			record.ColumnOperator:     "OP1",
			record.ColumnErrorMessage: "DUT lost WIFI connection",
		})
	}
	report := runReport(t, config.ViewWifi, rows, func(c *config.Config) {
		c.WifiOperators = []string{"OP1"}
	})

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, report); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	html := buf.String()
	for _, want := range []string{"WiFi Errors", `<table id="hourly">`, "2025-03-04 14:00", "100.00"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in HTML", want)
		}
	}
}

func TestBuildHeatmap(t *testing.T) {
	report := runReport(t, config.ViewHierarchy, failureRows(), nil)
	hm := BuildHeatmap(report)
	if hm == nil {
		t.Fatal("BuildHeatmap() = nil")
	}

	// Total, Camera (Pixel), Audio (Galaxy), Touch (Pixel).
	if got := len(hm.Rows); got != 7 {
		t.Fatalf("got %d rows, want 7", got)
	}
	labels := make([]string, len(hm.Rows))
	for i, r := range hm.Rows {
		labels[i] = r.Label
	}
	want := []string{"Total", "Camera", "Pixel", "Audio", "Galaxy", "Touch", "Pixel"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
	if hm.Rows[0].Total != 5 {
		t.Errorf("total row = %d, want 5", hm.Rows[0].Total)
	}
	for _, c := range hm.Rows[0].Cells {
		if strings.Contains(c.Class, "heat-") {
			t.Errorf("total row cell has heat class %q", c.Class)
		}
	}
}

func TestHeatLevel(t *testing.T) {
	tests := []struct {
		v, peak, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{2, 10, 1},
		{3, 10, 2},
		{10, 10, 5},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := heatLevel(tt.v, tt.peak); got != tt.want {
			t.Errorf("heatLevel(%d, %d) = %d, want %d", tt.v, tt.peak, got, tt.want)
		}
	}
}
