package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/torosent/stationpivot/internal/config"
	"github.com/torosent/stationpivot/internal/record"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadWithoutArgumentsRequestsHelp(t *testing.T) {
	_, err := config.NewLoader().Load([]string{})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load() error = %v, want ErrHelpRequested", err)
	}
	_, err = config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"--input", "results.csv"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.View != config.ViewHierarchy {
		t.Errorf("View = %q, want hierarchy", cfg.View)
	}
	if diff := cmp.Diff([]string{"test_case", "model"}, cfg.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
	if cfg.Column != "station" {
		t.Errorf("Column = %q, want station", cfg.Column)
	}
	if cfg.MinFailures != 4 {
		t.Errorf("MinFailures = %d, want 4", cfg.MinFailures)
	}
	if cfg.Sigma != 2.0 {
		t.Errorf("Sigma = %v, want 2", cfg.Sigma)
	}
	if cfg.ErrorThresholdPercent != 9 {
		t.Errorf("ErrorThresholdPercent = %v, want 9", cfg.ErrorThresholdPercent)
	}
	if cfg.Output != config.OutputText {
		t.Errorf("Output = %q, want text", cfg.Output)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %v, want 1", cfg.Tracing.SampleRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadViewArgument(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"WiFi", "-i", "events.csv", "--wifi-operator", "STN1_RED(id:1)", "--error-threshold", "12.5"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.View != config.ViewWifi {
		t.Errorf("View = %q, want wifi", cfg.View)
	}
	if cfg.ErrorThresholdPercent != 12.5 {
		t.Errorf("ErrorThresholdPercent = %v, want 12.5", cfg.ErrorThresholdPercent)
	}
	if diff := cmp.Diff([]string{"STN1_RED(id:1)"}, cfg.WifiOperators); diff != "" {
		t.Errorf("WifiOperators mismatch (-want +got):\n%s", diff)
	}

	if _, err := config.NewLoader().Load([]string{"wifi", "repeated", "-i", "x.csv"}); err == nil {
		t.Error("Load() with two views error = nil")
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"view": "repeated",
		"input": "results.json",
		"recordPath": "data.results",
		"columns": {"model": "device.model", "imei": "device.imei"},
		"statusPolicy": "comprehensive",
		"minFailures": 6,
		"sortBy": "station",
		"testCases": ["Camera", "Touch"],
		"thresholds": ["repeated:count == 0"],
		"output": "json"
	}`)

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--min-failures", "5"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.View != config.ViewRepeated {
		t.Errorf("View = %q, want repeated", cfg.View)
	}
	if cfg.RecordPath != "data.results" {
		t.Errorf("RecordPath = %q, want data.results", cfg.RecordPath)
	}
	wantCols := map[string]string{
		record.ColumnModel:    "device.model",
		record.ColumnDeviceID: "device.imei",
	}
	if diff := cmp.Diff(wantCols, cfg.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	if cfg.StatusPolicy != "comprehensive" {
		t.Errorf("StatusPolicy = %q, want comprehensive", cfg.StatusPolicy)
	}
	if cfg.MinFailures != 5 {
		t.Errorf("MinFailures = %d, want flag override 5", cfg.MinFailures)
	}
	if cfg.SortBy != "station" {
		t.Errorf("SortBy = %q, want station", cfg.SortBy)
	}
	if diff := cmp.Diff([]string{"Camera", "Touch"}, cfg.TestCases); diff != "" {
		t.Errorf("TestCases mismatch (-want +got):\n%s", diff)
	}
	if cfg.Output != config.OutputJSON {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", strings.Join([]string{
		"input: results.csv",
		"rows: [station, test_case]",
		"column: model",
		"suppress_zero_rows: true",
		"sigma: 1.5",
		"operators:",
		"  - STN1_RED(id:1)",
		"  - STN2_GRN(id:2)",
		"columns:",
		"  station_id: Station",
		"  result_fail: Failures",
		"tracing:",
		"  endpoint: localhost:4317",
		"  protocol: http",
		"  sample_rate: 0.25",
		"  service_name: pivot-nightly",
		"log_level: debug",
		"metrics_file: /tmp/stationpivot.prom",
	}, "\n"))

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--column-alias", "operator=Tester"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if diff := cmp.Diff([]string{"station", "test_case"}, cfg.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
	if cfg.Column != "model" {
		t.Errorf("Column = %q, want model", cfg.Column)
	}
	if !cfg.SuppressZeroRows {
		t.Error("SuppressZeroRows = false, want true")
	}
	if cfg.Sigma != 1.5 {
		t.Errorf("Sigma = %v, want 1.5", cfg.Sigma)
	}
	if len(cfg.Operators) != 2 {
		t.Errorf("Operators = %v, want 2 entries", cfg.Operators)
	}
	wantCols := map[string]string{
		record.ColumnStation:    "Station",
		record.ColumnResultFail: "Failures",
		record.ColumnOperator:   "Tester",
	}
	if diff := cmp.Diff(wantCols, cfg.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	wantTracing := config.TracingConfig{
		Endpoint:    "localhost:4317",
		Protocol:    "http",
		SampleRate:  0.25,
		ServiceName: "pivot-nightly",
	}
	if diff := cmp.Diff(wantTracing, cfg.Tracing); diff != "" {
		t.Errorf("Tracing mismatch (-want +got):\n%s", diff)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.MetricsFile != "/tmp/stationpivot.prom" {
		t.Errorf("MetricsFile = %q", cfg.MetricsFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown column", file: "c.yaml", content: "columns:\n  firmware: fw\n"},
		{name: "empty column source", file: "c.yaml", content: "columns:\n  model: \"\"\n"},
		{name: "bad sigma", file: "c.json", content: `{"sigma": "wide"}`},
		{name: "bad tracing", file: "c.yaml", content: "tracing: on\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			if _, err := config.NewLoader().Load([]string{"--config", path}); err == nil {
				t.Fatal("Load() error = nil, want error")
			}
		})
	}

	if _, err := config.NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("Load() with missing config file error = nil")
	}
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return *config.Defaults()
	}

	tests := []struct {
		name      string
		mutate    func(*config.Config)
		wantIssue string
	}{
		{name: "missing input", mutate: func(c *config.Config) { c.Input = "" }, wantIssue: "input is required"},
		{name: "unknown view", mutate: func(c *config.Config) { c.View = "matrix" }, wantIssue: "view"},
		{name: "unknown format", mutate: func(c *config.Config) { c.Format = "xlsx" }, wantIssue: "format"},
		{name: "bad status policy", mutate: func(c *config.Config) { c.StatusPolicy = "some" }, wantIssue: "status_policy"},
		{name: "bad normalize", mutate: func(c *config.Config) { c.Normalize = "merge" }, wantIssue: "normalize"},
		{name: "one row field", mutate: func(c *config.Config) { c.Rows = []string{"model"} }, wantIssue: "exactly two"},
		{name: "duplicate row field", mutate: func(c *config.Config) { c.Rows = []string{"model", "model"} }, wantIssue: "listed twice"},
		{name: "unknown row field", mutate: func(c *config.Config) { c.Rows = []string{"model", "firmware"} }, wantIssue: "rows"},
		{name: "column is a row", mutate: func(c *config.Config) { c.Column = "model" }, wantIssue: "also a row field"},
		{name: "zero sigma", mutate: func(c *config.Config) { c.Sigma = 0 }, wantIssue: "sigma"},
		{name: "zero min failures", mutate: func(c *config.Config) { c.MinFailures = 0 }, wantIssue: "min_failures"},
		{name: "bad sort key", mutate: func(c *config.Config) { c.SortBy = "color" }, wantIssue: "sort_by"},
		{name: "clear with test cases", mutate: func(c *config.Config) {
			c.ClearTestCases = true
			c.TestCases = []string{"Camera"}
		}, wantIssue: "clear_test_cases"},
		{name: "negative threshold", mutate: func(c *config.Config) { c.ErrorThresholdPercent = -1 }, wantIssue: "error_threshold_percent"},
		{name: "bad report threshold", mutate: func(c *config.Config) { c.Thresholds = []string{"latency:p95 < 1"} }, wantIssue: "threshold"},
		{name: "bad output", mutate: func(c *config.Config) { c.Output = "xml" }, wantIssue: "output"},
		{name: "bad log level", mutate: func(c *config.Config) { c.LogLevel = "trace" }, wantIssue: "log_level"},
		{name: "bad tracing protocol", mutate: func(c *config.Config) { c.Tracing.Protocol = "udp" }, wantIssue: "protocol"},
		{name: "bad sample rate", mutate: func(c *config.Config) { c.Tracing.SampleRate = 2 }, wantIssue: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			cfg.Input = "results.csv"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantIssue) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantIssue)
			}
		})
	}
}

func TestValidateSkipsDimensionsForOtherViews(t *testing.T) {
	cfg := config.Defaults()
	cfg.Input = "events.csv"
	cfg.View = config.ViewWifi
	cfg.Rows = []string{"model"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for wifi view", err)
	}
}

func TestRowAndColumnFields(t *testing.T) {
	cfg := config.Config{Rows: []string{"Station", " test_case "}, Column: ""}
	rows, err := cfg.RowFields()
	if err != nil {
		t.Fatalf("RowFields() error = %v", err)
	}
	if diff := cmp.Diff([]record.Field{record.FieldStation, record.FieldTestCase}, rows); diff != "" {
		t.Errorf("RowFields() mismatch (-want +got):\n%s", diff)
	}
	col, err := cfg.ColumnField()
	if err != nil || col != "" {
		t.Errorf("ColumnField() = %q, %v; want empty", col, err)
	}
}

func TestTracingEnabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if (config.TracingConfig{}).Enabled() {
		t.Error("Enabled() = true without endpoint")
	}
	if !(config.TracingConfig{Endpoint: "localhost:4317"}).Enabled() {
		t.Error("Enabled() = false with endpoint")
	}
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	if !(config.TracingConfig{}).Enabled() {
		t.Error("Enabled() = false with OTEL_EXPORTER_OTLP_ENDPOINT")
	}
}
