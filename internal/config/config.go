package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/torosent/stationpivot/internal/record"
	"github.com/torosent/stationpivot/internal/repeated"
	"github.com/torosent/stationpivot/internal/threshold"
)

// View selects which analysis a run produces.
type View string

const (
	ViewHierarchy View = "hierarchy"
	ViewRepeated  View = "repeated"
	ViewWifi      View = "wifi"
	ViewSummary   View = "summary"
)

// Views lists every supported view.
var Views = []View{ViewHierarchy, ViewRepeated, ViewWifi, ViewSummary}

// OutputFormat selects how the report is printed to stdout.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type Config struct {
	View       View              `mapstructure:"view"`
	Input      string            `mapstructure:"input"`
	Format     string            `mapstructure:"format"`
	RecordPath string            `mapstructure:"record_path"`
	Columns    map[string]string `mapstructure:"columns"`

	StatusPolicy string   `mapstructure:"status_policy"`
	Operators    []string `mapstructure:"operators"`
	Normalize    string   `mapstructure:"normalize"`

	Rows             []string `mapstructure:"rows"`
	Column           string   `mapstructure:"column"`
	SuppressZeroRows bool     `mapstructure:"suppress_zero_rows"`
	Sigma            float64  `mapstructure:"sigma"`

	MinFailures    int      `mapstructure:"min_failures"`
	SortBy         string   `mapstructure:"sort_by"`
	TestCases      []string `mapstructure:"test_cases"`
	ClearTestCases bool     `mapstructure:"clear_test_cases"`

	ErrorThresholdPercent float64  `mapstructure:"error_threshold_percent"`
	WifiOperators         []string `mapstructure:"wifi_operators"`
	TimestampLayout       string   `mapstructure:"timestamp_layout"`

	Thresholds  []string      `mapstructure:"thresholds"`
	Output      OutputFormat  `mapstructure:"output"`
	HTMLOutput  string        `mapstructure:"html_output"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFile     string        `mapstructure:"log_file"`
	MetricsFile string        `mapstructure:"metrics_file"`
	ConfigFile  string        `mapstructure:"-"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// Enabled reports whether an exporter endpoint is configured, either
// directly or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// RowFields resolves Rows into record fields.
func (c Config) RowFields() ([]record.Field, error) {
	fields := make([]record.Field, 0, len(c.Rows))
	for _, r := range c.Rows {
		f, err := record.ParseField(r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// ColumnField resolves Column; empty means no column dimension.
func (c Config) ColumnField() (record.Field, error) {
	if strings.TrimSpace(c.Column) == "" {
		return "", nil
	}
	return record.ParseField(c.Column)
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Input) == "" {
		issues = append(issues, "input is required (use --help for usage information)")
	}

	switch c.View {
	case ViewHierarchy, ViewRepeated, ViewWifi, ViewSummary:
	default:
		issues = append(issues, fmt.Sprintf("view %q is not supported (use hierarchy, repeated, wifi or summary)", c.View))
	}

	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", "csv", "json":
	default:
		issues = append(issues, fmt.Sprintf("format must be 'csv' or 'json', got %q", c.Format))
	}

	if _, err := record.ParseStatusPolicy(c.StatusPolicy); err != nil {
		issues = append(issues, fmt.Sprintf("status_policy: %v", err))
	}
	if _, err := record.ParseMode(c.Normalize); err != nil {
		issues = append(issues, fmt.Sprintf("normalize: %v", err))
	}

	issues = append(issues, validateDimensions(c)...)

	if c.Sigma <= 0 || math.IsNaN(c.Sigma) {
		issues = append(issues, "sigma must be > 0")
	}
	if c.MinFailures < 1 {
		issues = append(issues, "min_failures must be >= 1")
	}
	if _, err := repeated.ParseSortKey(c.SortBy); err != nil {
		issues = append(issues, fmt.Sprintf("sort_by: %v", err))
	}
	if c.ErrorThresholdPercent < 0 || math.IsNaN(c.ErrorThresholdPercent) {
		issues = append(issues, "error_threshold_percent must be >= 0")
	}

	if _, err := threshold.ParseMultiple(c.Thresholds); err != nil {
		issues = append(issues, err.Error())
	}

	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be 'text', 'json' or 'yaml', got %q", c.Output))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}

	if c.ClearTestCases && len(c.TestCases) > 0 {
		issues = append(issues, "clear_test_cases cannot be combined with test_cases")
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateDimensions(c Config) []string {
	if c.View != ViewHierarchy && c.View != ViewSummary {
		return nil
	}
	var issues []string
	rows, err := c.RowFields()
	if err != nil {
		issues = append(issues, fmt.Sprintf("rows: %v", err))
	} else if len(rows) != 2 {
		issues = append(issues, fmt.Sprintf("rows: exactly two fields are required (group, leaf), got %d", len(rows)))
	} else if rows[0] == rows[1] {
		issues = append(issues, fmt.Sprintf("rows: %q is listed twice", rows[0]))
	}

	col, err := c.ColumnField()
	if err != nil {
		issues = append(issues, fmt.Sprintf("column: %v", err))
	}
	for _, r := range rows {
		if col != "" && r == col {
			issues = append(issues, fmt.Sprintf("column: %q is also a row field", col))
		}
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1.0 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
