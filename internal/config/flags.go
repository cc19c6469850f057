package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/torosent/stationpivot/internal/highlight"
	"github.com/torosent/stationpivot/internal/repeated"
	"github.com/torosent/stationpivot/internal/wifi"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stationpivot [hierarchy|repeated|wifi|summary]",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Input flags
	flags.StringP("input", "i", "", "Path to the CSV or JSON test result export")
	flags.String("format", "", "Input format: 'csv' or 'json' (default: by file extension)")
	flags.String("record-path", "", "gjson path to the record array inside a JSON export")
	flags.StringToString("column-alias", nil, "Column alias in column=source form (e.g. model=Device)")

	// Filter flags
	flags.String("status-policy", "failure", "Status filter: 'all', 'failure' or 'comprehensive'")
	flags.StringSlice("operator", nil, "Restrict to these operators (repeatable)")
	flags.String("normalize", "split", "Failure normalization: 'split' or 'preserve'")

	// Hierarchy flags
	flags.StringSlice("rows", []string{"test_case", "model"}, "Group and leaf fields of the hierarchy")
	flags.String("column", "station", "Column field of the hierarchy")
	flags.Bool("suppress-zero-rows", false, "Hide leaf rows whose total is zero")
	flags.Float64("sigma", highlight.DefaultSigma, "Standard deviation multiplier for critical cells")

	// Repeated failure flags
	flags.Int("min-failures", repeated.DefaultMinFailures, "Minimum occurrences for a repeated failure")
	flags.String("sort-by", string(repeated.SortOccurrences), "Repeated failure sort key")
	flags.StringSlice("test-case", nil, "Restrict repeated failures to these test cases (repeatable)")
	flags.Bool("clear-test-cases", false, "Select no test cases, producing an empty repeated failure list")

	// WiFi flags
	flags.Float64("error-threshold", wifi.DefaultThresholdPercent, "Error rate percent above which an operator is flagged")
	flags.StringSlice("wifi-operator", nil, "Operators considered by the wifi view (repeatable)")
	flags.String("timestamp-layout", wifi.DefaultTimestampLayout, "Go time layout of the Date and Hour columns")

	// Output flags
	flags.StringSlice("threshold", nil, "Report thresholds (repeatable, e.g., 'stations:max < 80')")
	flags.StringP("output", "o", string(OutputText), "Report format: 'text', 'json' or 'yaml'")
	flags.String("html-output", "", "Generate an HTML heat map to the specified file path")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Observability flags
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-file", "", "Write logs to a rotated file instead of stderr")
	flags.String("metrics-file", "", "Write Prometheus text metrics to this file after the run")
	flags.String("tracing-endpoint", "", "OTLP collector endpoint")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of runs to trace (0.0 - 1.0)")
	flags.String("tracing-service-name", "", "Service name reported with spans")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nViews:\n", cmd.UseLine())
	fmt.Fprintln(out, "  hierarchy  two-level failure pivot with highlights (default)")
	fmt.Fprintln(out, "  repeated   devices failing the same way repeatedly")
	fmt.Fprintln(out, "  wifi       wifi error rates per operator and hour")
	fmt.Fprintln(out, "  summary    rankings and statistics only")
	fmt.Fprintln(out, "\nFlags:")
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("input") {
		val, err := fs.GetString("input")
		if err != nil {
			return err
		}
		cfg.Input = strings.TrimSpace(val)
	}
	if fs.Changed("format") {
		val, err := fs.GetString("format")
		if err != nil {
			return err
		}
		cfg.Format = val
	}
	if fs.Changed("record-path") {
		val, err := fs.GetString("record-path")
		if err != nil {
			return err
		}
		cfg.RecordPath = val
	}
	if fs.Changed("column-alias") {
		val, err := fs.GetStringToString("column-alias")
		if err != nil {
			return err
		}
		cols, err := resolveColumns(val)
		if err != nil {
			return fmt.Errorf("column-alias: %w", err)
		}
		if cfg.Columns == nil {
			cfg.Columns = make(map[string]string, len(cols))
		}
		for k, v := range cols {
			cfg.Columns[k] = v
		}
	}
	if fs.Changed("status-policy") {
		val, err := fs.GetString("status-policy")
		if err != nil {
			return err
		}
		cfg.StatusPolicy = val
	}
	if fs.Changed("operator") {
		val, err := fs.GetStringSlice("operator")
		if err != nil {
			return err
		}
		cfg.Operators = val
	}
	if fs.Changed("normalize") {
		val, err := fs.GetString("normalize")
		if err != nil {
			return err
		}
		cfg.Normalize = val
	}
	if fs.Changed("rows") {
		val, err := fs.GetStringSlice("rows")
		if err != nil {
			return err
		}
		cfg.Rows = val
	}
	if fs.Changed("column") {
		val, err := fs.GetString("column")
		if err != nil {
			return err
		}
		cfg.Column = val
	}
	if fs.Changed("suppress-zero-rows") {
		val, err := fs.GetBool("suppress-zero-rows")
		if err != nil {
			return err
		}
		cfg.SuppressZeroRows = val
	}
	if fs.Changed("sigma") {
		val, err := fs.GetFloat64("sigma")
		if err != nil {
			return err
		}
		cfg.Sigma = val
	}
	if fs.Changed("min-failures") {
		val, err := fs.GetInt("min-failures")
		if err != nil {
			return err
		}
		cfg.MinFailures = val
	}
	if fs.Changed("sort-by") {
		val, err := fs.GetString("sort-by")
		if err != nil {
			return err
		}
		cfg.SortBy = val
	}
	if fs.Changed("test-case") {
		val, err := fs.GetStringSlice("test-case")
		if err != nil {
			return err
		}
		cfg.TestCases = val
	}
	if fs.Changed("clear-test-cases") {
		val, err := fs.GetBool("clear-test-cases")
		if err != nil {
			return err
		}
		cfg.ClearTestCases = val
	}
	if fs.Changed("error-threshold") {
		val, err := fs.GetFloat64("error-threshold")
		if err != nil {
			return err
		}
		cfg.ErrorThresholdPercent = val
	}
	if fs.Changed("wifi-operator") {
		val, err := fs.GetStringSlice("wifi-operator")
		if err != nil {
			return err
		}
		cfg.WifiOperators = val
	}
	if fs.Changed("timestamp-layout") {
		val, err := fs.GetString("timestamp-layout")
		if err != nil {
			return err
		}
		cfg.TimestampLayout = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(val)
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}
	if fs.Changed("log-file") {
		val, err := fs.GetString("log-file")
		if err != nil {
			return err
		}
		cfg.LogFile = strings.TrimSpace(val)
	}
	if fs.Changed("metrics-file") {
		val, err := fs.GetString("metrics-file")
		if err != nil {
			return err
		}
		cfg.MetricsFile = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = val
	}
	return nil
}
