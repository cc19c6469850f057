package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/stationpivot/internal/highlight"
	"github.com/torosent/stationpivot/internal/record"
	"github.com/torosent/stationpivot/internal/repeated"
	"github.com/torosent/stationpivot/internal/wifi"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used before any file or flag applies.
func Defaults() *Config {
	return &Config{
		View:                  ViewHierarchy,
		Rows:                  []string{string(record.FieldTestCase), string(record.FieldModel)},
		Column:                string(record.FieldStation),
		StatusPolicy:          string(record.PolicyFailureOnly),
		Normalize:             string(record.ModeSplit),
		Sigma:                 highlight.DefaultSigma,
		MinFailures:           repeated.DefaultMinFailures,
		SortBy:                string(repeated.SortOccurrences),
		ErrorThresholdPercent: wifi.DefaultThresholdPercent,
		TimestampLayout:       wifi.DefaultTimestampLayout,
		Output:                OutputText,
		LogLevel:              "info",
		Tracing:               TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a
// Config. The first positional argument, when present, selects the view.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	switch positional := flagSet.Args(); len(positional) {
	case 0:
	case 1:
		cfg.View = View(strings.ToLower(positional[0]))
	default:
		return nil, fmt.Errorf("unexpected arguments %q: only one view may be given", positional[1:])
	}

	cfg.Input = strings.TrimSpace(cfg.Input)
	cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(string(cfg.Output))))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "view"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("view: %w", err)
		}
		if val != "" {
			cfg.View = View(strings.ToLower(strings.TrimSpace(val)))
		}
	}

	if raw, ok := lookupSetting(settings, "input"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("input: %w", err)
		}
		cfg.Input = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		cfg.Format = val
	}

	if raw, ok := lookupSetting(settings, "recordpath", "record_path", "record-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("recordPath: %w", err)
		}
		cfg.RecordPath = val
	}

	if raw, ok := lookupSetting(settings, "columns"); ok {
		cols, err := parseColumns(raw)
		if err != nil {
			return fmt.Errorf("columns: %w", err)
		}
		cfg.Columns = cols
	}

	if raw, ok := lookupSetting(settings, "statuspolicy", "status_policy", "status-policy"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("statusPolicy: %w", err)
		}
		cfg.StatusPolicy = val
	}

	if raw, ok := lookupSetting(settings, "operators"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("operators: %w", err)
		}
		cfg.Operators = val
	}

	if raw, ok := lookupSetting(settings, "normalize"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("normalize: %w", err)
		}
		cfg.Normalize = val
	}

	if raw, ok := lookupSetting(settings, "rows"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("rows: %w", err)
		}
		cfg.Rows = val
	}

	if raw, ok := lookupSetting(settings, "column"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("column: %w", err)
		}
		cfg.Column = val
	}

	if raw, ok := lookupSetting(settings, "suppresszerorows", "suppress_zero_rows", "suppress-zero-rows"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("suppressZeroRows: %w", err)
		}
		cfg.SuppressZeroRows = val
	}

	if raw, ok := lookupSetting(settings, "sigma"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sigma: %w", err)
		}
		cfg.Sigma = val
	}

	if raw, ok := lookupSetting(settings, "minfailures", "min_failures", "min-failures"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("minFailures: %w", err)
		}
		cfg.MinFailures = val
	}

	if raw, ok := lookupSetting(settings, "sortby", "sort_by", "sort-by"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("sortBy: %w", err)
		}
		cfg.SortBy = val
	}

	if raw, ok := lookupSetting(settings, "testcases", "test_cases", "test-cases"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("testCases: %w", err)
		}
		cfg.TestCases = val
	}

	if raw, ok := lookupSetting(settings, "cleartestcases", "clear_test_cases", "clear-test-cases"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("clearTestCases: %w", err)
		}
		cfg.ClearTestCases = val
	}

	if raw, ok := lookupSetting(settings, "errorthresholdpercent", "error_threshold_percent", "error-threshold-percent"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("errorThresholdPercent: %w", err)
		}
		cfg.ErrorThresholdPercent = val
	}

	if raw, ok := lookupSetting(settings, "wifioperators", "wifi_operators", "wifi-operators"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("wifiOperators: %w", err)
		}
		cfg.WifiOperators = val
	}

	if raw, ok := lookupSetting(settings, "timestamplayout", "timestamp_layout", "timestamp-layout"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("timestampLayout: %w", err)
		}
		if val != "" {
			cfg.TimestampLayout = val
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if val != "" {
			cfg.Output = OutputFormat(val)
		}
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		if val != "" {
			cfg.LogLevel = val
		}
	}

	if raw, ok := lookupSetting(settings, "logfile", "log_file", "log-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logFile: %w", err)
		}
		cfg.LogFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "metricsfile", "metrics_file", "metrics-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metricsFile: %w", err)
		}
		cfg.MetricsFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

// columnKeys maps config keys to the canonical column names. Config file
// keys are lower-cased by viper, so the canonical names cannot be used as
// keys directly.
var columnKeys = map[string]string{
	"result_fail":   record.ColumnResultFail,
	"failures":      record.ColumnResultFail,
	"test_case":     record.ColumnResultFail,
	"model":         record.ColumnModel,
	"station":       record.ColumnStation,
	"station_id":    record.ColumnStation,
	"operator":      record.ColumnOperator,
	"status":        record.ColumnStatus,
	"device_id":     record.ColumnDeviceID,
	"imei":          record.ColumnDeviceID,
	"error_message": record.ColumnErrorMessage,
	"error_code":    record.ColumnErrorCode,
	"date":          record.ColumnDate,
	"hour":          record.ColumnHour,
}

// ColumnKey resolves a column alias key to its canonical column name.
func ColumnKey(key string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	if col, ok := columnKeys[k]; ok {
		return col, nil
	}
	return "", fmt.Errorf("unknown column %q", key)
}

func parseColumns(value interface{}) (map[string]string, error) {
	raw, err := asStringMap(value)
	if err != nil {
		return nil, err
	}
	return resolveColumns(raw)
}

func resolveColumns(raw map[string]string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for key, source := range raw {
		col, err := ColumnKey(key)
		if err != nil {
			return nil, err
		}
		source = strings.TrimSpace(source)
		if source == "" {
			return nil, fmt.Errorf("column %q: source cannot be empty", key)
		}
		out[col] = source
	}
	return out, nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	t := base

	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = val
	}
	return t, nil
}
