package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/torosent/stationpivot/internal/metrics"
	"github.com/torosent/stationpivot/internal/record"
)

// Threshold represents an assertion over run statistics that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "failures", "cells", "stations", "wifi"
	Aggregate string  // e.g., "total", "p99", "max", "high_operators"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold `json:"-" yaml:"-"`
	Raw       string    `json:"threshold" yaml:"threshold"`
	Actual    float64   `json:"actual" yaml:"actual"`
	Pass      bool      `json:"pass" yaml:"pass"`
	Message   string    `json:"message" yaml:"message"`
}

// Evaluator evaluates thresholds against a run summary.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided summary.
func (e *Evaluator) Evaluate(summary *metrics.Summary) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, summary))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, summary *metrics.Summary) Result {
	actual, err := extractMetricValue(t, summary)
	if err != nil {
		return Result{
			Threshold: t,
			Raw:       t.Raw,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: error: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Raw:       t.Raw,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var pattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9_]+)\s*([<>=!]+)\s*([0-9.]+)$`)

var rankingAggregates = []string{"max", "min", "avg", "count", "total"}

// aggregates lists the supported aggregates per metric.
var aggregates = map[string][]string{
	"failures":   {"total"},
	"cells":      {"p50", "p90", "p99", "avg", "min", "max", "count"},
	"stations":   rankingAggregates,
	"models":     rankingAggregates,
	"test_cases": rankingAggregates,
	"operators":  rankingAggregates,
	"repeated":   {"count", "max", "total"},
	"wifi":       {"high_operators", "max_rate", "rate", "errors", "hot_cells"},
}

var rankingFields = map[string]record.Field{
	"stations":   record.FieldStation,
	"models":     record.FieldModel,
	"test_cases": record.FieldTestCase,
	"operators":  record.FieldOperator,
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "failures:total < 500"           (failures in the hierarchy)
// - "cells:p99 <= 12"                (non-zero cell percentile)
// - "stations:max < 80"              (largest station total)
// - "test_cases:count < 20"          (distinct test cases)
// - "repeated:count == 0"            (repeated failure combinations)
// - "wifi:high_operators == 0"       (operators above the error threshold)
// - "wifi:max_rate < 15"             (worst operator error rate in percent)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'failures:total < 500')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	allowed, ok := aggregates[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(supportedMetrics(), ", "))
	}

	if !contains(allowed, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(allowed, ", "))
	}

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func supportedMetrics() []string {
	out := make([]string, 0, len(aggregates))
	for m := range aggregates {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	return contains(valid, operator)
}

func extractMetricValue(t Threshold, s *metrics.Summary) (float64, error) {
	if s == nil {
		return 0, fmt.Errorf("no summary available")
	}
	switch t.Metric {
	case "failures":
		return float64(s.Failures), nil
	case "cells":
		return extractCellMetric(t.Aggregate, s.Cells)
	case "stations", "models", "test_cases", "operators":
		field := rankingFields[t.Metric]
		rows, ok := s.Rankings[field]
		if !ok {
			return 0, fmt.Errorf("%s are not a dimension of this view", t.Metric)
		}
		return extractRankingMetric(t.Aggregate, rows)
	case "repeated":
		if s.Repeated == nil {
			return 0, fmt.Errorf("repeated failures were not computed for this view")
		}
		return extractRepeatedMetric(t.Aggregate, s.Repeated)
	case "wifi":
		if s.Wifi == nil {
			return 0, fmt.Errorf("wifi errors were not computed for this view")
		}
		return extractWifiMetric(t.Aggregate, s.Wifi)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractCellMetric(aggregate string, d metrics.Distribution) (float64, error) {
	switch aggregate {
	case "p50":
		return float64(d.P50), nil
	case "p90":
		return float64(d.P90), nil
	case "p99":
		return float64(d.P99), nil
	case "avg":
		return d.Mean, nil
	case "min":
		return float64(d.Min), nil
	case "max":
		return float64(d.Max), nil
	case "count":
		return float64(d.NonZero), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for cells", aggregate)
	}
}

func extractRankingMetric(aggregate string, rows []metrics.Ranked) (float64, error) {
	if aggregate == "count" {
		return float64(len(rows)), nil
	}
	if len(rows) == 0 {
		return 0, nil
	}
	total := 0
	for _, r := range rows {
		total += r.Count
	}
	switch aggregate {
	case "max":
		return float64(rows[0].Count), nil
	case "min":
		return float64(rows[len(rows)-1].Count), nil
	case "total":
		return float64(total), nil
	case "avg":
		return float64(total) / float64(len(rows)), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for rankings", aggregate)
	}
}

func extractRepeatedMetric(aggregate string, r *metrics.RepeatedSummary) (float64, error) {
	switch aggregate {
	case "count":
		return float64(r.Count), nil
	case "max":
		return float64(r.MaxOccurrences), nil
	case "total":
		return float64(r.Occurrences), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for repeated (use 'count', 'max' or 'total')", aggregate)
	}
}

func extractWifiMetric(aggregate string, w *metrics.WifiSummary) (float64, error) {
	switch aggregate {
	case "high_operators":
		return float64(w.HighOperators), nil
	case "max_rate":
		return w.MaxRate, nil
	case "rate":
		return w.Rate, nil
	case "errors":
		return float64(w.Errors), nil
	case "hot_cells":
		return float64(w.HotCells), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for wifi", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
