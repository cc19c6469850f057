// Package repeated finds (model, station, test case, operator) combinations
// that fail at least a minimum number of times.
package repeated

import (
	"fmt"
	"sort"
	"strings"

	"github.com/torosent/stationpivot/internal/mappings"
	"github.com/torosent/stationpivot/internal/pivot"
	"github.com/torosent/stationpivot/internal/record"
	"github.com/torosent/stationpivot/internal/selection"
)

// DefaultMinFailures is the occurrence count at which a failure is repeated.
const DefaultMinFailures = 4

// Entry is one repeated failure combination.
type Entry struct {
	Model       string `json:"model" yaml:"model"`
	ModelCode   string `json:"model_code" yaml:"model_code"`
	Station     string `json:"station" yaml:"station"`
	TestCase    string `json:"test_case" yaml:"test_case"`
	Operator    string `json:"operator" yaml:"operator"`
	Occurrences int    `json:"occurrences" yaml:"occurrences"`
	Devices     int    `json:"devices" yaml:"devices"`
}

// Options tunes Analyze.
type Options struct {
	MinFailures int
}

var dimensions = []record.Field{
	record.FieldModel,
	record.FieldStation,
	record.FieldTestCase,
	record.FieldOperator,
}

// Analyze counts occurrences and distinct devices per combination and keeps
// those with at least opts.MinFailures occurrences, sorted by occurrences.
// Records must carry operator and device_id.
func Analyze(records []record.FailureRecord, opts Options) ([]Entry, error) {
	if opts.MinFailures < 1 {
		return nil, &pivot.ConfigurationError{
			Field:  "min_failures",
			Reason: fmt.Sprintf("must be >= 1, got %d", opts.MinFailures),
		}
	}

	counts, err := pivot.Aggregate(records, pivot.Spec{Rows: dimensions, Mode: pivot.ModeCount})
	if err != nil {
		return nil, fmt.Errorf("count occurrences: %w", err)
	}
	devices, err := pivot.Aggregate(records, pivot.Spec{
		Rows:     dimensions,
		Mode:     pivot.ModeDistinctCount,
		Identity: record.FieldDeviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("count devices: %w", err)
	}

	var entries []Entry
	for _, row := range counts.Rows() {
		n := row.Total()
		if n < opts.MinFailures {
			continue
		}
		entries = append(entries, Entry{
			Model:       row.Key[0],
			ModelCode:   mappings.DeviceCode(row.Key[0]),
			Station:     row.Key[1],
			TestCase:    row.Key[2],
			Operator:    row.Key[3],
			Occurrences: n,
			Devices:     devices.Value(row.Key, ""),
		})
	}
	Sort(entries, SortOccurrences)
	return entries, nil
}

// SortKey names the column Sort orders by.
type SortKey string

const (
	SortOccurrences SortKey = "occurrences"
	SortModel       SortKey = "model"
	SortModelCode   SortKey = "model_code"
	SortStation     SortKey = "station"
	SortOperator    SortKey = "operator"
	SortTestCase    SortKey = "test_case"
)

// ParseSortKey resolves a sort key name; empty means SortOccurrences.
func ParseSortKey(s string) (SortKey, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	switch SortKey(k) {
	case "", "count", "tc_count":
		return SortOccurrences, nil
	case SortOccurrences, SortModel, SortModelCode, SortStation, SortOperator, SortTestCase:
		return SortKey(k), nil
	case "station_id":
		return SortStation, nil
	default:
		return "", fmt.Errorf("unsupported sort key %q", s)
	}
}

// Sort orders entries descending by key in place. Equal keys fall back to
// ascending (model, station, test case, operator), which is unique per entry.
func Sort(entries []Entry, key SortKey) {
	primary := func(a, b Entry) int {
		switch key {
		case SortModel:
			return strings.Compare(a.Model, b.Model)
		case SortModelCode:
			return strings.Compare(a.ModelCode, b.ModelCode)
		case SortStation:
			return strings.Compare(a.Station, b.Station)
		case SortOperator:
			return strings.Compare(a.Operator, b.Operator)
		case SortTestCase:
			return strings.Compare(a.TestCase, b.TestCase)
		default:
			return a.Occurrences - b.Occurrences
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if c := primary(a, b); c != 0 {
			return c > 0
		}
		return identityLess(a, b)
	})
}

func identityLess(a, b Entry) bool {
	if a.Model != b.Model {
		return a.Model < b.Model
	}
	if a.Station != b.Station {
		return a.Station < b.Station
	}
	if a.TestCase != b.TestCase {
		return a.TestCase < b.TestCase
	}
	return a.Operator < b.Operator
}

// Select keeps entries whose test case passes sel, preserving order.
func Select(entries []Entry, sel selection.Selection) []Entry {
	return selection.Filter(sel, entries, func(e Entry) string { return e.TestCase })
}

// Choice is a selectable test case with its worst combination count.
type Choice struct {
	TestCase       string `json:"test_case" yaml:"test_case"`
	MaxOccurrences int    `json:"max_occurrences" yaml:"max_occurrences"`
}

// Choices lists distinct test cases ordered by their maximum occurrence count
// descending, then name.
func Choices(entries []Entry) []Choice {
	best := map[string]int{}
	for _, e := range entries {
		if e.Occurrences > best[e.TestCase] {
			best[e.TestCase] = e.Occurrences
		}
	}
	out := make([]Choice, 0, len(best))
	for tc, n := range best {
		out = append(out, Choice{TestCase: tc, MaxOccurrences: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MaxOccurrences == out[j].MaxOccurrences {
			return out[i].TestCase < out[j].TestCase
		}
		return out[i].MaxOccurrences > out[j].MaxOccurrences
	})
	return out
}
