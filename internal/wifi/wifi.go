package wifi

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/torosent/stationpivot/internal/highlight"
	"github.com/torosent/stationpivot/internal/pivot"
)

// Options tunes Analyze.
type Options struct {
	// ThresholdPercent marks an operator high when its error rate exceeds it.
	// It also scales the hourly hot-cell threshold.
	ThresholdPercent float64
	// Operators restricts the analysis; empty means DefaultOperators.
	Operators []string
}

// OperatorSummary is one row of the per-operator error table.
type OperatorSummary struct {
	Operator     string  `json:"operator" yaml:"operator"`
	Transactions int     `json:"transactions" yaml:"transactions"`
	ClosedSocket int     `json:"closed_socket" yaml:"closed_socket"`
	ConnectError int     `json:"connect_error" yaml:"connect_error"`
	LostWifi     int     `json:"lost_wifi" yaml:"lost_wifi"`
	Errors       int     `json:"errors" yaml:"errors"`
	Percent      float64 `json:"percent" yaml:"percent"`
	High         bool    `json:"high" yaml:"high"`
}

// Count returns the errors of kind k.
func (s OperatorSummary) Count(k ErrorKind) int {
	switch k {
	case ClosedSocket:
		return s.ClosedSocket
	case ConnectError:
		return s.ConnectError
	case LostWifi:
		return s.LostWifi
	}
	return 0
}

func (s *OperatorSummary) add(k ErrorKind) {
	switch k {
	case ClosedSocket:
		s.ClosedSocket++
	case ConnectError:
		s.ConnectError++
	case LostWifi:
		s.LostWifi++
	}
	s.Errors++
}

func (s *OperatorSummary) rate(threshold float64) {
	if s.Transactions > 0 {
		s.Percent = float64(s.Errors) * 100 / float64(s.Transactions)
	}
	s.High = s.Percent > threshold
}

// Bucket holds per-column error counts for one clock hour.
type Bucket struct {
	Hour   time.Time `json:"hour" yaml:"hour"`
	Counts []int     `json:"counts" yaml:"counts"`
}

// HotCell is an hourly count strictly above the hourly threshold.
type HotCell struct {
	Hour   time.Time `json:"hour" yaml:"hour"`
	Column string    `json:"column" yaml:"column"`
	Count  int       `json:"count" yaml:"count"`
}

// Hourly is the time series of errors for high operators.
type Hourly struct {
	Columns      []Column  `json:"columns" yaml:"columns"`
	Buckets      []Bucket  `json:"buckets" yaml:"buckets"`
	Threshold    float64   `json:"threshold" yaml:"threshold"`
	HasThreshold bool      `json:"has_threshold" yaml:"has_threshold"`
	Hot          []HotCell `json:"hot,omitempty" yaml:"hot,omitempty"`
}

// Analysis is the result of Analyze.
type Analysis struct {
	ThresholdPercent float64           `json:"threshold_percent" yaml:"threshold_percent"`
	Operators        []OperatorSummary `json:"operators" yaml:"operators"`
	GrandTotal       OperatorSummary   `json:"grand_total" yaml:"grand_total"`
	Start            time.Time         `json:"start" yaml:"start"`
	End              time.Time         `json:"end" yaml:"end"`
	// Hourly is nil when no operator is high.
	Hourly *Hourly `json:"hourly,omitempty" yaml:"hourly,omitempty"`
}

// HighOperators returns the operators above the threshold, in table order.
func (a *Analysis) HighOperators() []string {
	var out []string
	for _, s := range a.Operators {
		if s.High {
			out = append(out, s.Operator)
		}
	}
	return out
}

// MaxPercent returns the highest per-operator error rate.
func (a *Analysis) MaxPercent() float64 {
	var best float64
	for _, s := range a.Operators {
		best = math.Max(best, s.Percent)
	}
	return best
}

// Analyze computes per-operator WiFi error rates over events and, for
// operators above opts.ThresholdPercent, an hourly breakdown by error kind.
func Analyze(events []Event, opts Options) (*Analysis, error) {
	if opts.ThresholdPercent < 0 || math.IsNaN(opts.ThresholdPercent) {
		return nil, &pivot.ConfigurationError{
			Field:  "error_threshold_percent",
			Reason: fmt.Sprintf("must be >= 0, got %v", opts.ThresholdPercent),
		}
	}
	operators := opts.Operators
	if len(operators) == 0 {
		operators = DefaultOperators
	}
	index := make(map[string]int, len(operators))
	for i, op := range operators {
		op = strings.TrimSpace(op)
		if _, dup := index[op]; dup {
			return nil, &pivot.ConfigurationError{Field: "wifi_operators", Reason: fmt.Sprintf("duplicate operator %q", op)}
		}
		index[op] = i
	}

	a := &Analysis{
		ThresholdPercent: opts.ThresholdPercent,
		Operators:        make([]OperatorSummary, len(operators)),
		GrandTotal:       OperatorSummary{Operator: "Grand Total"},
	}
	for i, op := range operators {
		a.Operators[i].Operator = strings.TrimSpace(op)
	}

	for _, ev := range events {
		if a.Start.IsZero() || ev.Time.Before(a.Start) {
			a.Start = ev.Time
		}
		if ev.Time.After(a.End) {
			a.End = ev.Time
		}
		i, ok := index[strings.TrimSpace(ev.Operator)]
		if !ok {
			continue
		}
		a.Operators[i].Transactions++
		a.GrandTotal.Transactions++
		if k, ok := ClassifyMessage(ev.Message); ok {
			a.Operators[i].add(k)
			a.GrandTotal.add(k)
		}
	}
	for i := range a.Operators {
		a.Operators[i].rate(opts.ThresholdPercent)
	}
	a.GrandTotal.rate(opts.ThresholdPercent)

	high := a.HighOperators()
	if len(high) == 0 {
		return a, nil
	}
	a.Hourly = hourly(events, high, a.Start, a.End, opts.ThresholdPercent)
	return a, nil
}

func hourly(events []Event, high []string, start, end time.Time, pct float64) *Hourly {
	cols := Columns(high)
	colIdx := make(map[string]int, len(cols))
	for i, c := range cols {
		colIdx[c.Operator+"\x00"+c.Kind.Message()] = i
	}

	byHour := map[time.Time][]int{}
	for _, ev := range events {
		k, ok := ClassifyMessage(ev.Message)
		if !ok {
			continue
		}
		ci, ok := colIdx[strings.TrimSpace(ev.Operator)+"\x00"+k.Message()]
		if !ok {
			continue
		}
		h := ev.Time.Truncate(time.Hour)
		if byHour[h] == nil {
			byHour[h] = make([]int, len(cols))
		}
		byHour[h][ci]++
	}

	buckets := []Bucket{
		{Hour: start.Truncate(time.Hour), Counts: make([]int, len(cols))},
		{Hour: end.Truncate(time.Hour), Counts: make([]int, len(cols))},
	}
	for h, counts := range byHour {
		buckets = append(buckets, Bucket{Hour: h, Counts: counts})
	}
	out := &Hourly{Columns: cols, Buckets: Reindex(buckets, len(cols))}

	var values []int
	for _, b := range out.Buckets {
		values = append(values, b.Counts...)
	}
	out.Threshold, out.HasThreshold = highlight.StatisticalThreshold(values, pct)
	if !out.HasThreshold {
		return out
	}
	for _, b := range out.Buckets {
		for ci, n := range b.Counts {
			if highlight.Above(n, out.Threshold) {
				out.Hot = append(out.Hot, HotCell{Hour: b.Hour, Column: cols[ci].Label, Count: n})
			}
		}
	}
	return out
}

// Reindex merges buckets falling in the same clock hour and fills every
// missing hour between the earliest and latest with zero counts. Every
// bucket of the result has width counts. Reindexing its own output is a no-op.
func Reindex(buckets []Bucket, width int) []Bucket {
	if len(buckets) == 0 {
		return nil
	}
	merged := map[time.Time][]int{}
	for _, b := range buckets {
		h := b.Hour.Truncate(time.Hour)
		counts := merged[h]
		if counts == nil {
			counts = make([]int, width)
			merged[h] = counts
		}
		for i, n := range b.Counts {
			if i < width {
				counts[i] += n
			}
		}
	}
	hours := make([]time.Time, 0, len(merged))
	for h := range merged {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	first, last := hours[0], hours[len(hours)-1]
	out := make([]Bucket, 0, int(last.Sub(first)/time.Hour)+1)
	for h := first; !h.After(last); h = h.Add(time.Hour) {
		counts, ok := merged[h]
		if !ok {
			counts = make([]int, width)
		}
		out = append(out, Bucket{Hour: h, Counts: slices.Clone(counts)})
	}
	return out
}
