package metrics

import (
	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/stationpivot/internal/hierarchy"
	"github.com/torosent/stationpivot/internal/mappings"
	"github.com/torosent/stationpivot/internal/record"
	"github.com/torosent/stationpivot/internal/repeated"
	"github.com/torosent/stationpivot/internal/wifi"
)

// Cell is one leaf value with its coordinates.
type Cell struct {
	Group  string `json:"group" yaml:"group"`
	Leaf   string `json:"leaf" yaml:"leaf"`
	Column string `json:"column" yaml:"column"`
	Count  int    `json:"count" yaml:"count"`
}

// Distribution describes the non-zero leaf cells of a hierarchy.
type Distribution struct {
	Cells   int     `json:"cells" yaml:"cells"`
	NonZero int     `json:"non_zero" yaml:"non_zero"`
	Min     int     `json:"min" yaml:"min"`
	Max     int     `json:"max" yaml:"max"`
	Mean    float64 `json:"mean" yaml:"mean"`
	P50     int     `json:"p50" yaml:"p50"`
	P90     int     `json:"p90" yaml:"p90"`
	P99     int     `json:"p99" yaml:"p99"`
}

// RepeatedSummary condenses a repeated-failure list.
type RepeatedSummary struct {
	Count          int `json:"count" yaml:"count"`
	MaxOccurrences int `json:"max_occurrences" yaml:"max_occurrences"`
	Occurrences    int `json:"occurrences" yaml:"occurrences"`
}

// WifiSummary condenses a WiFi error analysis.
type WifiSummary struct {
	Transactions  int     `json:"transactions" yaml:"transactions"`
	Errors        int     `json:"errors" yaml:"errors"`
	Rate          float64 `json:"rate" yaml:"rate"`
	MaxRate       float64 `json:"max_rate" yaml:"max_rate"`
	HighOperators int     `json:"high_operators" yaml:"high_operators"`
	HotCells      int     `json:"hot_cells" yaml:"hot_cells"`
}

// Summary is the flat statistics of one run.
type Summary struct {
	Failures    int                       `json:"failures" yaml:"failures"`
	Groups      int                       `json:"groups" yaml:"groups"`
	Leaves      int                       `json:"leaves" yaml:"leaves"`
	Columns     int                       `json:"columns" yaml:"columns"`
	HighestCell *Cell                     `json:"highest_cell,omitempty" yaml:"highest_cell,omitempty"`
	Rankings    map[record.Field][]Ranked `json:"rankings,omitempty" yaml:"rankings,omitempty"`
	Cells       Distribution              `json:"cells" yaml:"cells"`
	Repeated    *RepeatedSummary          `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	Wifi        *WifiSummary              `json:"wifi,omitempty" yaml:"wifi,omitempty"`

	// Machines and Categories fold the station and test case rankings
	// through the lookup tables in package mappings.
	Machines   []Ranked `json:"machines,omitempty" yaml:"machines,omitempty"`
	Categories []Ranked `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Cell counts are tracked from 1 up to 100M with 3 significant figures.
const histogramMax = 100_000_000

// Summarize computes statistics over h. A nil hierarchy yields a zero Summary.
func Summarize(h *hierarchy.Hierarchy) *Summary {
	s := &Summary{}
	if h == nil {
		return s
	}
	s.Failures = h.Total.Total
	s.Groups = len(h.Groups)
	s.Columns = len(h.Columns)

	columns := make(map[string]int, len(h.Columns))
	for i, c := range h.Columns {
		columns[c] = h.Total.Values[i]
	}
	groups := make(map[string]int, len(h.Groups))
	leaves := map[string]int{}

	hist := hdrhistogram.New(1, histogramMax, 3)
	for _, g := range h.Groups {
		groups[g.ID.Group] = g.Total
		s.Leaves += len(g.Leaves)
		for _, leaf := range g.Leaves {
			leaves[leaf.ID.Leaf] += leaf.Total
			for i, v := range leaf.Values {
				s.Cells.Cells++
				if v <= 0 {
					continue
				}
				s.Cells.NonZero++
				if s.HighestCell == nil || v > s.HighestCell.Count {
					s.HighestCell = &Cell{Group: g.ID.Group, Leaf: leaf.ID.Leaf, Column: h.Columns[i], Count: v}
				}
				// Clamped to the trackable range, so RecordValue cannot fail.
				_ = hist.RecordValue(int64(min(v, histogramMax)))
			}
		}
	}
	if hist.TotalCount() > 0 {
		s.Cells.Min = int(hist.Min())
		s.Cells.Max = s.HighestCell.Count
		s.Cells.Mean = hist.Mean()
		s.Cells.P50 = int(hist.ValueAtQuantile(50))
		s.Cells.P90 = int(hist.ValueAtQuantile(90))
		s.Cells.P99 = int(hist.ValueAtQuantile(99))
	}

	s.Rankings = map[record.Field][]Ranked{
		h.GroupField: Rank(groups),
		h.LeafField:  Rank(leaves),
	}
	if h.ColumnField != "" {
		s.Rankings[h.ColumnField] = Rank(columns)
	}
	if ranked, ok := s.Rankings[record.FieldStation]; ok {
		s.Machines = regroup(ranked, mappings.Machine)
	}
	if ranked, ok := s.Rankings[record.FieldTestCase]; ok {
		s.Categories = regroup(ranked, mappings.TestCategory)
	}
	return s
}

// regroup sums ranked counts under the name key maps them to.
func regroup(rows []Ranked, key func(string) string) []Ranked {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[key(r.Name)] += r.Count
	}
	return Rank(counts)
}

// Ranking returns the ranking for field, or nil when the run did not use it.
func (s *Summary) Ranking(field record.Field) []Ranked {
	if s == nil {
		return nil
	}
	return s.Rankings[field]
}

// WithRepeated attaches the repeated-failure section.
func (s *Summary) WithRepeated(entries []repeated.Entry) *Summary {
	r := &RepeatedSummary{Count: len(entries)}
	for _, e := range entries {
		r.Occurrences += e.Occurrences
		if e.Occurrences > r.MaxOccurrences {
			r.MaxOccurrences = e.Occurrences
		}
	}
	s.Repeated = r
	return s
}

// WithWifi attaches the WiFi section. A nil analysis clears it.
func (s *Summary) WithWifi(a *wifi.Analysis) *Summary {
	if a == nil {
		s.Wifi = nil
		return s
	}
	w := &WifiSummary{
		Transactions:  a.GrandTotal.Transactions,
		Errors:        a.GrandTotal.Errors,
		Rate:          a.GrandTotal.Percent,
		MaxRate:       a.MaxPercent(),
		HighOperators: len(a.HighOperators()),
	}
	if a.Hourly != nil {
		w.HotCells = len(a.Hourly.Hot)
	}
	s.Wifi = w
	return s
}
