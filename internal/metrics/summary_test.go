package metrics

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/torosent/stationpivot/internal/hierarchy"
	"github.com/torosent/stationpivot/internal/pivot"
	"github.com/torosent/stationpivot/internal/record"
	"github.com/torosent/stationpivot/internal/repeated"
	"github.com/torosent/stationpivot/internal/wifi"
)

func buildHierarchy(t *testing.T, recs []record.FailureRecord) *hierarchy.Hierarchy {
	t.Helper()
	m, err := pivot.Aggregate(recs, pivot.Spec{
		Rows:   []record.Field{record.FieldModel, record.FieldTestCase},
		Column: record.FieldStation,
	})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	h, err := hierarchy.Build(m, pivot.RankColumns(m), hierarchy.Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return h
}

func times(n int, r record.FailureRecord) []record.FailureRecord {
	out := make([]record.FailureRecord, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		name   string
		counts map[string]int
		want   []Ranked
	}{
		{name: "nil", counts: nil, want: nil},
		{name: "empty", counts: map[string]int{}, want: nil},
		{
			name:   "sorted by count desc",
			counts: map[string]int{"S1": 3, "S2": 10, "S3": 5},
			want:   []Ranked{{"S2", 10}, {"S3", 5}, {"S1", 3}},
		},
		{
			name:   "tie breaking by name",
			counts: map[string]int{"b": 4, "a": 4, "c": 9},
			want:   []Ranked{{"c", 9}, {"a", 4}, {"b", 4}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Rank(tt.counts)); diff != "" {
				t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTop(t *testing.T) {
	rows := []Ranked{{"a", 3}, {"b", 2}, {"c", 1}}
	if got := Top(rows, 2); len(got) != 2 || got[1].Name != "b" {
		t.Errorf("Top(2) = %v", got)
	}
	if got := Top(rows, 0); len(got) != 3 {
		t.Errorf("Top(0) = %v, want all", got)
	}
	if got := Top(rows, 10); len(got) != 3 {
		t.Errorf("Top(10) = %v, want all", got)
	}
}

func TestSummarize(t *testing.T) {
	var recs []record.FailureRecord
	recs = append(recs, times(7, record.New("A", "X", "S1"))...)
	recs = append(recs, times(10, record.New("A", "Y", "S3"))...)
	recs = append(recs, times(4, record.New("B", "X", "S2"))...)

	s := Summarize(buildHierarchy(t, recs))

	if s.Failures != 21 || s.Groups != 2 || s.Leaves != 3 || s.Columns != 3 {
		t.Errorf("counts = %d/%d/%d/%d, want 21/2/3/3", s.Failures, s.Groups, s.Leaves, s.Columns)
	}
	wantCell := &Cell{Group: "Y", Leaf: "A", Column: "S3", Count: 10}
	if diff := cmp.Diff(wantCell, s.HighestCell); diff != "" {
		t.Errorf("HighestCell mismatch (-want +got):\n%s", diff)
	}

	wantRankings := map[record.Field][]Ranked{
		record.FieldStation:  {{"S3", 10}, {"S1", 7}, {"S2", 4}},
		record.FieldModel:    {{"X", 11}, {"Y", 10}},
		record.FieldTestCase: {{"A", 17}, {"B", 4}},
	}
	if diff := cmp.Diff(wantRankings, s.Rankings); diff != "" {
		t.Errorf("Rankings mismatch (-want +got):\n%s", diff)
	}

	if s.Cells.Cells != 9 || s.Cells.NonZero != 3 {
		t.Errorf("Cells = %+v, want 9 cells / 3 non-zero", s.Cells)
	}
	if s.Cells.Min != 4 || s.Cells.Max != 10 || s.Cells.P50 != 7 {
		t.Errorf("Cells = %+v, want min 4, p50 7, max 10", s.Cells)
	}
	if s.Cells.P99 != 10 {
		t.Errorf("Cells.P99 = %d, want 10", s.Cells.P99)
	}
}

func TestSummarizeRollups(t *testing.T) {
	var recs []record.FailureRecord
	recs = append(recs, times(3, record.New("Camera", "X", "radi135"))...)
	recs = append(recs, times(2, record.New("Camera pictures", "X", "radi138"))...)
	recs = append(recs, times(4, record.New("Touch screen", "Y", "lab-9"))...)

	s := Summarize(buildHierarchy(t, recs))

	wantMachines := []Ranked{{"B56 Red Primary", 5}, {"Unknown Machine", 4}}
	if diff := cmp.Diff(wantMachines, s.Machines); diff != "" {
		t.Errorf("Machines mismatch (-want +got):\n%s", diff)
	}
	wantCategories := []Ranked{{"Camera rear photo", 5}, {"Touch", 4}}
	if diff := cmp.Diff(wantCategories, s.Categories); diff != "" {
		t.Errorf("Categories mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeCellAboveHistogramRange(t *testing.T) {
	big := histogramMax + 5
	leafID := hierarchy.RowID{Kind: hierarchy.KindLeaf, Group: "Camera", Leaf: "A"}
	h := &hierarchy.Hierarchy{
		GroupField:  record.FieldTestCase,
		LeafField:   record.FieldModel,
		ColumnField: record.FieldStation,
		Columns:     []string{"S1", "S2"},
		Total:       hierarchy.Node{ID: hierarchy.TotalID, Values: []int{big, 2}, Total: big + 2},
		MaxColumn:   "S1",
		Groups: []hierarchy.Group{{
			Node:   hierarchy.Node{ID: hierarchy.RowID{Kind: hierarchy.KindGroup, Group: "Camera"}, Values: []int{big, 2}, Total: big + 2},
			Leaves: []hierarchy.Node{{ID: leafID, Values: []int{big, 2}, Total: big + 2}},
		}},
	}

	s := Summarize(h)
	want := &Cell{Group: "Camera", Leaf: "A", Column: "S1", Count: big}
	if diff := cmp.Diff(want, s.HighestCell); diff != "" {
		t.Errorf("HighestCell mismatch (-want +got):\n%s", diff)
	}
	if s.Cells.Max != big || s.Cells.Min != 2 || s.Cells.NonZero != 2 {
		t.Errorf("Cells = %+v, want max %d, min 2, 2 non-zero", s.Cells, big)
	}
}

func TestSummarizeNil(t *testing.T) {
	s := Summarize(nil)
	if s.Failures != 0 || s.HighestCell != nil || s.Ranking(record.FieldStation) != nil {
		t.Errorf("Summarize(nil) = %+v, want zero summary", s)
	}
	if s.Repeated != nil || s.Wifi != nil {
		t.Error("optional sections set without being attached")
	}
}

func TestWithRepeated(t *testing.T) {
	s := Summarize(nil).WithRepeated([]repeated.Entry{
		{Occurrences: 9}, {Occurrences: 4}, {Occurrences: 5},
	})
	want := &RepeatedSummary{Count: 3, MaxOccurrences: 9, Occurrences: 18}
	if diff := cmp.Diff(want, s.Repeated); diff != "" {
		t.Errorf("Repeated mismatch (-want +got):\n%s", diff)
	}

	if s := Summarize(nil).WithRepeated(nil); s.Repeated == nil || s.Repeated.Count != 0 {
		t.Errorf("WithRepeated(nil) = %+v, want zero count section", s.Repeated)
	}
}

func TestWithWifi(t *testing.T) {
	a := &wifi.Analysis{
		Operators: []wifi.OperatorSummary{
			{Operator: "a", Transactions: 100, Errors: 20, Percent: 20, High: true},
			{Operator: "b", Transactions: 100, Errors: 5, Percent: 5},
		},
		GrandTotal: wifi.OperatorSummary{Transactions: 200, Errors: 25, Percent: 12.5},
		Hourly:     &wifi.Hourly{Hot: []wifi.HotCell{{Count: 20}}},
	}
	s := Summarize(nil).WithWifi(a)
	want := &WifiSummary{Transactions: 200, Errors: 25, Rate: 12.5, MaxRate: 20, HighOperators: 1, HotCells: 1}
	if diff := cmp.Diff(want, s.Wifi); diff != "" {
		t.Errorf("Wifi mismatch (-want +got):\n%s", diff)
	}
	if s.WithWifi(nil).Wifi != nil {
		t.Error("WithWifi(nil) kept the section")
	}
}
