package highlight

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/torosent/stationpivot/internal/hierarchy"
	"github.com/torosent/stationpivot/internal/pivot"
	"github.com/torosent/stationpivot/internal/record"
)

type obs struct {
	tc, model, station string
	n                  int
}

func build(t *testing.T, observations []obs) *hierarchy.Hierarchy {
	t.Helper()
	var recs []record.FailureRecord
	for _, o := range observations {
		for i := 0; i < o.n; i++ {
			recs = append(recs, record.New(o.tc, o.model, o.station))
		}
	}
	m, err := pivot.Aggregate(recs, pivot.Spec{
		Rows:   []record.Field{record.FieldTestCase, record.FieldModel},
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

func group(g string) hierarchy.RowID {
	return hierarchy.RowID{Kind: hierarchy.KindGroup, Group: g}
}

func leaf(g, l string) hierarchy.RowID {
	return hierarchy.RowID{Kind: hierarchy.KindLeaf, Group: g, Leaf: l}
}

func TestGlobalMax(t *testing.T) {
	h := build(t, []obs{
		{"A", "X", "S1", 2},
		{"A", "X", "S2", 5},
		{"B", "Y", "S1", 2},
	})
	got := GlobalMax(h).Cells()
	want := []Cell{{Row: hierarchy.TotalID, Column: "S2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GlobalMax() mismatch (-want +got):\n%s", diff)
	}

	if GlobalMax(nil).Len() != 0 {
		t.Error("GlobalMax(nil) should be empty")
	}
}

func TestGroupMaxTieUsesRankOrder(t *testing.T) {
	h := build(t, []obs{
		{"A", "X", "S1", 3},
		{"A", "X", "S2", 3},
		{"B", "Y", "S2", 4},
	})
	// S2 ranks first (7 vs 3), so the tie in group A goes to S2.
	got := GroupMax(h)
	if !got.Contains(Cell{Row: group("A"), Column: "S2"}) {
		t.Errorf("GroupMax() = %v, want A flagged at S2", got.Cells())
	}
	if got.Contains(Cell{Row: group("A"), Column: "S1"}) {
		t.Error("GroupMax() flagged both tied columns")
	}
	if got.Len() != 2 {
		t.Errorf("GroupMax().Len() = %d, want 2", got.Len())
	}
}

func TestLeafMaxTopThreeOnly(t *testing.T) {
	h := build(t, []obs{
		{"A", "M1", "S1", 9},
		{"A", "M2", "S1", 8},
		{"A", "M3", "S2", 7},
		{"A", "M4", "S2", 6},
		{"A", "M5", "S1", 5},
	})

	got := LeafMax(h, TopLeaves)
	want := []Cell{
		{Row: leaf("A", "M1"), Column: "S1"},
		{Row: leaf("A", "M2"), Column: "S1"},
		{Row: leaf("A", "M3"), Column: "S2"},
	}
	if diff := cmp.Diff(want, got.Cells()); diff != "" {
		t.Errorf("LeafMax() mismatch (-want +got):\n%s", diff)
	}
	if got.Contains(Cell{Row: leaf("A", "M4"), Column: "S2"}) {
		t.Error("LeafMax() flagged a leaf beyond the top three")
	}
}

func TestComputeRulesOverlap(t *testing.T) {
	h := build(t, []obs{{"A", "X", "S1", 4}})
	hl := Compute(h)

	if diff := cmp.Diff([]Rule{RuleGlobalMax}, hl.Rules(Cell{Row: hierarchy.TotalID, Column: "S1"})); diff != "" {
		t.Errorf("Rules(total) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Rule{RuleLeafMax}, hl.Rules(Cell{Row: leaf("A", "X"), Column: "S1"})); diff != "" {
		t.Errorf("Rules(leaf) mismatch (-want +got):\n%s", diff)
	}
	want := map[Rule]int{RuleGlobalMax: 1, RuleGroupMax: 1, RuleLeafMax: 1}
	if diff := cmp.Diff(want, hl.Count()); diff != "" {
		t.Errorf("Count() mismatch (-want +got):\n%s", diff)
	}
}

func TestStatisticalThreshold(t *testing.T) {
	tests := []struct {
		name    string
		values  []int
		percent float64
		want    float64
		wantOK  bool
	}{
		{"zeros ignored", []int{0, 2, 4, 0}, 50, 4.5, true},
		{"zero percent", []int{3, 3}, 0, 3, true},
		{"all zero", []int{0, 0}, 15, 0, false},
		{"empty", nil, 15, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StatisticalThreshold(tt.values, tt.percent)
			if ok != tt.wantOK || math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("StatisticalThreshold() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if Above(3, 3) {
		t.Error("Above(3, 3) = true, want strictly greater")
	}
	if !Above(4, 3.5) {
		t.Error("Above(4, 3.5) = false, want true")
	}
}

func TestSigma(t *testing.T) {
	h := build(t, []obs{
		{"A", "M1", "S1", 1},
		{"A", "M2", "S1", 1},
		{"A", "M3", "S1", 1},
		{"A", "M4", "S1", 1},
		{"A", "M5", "S1", 1},
		{"A", "M6", "S1", 1},
		{"A", "M7", "S1", 1},
		{"A", "M8", "S1", 1},
		{"A", "M9", "S1", 20},
	})

	warn, critical, bands := Sigma(h, 1)
	if bands.StdDev <= 0 {
		t.Fatalf("bands.StdDev = %v, want > 0", bands.StdDev)
	}
	if !critical.Contains(Cell{Row: leaf("A", "M9"), Column: "S1"}) {
		t.Errorf("critical = %v, want M9 flagged", critical.Cells())
	}
	if warn.Contains(Cell{Row: leaf("A", "M9"), Column: "S1"}) {
		t.Error("cell flagged in both bands")
	}
	if critical.Len() != 1 || warn.Len() != 0 {
		t.Errorf("critical=%d warn=%d, want 1 and 0", critical.Len(), warn.Len())
	}

	uniform := build(t, []obs{{"A", "M1", "S1", 2}, {"A", "M2", "S1", 2}})
	warn, critical, _ = Sigma(uniform, DefaultSigma)
	if warn.Len() != 0 || critical.Len() != 0 {
		t.Error("Sigma() flagged cells in uniform data")
	}
}
