package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/torosent/stationpivot/internal/selection"
)

func TestFilterStatus(t *testing.T) {
	rows := []Row{
		{ColumnStatus: "FAILURE", ColumnResultFail: "A"},
		{ColumnStatus: "ERROR", ColumnResultFail: "B"},
		{ColumnStatus: "ERROR"},
		{ColumnStatus: "SUCCESS", ColumnResultFail: "C"},
		{ColumnResultFail: "D"},
		{ColumnStatus: "failure"},
	}

	tests := []struct {
		policy StatusPolicy
		want   []string
	}{
		{PolicyAll, []string{"A", "B", "", "C", "D", ""}},
		{PolicyFailureOnly, []string{"A", "D", ""}},
		{"", []string{"A", "D", ""}},
		{PolicyComprehensive, []string{"A", "B", "D", ""}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			got, err := FilterStatus(rows, tt.policy)
			if err != nil {
				t.Fatalf("FilterStatus() error = %v", err)
			}
			reasons := make([]string, len(got))
			for i, r := range got {
				reasons[i] = r.Value(ColumnResultFail)
			}
			if diff := cmp.Diff(tt.want, reasons); diff != "" {
				t.Errorf("FilterStatus() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := FilterStatus(rows, "strict"); err == nil {
		t.Error("FilterStatus() with unknown policy should return error")
	}
}

func TestFilterOperators(t *testing.T) {
	rows := []Row{
		{ColumnOperator: "STN251_RED(id:10089)"},
		{ColumnOperator: "manual"},
		{},
	}

	if got := FilterOperators(rows, selection.All()); len(got) != 3 {
		t.Errorf("FilterOperators(All) len = %d, want 3", len(got))
	}
	if got := FilterOperators(rows, selection.None()); len(got) != 0 {
		t.Errorf("FilterOperators(None) len = %d, want 0", len(got))
	}
	got := FilterOperators(rows, selection.Subset("STN251_RED(id:10089)"))
	if len(got) != 1 || got[0].Value(ColumnOperator) != "STN251_RED(id:10089)" {
		t.Errorf("FilterOperators(Subset) = %v", got)
	}
}

func TestAuditRows(t *testing.T) {
	rows := []Row{
		{ColumnStatus: "FAILURE", ColumnStation: "radi135"},
		{ColumnStatus: "FAILURE", ColumnStation: "radi135", ColumnResultFail: "A"},
		{ColumnStatus: "SUCCESS", ColumnStation: "radi160", ColumnResultFail: "B"},
		{ColumnStatus: "ERROR", ColumnStation: "radi135", ColumnResultFail: "C"},
		{ColumnStation: "radi999", ColumnResultFail: "D"},
	}

	got := AuditRows(rows)
	want := Audit{
		GhostFailures:  1,
		PhantomResults: 2,
		Stations: []StationAudit{
			{Station: "radi135", GhostFailures: 1, PhantomResults: 1},
			{Station: "radi160", PhantomResults: 1},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AuditRows() mismatch (-want +got):\n%s", diff)
	}
	if got.Clean() {
		t.Error("Clean() = true, want false")
	}
	if !AuditRows(nil).Clean() {
		t.Error("AuditRows(nil).Clean() = false, want true")
	}
}
