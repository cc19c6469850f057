package record

import (
	"fmt"
	"sort"
	"strings"

	"github.com/torosent/stationpivot/internal/selection"
)

// Status values found in the Overall status column.
const (
	StatusFailure = "FAILURE"
	StatusError   = "ERROR"
	StatusSuccess = "SUCCESS"
)

// StatusPolicy decides which rows count as failures before normalization.
type StatusPolicy string

const (
	// PolicyAll applies no status filter.
	PolicyAll StatusPolicy = "all"
	// PolicyFailureOnly keeps rows whose status is FAILURE.
	PolicyFailureOnly StatusPolicy = "failure"
	// PolicyComprehensive also keeps ERROR rows that carry a failure reason.
	PolicyComprehensive StatusPolicy = "comprehensive"
)

// ParseStatusPolicy resolves a policy name; empty means PolicyFailureOnly.
func ParseStatusPolicy(s string) (StatusPolicy, error) {
	switch p := StatusPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyFailureOnly, nil
	case PolicyAll, PolicyFailureOnly, PolicyComprehensive:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported status policy %q (use all, failure or comprehensive)", s)
	}
}

// FilterStatus keeps the rows that policy treats as failures. Rows without a
// status column are kept.
func FilterStatus(rows []Row, policy StatusPolicy) ([]Row, error) {
	policy, err := ParseStatusPolicy(string(policy))
	if err != nil {
		return nil, err
	}
	if policy == PolicyAll {
		return rows, nil
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		status, ok := row.Get(ColumnStatus)
		if !ok {
			out = append(out, row)
			continue
		}
		status = strings.ToUpper(status)
		switch {
		case status == StatusFailure:
			out = append(out, row)
		case policy == PolicyComprehensive && status == StatusError && row.Value(ColumnResultFail) != "":
			out = append(out, row)
		}
	}
	return out, nil
}

// FilterOperators keeps rows whose operator passes sel. Rows without an
// operator column only pass an All selection.
func FilterOperators(rows []Row, sel selection.Selection) []Row {
	if sel.Kind() == selection.KindAll {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		op, ok := row.Get(ColumnOperator)
		if ok && sel.Matches(op) {
			out = append(out, row)
		}
	}
	return out
}

// StationAudit holds inconsistent-row counts for one station.
type StationAudit struct {
	Station        string `json:"station" yaml:"station"`
	GhostFailures  int    `json:"ghost_failures" yaml:"ghost_failures"`
	PhantomResults int    `json:"phantom_results" yaml:"phantom_results"`
}

// Audit reports rows whose status and failure reason disagree: ghost
// failures are FAILURE rows with no reason, phantom results carry a reason
// without a FAILURE status.
type Audit struct {
	GhostFailures  int            `json:"ghost_failures" yaml:"ghost_failures"`
	PhantomResults int            `json:"phantom_results" yaml:"phantom_results"`
	Stations       []StationAudit `json:"stations,omitempty" yaml:"stations,omitempty"`
}

// Clean reports whether no inconsistent rows were found.
func (a Audit) Clean() bool {
	return a.GhostFailures == 0 && a.PhantomResults == 0
}

// AuditRows inspects raw rows before any status filtering. Rows without a
// status column are not audited.
func AuditRows(rows []Row) Audit {
	var audit Audit
	byStation := map[string]*StationAudit{}
	entry := func(station string) *StationAudit {
		sa, ok := byStation[station]
		if !ok {
			sa = &StationAudit{Station: station}
			byStation[station] = sa
		}
		return sa
	}

	for _, row := range rows {
		status, ok := row.Get(ColumnStatus)
		if !ok {
			continue
		}
		failed := strings.EqualFold(status, StatusFailure)
		reason := row.Value(ColumnResultFail) != ""
		switch {
		case failed && !reason:
			audit.GhostFailures++
			entry(row.Value(ColumnStation)).GhostFailures++
		case !failed && reason:
			audit.PhantomResults++
			entry(row.Value(ColumnStation)).PhantomResults++
		}
	}

	if len(byStation) == 0 {
		return audit
	}
	audit.Stations = make([]StationAudit, 0, len(byStation))
	for _, sa := range byStation {
		audit.Stations = append(audit.Stations, *sa)
	}
	sort.Slice(audit.Stations, func(i, j int) bool {
		return audit.Stations[i].Station < audit.Stations[j].Station
	})
	return audit
}
