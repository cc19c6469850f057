package record

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how multi-valued result_FAIL strings are interpreted.
type Mode string

const (
	// ModeSplit emits one record per comma separated failure token.
	ModeSplit Mode = "split"
	// ModePreserve keeps the whole comma joined string as one test case.
	ModePreserve Mode = "preserve"
)

// ErrInvalidMode is returned for a normalization mode other than split or preserve.
var ErrInvalidMode = errors.New("invalid normalize mode")

// ParseMode resolves a mode name; empty means ModeSplit.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeSplit, nil
	case ModeSplit, ModePreserve:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (use split or preserve)", ErrInvalidMode, s)
	}
}

// maxSkipDetails bounds the per-row detail list; counters are always exact.
const maxSkipDetails = 100

// Skip describes one input row that produced no records.
type Skip struct {
	Row    int    `json:"row" yaml:"row"`
	Reason string `json:"reason" yaml:"reason"`
}

// Diagnostics counts what normalization dropped and why.
type Diagnostics struct {
	Rows        int    `json:"rows" yaml:"rows"`
	Passing     int    `json:"passing" yaml:"passing"`
	Malformed   int    `json:"malformed" yaml:"malformed"`
	EmptyTokens int    `json:"empty_tokens" yaml:"empty_tokens"`
	Records     int    `json:"records" yaml:"records"`
	Skipped     []Skip `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func (d *Diagnostics) skip(row int, reason string) {
	d.Malformed++
	if len(d.Skipped) < maxSkipDetails {
		d.Skipped = append(d.Skipped, Skip{Row: row, Reason: reason})
	}
}

// Result is the output of Normalize.
type Result struct {
	Records     []FailureRecord
	Diagnostics Diagnostics
}

// Normalize converts rows into failure records. Passing rows (blank
// result_FAIL) are dropped, rows without a model or station are skipped and
// counted, and in split mode empty tokens are discarded.
func Normalize(rows []Row, mode Mode) (Result, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return Result{}, err
	}

	res := Result{Records: make([]FailureRecord, 0, len(rows))}
	diag := &res.Diagnostics
	diag.Rows = len(rows)

	for i, row := range rows {
		line := i + 1
		failures := row.Value(ColumnResultFail)
		if failures == "" {
			diag.Passing++
			continue
		}

		model := row.Value(ColumnModel)
		if model == "" {
			diag.skip(line, "missing "+ColumnModel)
			continue
		}
		station := row.Value(ColumnStation)
		if station == "" {
			diag.skip(line, "missing "+ColumnStation)
			continue
		}

		base := New("", model, station)
		if op, ok := row.Get(ColumnOperator); ok {
			base = base.WithOperator(op)
		}
		if id, ok := row.Get(ColumnDeviceID); ok {
			base = base.WithDeviceID(id)
		}

		if mode == ModePreserve {
			base.testCase = failures
			res.Records = append(res.Records, base)
			continue
		}

		for _, token := range strings.Split(failures, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				diag.EmptyTokens++
				continue
			}
			rec := base
			rec.testCase = token
			res.Records = append(res.Records, rec)
		}
	}

	diag.Records = len(res.Records)
	return res, nil
}
