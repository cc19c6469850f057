// Package pivot aggregates failure records into dense count matrices and
// ranks matrix columns by volume.
package pivot

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/torosent/stationpivot/internal/record"
)

// Mode selects what a matrix cell counts.
type Mode string

const (
	// ModeCount counts records.
	ModeCount Mode = "count"
	// ModeDistinctCount counts distinct non-empty identity values.
	ModeDistinctCount Mode = "distinct_count"
)

// Spec describes an aggregation.
type Spec struct {
	// Rows are the row dimensions, outermost first.
	Rows []record.Field
	// Column is the column dimension. Empty yields a single column keyed "".
	Column record.Field
	// Mode defaults to ModeCount.
	Mode Mode
	// Identity is the field counted by ModeDistinctCount.
	Identity record.Field
}

// ConfigurationError reports an aggregation that cannot be performed as
// requested. It is never caused by individual bad rows.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "pivot configuration: " + e.Reason
	}
	return fmt.Sprintf("pivot configuration: field %q: %s", e.Field, e.Reason)
}

// Row is one row of a Matrix. Counts is aligned with Matrix.Columns.
type Row struct {
	Key    []string
	Counts []int
}

// Total sums the row across all columns.
func (r Row) Total() int {
	sum := 0
	for _, c := range r.Counts {
		sum += c
	}
	return sum
}

// Matrix is a rectangular count table. Every row holds a count for every
// column; rows are sorted by key tuple and columns lexically.
type Matrix struct {
	dims    []record.Field
	column  record.Field
	columns []string
	colIdx  map[string]int
	rows    []Row
	rowIdx  map[string]int
}

// Dimensions returns the row dimensions.
func (m *Matrix) Dimensions() []record.Field { return slices.Clone(m.dims) }

// ColumnField returns the column dimension, empty when none was requested.
func (m *Matrix) ColumnField() record.Field { return m.column }

// Columns returns the column keys in lexical order.
func (m *Matrix) Columns() []string { return slices.Clone(m.columns) }

// Rows returns the matrix rows in key order. Callers must not modify them.
func (m *Matrix) Rows() []Row { return m.rows }

// Len returns the number of rows.
func (m *Matrix) Len() int { return len(m.rows) }

// Empty reports whether the matrix has no rows.
func (m *Matrix) Empty() bool { return len(m.rows) == 0 }

// Value returns the count at (key, column), zero when either is absent.
func (m *Matrix) Value(key []string, column string) int {
	ri, ok := m.rowIdx[joinKey(key)]
	if !ok {
		return 0
	}
	ci, ok := m.colIdx[column]
	if !ok {
		return 0
	}
	return m.rows[ri].Counts[ci]
}

// ColumnTotal sums one column across all rows.
func (m *Matrix) ColumnTotal(column string) int {
	ci, ok := m.colIdx[column]
	if !ok {
		return 0
	}
	sum := 0
	for _, r := range m.rows {
		sum += r.Counts[ci]
	}
	return sum
}

// Total sums every cell.
func (m *Matrix) Total() int {
	sum := 0
	for _, r := range m.rows {
		sum += r.Total()
	}
	return sum
}

func joinKey(key []string) string {
	return strings.Join(key, "\x00")
}

func validate(spec *Spec) error {
	if len(spec.Rows) == 0 {
		return &ConfigurationError{Reason: "at least one row dimension is required"}
	}
	seen := map[record.Field]bool{}
	for _, f := range spec.Rows {
		if !f.Valid() {
			return &ConfigurationError{Field: string(f), Reason: "unknown row dimension"}
		}
		if seen[f] {
			return &ConfigurationError{Field: string(f), Reason: "row dimension listed twice"}
		}
		seen[f] = true
	}
	if spec.Column != "" {
		if !spec.Column.Valid() {
			return &ConfigurationError{Field: string(spec.Column), Reason: "unknown column dimension"}
		}
		if seen[spec.Column] {
			return &ConfigurationError{Field: string(spec.Column), Reason: "column dimension is also a row dimension"}
		}
	}
	switch spec.Mode {
	case "":
		spec.Mode = ModeCount
	case ModeCount:
	case ModeDistinctCount:
		if spec.Identity == "" {
			return &ConfigurationError{Reason: "distinct_count requires an identity field"}
		}
		if !spec.Identity.Valid() {
			return &ConfigurationError{Field: string(spec.Identity), Reason: "unknown identity field"}
		}
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unsupported aggregation mode %q", spec.Mode)}
	}
	return nil
}

func required(spec Spec) []record.Field {
	fields := slices.Clone(spec.Rows)
	if spec.Column != "" {
		fields = append(fields, spec.Column)
	}
	if spec.Mode == ModeDistinctCount {
		fields = append(fields, spec.Identity)
	}
	return fields
}

// Aggregate groups records by spec.Rows and spec.Column. Every dimension must
// be carried by every record; zero records yield an empty matrix.
func Aggregate(records []record.FailureRecord, spec Spec) (*Matrix, error) {
	if err := validate(&spec); err != nil {
		return nil, err
	}
	fields := required(spec)

	type cell struct {
		count    int
		distinct map[string]struct{}
	}
	type pending struct {
		key   []string
		cells map[string]*cell
	}

	rows := map[string]*pending{}
	columnSet := map[string]struct{}{}

	for i, rec := range records {
		for _, f := range fields {
			if !rec.Has(f) {
				return nil, &ConfigurationError{Field: string(f), Reason: fmt.Sprintf("missing from input record %d", i+1)}
			}
		}

		key := make([]string, len(spec.Rows))
		for j, f := range spec.Rows {
			key[j], _ = rec.Value(f)
		}
		col := ""
		if spec.Column != "" {
			col, _ = rec.Value(spec.Column)
		}
		columnSet[col] = struct{}{}

		jk := joinKey(key)
		p, ok := rows[jk]
		if !ok {
			p = &pending{key: key, cells: map[string]*cell{}}
			rows[jk] = p
		}
		c, ok := p.cells[col]
		if !ok {
			c = &cell{}
			p.cells[col] = c
		}
		if spec.Mode == ModeDistinctCount {
			id, _ := rec.Value(spec.Identity)
			if id == "" {
				continue
			}
			if c.distinct == nil {
				c.distinct = map[string]struct{}{}
			}
			c.distinct[id] = struct{}{}
			c.count = len(c.distinct)
			continue
		}
		c.count++
	}

	m := &Matrix{
		dims:    slices.Clone(spec.Rows),
		column:  spec.Column,
		columns: make([]string, 0, len(columnSet)),
		colIdx:  make(map[string]int, len(columnSet)),
		rows:    make([]Row, 0, len(rows)),
		rowIdx:  make(map[string]int, len(rows)),
	}
	for col := range columnSet {
		m.columns = append(m.columns, col)
	}
	sort.Strings(m.columns)
	for i, col := range m.columns {
		m.colIdx[col] = i
	}

	keys := make([][]string, 0, len(rows))
	for _, p := range rows {
		keys = append(keys, p.key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return slices.Compare(keys[i], keys[j]) < 0
	})

	for _, key := range keys {
		jk := joinKey(key)
		p := rows[jk]
		counts := make([]int, len(m.columns))
		for col, c := range p.cells {
			counts[m.colIdx[col]] = c.count
		}
		m.rowIdx[jk] = len(m.rows)
		m.rows = append(m.rows, Row{Key: key, Counts: counts})
	}
	return m, nil
}
