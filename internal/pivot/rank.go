package pivot

import "sort"

// ColumnTotal is one column and its sum across all rows.
type ColumnTotal struct {
	Column string `json:"column" yaml:"column"`
	Total  int    `json:"total" yaml:"total"`
}

// Ranking orders columns by descending total, equal totals by ascending key.
type Ranking []ColumnTotal

// RankColumns computes the canonical column order of m.
func RankColumns(m *Matrix) Ranking {
	if m == nil || len(m.columns) == 0 {
		return nil
	}
	r := make(Ranking, len(m.columns))
	for i, col := range m.columns {
		r[i] = ColumnTotal{Column: col}
	}
	for _, row := range m.rows {
		for i, c := range row.Counts {
			r[i].Total += c
		}
	}
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].Total == r[j].Total {
			return r[i].Column < r[j].Column
		}
		return r[i].Total > r[j].Total
	})
	return r
}

// Columns returns the column keys in rank order.
func (r Ranking) Columns() []string {
	out := make([]string, len(r))
	for i, ct := range r {
		out[i] = ct.Column
	}
	return out
}

// Index returns the rank position of column, or -1.
func (r Ranking) Index(column string) int {
	for i, ct := range r {
		if ct.Column == column {
			return i
		}
	}
	return -1
}

// Top returns at most n leading entries.
func (r Ranking) Top(n int) Ranking {
	if n < 0 || n >= len(r) {
		return r
	}
	return r[:n]
}
