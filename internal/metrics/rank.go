package metrics

import "sort"

// Ranked is a named count.
type Ranked struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// Rank converts a name->count map into a sorted slice.
// Rows are sorted by descending count, then by name for stability.
func Rank(counts map[string]int) []Ranked {
	if len(counts) == 0 {
		return nil
	}
	rows := make([]Ranked, 0, len(counts))
	for name, count := range counts {
		rows = append(rows, Ranked{Name: name, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// Top returns at most n leading rows; n <= 0 returns all of them.
func Top(rows []Ranked, n int) []Ranked {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}
