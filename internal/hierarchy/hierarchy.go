// Package hierarchy builds the ranked Total -> Group -> Leaf view of a two
// dimensional failure matrix.
package hierarchy

import (
	"fmt"
	"sort"

	"github.com/torosent/stationpivot/internal/pivot"
	"github.com/torosent/stationpivot/internal/record"
)

// Kind tags a hierarchy node.
type Kind int

const (
	KindTotal Kind = iota
	KindGroup
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindTotal:
		return "total"
	case KindGroup:
		return "group"
	case KindLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RowID identifies one row of the hierarchy. It is comparable.
type RowID struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
	Leaf  string `json:"leaf,omitempty" yaml:"leaf,omitempty"`
}

// TotalID is the identity of the single Total row.
var TotalID = RowID{Kind: KindTotal}

func (id RowID) String() string {
	switch id.Kind {
	case KindTotal:
		return "Total"
	case KindGroup:
		return id.Group
	default:
		return id.Group + " / " + id.Leaf
	}
}

// Node is one hierarchy row. Values is aligned with Hierarchy.Columns.
type Node struct {
	ID     RowID `json:"id" yaml:"id"`
	Values []int `json:"values" yaml:"values"`
	Total  int   `json:"total" yaml:"total"`
}

// Label is the display name of the row: the group or leaf key.
func (n Node) Label() string {
	switch n.ID.Kind {
	case KindTotal:
		return "Total"
	case KindGroup:
		return n.ID.Group
	default:
		return n.ID.Leaf
	}
}

// Group is a group node and its ordered leaves.
type Group struct {
	Node   `yaml:",inline"`
	Leaves []Node `json:"leaves" yaml:"leaves"`
}

// Hierarchy is the ranked three level view.
type Hierarchy struct {
	GroupField  record.Field `json:"group_field" yaml:"group_field"`
	LeafField   record.Field `json:"leaf_field" yaml:"leaf_field"`
	ColumnField record.Field `json:"column_field,omitempty" yaml:"column_field,omitempty"`
	// Columns is the column order shared by every node.
	Columns []string `json:"columns" yaml:"columns"`
	Total   Node     `json:"total_row" yaml:"total_row"`
	// MaxColumn is the first column in rank order holding the Total row's
	// largest value; empty when every value is zero.
	MaxColumn string  `json:"max_column,omitempty" yaml:"max_column,omitempty"`
	Groups    []Group `json:"groups" yaml:"groups"`
}

// Options tunes Build.
type Options struct {
	// SuppressZeroRows drops groups and leaves whose values are all zero.
	SuppressZeroRows bool
}

// Build arranges a matrix with row dimensions (group, leaf) into a hierarchy
// whose columns follow ranking. Groups are ordered by total descending then
// key ascending; leaves likewise within their group.
func Build(m *pivot.Matrix, ranking pivot.Ranking, opts Options) (*Hierarchy, error) {
	if m == nil {
		return nil, &pivot.ConfigurationError{Reason: "nil matrix"}
	}
	dims := m.Dimensions()
	if len(dims) != 2 {
		return nil, &pivot.ConfigurationError{Reason: fmt.Sprintf("hierarchy needs exactly two row dimensions, got %d", len(dims))}
	}

	matrixCols := m.Columns()
	colIdx := make(map[string]int, len(matrixCols))
	for i, c := range matrixCols {
		colIdx[c] = i
	}
	if len(ranking) != len(matrixCols) {
		return nil, &pivot.ConfigurationError{Reason: fmt.Sprintf("ranking has %d columns, matrix has %d", len(ranking), len(matrixCols))}
	}
	order := make([]int, len(ranking))
	for i, ct := range ranking {
		idx, ok := colIdx[ct.Column]
		if !ok {
			return nil, &pivot.ConfigurationError{Field: ct.Column, Reason: "ranked column not present in matrix"}
		}
		order[i] = idx
	}

	h := &Hierarchy{
		GroupField:  dims[0],
		LeafField:   dims[1],
		ColumnField: m.ColumnField(),
		Columns:     ranking.Columns(),
		Total:       Node{ID: TotalID, Values: make([]int, len(order))},
	}

	groups := map[string]*Group{}
	var groupKeys []string
	for _, row := range m.Rows() {
		g, ok := groups[row.Key[0]]
		if !ok {
			g = &Group{Node: Node{
				ID:     RowID{Kind: KindGroup, Group: row.Key[0]},
				Values: make([]int, len(order)),
			}}
			groups[row.Key[0]] = g
			groupKeys = append(groupKeys, row.Key[0])
		}

		leaf := Node{
			ID:     RowID{Kind: KindLeaf, Group: row.Key[0], Leaf: row.Key[1]},
			Values: make([]int, len(order)),
		}
		for pos, idx := range order {
			v := row.Counts[idx]
			leaf.Values[pos] = v
			leaf.Total += v
			g.Values[pos] += v
			h.Total.Values[pos] += v
		}
		g.Total += leaf.Total
		h.Total.Total += leaf.Total

		if opts.SuppressZeroRows && leaf.Total == 0 {
			continue
		}
		g.Leaves = append(g.Leaves, leaf)
	}

	h.Groups = make([]Group, 0, len(groupKeys))
	for _, key := range groupKeys {
		g := groups[key]
		if opts.SuppressZeroRows && g.Total == 0 {
			continue
		}
		sortNodes(g.Leaves, func(n Node) string { return n.ID.Leaf })
		h.Groups = append(h.Groups, *g)
	}
	sort.SliceStable(h.Groups, func(i, j int) bool {
		a, b := h.Groups[i], h.Groups[j]
		if a.Total == b.Total {
			return a.ID.Group < b.ID.Group
		}
		return a.Total > b.Total
	})

	if pos := MaxPosition(h.Total.Values); pos >= 0 {
		h.MaxColumn = h.Columns[pos]
	}
	return h, nil
}

func sortNodes(nodes []Node, key func(Node) string) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Total == nodes[j].Total {
			return key(nodes[i]) < key(nodes[j])
		}
		return nodes[i].Total > nodes[j].Total
	})
}

// MaxPosition returns the first index holding the largest value, or -1 when
// no value is positive.
func MaxPosition(values []int) int {
	best := -1
	for i, v := range values {
		if v <= 0 {
			continue
		}
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// Nodes flattens the hierarchy in render order: Total, then each group
// followed by its leaves.
func (h *Hierarchy) Nodes() []Node {
	if h == nil {
		return nil
	}
	n := 1
	for _, g := range h.Groups {
		n += 1 + len(g.Leaves)
	}
	out := make([]Node, 0, n)
	out = append(out, h.Total)
	for _, g := range h.Groups {
		out = append(out, g.Node)
		out = append(out, g.Leaves...)
	}
	return out
}

// Empty reports whether the hierarchy has no groups.
func (h *Hierarchy) Empty() bool {
	return h == nil || len(h.Groups) == 0
}

// Reconcile verifies that leaves sum to their group and groups sum to the
// total in every column.
func Reconcile(h *Hierarchy) error {
	if h == nil {
		return nil
	}
	cols := len(h.Columns)
	if len(h.Total.Values) != cols {
		return fmt.Errorf("total row has %d values, want %d", len(h.Total.Values), cols)
	}
	groupSum := make([]int, cols)
	for _, g := range h.Groups {
		if len(g.Values) != cols {
			return fmt.Errorf("group %q has %d values, want %d", g.ID.Group, len(g.Values), cols)
		}
		leafSum := make([]int, cols)
		for _, l := range g.Leaves {
			if len(l.Values) != cols {
				return fmt.Errorf("leaf %s has %d values, want %d", l.ID, len(l.Values), cols)
			}
			for i, v := range l.Values {
				leafSum[i] += v
			}
		}
		for i := range cols {
			if leafSum[i] != g.Values[i] {
				return fmt.Errorf("group %q column %q: leaves sum to %d, group holds %d", g.ID.Group, h.Columns[i], leafSum[i], g.Values[i])
			}
			groupSum[i] += g.Values[i]
		}
	}
	for i := range cols {
		if groupSum[i] != h.Total.Values[i] {
			return fmt.Errorf("column %q: groups sum to %d, total holds %d", h.Columns[i], groupSum[i], h.Total.Values[i])
		}
	}
	return nil
}
