// Package highlight computes which hierarchy cells are flagged as hot.
// Every rule is a pure function of a built hierarchy.
package highlight

import (
	"encoding/json"
	"sort"

	"github.com/torosent/stationpivot/internal/hierarchy"
)

// Rule names a highlight rule.
type Rule string

const (
	RuleGlobalMax     Rule = "global_max"
	RuleGroupMax      Rule = "group_max"
	RuleLeafMax       Rule = "leaf_max"
	RuleStatistical   Rule = "statistical"
	RuleSigmaWarn     Rule = "sigma_warn"
	RuleSigmaCritical Rule = "sigma_critical"
)

// TopLeaves is how many leading leaves per group are eligible for LeafMax.
const TopLeaves = 3

// Cell addresses one value of the hierarchy.
type Cell struct {
	Row    hierarchy.RowID `json:"row" yaml:"row"`
	Column string          `json:"column" yaml:"column"`
}

// Set is the cells flagged by one rule, in insertion order.
type Set struct {
	Rule  Rule
	cells map[Cell]struct{}
	order []Cell
}

func newSet(rule Rule) Set {
	return Set{Rule: rule, cells: map[Cell]struct{}{}}
}

func (s *Set) add(c Cell) {
	if _, ok := s.cells[c]; ok {
		return
	}
	s.cells[c] = struct{}{}
	s.order = append(s.order, c)
}

// Contains reports whether c is flagged.
func (s Set) Contains(c Cell) bool {
	_, ok := s.cells[c]
	return ok
}

// Cells returns the flagged cells in the order they were found.
func (s Set) Cells() []Cell {
	return append([]Cell(nil), s.order...)
}

// Len returns the number of flagged cells.
func (s Set) Len() int {
	return len(s.order)
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Rule  Rule   `json:"rule"`
		Cells []Cell `json:"cells"`
	}{s.Rule, s.Cells()})
}

func (s Set) MarshalYAML() (interface{}, error) {
	return struct {
		Rule  Rule   `yaml:"rule"`
		Cells []Cell `yaml:"cells"`
	}{s.Rule, s.Cells()}, nil
}

// GlobalMax flags the Total row's largest column, if any value is positive.
func GlobalMax(h *hierarchy.Hierarchy) Set {
	s := newSet(RuleGlobalMax)
	if h == nil || h.MaxColumn == "" {
		return s
	}
	s.add(Cell{Row: hierarchy.TotalID, Column: h.MaxColumn})
	return s
}

// GroupMax flags each group's largest column. Zero never qualifies and ties
// go to the earlier ranked column.
func GroupMax(h *hierarchy.Hierarchy) Set {
	s := newSet(RuleGroupMax)
	if h == nil {
		return s
	}
	for _, g := range h.Groups {
		if pos := hierarchy.MaxPosition(g.Values); pos >= 0 {
			s.add(Cell{Row: g.ID, Column: h.Columns[pos]})
		}
	}
	return s
}

// LeafMax flags the largest column of the first topN leaves in each group.
func LeafMax(h *hierarchy.Hierarchy, topN int) Set {
	s := newSet(RuleLeafMax)
	if h == nil {
		return s
	}
	for _, g := range h.Groups {
		for i, leaf := range g.Leaves {
			if i >= topN {
				break
			}
			if pos := hierarchy.MaxPosition(leaf.Values); pos >= 0 {
				s.add(Cell{Row: leaf.ID, Column: h.Columns[pos]})
			}
		}
	}
	return s
}

// Highlights groups the three structural rules.
type Highlights struct {
	Global Set `json:"global" yaml:"global"`
	Group  Set `json:"group" yaml:"group"`
	Leaf   Set `json:"leaf" yaml:"leaf"`
}

// Compute applies GlobalMax, GroupMax and LeafMax with TopLeaves.
func Compute(h *hierarchy.Hierarchy) Highlights {
	return Highlights{
		Global: GlobalMax(h),
		Group:  GroupMax(h),
		Leaf:   LeafMax(h, TopLeaves),
	}
}

// Rules lists every structural rule flagging c.
func (hl Highlights) Rules(c Cell) []Rule {
	var rules []Rule
	for _, s := range []Set{hl.Global, hl.Group, hl.Leaf} {
		if s.Contains(c) {
			rules = append(rules, s.Rule)
		}
	}
	return rules
}

// Count returns the number of flagged cells per rule.
func (hl Highlights) Count() map[Rule]int {
	return map[Rule]int{
		RuleGlobalMax: hl.Global.Len(),
		RuleGroupMax:  hl.Group.Len(),
		RuleLeafMax:   hl.Leaf.Len(),
	}
}

// SortedCells returns c sorted by row then column, for stable rendering.
func SortedCells(cells []Cell) []Cell {
	out := append([]Cell(nil), cells...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Row.Kind != b.Row.Kind {
			return a.Row.Kind < b.Row.Kind
		}
		if a.Row.Group != b.Row.Group {
			return a.Row.Group < b.Row.Group
		}
		if a.Row.Leaf != b.Row.Leaf {
			return a.Row.Leaf < b.Row.Leaf
		}
		return a.Column < b.Column
	})
	return out
}
