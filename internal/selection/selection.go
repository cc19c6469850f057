// Package selection models a value filter that is either everything, nothing,
// or an explicit subset of values.
package selection

import "sort"

// Kind identifies which variant a Selection holds.
type Kind int

const (
	KindAll Kind = iota
	KindNone
	KindSubset
)

func (k Kind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindNone:
		return "none"
	case KindSubset:
		return "subset"
	default:
		return "unknown"
	}
}

// Selection is a tagged filter. The zero value selects everything.
type Selection struct {
	kind   Kind
	values map[string]struct{}
}

// All returns a selection that matches every value.
func All() Selection {
	return Selection{kind: KindAll}
}

// None returns a selection that matches nothing.
func None() Selection {
	return Selection{kind: KindNone}
}

// Subset returns a selection matching exactly the given values. An empty
// subset matches nothing.
func Subset(values ...string) Selection {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return Selection{kind: KindSubset, values: set}
}

// Kind reports the variant.
func (s Selection) Kind() Kind {
	return s.kind
}

// Matches reports whether value passes the selection.
func (s Selection) Matches(value string) bool {
	switch s.kind {
	case KindAll:
		return true
	case KindSubset:
		_, ok := s.values[value]
		return ok
	default:
		return false
	}
}

// Values returns the subset members in sorted order, or nil for All and None.
func (s Selection) Values() []string {
	if s.kind != KindSubset || len(s.values) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.values))
	for v := range s.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Filter returns the items whose key passes the selection, preserving order.
func Filter[T any](s Selection, items []T, key func(T) string) []T {
	if s.kind == KindAll {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if s.Matches(key(item)) {
			out = append(out, item)
		}
	}
	return out
}
