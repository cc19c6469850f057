package wifi

import (
	"fmt"
	"strings"
)

// Column is one operator/error pair of the hourly breakdown.
type Column struct {
	Operator string    `json:"operator" yaml:"operator"`
	Kind     ErrorKind `json:"kind" yaml:"kind"`
	Label    string    `json:"label" yaml:"label"`
}

// Label condenses an operator and error kind into a short column name such
// as "Red Primary - Lost Wifi".
func Label(operator string, kind ErrorKind) string {
	return fmt.Sprintf("%s %s - %s", color(operator), position(operator), kind.Short())
}

func color(operator string) string {
	upper := strings.ToUpper(operator)
	switch {
	case strings.Contains(upper, "RED"):
		return "Red"
	case strings.Contains(upper, "GREEN"), strings.Contains(upper, "GRN"):
		return "Green"
	default:
		seg, _, _ := strings.Cut(stationName(operator), "_")
		return seg
	}
}

// position treats a station whose first segment ends in 2 as the secondary line.
func position(operator string) string {
	seg, _, _ := strings.Cut(operator, "_")
	if strings.HasSuffix(seg, "2") {
		return "2nd"
	}
	return "Primary"
}

func stationName(operator string) string {
	name, _, _ := strings.Cut(operator, "(")
	return strings.TrimSpace(name)
}

// Columns builds the labelled columns for operators x Kinds. Labels that
// would collide between different operators are qualified with the station
// name, and with the full operator when that still collides.
func Columns(operators []string) []Column {
	cols := make([]Column, 0, len(operators)*len(Kinds))
	for _, op := range operators {
		for _, k := range Kinds {
			cols = append(cols, Column{Operator: op, Kind: k, Label: Label(op, k)})
		}
	}

	qualifiers := []func(string) string{stationName, func(op string) string { return op }}
	for _, qualify := range qualifiers {
		owners := map[string]map[string]struct{}{}
		for _, c := range cols {
			if owners[c.Label] == nil {
				owners[c.Label] = map[string]struct{}{}
			}
			owners[c.Label][c.Operator] = struct{}{}
		}
		clash := false
		for i, c := range cols {
			if len(owners[c.Label]) > 1 {
				cols[i].Label = fmt.Sprintf("%s %s - %s (%s)", color(c.Operator), position(c.Operator), c.Kind.Short(), qualify(c.Operator))
				clash = true
			}
		}
		if !clash {
			break
		}
	}
	return cols
}
