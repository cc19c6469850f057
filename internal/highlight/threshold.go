package highlight

import (
	"math"

	"github.com/torosent/stationpivot/internal/hierarchy"
)

// StatisticalThreshold returns mean(non-zero values) * (1 + percent/100).
// ok is false when no value is positive.
func StatisticalThreshold(values []int, percent float64) (threshold float64, ok bool) {
	sum, n := 0, 0
	for _, v := range values {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	mean := float64(sum) / float64(n)
	return mean * (1 + percent/100), true
}

// Above reports whether v is strictly greater than threshold.
func Above(v int, threshold float64) bool {
	return float64(v) > threshold
}

// DefaultSigma is the standard deviation multiplier for the warn band.
const DefaultSigma = 2.0

// SigmaBands holds the thresholds used by Sigma.
type SigmaBands struct {
	Mean     float64 `json:"mean" yaml:"mean"`
	StdDev   float64 `json:"std_dev" yaml:"std_dev"`
	Warn     float64 `json:"warn" yaml:"warn"`
	Critical float64 `json:"critical" yaml:"critical"`
}

// Sigma flags leaf cells at or above mean + k*std (warn) and
// mean + (k+1)*std (critical), computed over non-zero leaf values with the
// population standard deviation. A cell lands in at most one band.
func Sigma(h *hierarchy.Hierarchy, k float64) (warn, critical Set, bands SigmaBands) {
	warn, critical = newSet(RuleSigmaWarn), newSet(RuleSigmaCritical)
	if h == nil {
		return warn, critical, bands
	}

	var values []float64
	for _, g := range h.Groups {
		for _, leaf := range g.Leaves {
			for _, v := range leaf.Values {
				if v > 0 {
					values = append(values, float64(v))
				}
			}
		}
	}
	if len(values) == 0 {
		return warn, critical, bands
	}

	for _, v := range values {
		bands.Mean += v
	}
	bands.Mean /= float64(len(values))
	for _, v := range values {
		d := v - bands.Mean
		bands.StdDev += d * d
	}
	bands.StdDev = math.Sqrt(bands.StdDev / float64(len(values)))
	bands.Warn = bands.Mean + k*bands.StdDev
	bands.Critical = bands.Mean + (k+1)*bands.StdDev
	if bands.StdDev == 0 {
		// uniform data has no outliers
		return warn, critical, bands
	}

	for _, g := range h.Groups {
		for _, leaf := range g.Leaves {
			for i, v := range leaf.Values {
				if v <= 0 {
					continue
				}
				c := Cell{Row: leaf.ID, Column: h.Columns[i]}
				switch fv := float64(v); {
				case fv >= bands.Critical:
					critical.add(c)
				case fv >= bands.Warn:
					warn.add(c)
				}
			}
		}
	}
	return warn, critical, bands
}
