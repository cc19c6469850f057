// Package output renders analysis reports as text, JSON, YAML and HTML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/stationpivot/internal/analysis"
	"github.com/torosent/stationpivot/internal/config"
	"github.com/torosent/stationpivot/internal/hierarchy"
	"github.com/torosent/stationpivot/internal/highlight"
	"github.com/torosent/stationpivot/internal/metrics"
	"github.com/torosent/stationpivot/internal/record"
	"github.com/torosent/stationpivot/internal/threshold"
	"github.com/torosent/stationpivot/internal/wifi"
)

// Cell markers used by the text hierarchy table.
const (
	MarkGlobalMax     = "*"
	MarkGroupMax      = "^"
	MarkLeafMax       = "+"
	MarkSigmaWarn     = "~"
	MarkSigmaCritical = "!"
)

// rankingLimit caps the entries printed per summary ranking.
const rankingLimit = 10

// Print renders r in format.
func Print(w io.Writer, format config.OutputFormat, r *analysis.Report) error {
	switch format {
	case config.OutputJSON:
		return PrintJSONReport(w, r)
	case config.OutputYAML:
		return PrintYAMLReport(w, r)
	case config.OutputText, "":
		PrintReport(w, r)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// PrintReport outputs a human-readable report for the report's view.
func PrintReport(w io.Writer, r *analysis.Report) {
	if r == nil {
		fmt.Fprintln(w, "No data")
		return
	}
	fmt.Fprintln(w, "\n--- Station Pivot Report ---")
	fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	fmt.Fprintf(w, "View:              %s\n", r.View)
	if r.Input != "" {
		fmt.Fprintf(w, "Input:             %s\n", r.Input)
	}
	fmt.Fprintf(w, "Generated:         %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Rows:              %d\n", r.Rows)

	writeDataQuality(w, r)

	switch r.View {
	case config.ViewHierarchy:
		writeHierarchy(w, r)
		writeSummary(w, r.Summary)
	case config.ViewSummary:
		writeSummary(w, r.Summary)
	case config.ViewRepeated:
		writeRepeated(w, r)
	case config.ViewWifi:
		writeWifi(w, r.Wifi)
	}

	writeThresholds(w, r.Thresholds)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r *analysis.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r *analysis.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func writeDataQuality(w io.Writer, r *analysis.Report) {
	if r.Audit == nil && r.Filtering == nil && r.Diagnostics == nil && r.WifiDiagnostics == nil {
		return
	}
	fmt.Fprintln(w, "\nData Quality:")
	if a := r.Audit; a != nil {
		fmt.Fprintf(w, "  Ghost failures:    %d\n", a.GhostFailures)
		fmt.Fprintf(w, "  Phantom results:   %d\n", a.PhantomResults)
		for _, st := range a.Stations {
			fmt.Fprintf(w, "    - %s: ghost=%d, phantom=%d\n", st.Station, st.GhostFailures, st.PhantomResults)
		}
	}
	if f := r.Filtering; f != nil {
		fmt.Fprintf(w, "  Status policy:     %s (dropped %d)\n", f.Policy, f.StatusDropped)
		if len(f.Operators) > 0 {
			fmt.Fprintf(w, "  Operators:         %s (dropped %d)\n", strings.Join(f.Operators, ", "), f.OperatorDropped)
		}
	}
	if d := r.Diagnostics; d != nil {
		fmt.Fprintf(w, "  Passing rows:      %d\n", d.Passing)
		fmt.Fprintf(w, "  Malformed rows:    %d\n", d.Malformed)
		fmt.Fprintf(w, "  Empty tokens:      %d\n", d.EmptyTokens)
		fmt.Fprintf(w, "  Failure records:   %d\n", d.Records)
	}
	if d := r.WifiDiagnostics; d != nil {
		fmt.Fprintf(w, "  Bad timestamps:    %d\n", d.BadTimestamps)
		fmt.Fprintf(w, "  Out of range:      %d\n", d.OutOfRange)
	}
}

func writeHierarchy(w io.Writer, r *analysis.Report) {
	h := r.Hierarchy
	fmt.Fprintln(w, "\nFailure Hierarchy:")
	if h == nil || h.Empty() {
		fmt.Fprintln(w, "  No data")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s / %s\t", h.GroupField, h.LeafField)
	for _, c := range h.Columns {
		fmt.Fprintf(tw, "%s\t", c)
	}
	fmt.Fprintln(tw, "Total\t")

	writeNode(tw, r, h.Total, "")
	for _, g := range h.Groups {
		writeNode(tw, r, g.Node, "")
		for _, leaf := range g.Leaves {
			writeNode(tw, r, leaf, "  ")
		}
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nLegend: %s global max, %s group max, %s top %d per leaf, %s above mean+%gσ, %s above mean+%gσ\n",
		MarkGlobalMax, MarkGroupMax, MarkLeafMax, highlight.TopLeaves,
		MarkSigmaWarn, sigmaK(r), MarkSigmaCritical, sigmaK(r)+1)
}

func writeNode(w io.Writer, r *analysis.Report, n hierarchy.Node, indent string) {
	fmt.Fprintf(w, "%s%s\t", indent, n.Label())
	for i, v := range n.Values {
		cell := highlight.Cell{Row: n.ID, Column: r.Hierarchy.Columns[i]}
		fmt.Fprintf(w, "%d%s\t", v, Markers(r, cell))
	}
	fmt.Fprintf(w, "%d\t\n", n.Total)
}

// Markers returns the text markers for every rule that flags c.
func Markers(r *analysis.Report, c highlight.Cell) string {
	var b strings.Builder
	if r.Highlights != nil {
		for _, rule := range r.Highlights.Rules(c) {
			b.WriteString(ruleMark(rule))
		}
	}
	if r.Sigma != nil {
		switch {
		case r.Sigma.Critical.Contains(c):
			b.WriteString(MarkSigmaCritical)
		case r.Sigma.Warn.Contains(c):
			b.WriteString(MarkSigmaWarn)
		}
	}
	return b.String()
}

func ruleMark(rule highlight.Rule) string {
	switch rule {
	case highlight.RuleGlobalMax:
		return MarkGlobalMax
	case highlight.RuleGroupMax:
		return MarkGroupMax
	case highlight.RuleLeafMax:
		return MarkLeafMax
	case highlight.RuleSigmaWarn:
		return MarkSigmaWarn
	case highlight.RuleSigmaCritical:
		return MarkSigmaCritical
	}
	return ""
}

func sigmaK(r *analysis.Report) float64 {
	if r.Sigma == nil {
		return highlight.DefaultSigma
	}
	return r.Sigma.K
}

func writeSummary(w io.Writer, s *metrics.Summary) {
	fmt.Fprintln(w, "\nSummary:")
	if s == nil || s.Failures == 0 {
		fmt.Fprintln(w, "  No data")
		return
	}
	fmt.Fprintf(w, "  Failures:          %d\n", s.Failures)
	fmt.Fprintf(w, "  Groups:            %d\n", s.Groups)
	fmt.Fprintf(w, "  Leaves:            %d\n", s.Leaves)
	fmt.Fprintf(w, "  Columns:           %d\n", s.Columns)
	if c := s.HighestCell; c != nil {
		fmt.Fprintf(w, "  Highest cell:      %s / %s @ %s = %d\n", c.Group, c.Leaf, c.Column, c.Count)
	}
	d := s.Cells
	fmt.Fprintf(w, "  Cells:             %d (%d non-zero)\n", d.Cells, d.NonZero)
	fmt.Fprintf(w, "  Cell values:       min=%d mean=%.2f p50=%d p90=%d p99=%d max=%d\n",
		d.Min, d.Mean, d.P50, d.P90, d.P99, d.Max)

	for _, f := range record.Fields {
		writeRanked(w, string(f), s.Ranking(f), s.Failures)
	}
	writeRanked(w, "machine", s.Machines, s.Failures)
	writeRanked(w, "test category", s.Categories, s.Failures)
}

func writeRanked(w io.Writer, title string, ranked []metrics.Ranked, total int) {
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintf(w, "\nTop %s:\n", title)
	for i, rk := range metrics.Top(ranked, rankingLimit) {
		share := 0.0
		if total > 0 {
			share = float64(rk.Count) / float64(total) * 100
		}
		fmt.Fprintf(w, "  %2d. %s: %d (%.1f%%)\n", i+1, rk.Name, rk.Count, share)
	}
}

func writeRepeated(w io.Writer, r *analysis.Report) {
	fmt.Fprintln(w, "\nRepeated Failures:")
	if len(r.Repeated) == 0 {
		fmt.Fprintln(w, "  No data")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  Model\tCode\tStation\tTest Case\tOperator\tOccurrences\tDevices\t")
	for _, e := range r.Repeated {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%d\t%d\t\n",
			e.Model, e.ModelCode, e.Station, e.TestCase, e.Operator, e.Occurrences, e.Devices)
	}
	_ = tw.Flush()

	if len(r.Choices) > 0 {
		fmt.Fprintln(w, "\nTest Cases:")
		for _, c := range r.Choices {
			fmt.Fprintf(w, "  - %s (max %d)\n", c.TestCase, c.MaxOccurrences)
		}
	}
}

func writeWifi(w io.Writer, a *wifi.Analysis) {
	fmt.Fprintln(w, "\nWiFi Errors:")
	if a == nil || a.GrandTotal.Transactions == 0 {
		fmt.Fprintln(w, "  No data")
		return
	}
	fmt.Fprintf(w, "  Range:             %s - %s\n", a.Start.Format(time.DateTime), a.End.Format(time.DateTime))
	fmt.Fprintf(w, "  Threshold:         %.1f%%\n", a.ThresholdPercent)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "  Operator\tTransactions\t")
	for _, k := range wifi.Kinds {
		fmt.Fprintf(tw, "%s\t", k.Short())
	}
	fmt.Fprintln(tw, "Errors\tRate\t")
	rows := append(append([]wifi.OperatorSummary(nil), a.Operators...), a.GrandTotal)
	for _, op := range rows {
		flag := ""
		if op.High {
			flag = " " + MarkGlobalMax
		}
		fmt.Fprintf(tw, "  %s\t%d\t", op.Operator, op.Transactions)
		for _, k := range wifi.Kinds {
			fmt.Fprintf(tw, "%d\t", op.Count(k))
		}
		fmt.Fprintf(tw, "%d\t%.2f%%%s\t\n", op.Errors, op.Percent, flag)
	}
	_ = tw.Flush()

	hr := a.Hourly
	if hr == nil {
		return
	}
	fmt.Fprintln(w, "\nHourly Breakdown:")
	hot := make(map[string]bool, len(hr.Hot))
	for _, c := range hr.Hot {
		hot[c.Hour.String()+"\x00"+c.Column] = true
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "  Hour\t")
	for _, c := range hr.Columns {
		fmt.Fprintf(tw, "%s\t", c.Label)
	}
	fmt.Fprintln(tw)
	for _, b := range hr.Buckets {
		fmt.Fprintf(tw, "  %s\t", b.Hour.Format("2006-01-02 15:00"))
		for i, n := range b.Counts {
			mark := ""
			if hot[b.Hour.String()+"\x00"+hr.Columns[i].Label] {
				mark = MarkSigmaCritical
			}
			fmt.Fprintf(tw, "%d%s\t", n, mark)
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
	if hr.HasThreshold {
		fmt.Fprintf(w, "  %s marks cells above %.2f\n", MarkSigmaCritical, hr.Threshold)
	}
}

func writeThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := 0
	for _, res := range results {
		if res.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", passed, len(results))
	for _, res := range results {
		status := "PASS"
		if !res.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "  [%s] %s (actual %.2f)\n", status, res.Raw, res.Actual)
	}
}
