package output

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/torosent/stationpivot/internal/analysis"
	"github.com/torosent/stationpivot/internal/hierarchy"
	"github.com/torosent/stationpivot/internal/highlight"
	"github.com/torosent/stationpivot/internal/threshold"
	"github.com/torosent/stationpivot/internal/wifi"
)

// heatLevels is the number of background shades used for cell intensity.
const heatLevels = 5

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Report           *analysis.Report
	Heatmap          *Heatmap
	Hourly           *Heatmap
	ThresholdSummary *ThresholdSummary
}

// Heatmap is a rendered grid of counts with per-cell CSS classes.
type Heatmap struct {
	Corner  string
	Columns []string
	Rows    []HeatRow
}

// HeatRow is one rendered row of a Heatmap.
type HeatRow struct {
	Label string
	Class string
	Cells []HeatCell
	Total int
}

// HeatCell is one rendered cell.
type HeatCell struct {
	Value int
	Class string
	Title string
}

// ThresholdSummary aggregates threshold results for display.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []threshold.Result
}

// GenerateHTMLReport generates a standalone HTML report with the hierarchy
// heat map, repeated failures and WiFi tables of r.
func GenerateHTMLReport(w io.Writer, r *analysis.Report) error {
	if r == nil {
		return fmt.Errorf("nil report")
	}
	var thresholdSummary *ThresholdSummary
	if len(r.Thresholds) > 0 {
		thresholdSummary = &ThresholdSummary{Total: len(r.Thresholds), Results: r.Thresholds}
		for _, tr := range r.Thresholds {
			if tr.Pass {
				thresholdSummary.Passed++
			} else {
				thresholdSummary.Failed++
			}
		}
	}

	data := HTMLReportData{
		GeneratedAt:      r.GeneratedAt.Format(time.RFC3339),
		Report:           r,
		Heatmap:          BuildHeatmap(r),
		Hourly:           BuildHourlyHeatmap(r.Wifi),
		ThresholdSummary: thresholdSummary,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatTime": func(t time.Time) string {
			return t.Format(time.DateTime)
		},
		"count": func(op wifi.OperatorSummary, k wifi.ErrorKind) int {
			return op.Count(k)
		},
		"kinds": func() []wifi.ErrorKind { return wifi.Kinds },
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// BuildHeatmap lays out the report hierarchy with highlight classes. It
// returns nil when there is nothing to draw.
func BuildHeatmap(r *analysis.Report) *Heatmap {
	if r == nil || r.Hierarchy == nil || r.Hierarchy.Empty() {
		return nil
	}
	h := r.Hierarchy
	hm := &Heatmap{
		Corner:  fmt.Sprintf("%s / %s", h.GroupField, h.LeafField),
		Columns: h.Columns,
	}

	maxLeaf := 0
	for _, g := range h.Groups {
		for _, leaf := range g.Leaves {
			for _, v := range leaf.Values {
				maxLeaf = max(maxLeaf, v)
			}
		}
	}

	add := func(n hierarchy.Node) {
		row := HeatRow{Label: n.Label(), Class: "row-" + n.ID.Kind.String(), Total: n.Total}
		for i, v := range n.Values {
			cell := highlight.Cell{Row: n.ID, Column: h.Columns[i]}
			classes := cellClasses(r, cell)
			if n.ID.Kind == hierarchy.KindLeaf {
				classes = append(classes, fmt.Sprintf("heat-%d", heatLevel(v, maxLeaf)))
			}
			row.Cells = append(row.Cells, HeatCell{
				Value: v,
				Class: strings.Join(classes, " "),
				Title: fmt.Sprintf("%s @ %s: %d", n.ID, h.Columns[i], v),
			})
		}
		hm.Rows = append(hm.Rows, row)
	}

	add(h.Total)
	for _, g := range h.Groups {
		add(g.Node)
		for _, leaf := range g.Leaves {
			add(leaf)
		}
	}
	return hm
}

// BuildHourlyHeatmap lays out the hourly WiFi breakdown, marking hot cells.
func BuildHourlyHeatmap(a *wifi.Analysis) *Heatmap {
	if a == nil || a.Hourly == nil {
		return nil
	}
	hr := a.Hourly
	hm := &Heatmap{Corner: "Hour"}
	for _, c := range hr.Columns {
		hm.Columns = append(hm.Columns, c.Label)
	}
	hot := make(map[string]bool, len(hr.Hot))
	for _, c := range hr.Hot {
		hot[c.Hour.String()+"\x00"+c.Column] = true
	}
	for _, b := range hr.Buckets {
		row := HeatRow{Label: b.Hour.Format("2006-01-02 15:00"), Class: "row-leaf"}
		for i, n := range b.Counts {
			class := ""
			if hot[b.Hour.String()+"\x00"+hr.Columns[i].Label] {
				class = "hot"
			}
			row.Cells = append(row.Cells, HeatCell{Value: n, Class: class, Title: hr.Columns[i].Operator})
			row.Total += n
		}
		hm.Rows = append(hm.Rows, row)
	}
	return hm
}

func cellClasses(r *analysis.Report, c highlight.Cell) []string {
	var classes []string
	if r.Highlights != nil {
		for _, rule := range r.Highlights.Rules(c) {
			classes = append(classes, strings.ReplaceAll(string(rule), "_", "-"))
		}
	}
	if r.Sigma != nil {
		switch {
		case r.Sigma.Critical.Contains(c):
			classes = append(classes, "sigma-critical")
		case r.Sigma.Warn.Contains(c):
			classes = append(classes, "sigma-warn")
		}
	}
	return classes
}

// heatLevel buckets v into 0..heatLevels relative to peak.
func heatLevel(v, peak int) int {
	if v <= 0 || peak <= 0 {
		return 0
	}
	level := (v*heatLevels + peak - 1) / peak
	return min(level, heatLevels)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Station Pivot Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #1f4e79 0%, #2e75b6 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #2e75b6;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .section {
            margin-bottom: 40px;
            overflow-x: auto;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        table {
            border-collapse: collapse;
            background: white;
            font-size: 0.9rem;
        }
        th, td {
            padding: 6px 10px;
            border: 1px solid #e5e7eb;
            text-align: right;
        }
        th:first-child, td:first-child {
            text-align: left;
            white-space: nowrap;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
        }
        tr.row-total td { background: #dbe5f1; font-weight: bold; }
        tr.row-group td { background: #eef3f9; font-weight: 600; }
        tr.row-leaf td:first-child { padding-left: 28px; }
        td.heat-1 { background: #fff5eb; }
        td.heat-2 { background: #fee6ce; }
        td.heat-3 { background: #fdd0a2; }
        td.heat-4 { background: #fdae6b; }
        td.heat-5 { background: #fd8d3c; }
        td.leaf-max { outline: 2px solid #f59e0b; outline-offset: -2px; }
        td.group-max { background: #fde68a; }
        td.global-max { background: #ef4444; color: white; }
        td.sigma-warn { font-weight: bold; color: #b45309; }
        td.sigma-critical { font-weight: bold; color: #991b1b; text-decoration: underline; }
        td.hot { background: #ef4444; color: white; }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Station Pivot Report</h1>
            {{if .Report.Input}}<div class="meta">Input: {{.Report.Input}}</div>{{end}}
            <div class="meta">View: {{.Report.View}} | Run: {{.Report.RunID}} | Generated: {{.GeneratedAt}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Rows</h3>
                    <div class="value">{{.Report.Rows}}</div>
                </div>
                {{with .Report.Summary}}
                <div class="card error">
                    <h3>Failures</h3>
                    <div class="value">{{.Failures}}</div>
                </div>
                {{with .HighestCell}}
                <div class="card">
                    <h3>Highest Cell</h3>
                    <div class="value">{{.Count}}</div>
                    <div class="meta">{{.Group}} / {{.Leaf}} @ {{.Column}}</div>
                </div>
                {{end}}
                {{end}}
                {{with .Report.Audit}}
                <div class="card">
                    <h3>Ghost / Phantom</h3>
                    <div class="value">{{.GhostFailures}} / {{.PhantomResults}}</div>
                </div>
                {{end}}
            </div>

            {{if .Heatmap}}
            <div class="section">
                <h2>Failure Heat Map</h2>
                <table id="heatmap">
                    <thead>
                        <tr>
                            <th>{{.Heatmap.Corner}}</th>
                            {{range .Heatmap.Columns}}<th>{{.}}</th>{{end}}
                            <th>Total</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Heatmap.Rows}}
                        <tr class="{{.Class}}">
                            <td>{{.Label}}</td>
                            {{range .Cells}}<td class="{{.Class}}" title="{{.Title}}">{{.Value}}</td>{{end}}
                            <td>{{.Total}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{else if .Report.Hierarchy}}
            <div class="no-data">No data</div>
            {{end}}

            {{if .Report.Repeated}}
            <div class="section">
                <h2>Repeated Failures</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Model</th>
                            <th>Code</th>
                            <th>Station</th>
                            <th>Test Case</th>
                            <th>Operator</th>
                            <th>Occurrences</th>
                            <th>Devices</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Repeated}}
                        <tr>
                            <td>{{.Model}}</td>
                            <td>{{.ModelCode}}</td>
                            <td>{{.Station}}</td>
                            <td>{{.TestCase}}</td>
                            <td>{{.Operator}}</td>
                            <td>{{.Occurrences}}</td>
                            <td>{{.Devices}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{with .Report.Wifi}}
            <div class="section">
                <h2>WiFi Errors ({{formatTime .Start}} - {{formatTime .End}})</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Operator</th>
                            <th>Transactions</th>
                            {{range kinds}}<th>{{.Short}}</th>{{end}}
                            <th>Errors</th>
                            <th>Rate %</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Operators}}
                        {{$op := .}}
                        <tr>
                            <td>{{.Operator}}</td>
                            <td>{{.Transactions}}</td>
                            {{range kinds}}<td>{{count $op .}}</td>{{end}}
                            <td>{{.Errors}}</td>
                            <td class="{{if .High}}hot{{end}}">{{formatFloat .Percent}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Hourly}}
            <div class="section">
                <h2>Hourly Breakdown</h2>
                <table id="hourly">
                    <thead>
                        <tr>
                            <th>{{.Hourly.Corner}}</th>
                            {{range .Hourly.Columns}}<th>{{.}}</th>{{end}}
                            <th>Total</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Hourly.Rows}}
                        <tr>
                            <td>{{.Label}}</td>
                            {{range .Cells}}<td class="{{.Class}}" title="{{.Title}}">{{.Value}}</td>{{end}}
                            <td>{{.Total}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Raw}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">PASS</span>
                                {{else}}
                                <span class="badge badge-error">FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`
