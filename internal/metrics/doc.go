// Package metrics condenses an analysis run into summary statistics.
//
// The engine packages produce structured views (a ranked hierarchy, a list
// of repeated failures, a WiFi error table). This package reduces them to a
// flat [Summary] that reports, threshold assertions and telemetry can all
// consume without knowing how the views were built.
//
// # Summary
//
// [Summarize] walks a built hierarchy once:
//
//	h, _ := hierarchy.Build(matrix, pivot.RankColumns(matrix), hierarchy.Options{})
//	sum := metrics.Summarize(h)
//	sum.WithRepeated(entries)
//	sum.WithWifi(analysis)
//
// The resulting [Summary] provides:
//   - The total number of failures and the row/column counts
//   - The highest individual cell and where it sits
//   - Per-dimension rankings (stations, models, test cases) via [Rank]
//   - A cell distribution (P50, P90, P99, mean, max) backed by HdrHistogram
//
// # Rankings
//
// Rankings are keyed by record field. The column field is ranked from the
// column totals, the group field from group totals and the leaf field from
// leaf values summed across groups. All rankings sort by count descending
// with ties broken by name, so they are stable across runs.
//
// # Optional sections
//
// Repeated-failure and WiFi sections are nil until attached with
// [Summary.WithRepeated] and [Summary.WithWifi]. Consumers must treat a nil
// section as "not computed for this view".
package metrics
