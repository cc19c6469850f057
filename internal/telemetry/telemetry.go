// Package telemetry records Prometheus metrics about a pivot run.
//
// Each run registers its collectors on a private registry. After the run
// the registry can be written to a node-exporter style textfile so batch
// invocations remain observable.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	prometheusNamespace = "stationpivot"

	viewLabel   = "view"
	resultLabel = "result"
	stageLabel  = "stage"
	kindLabel   = "kind"

	rowsReadMetricName          = "rows_read_total"
	rowsSkippedMetricName       = "rows_skipped_total"
	failureRecordsMetricName    = "failure_records_total"
	runsMetricName              = "runs_total"
	stageDurationMetricName     = "stage_duration_seconds"
	hierarchyCellsMetricName    = "hierarchy_cells"
	highlightedCellsMetricName  = "highlighted_cells"
	lastRunTimestampMetricName  = "last_run_timestamp_seconds"
	thresholdFailuresMetricName = "threshold_failures"
)

// Run results reported on runs_total.
const (
	ResultSuccess         = "success"
	ResultThresholdFailed = "threshold_failed"
	ResultError           = "error"
)

// Metrics holds the collectors updated during a run.
type Metrics struct {
	rowsRead          prometheus.Counter
	rowsSkipped       *prometheus.CounterVec
	failureRecords    prometheus.Counter
	runs              *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	hierarchyCells    prometheus.Gauge
	highlightedCells  *prometheus.GaugeVec
	lastRunTimestamp  prometheus.Gauge
	thresholdFailures prometheus.Gauge
}

// New registers the run metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      rowsReadMetricName,
			Help:      "Input rows read from the export.",
		}),
		rowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      rowsSkippedMetricName,
			Help:      "Rows dropped while preparing records, by stage.",
		}, []string{stageLabel}),
		failureRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      failureRecordsMetricName,
			Help:      "Normalized failure records produced.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      runsMetricName,
			Help:      "Completed runs by view and result.",
		}, []string{viewLabel, resultLabel}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prometheusNamespace,
			Name:      stageDurationMetricName,
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{stageLabel}),
		hierarchyCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      hierarchyCellsMetricName,
			Help:      "Leaf cells in the last built hierarchy.",
		}),
		highlightedCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      highlightedCellsMetricName,
			Help:      "Highlighted cells in the last run, by highlight kind.",
		}, []string{kindLabel}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      lastRunTimestampMetricName,
			Help:      "Unix time the last run finished.",
		}),
		thresholdFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      thresholdFailuresMetricName,
			Help:      "Thresholds that failed in the last run.",
		}),
	}

	reg.MustRegister(m.rowsRead)
	reg.MustRegister(m.rowsSkipped)
	reg.MustRegister(m.failureRecords)
	reg.MustRegister(m.runs)
	reg.MustRegister(m.stageDuration)
	reg.MustRegister(m.hierarchyCells)
	reg.MustRegister(m.highlightedCells)
	reg.MustRegister(m.lastRunTimestamp)
	reg.MustRegister(m.thresholdFailures)

	return m
}

// RowsRead adds n to the input row counter.
func (m *Metrics) RowsRead(n int) {
	if m == nil {
		return
	}
	m.rowsRead.Add(float64(n))
}

// RowsSkipped adds n rows dropped by stage.
func (m *Metrics) RowsSkipped(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsSkipped.With(prometheus.Labels{stageLabel: stage}).Add(float64(n))
}

// FailureRecords adds n normalized records.
func (m *Metrics) FailureRecords(n int) {
	if m == nil {
		return
	}
	m.failureRecords.Add(float64(n))
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.With(prometheus.Labels{stageLabel: stage}).Observe(d.Seconds())
}

// HierarchyCells sets the leaf cell gauge.
func (m *Metrics) HierarchyCells(n int) {
	if m == nil {
		return
	}
	m.hierarchyCells.Set(float64(n))
}

// HighlightedCells sets the number of cells carrying the given highlight kind.
func (m *Metrics) HighlightedCells(kind string, n int) {
	if m == nil {
		return
	}
	m.highlightedCells.With(prometheus.Labels{kindLabel: kind}).Set(float64(n))
}

// ThresholdFailures sets the failed threshold gauge.
func (m *Metrics) ThresholdFailures(n int) {
	if m == nil {
		return
	}
	m.thresholdFailures.Set(float64(n))
}

// RunFinished counts a run and stamps the completion time.
func (m *Metrics) RunFinished(view, result string) {
	if m == nil {
		return
	}
	m.runs.With(prometheus.Labels{viewLabel: view, resultLabel: result}).Inc()
	m.lastRunTimestamp.SetToCurrentTime()
}

// WriteTextfile writes every metric gathered from g to path in the
// Prometheus text format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
