// Package analysis runs the failure pivot pipeline for one view and collects
// everything a renderer needs into a Report.
//
// The engine packages it drives are synchronous and stateless; this package
// adds the run identity, per-stage tracing spans, structured logging and
// Prometheus telemetry around them.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/stationpivot/internal/config"
	"github.com/torosent/stationpivot/internal/feeder"
	"github.com/torosent/stationpivot/internal/hierarchy"
	"github.com/torosent/stationpivot/internal/highlight"
	"github.com/torosent/stationpivot/internal/metrics"
	"github.com/torosent/stationpivot/internal/pivot"
	"github.com/torosent/stationpivot/internal/record"
	"github.com/torosent/stationpivot/internal/repeated"
	"github.com/torosent/stationpivot/internal/selection"
	"github.com/torosent/stationpivot/internal/telemetry"
	"github.com/torosent/stationpivot/internal/threshold"
	"github.com/torosent/stationpivot/internal/tracing"
	"github.com/torosent/stationpivot/internal/wifi"
)

// ErrThresholdsFailed is returned alongside a complete report when at least
// one threshold assertion did not hold.
var ErrThresholdsFailed = errors.New("one or more thresholds failed")

// Stage names used for spans, logs and the stage duration histogram.
const (
	StageLoad      = "load"
	StageAudit     = "audit"
	StageFilter    = "filter"
	StageNormalize = "normalize"
	StageAggregate = "aggregate"
	StageRank      = "rank"
	StageBuild     = "build"
	StageHighlight = "highlight"
	StageRepeated  = "repeated"
	StageEvents    = "events"
	StageWifi      = "wifi"
	StageSummarize = "summarize"
	StageThreshold = "threshold"
)

// Deps carries the observability hooks of a run. The zero value is usable:
// logs are discarded, spans are no-ops and metrics are skipped.
type Deps struct {
	Logger  logr.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// Sigma is the result of the mean + k*std outlier rule.
type Sigma struct {
	K        float64              `json:"k" yaml:"k"`
	Bands    highlight.SigmaBands `json:"bands" yaml:"bands"`
	Warn     highlight.Set        `json:"warn" yaml:"warn"`
	Critical highlight.Set        `json:"critical" yaml:"critical"`
}

// Filtering counts rows removed before normalization.
type Filtering struct {
	Policy          record.StatusPolicy `json:"status_policy" yaml:"status_policy"`
	StatusDropped   int                 `json:"status_dropped" yaml:"status_dropped"`
	Operators       []string            `json:"operators,omitempty" yaml:"operators,omitempty"`
	OperatorDropped int                 `json:"operator_dropped" yaml:"operator_dropped"`
}

// Report is the outcome of one run. Sections that the view does not compute
// are nil.
type Report struct {
	RunID       string      `json:"run_id" yaml:"run_id"`
	View        config.View `json:"view" yaml:"view"`
	Input       string      `json:"input,omitempty" yaml:"input,omitempty"`
	GeneratedAt time.Time   `json:"generated_at" yaml:"generated_at"`
	Rows        int         `json:"rows" yaml:"rows"`

	Audit       *record.Audit       `json:"audit,omitempty" yaml:"audit,omitempty"`
	Filtering   *Filtering          `json:"filtering,omitempty" yaml:"filtering,omitempty"`
	Diagnostics *record.Diagnostics `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`

	Ranking    pivot.Ranking         `json:"ranking,omitempty" yaml:"ranking,omitempty"`
	Hierarchy  *hierarchy.Hierarchy  `json:"hierarchy,omitempty" yaml:"hierarchy,omitempty"`
	Highlights *highlight.Highlights `json:"highlights,omitempty" yaml:"highlights,omitempty"`
	Sigma      *Sigma                `json:"sigma,omitempty" yaml:"sigma,omitempty"`

	Repeated []repeated.Entry  `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	Choices  []repeated.Choice `json:"choices,omitempty" yaml:"choices,omitempty"`

	Wifi            *wifi.Analysis    `json:"wifi,omitempty" yaml:"wifi,omitempty"`
	WifiDiagnostics *wifi.Diagnostics `json:"wifi_diagnostics,omitempty" yaml:"wifi_diagnostics,omitempty"`

	Summary    *metrics.Summary   `json:"summary" yaml:"summary"`
	Thresholds []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdsPassed reports whether every threshold held.
func (r *Report) ThresholdsPassed() bool {
	return r == nil || threshold.AllPassed(r.Thresholds)
}

// IsConfigurationError reports whether err stems from an invalid setup rather
// than from the data.
func IsConfigurationError(err error) bool {
	var cfgErr *pivot.ConfigurationError
	var valErr config.ValidationError
	return errors.As(err, &cfgErr) || errors.As(err, &valErr) || errors.Is(err, record.ErrInvalidMode)
}

type runner struct {
	cfg     *config.Config
	log     logr.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
	now     func() time.Time
}

func newRunner(cfg *config.Config, deps Deps) *runner {
	r := &runner{
		cfg:     cfg,
		log:     deps.Logger,
		tracer:  deps.Tracer,
		metrics: deps.Metrics,
		now:     deps.Now,
	}
	if r.log.GetSink() == nil {
		r.log = logr.Discard()
	}
	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer("stationpivot")
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// stage runs fn inside a span and records its duration.
func (r *runner) stage(ctx context.Context, name string, fn func() ([]attribute.KeyValue, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := r.now()
	_, span := tracing.StartStageSpan(ctx, r.tracer, name)
	attrs, err := fn()
	tracing.EndSpan(span, err, attrs...)
	elapsed := r.now().Sub(start)
	r.metrics.ObserveStage(name, elapsed)
	if err != nil {
		r.log.Error(err, "stage failed", "stage", name)
		return err
	}
	r.log.V(1).Info("stage finished", "stage", name, "elapsed", elapsed.String())
	return nil
}

// Load reads the configured input into rows.
func Load(ctx context.Context, cfg *config.Config, deps Deps) ([]record.Row, error) {
	r := newRunner(cfg, deps)
	var rows []record.Row
	err := r.stage(ctx, StageLoad, func() ([]attribute.KeyValue, error) {
		f, err := feeder.Open(cfg.Input, feeder.Options{
			Format:  cfg.Format,
			Aliases: cfg.Columns,
			Path:    cfg.RecordPath,
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		rows, err = feeder.ReadAll(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		return []attribute.KeyValue{tracing.AttrInput.String(cfg.Input), tracing.AttrRows.Int(len(rows))}, nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.RowsRead(len(rows))
	r.log.Info("input loaded", "input", cfg.Input, "rows", len(rows))
	return rows, nil
}

// Run computes the configured view over rows. When thresholds fail the
// complete report is returned together with ErrThresholdsFailed.
func Run(ctx context.Context, cfg *config.Config, rows []record.Row, deps Deps) (*Report, error) {
	if cfg == nil {
		return nil, errors.New("analysis: nil config")
	}
	r := newRunner(cfg, deps)

	report := &Report{
		RunID:       ulid.Make().String(),
		View:        cfg.View,
		Input:       cfg.Input,
		GeneratedAt: r.now().UTC(),
		Rows:        len(rows),
	}
	log := r.log.WithValues("runID", report.RunID, "view", string(cfg.View))
	r.log = log

	ctx, span := tracing.StartRunSpan(ctx, r.tracer, report.RunID, string(cfg.View))
	log.Info("run started", "rows", len(rows))

	err := r.run(ctx, report, rows)
	tracing.EndSpan(span, err)

	result := telemetry.ResultSuccess
	switch {
	case err != nil:
		result = telemetry.ResultError
	case !report.ThresholdsPassed():
		result = telemetry.ResultThresholdFailed
	}
	r.metrics.RunFinished(string(cfg.View), result)

	if err != nil {
		return nil, err
	}
	if !report.ThresholdsPassed() {
		log.Info("run finished with failed thresholds")
		return report, ErrThresholdsFailed
	}
	log.Info("run finished")
	return report, nil
}

func (r *runner) run(ctx context.Context, report *Report, rows []record.Row) error {
	var err error
	switch r.cfg.View {
	case config.ViewHierarchy, config.ViewSummary:
		err = r.runHierarchy(ctx, report, rows)
	case config.ViewRepeated:
		err = r.runRepeated(ctx, report, rows)
	case config.ViewWifi:
		err = r.runWifi(ctx, report, rows)
	default:
		err = fmt.Errorf("unsupported view %q", r.cfg.View)
	}
	if err != nil {
		return err
	}
	return r.evaluate(ctx, report)
}

// prepare audits, filters and normalizes rows into failure records.
func (r *runner) prepare(ctx context.Context, report *Report, rows []record.Row, statusPolicy string, mode record.Mode) ([]record.FailureRecord, error) {
	err := r.stage(ctx, StageAudit, func() ([]attribute.KeyValue, error) {
		audit := record.AuditRows(rows)
		report.Audit = &audit
		if !audit.Clean() {
			r.log.Info("inconsistent rows found", "ghostFailures", audit.GhostFailures, "phantomResults", audit.PhantomResults)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	var filtered []record.Row
	err = r.stage(ctx, StageFilter, func() ([]attribute.KeyValue, error) {
		policy, err := record.ParseStatusPolicy(statusPolicy)
		if err != nil {
			return nil, err
		}
		byStatus, err := record.FilterStatus(rows, policy)
		if err != nil {
			return nil, err
		}
		filtered = record.FilterOperators(byStatus, operatorSelection(r.cfg.Operators))
		report.Filtering = &Filtering{
			Policy:          policy,
			StatusDropped:   len(rows) - len(byStatus),
			Operators:       r.cfg.Operators,
			OperatorDropped: len(byStatus) - len(filtered),
		}
		r.metrics.RowsSkipped("status", report.Filtering.StatusDropped)
		r.metrics.RowsSkipped("operator", report.Filtering.OperatorDropped)
		return []attribute.KeyValue{tracing.AttrRows.Int(len(filtered))}, nil
	})
	if err != nil {
		return nil, err
	}

	var records []record.FailureRecord
	err = r.stage(ctx, StageNormalize, func() ([]attribute.KeyValue, error) {
		res, err := record.Normalize(filtered, mode)
		if err != nil {
			return nil, err
		}
		records = res.Records
		report.Diagnostics = &res.Diagnostics
		r.metrics.RowsSkipped("normalize", res.Diagnostics.Malformed)
		r.metrics.FailureRecords(len(records))
		if res.Diagnostics.Malformed > 0 {
			r.log.Info("rows skipped during normalization", "malformed", res.Diagnostics.Malformed)
			for _, s := range res.Diagnostics.Skipped {
				r.log.V(1).Info("row skipped", "row", s.Row, "reason", s.Reason)
			}
		}
		return []attribute.KeyValue{
			tracing.AttrRecords.Int(len(records)),
			tracing.AttrSkipped.Int(res.Diagnostics.Malformed),
		}, nil
	})
	return records, err
}

func (r *runner) runHierarchy(ctx context.Context, report *Report, rows []record.Row) error {
	records, err := r.prepare(ctx, report, rows, r.cfg.StatusPolicy, record.Mode(r.cfg.Normalize))
	if err != nil {
		return err
	}

	rowFields, err := r.cfg.RowFields()
	if err != nil {
		return &pivot.ConfigurationError{Field: "rows", Reason: err.Error()}
	}
	colField, err := r.cfg.ColumnField()
	if err != nil {
		return &pivot.ConfigurationError{Field: "column", Reason: err.Error()}
	}

	var m *pivot.Matrix
	err = r.stage(ctx, StageAggregate, func() ([]attribute.KeyValue, error) {
		m, err = pivot.Aggregate(records, pivot.Spec{Rows: rowFields, Column: colField})
		if err != nil {
			return nil, err
		}
		return []attribute.KeyValue{tracing.AttrRows.Int(m.Len())}, nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageRank, func() ([]attribute.KeyValue, error) {
		report.Ranking = pivot.RankColumns(m)
		return nil, nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageBuild, func() ([]attribute.KeyValue, error) {
		h, err := hierarchy.Build(m, report.Ranking, hierarchy.Options{SuppressZeroRows: r.cfg.SuppressZeroRows})
		if err != nil {
			return nil, err
		}
		if err := hierarchy.Reconcile(h); err != nil {
			return nil, fmt.Errorf("reconcile hierarchy: %w", err)
		}
		report.Hierarchy = h
		cells := 0
		for _, g := range h.Groups {
			cells += len(g.Leaves) * len(h.Columns)
		}
		r.metrics.HierarchyCells(cells)
		return []attribute.KeyValue{tracing.AttrCells.Int(cells)}, nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageHighlight, func() ([]attribute.KeyValue, error) {
		hl := highlight.Compute(report.Hierarchy)
		report.Highlights = &hl
		warn, critical, bands := highlight.Sigma(report.Hierarchy, r.cfg.Sigma)
		report.Sigma = &Sigma{K: r.cfg.Sigma, Bands: bands, Warn: warn, Critical: critical}
		for rule, n := range hl.Count() {
			r.metrics.HighlightedCells(string(rule), n)
		}
		r.metrics.HighlightedCells(string(highlight.RuleSigmaWarn), warn.Len())
		r.metrics.HighlightedCells(string(highlight.RuleSigmaCritical), critical.Len())
		return nil, nil
	})
	if err != nil {
		return err
	}

	return r.stage(ctx, StageSummarize, func() ([]attribute.KeyValue, error) {
		report.Summary = metrics.Summarize(report.Hierarchy)
		return nil, nil
	})
}

// runRepeated always splits failures and keeps only FAILURE rows; the
// normalize and status_policy settings apply to the hierarchy views.
func (r *runner) runRepeated(ctx context.Context, report *Report, rows []record.Row) error {
	if r.cfg.Normalize != string(record.ModeSplit) || r.cfg.StatusPolicy != string(record.PolicyFailureOnly) {
		r.log.V(1).Info("repeated view ignores normalize and status_policy settings",
			"normalize", r.cfg.Normalize, "statusPolicy", r.cfg.StatusPolicy)
	}
	records, err := r.prepare(ctx, report, rows, string(record.PolicyFailureOnly), record.ModeSplit)
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageRepeated, func() ([]attribute.KeyValue, error) {
		key, err := repeated.ParseSortKey(r.cfg.SortBy)
		if err != nil {
			return nil, &pivot.ConfigurationError{Field: "sort_by", Reason: err.Error()}
		}
		entries, err := repeated.Analyze(records, repeated.Options{MinFailures: r.cfg.MinFailures})
		if err != nil {
			return nil, err
		}
		report.Choices = repeated.Choices(entries)
		entries = repeated.Select(entries, testCaseSelection(r.cfg.TestCases, r.cfg.ClearTestCases))
		repeated.Sort(entries, key)
		report.Repeated = entries
		return []attribute.KeyValue{attribute.Int("stationpivot.repeated", len(entries))}, nil
	})
	if err != nil {
		return err
	}

	return r.stage(ctx, StageSummarize, func() ([]attribute.KeyValue, error) {
		report.Summary = metrics.Summarize(nil).WithRepeated(report.Repeated)
		return nil, nil
	})
}

func (r *runner) runWifi(ctx context.Context, report *Report, rows []record.Row) error {
	var events []wifi.Event
	err := r.stage(ctx, StageEvents, func() ([]attribute.KeyValue, error) {
		var diag wifi.Diagnostics
		events, diag = wifi.Events(rows, r.cfg.TimestampLayout)
		report.WifiDiagnostics = &diag
		r.metrics.RowsSkipped("timestamp", diag.BadTimestamps)
		r.metrics.RowsSkipped("timestamp_range", diag.OutOfRange)
		if diag.BadTimestamps > 0 {
			r.log.Info("rows with unparseable timestamps skipped", "count", diag.BadTimestamps)
		}
		if diag.OutOfRange > 0 {
			r.log.Info("rows with out of range timestamps skipped", "count", diag.OutOfRange, "maxSpan", wifi.MaxSpan)
		}
		return []attribute.KeyValue{
			tracing.AttrRecords.Int(len(events)),
			tracing.AttrSkipped.Int(diag.BadTimestamps + diag.OutOfRange),
		}, nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageWifi, func() ([]attribute.KeyValue, error) {
		a, err := wifi.Analyze(events, wifi.Options{
			ThresholdPercent: r.cfg.ErrorThresholdPercent,
			Operators:        r.cfg.WifiOperators,
		})
		if err != nil {
			return nil, err
		}
		report.Wifi = a
		if high := a.HighOperators(); len(high) > 0 {
			r.log.Info("operators above error threshold", "operators", strings.Join(high, ", "), "threshold", a.ThresholdPercent)
		}
		return []attribute.KeyValue{attribute.Int("stationpivot.high_operators", len(a.HighOperators()))}, nil
	})
	if err != nil {
		return err
	}

	return r.stage(ctx, StageSummarize, func() ([]attribute.KeyValue, error) {
		report.Summary = metrics.Summarize(nil).WithWifi(report.Wifi)
		return nil, nil
	})
}

func (r *runner) evaluate(ctx context.Context, report *Report) error {
	if len(r.cfg.Thresholds) == 0 {
		r.metrics.ThresholdFailures(0)
		return nil
	}
	return r.stage(ctx, StageThreshold, func() ([]attribute.KeyValue, error) {
		thresholds, err := threshold.ParseMultiple(r.cfg.Thresholds)
		if err != nil {
			return nil, err
		}
		report.Thresholds = threshold.NewEvaluator(thresholds).Evaluate(report.Summary)
		failed := 0
		for _, res := range report.Thresholds {
			if !res.Pass {
				failed++
				r.log.Info("threshold failed", "threshold", res.Raw, "actual", res.Actual)
			}
		}
		r.metrics.ThresholdFailures(failed)
		return []attribute.KeyValue{attribute.Int("stationpivot.threshold_failures", failed)}, nil
	})
}

func operatorSelection(operators []string) selection.Selection {
	if len(operators) == 0 {
		return selection.All()
	}
	return selection.Subset(operators...)
}

func testCaseSelection(testCases []string, none bool) selection.Selection {
	if none {
		return selection.None()
	}
	if len(testCases) == 0 {
		return selection.All()
	}
	return selection.Subset(testCases...)
}
