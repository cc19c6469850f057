package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on run and stage spans.
const (
	AttrRunID   = attribute.Key("stationpivot.run_id")
	AttrView    = attribute.Key("stationpivot.view")
	AttrStage   = attribute.Key("stationpivot.stage")
	AttrInput   = attribute.Key("stationpivot.input")
	AttrRows    = attribute.Key("stationpivot.rows")
	AttrRecords = attribute.Key("stationpivot.records")
	AttrSkipped = attribute.Key("stationpivot.skipped")
	AttrCells   = attribute.Key("stationpivot.cells")
)

// StartRunSpan starts the root span of a pivot run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, runID, view string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "stationpivot "+view,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		AttrRunID.String(runID),
		AttrView.String(view),
	)
	return ctx, span
}

// StartStageSpan starts a child span for one pipeline stage.
func StartStageSpan(ctx context.Context, tracer trace.Tracer, stage string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "stage "+stage)
	span.SetAttributes(AttrStage.String(stage))
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
