package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"pricepipe/internal/infrastructure"
)

const (
	TracerName = "pricepipe.pipeline"
)

// PipelineTracer wraps runs and stages in spans and records the pipeline
// metrics. A nil *PipelineTracer is valid and records nothing.
type PipelineTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewPipelineTracer creates the tracer and registers the metrics on the
// providers' meter.
func NewPipelineTracer(providers *infrastructure.OTelProviders) (*PipelineTracer, error) {
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	tracer := providers.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(TracerName)
	}
	return &PipelineTracer{tracer: tracer, metrics: metrics}, nil
}

// StartRun opens the run span.
func (pt *PipelineTracer) StartRun(ctx context.Context, runID string, initial State) (context.Context, trace.Span) {
	if pt == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pipeline.run_id", runID),
			attribute.String("pipeline.initial_state", string(initial)),
		),
	)
}

// EndRun records the outcome of a run and closes its span.
func (pt *PipelineTracer) EndRun(ctx context.Context, span trace.Span, result *RunResult) {
	if pt == nil {
		return
	}
	status := string(result.State)
	attrs := metric.WithAttributes(attribute.String("status", status))
	pt.metrics.RunsTotal.Add(ctx, 1, attrs)
	pt.metrics.RunDuration.Record(ctx, result.Duration.Seconds(), attrs)
	if result.RowsLoaded > 0 {
		pt.metrics.RowsLoaded.Add(ctx, result.RowsLoaded)
	}

	span.SetAttributes(
		attribute.String("pipeline.state", status),
		attribute.Int64("pipeline.rows_loaded", result.RowsLoaded),
	)
	if result.Success {
		span.SetStatus(codes.Ok, "pipeline completed")
	} else {
		span.SetAttributes(attribute.String("pipeline.failed_stage", string(result.FailedStage)))
		if result.Err != nil {
			span.RecordError(result.Err)
		}
		span.SetStatus(codes.Error, fmt.Sprintf("pipeline failed in %s", result.FailedStage))
	}
	span.End()
}

// StartStage opens a stage span.
func (pt *PipelineTracer) StartStage(ctx context.Context, stage State) (context.Context, trace.Span) {
	if pt == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return pt.tracer.Start(ctx, "pipeline.stage."+string(stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("pipeline.stage", string(stage))),
	)
}

// EndStage records the stage duration and closes its span.
func (pt *PipelineTracer) EndStage(ctx context.Context, span trace.Span, step *StepState) {
	if pt == nil {
		return
	}
	pt.metrics.StageDuration.Record(ctx, step.Duration().Seconds(), metric.WithAttributes(
		attribute.String("stage", string(step.Stage)),
		attribute.String("status", string(step.Status)),
	))
	if step.Error != nil {
		infrastructure.RecordError(ctx, step.Error)
	}
	span.End()
}

// RecordDownloadWait records how long the export took to land.
func (pt *PipelineTracer) RecordDownloadWait(ctx context.Context, d time.Duration) {
	if pt == nil {
		return
	}
	pt.metrics.DownloadWait.Record(ctx, d.Seconds())
}
