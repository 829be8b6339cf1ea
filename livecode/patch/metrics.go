package patch

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("livecode.patch")
	meter  = otel.Meter("livecode.patch")
)

var (
	patchesTotal     metric.Int64Counter
	patchesRejected  metric.Int64Counter
	defsInvalidated  metric.Int64Counter
	patchDuration    metric.Float64Histogram
	namespacesPerRun metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		patchesTotal, err = meter.Int64Counter(
			"livecode_patches_total",
			metric.WithDescription("Total number of patches applied to the live program"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		patchesRejected, err = meter.Int64Counter(
			"livecode_patches_rejected_total",
			metric.WithDescription("Total number of patches rejected by validation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		defsInvalidated, err = meter.Int64Counter(
			"livecode_definitions_invalidated_total",
			metric.WithDescription("Total number of evaluated definitions dropped by invalidation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		patchDuration, err = meter.Float64Histogram(
			"livecode_patch_duration_seconds",
			metric.WithDescription("Duration of apply and invalidate for one patch"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		namespacesPerRun, err = meter.Int64Histogram(
			"livecode_patch_namespaces",
			metric.WithDescription("Namespaces touched by one patch"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordPatch(ctx context.Context, source string, duration time.Duration, namespaces, cleared int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", source))
	patchesTotal.Add(ctx, 1, attrs)
	defsInvalidated.Add(ctx, int64(cleared), attrs)
	patchDuration.Record(ctx, duration.Seconds(), attrs)
	namespacesPerRun.Record(ctx, int64(namespaces), attrs)
}

func recordRejected(ctx context.Context, source, kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	patchesRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("kind", kind),
	))
}

func startPatchSpan(ctx context.Context, operation, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Pipeline."+operation,
		trace.WithAttributes(
			attribute.String("patch.operation", operation),
			attribute.String("patch.source", source),
		),
	)
}

func endPatchSpan(span trace.Span, err error, namespaces int) {
	span.SetAttributes(attribute.Int("patch.namespaces", namespaces))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
