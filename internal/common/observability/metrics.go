package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"campaign-writer/internal/common/logger"
)

// Observability bundles the otel meter and tracer used by the orchestrator.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	stageCounter   otelmetric.Int64Counter
	stageDuration  otelmetric.Float64Histogram
}

// New registers a prometheus-backed meter provider and a tracer provider.
// Failures degrade to a no-op instance.
func New(serviceName string, sampleRatio float64, log logger.Logger) *Observability {
	log = logger.Component(log, "observability")

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))))
	otel.SetTracerProvider(tp)

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err})
		return &Observability{tracerProvider: tp, tracer: tp.Tracer(serviceName)}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	stageCounter, _ := meter.Int64Counter(
		"workflow.stages.completed",
		otelmetric.WithDescription("Number of workflow stages executed"),
	)

	stageDuration, _ := meter.Float64Histogram(
		"workflow.stages.duration",
		otelmetric.WithDescription("Workflow stage duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
		stageCounter:   stageCounter,
		stageDuration:  stageDuration,
	}
}

// NewNoop returns an instance that records nothing.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("noop")}
}

// StartSpan starts a span named name under ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("noop").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordStage records one executed workflow stage.
func (o *Observability) RecordStage(ctx context.Context, workflow, stage, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("stage", stage),
		attribute.String("status", status),
	)
	if o.stageCounter != nil {
		o.stageCounter.Add(ctx, 1, attrs)
	}
	if o.stageDuration != nil {
		o.stageDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
