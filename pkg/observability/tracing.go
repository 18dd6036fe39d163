package observability

import (
	"context"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of lattice spans.
const TracerName = "github.com/aretw0/lattice"

// OTelConfig configures the OTLP HTTP exporter.
type OTelConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// InitTracer installs a global tracer provider exporting over OTLP HTTP.
// Callers shut the provider down on exit to flush pending spans.
func InitTracer(ctx context.Context, cfg OTelConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.ExportEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = "lattice"
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", name)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer opens one span per run and one child span per resolved node.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	runs  map[string]trace.Span
	nodes map[string]trace.Span
}

// NewTracer creates a Tracer. A nil provider uses the global one.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer: tp.Tracer(TracerName),
		runs:   make(map[string]trace.Span),
		nodes:  make(map[string]trace.Span),
	}
}

// Hooks returns lifecycle hooks that record spans.
func (t *Tracer) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart:  t.runStart,
		OnRunEnd:    t.runEnd,
		OnNodeEnter: t.nodeEnter,
		OnNodeLeave: t.nodeLeave,
	}
}

func (t *Tracer) runStart(ctx context.Context, e *domain.RunEvent) {
	_, span := t.tracer.Start(ctx, "workflow.run",
		trace.WithTimestamp(e.Timestamp),
		trace.WithAttributes(
			attribute.String("run.id", e.RunID),
			attribute.Int("run.nodes", e.Nodes),
		),
	)
	t.mu.Lock()
	t.runs[e.RunID] = span
	t.mu.Unlock()
}

func (t *Tracer) runEnd(_ context.Context, e *domain.RunEvent) {
	t.mu.Lock()
	span, ok := t.runs[e.RunID]
	delete(t.runs, e.RunID)
	t.mu.Unlock()
	if !ok {
		return
	}
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.End(trace.WithTimestamp(e.Timestamp))
}

func (t *Tracer) nodeEnter(ctx context.Context, e *domain.NodeEvent) {
	span := t.startNode(ctx, e)
	t.mu.Lock()
	t.nodes[nodeKey(e)] = span
	t.mu.Unlock()
}

func (t *Tracer) nodeLeave(ctx context.Context, e *domain.NodeEvent) {
	t.mu.Lock()
	span, ok := t.nodes[nodeKey(e)]
	delete(t.nodes, nodeKey(e))
	t.mu.Unlock()
	if !ok {
		// excluded nodes are resolved without entering
		span = t.startNode(ctx, e)
	}

	outcome := string(e.Outcome)
	if e.Err != nil {
		outcome = OutcomeFailed
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.SetAttributes(attribute.String("node.outcome", outcome))
	span.End(trace.WithTimestamp(e.Timestamp))
}

func (t *Tracer) startNode(ctx context.Context, e *domain.NodeEvent) trace.Span {
	t.mu.Lock()
	parent, ok := t.runs[e.RunID]
	t.mu.Unlock()
	if ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}
	_, span := t.tracer.Start(ctx, "node.execute",
		trace.WithTimestamp(e.Timestamp),
		trace.WithAttributes(
			attribute.String("node.id", e.NodeID),
			attribute.String("node.kind", string(e.Kind)),
		),
	)
	return span
}

func nodeKey(e *domain.NodeEvent) string {
	return e.RunID + "/" + e.NodeID
}
