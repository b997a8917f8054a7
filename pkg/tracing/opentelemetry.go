package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/observable-agent/pkg/config"
	"github.com/run-bigpig/observable-agent/pkg/session"
)

// OTelTracer opens spans around model calls and agent steps. The zero
// configuration gives a disabled tracer whose spans are no-ops.
type OTelTracer struct {
	tracer      trace.Tracer
	provider    *sdktrace.TracerProvider
	enabled     bool
	serviceName string
}

// OTelConfig describes the OTLP gRPC exporter
type OTelConfig struct {
	Enabled           bool
	ServiceName       string
	ServiceVersion    string
	Environment       string
	CollectorEndpoint string
	// Secure turns on TLS towards the collector
	Secure bool
	// SampleRatio below 1 keeps that share of new traces; 0 means keep all
	SampleRatio float64
}

// OTelConfigFrom derives a tracer config from process configuration
func OTelConfigFrom(cfg config.OTelConfig) OTelConfig {
	return OTelConfig{
		Enabled:           cfg.Enabled(),
		ServiceName:       cfg.ServiceName,
		CollectorEndpoint: cfg.Endpoint,
		Secure:            !cfg.Insecure,
		SampleRatio:       cfg.SampleRatio,
	}
}

func (c OTelConfig) sampler() sdktrace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

func (c OTelConfig) resourceAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(c.ServiceName)}
	if c.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(c.ServiceVersion))
	}
	if c.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(c.Environment))
	}
	return attrs
}

// NewOTelTracer connects to the collector and installs the provider
// globally. Nothing is dialled for a disabled config.
func NewOTelTracer(cfg OTelConfig) (*OTelTracer, error) {
	if !cfg.Enabled {
		return &OTelTracer{}, nil
	}

	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if !cfg.Secure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}

	ctx := context.Background()
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(cfg.resourceAttributes()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(tp)

	return &OTelTracer{
		tracer:      tp.Tracer(cfg.ServiceName),
		provider:    tp,
		enabled:     true,
		serviceName: cfg.ServiceName,
	}, nil
}

// StartSpan opens a child of the span in ctx. Session and user ids from ctx
// are copied onto the span so a collector can group one conversation.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, trace.SpanFromContext(ctx)
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes)+2)
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	if id, err := session.GetSessionID(ctx); err == nil {
		attrs = append(attrs, attribute.String("session_id", id))
	}
	if id := session.UserID(ctx); id != "" {
		attrs = append(attrs, attribute.String("user_id", id))
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, and closes the span
func (t *OTelTracer) EndSpan(span trace.Span, err error) {
	if !t.enabled {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Shutdown flushes pending spans and stops the exporter
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	if !t.enabled || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
