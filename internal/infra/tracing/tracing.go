// Package tracing configures the global OpenTelemetry tracer provider.
// Spans are exported to Jaeger when an endpoint is configured; otherwise the
// global no-op provider stays in place.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the exporter.
type Config struct {
	JaegerEndpoint string
	ServiceName    string
	ServiceVersion string
}

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider exporting to cfg.JaegerEndpoint.
// With no endpoint it does nothing and returns a no-op shutdown.
func Setup(cfg Config) (ShutdownFunc, error) {
	if cfg.JaegerEndpoint == "" {
		return noopShutdown, nil
	}
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("tracing: jaeger exporter: %w", err)
	}
	tp := NewProvider(exp, cfg)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

// NewProvider builds a batching provider for exp tagged with the service name.
func NewProvider(exp sdktrace.SpanExporter, cfg Config) *sdktrace.TracerProvider {
	name := cfg.ServiceName
	if name == "" {
		name = "cropdoctor"
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)
}
