// Package telemetry installs the OpenTelemetry tracer provider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Options selects the OTLP collector.
type Options struct {
	ServiceName string
	Version     string
	Endpoint    string // host:port; empty disables export
	Insecure    bool
}

// Setup installs a batching tracer provider exporting to opts.Endpoint and returns
// its shutdown func. With no endpoint, or when the exporter cannot be created, the
// global no-op provider is left in place and the returned func does nothing.
func Setup(ctx context.Context, opts Options, log *zap.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if opts.Endpoint == "" {
		return noop
	}

	eo := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		eo = append(eo, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, eo...)
	if err != nil {
		log.Warn("otel exporter", zap.Error(err))
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.Version),
	))
	if err != nil {
		log.Warn("otel resource", zap.Error(err))
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	log.Debug("tracing enabled", zap.String("endpoint", opts.Endpoint))
	return provider.Shutdown
}
