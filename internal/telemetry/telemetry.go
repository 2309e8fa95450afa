// Package telemetry installs the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	// TraceExporter is "none" or "stdout".
	TraceExporter string
	// Writer receives stdout spans; nil means os.Stdout.
	Writer io.Writer
}

// Init sets the global tracer provider. The returned shutdown flushes
// pending spans and must be called on exit. With exporter "none" the
// global no-op provider is left in place.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var exporter sdktrace.SpanExporter
	switch cfg.TraceExporter {
	case "", "none":
		return noop, nil
	case "stdout":
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Writer != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
		}
		var err error
		exporter, err = stdouttrace.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.TraceExporter)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
