package observability

import (
	"context"
	"fmt"

	"github.com/fenwick-labs/graphrag/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// InitOTel wires a Prometheus-backed meter provider (so /metrics always has
// something to scrape, per SPEC_FULL §6) and an optional OTLP trace exporter
// gated on obs.OTLPEndpoint. Returns a shutdown func; the Prometheus
// exporter registers with the default registry that httpapi's /metrics
// handler serves.
func InitOTel(ctx context.Context, obs config.ObsConfig) (shutdown func(context.Context) error, err error) {
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithAttributes(semconv.ServiceName(obs.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("init resource: %w", err)
	}

	promExp, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("init prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithReader(promExp),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	shutdownFns := []func(context.Context) error{mp.Shutdown}

	if obs.OTLPEndpoint != "" {
		trExp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(obs.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("init trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(trExp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		shutdownFns = append(shutdownFns, tp.Shutdown)
	}

	return func(ctx context.Context) error {
		var first error
		for _, fn := range shutdownFns {
			if e := fn(ctx); e != nil && first == nil {
				first = e
			}
		}
		return first
	}, nil
}
